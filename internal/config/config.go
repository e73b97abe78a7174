package config

import (
	"encoding/base64"
	"errors"
	"fmt"

	"go.uber.org/zap/zapcore"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// Params are the raw values collected from flags and the environment.
type Params struct {
	ServerAddr      string
	DatabaseDSN     string
	SigningKey      string
	AllowedOrigins  []string
	LogLevel        string
	Dev             bool
	SkipMigrations  bool
	HistoryLimit    int
	RedisURL        string
	S3Region        string
	S3Bucket        string
	S3PublicBaseURL string
	VAPIDSubject    string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
}

type S3Config struct {
	Region        string
	Bucket        string
	PublicBaseURL string
}

type VAPIDConfig struct {
	Subject    string
	PublicKey  string
	PrivateKey string
}

type Config struct {
	DatabaseDSN    string
	ServerAddr     string
	SigningKey     []byte
	AllowedOrigins []string
	LogLevel       zapcore.Level
	Dev            bool
	SkipMigrations bool
	HistoryLimit   int
	RedisURL       string
	// S3 is nil when uploads are not configured.
	S3 *S3Config
	// VAPID is nil when push notifications are disabled.
	VAPID *VAPIDConfig
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, errors.New("signing secret decodes to an empty key")
	}

	return key, nil
}

func NewConfig(p Params) (*Config, error) {
	if p.ServerAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if p.DatabaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if p.SigningKey == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	// Decode the base64 encoded signing secret
	signingKey, err := decodeSigningSecret(p.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	level := zapcore.InfoLevel
	if p.LogLevel != "" {
		level, err = zapcore.ParseLevel(p.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
	}

	historyLimit := p.HistoryLimit
	if historyLimit == 0 {
		historyLimit = DefaultHistoryLimit
	}
	if historyLimit < 0 || historyLimit > MaxHistoryLimit {
		return nil, fmt.Errorf("history limit must be between 1 and %d", MaxHistoryLimit)
	}

	s3Config, err := newS3Config(p)
	if err != nil {
		return nil, err
	}

	vapidConfig, err := newVAPIDConfig(p)
	if err != nil {
		return nil, err
	}

	return &Config{
		DatabaseDSN:    p.DatabaseDSN,
		ServerAddr:     p.ServerAddr,
		SigningKey:     signingKey,
		AllowedOrigins: p.AllowedOrigins,
		LogLevel:       level,
		Dev:            p.Dev,
		SkipMigrations: p.SkipMigrations,
		HistoryLimit:   historyLimit,
		RedisURL:       p.RedisURL,
		S3:             s3Config,
		VAPID:          vapidConfig,
	}, nil
}

func newS3Config(p Params) (*S3Config, error) {
	if p.S3Bucket == "" {
		if p.S3PublicBaseURL != "" {
			return nil, fmt.Errorf("s3 public base url requires a bucket")
		}
		return nil, nil
	}
	if p.S3Region == "" {
		return nil, fmt.Errorf("s3 bucket %q requires a region", p.S3Bucket)
	}

	return &S3Config{
		Region:        p.S3Region,
		Bucket:        p.S3Bucket,
		PublicBaseURL: p.S3PublicBaseURL,
	}, nil
}

func newVAPIDConfig(p Params) (*VAPIDConfig, error) {
	set := 0
	for _, v := range []string{p.VAPIDSubject, p.VAPIDPublicKey, p.VAPIDPrivateKey} {
		if v != "" {
			set++
		}
	}

	switch set {
	case 0:
		return nil, nil
	case 3:
		return &VAPIDConfig{
			Subject:    p.VAPIDSubject,
			PublicKey:  p.VAPIDPublicKey,
			PrivateKey: p.VAPIDPrivateKey,
		}, nil
	default:
		return nil, fmt.Errorf("vapid subject, public key and private key must be set together")
	}
}
