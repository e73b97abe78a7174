package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func validParams() Params {
	return Params{
		ServerAddr:     "localhost:8080",
		DatabaseDSN:    "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable",
		SigningKey:     "c29tZV9zZWNyZXQ=",
		AllowedOrigins: []string{"http://localhost:3000"},
	}
}

func TestNewConfig(t *testing.T) {
	tcases := []struct {
		name   string
		modify func(p *Params)
		err    bool
	}{
		{
			name:   "valid config",
			modify: func(p *Params) {},
		},
		{
			name:   "empty address",
			modify: func(p *Params) { p.ServerAddr = "" },
			err:    true,
		},
		{
			name:   "empty DSN",
			modify: func(p *Params) { p.DatabaseDSN = "" },
			err:    true,
		},
		{
			name:   "empty signing key",
			modify: func(p *Params) { p.SigningKey = "" },
			err:    true,
		},
		{
			name:   "bad log level",
			modify: func(p *Params) { p.LogLevel = "loud" },
			err:    true,
		},
		{
			name:   "history limit too large",
			modify: func(p *Params) { p.HistoryLimit = MaxHistoryLimit + 1 },
			err:    true,
		},
		{
			name:   "s3 bucket without region",
			modify: func(p *Params) { p.S3Bucket = "media" },
			err:    true,
		},
		{
			name:   "s3 base url without bucket",
			modify: func(p *Params) { p.S3PublicBaseURL = "https://cdn.example.com" },
			err:    true,
		},
		{
			name:   "partial vapid",
			modify: func(p *Params) { p.VAPIDPublicKey = "pub" },
			err:    true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			p := validParams()
			tc.modify(&p)

			config, err := NewConfig(p)
			if tc.err {
				assert.Error(t, err, "expected error for config: %s", tc.name)
				return
			}
			require.NoError(t, err, "expected no error for config: %s", tc.name)

			assert.Equal(t, p.ServerAddr, config.ServerAddr, "expected server address to match")
			assert.Equal(t, p.DatabaseDSN, config.DatabaseDSN, "expected database DSN to match")
			assert.Equal(t, p.AllowedOrigins, config.AllowedOrigins, "expected allowed origins to match")
			assert.Equal(t, []byte("some_secret"), config.SigningKey, "expected signing key to be decoded")
			assert.Equal(t, DefaultHistoryLimit, config.HistoryLimit)
			assert.Equal(t, zapcore.InfoLevel, config.LogLevel)
			assert.Nil(t, config.S3, "expected uploads to be disabled")
			assert.Nil(t, config.VAPID, "expected push to be disabled")
		})
	}
}

func TestNewConfigOptionalSections(t *testing.T) {
	p := validParams()
	p.LogLevel = "debug"
	p.HistoryLimit = 20
	p.RedisURL = "redis://localhost:6379/0"
	p.S3Region = "us-east-1"
	p.S3Bucket = "media"
	p.VAPIDSubject = "mailto:admin@example.com"
	p.VAPIDPublicKey = "pub"
	p.VAPIDPrivateKey = "priv"

	config, err := NewConfig(p)
	require.NoError(t, err)

	assert.Equal(t, zapcore.DebugLevel, config.LogLevel)
	assert.Equal(t, 20, config.HistoryLimit)
	assert.Equal(t, "redis://localhost:6379/0", config.RedisURL)
	assert.Equal(t, &S3Config{Region: "us-east-1", Bucket: "media"}, config.S3)
	assert.Equal(t, &VAPIDConfig{Subject: "mailto:admin@example.com", PublicKey: "pub", PrivateKey: "priv"}, config.VAPID)
}

func Test_decodeSigningKey(t *testing.T) {
	tcases := []struct {
		name         string
		base64Secret string
		expectedKey  []byte
		expectError  bool
	}{
		{
			name:         "valid base64 secret",
			base64Secret: "c29tZV9zZWNyZXQ=",
			expectedKey:  []byte("some_secret"),
			expectError:  false,
		},
		{
			name:         "invalid base64 secret",
			base64Secret: "invalid_base64",
			expectedKey:  nil,
			expectError:  true,
		},
		{
			name:         "empty base64 secret",
			base64Secret: "",
			expectedKey:  nil,
			expectError:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := decodeSigningSecret(tc.base64Secret)
			if tc.expectError {
				assert.Error(t, err, "expected error for base64 secret: %s", tc.base64Secret)
			} else {
				assert.NoError(t, err, "expected no error for base64 secret: %s", tc.base64Secret)
				assert.Equal(t, tc.expectedKey, key, "expected decoded key to match for base64 secret: %s", tc.base64Secret)
			}
		})
	}
}
