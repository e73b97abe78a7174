package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/npezzotti/gosocial/internal/api"
	"github.com/npezzotti/gosocial/internal/chat"
	"github.com/npezzotti/gosocial/internal/config"
	"github.com/npezzotti/gosocial/internal/database"
	"github.com/npezzotti/gosocial/internal/push"
	"github.com/npezzotti/gosocial/internal/server"
	"github.com/npezzotti/gosocial/internal/stats"
	"github.com/npezzotti/gosocial/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

var params config.Params

var rootCmd = &cobra.Command{
	Use:   "gosocial",
	Short: "gosocial serves the social API and realtime chat",
	Long: `gosocial serves accounts, relationships, posts and one-to-one chat
over HTTP and websockets. Every flag can also be set through the
environment (see --help), and a .env file in the working directory is
loaded first.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewConfig(params)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}

		return run(cfg)
	},
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}

func envInt(key string) int {
	n, _ := strconv.Atoi(os.Getenv(key))
	return n
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}

func init() {
	// flags default from the environment, so .env has to be loaded first
	_ = godotenv.Load()

	f := rootCmd.Flags()
	f.StringVar(&params.ServerAddr, "addr", envOr("GOSOCIAL_ADDR", "localhost:8000"), "server address [GOSOCIAL_ADDR]")
	f.StringVar(&params.DatabaseDSN, "dsn", envOr("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"), "database connection string [DATABASE_URL]")
	f.StringVar(&params.SigningKey, "signing-key", envOr("GOSOCIAL_SIGNING_KEY", defaultSigningKey), "base64 encoded signing key [GOSOCIAL_SIGNING_KEY]")
	f.StringSliceVar(&params.AllowedOrigins, "allowed-origins", envList("GOSOCIAL_ALLOWED_ORIGINS"), "allowed origins for CORS and websockets [GOSOCIAL_ALLOWED_ORIGINS]")
	f.StringVar(&params.LogLevel, "log-level", envOr("GOSOCIAL_LOG_LEVEL", "info"), "log level [GOSOCIAL_LOG_LEVEL]")
	f.BoolVar(&params.Dev, "dev", envBool("GOSOCIAL_DEV"), "human readable development logging [GOSOCIAL_DEV]")
	f.BoolVar(&params.SkipMigrations, "skip-migrations", envBool("GOSOCIAL_SKIP_MIGRATIONS"), "do not apply schema migrations on start [GOSOCIAL_SKIP_MIGRATIONS]")
	f.IntVar(&params.HistoryLimit, "history-limit", envInt("GOSOCIAL_HISTORY_LIMIT"), "messages sent to a session when it joins a conversation [GOSOCIAL_HISTORY_LIMIT]")
	f.StringVar(&params.RedisURL, "redis-url", os.Getenv("REDIS_URL"), "redis url for relaying messages between instances [REDIS_URL]")
	f.StringVar(&params.S3Region, "s3-region", envOr("AWS_REGION", ""), "region of the upload bucket [AWS_REGION]")
	f.StringVar(&params.S3Bucket, "s3-bucket", os.Getenv("S3_BUCKET"), "bucket for avatar and post uploads [S3_BUCKET]")
	f.StringVar(&params.S3PublicBaseURL, "s3-public-url", os.Getenv("S3_PUBLIC_URL"), "public base url of uploaded objects [S3_PUBLIC_URL]")
	f.StringVar(&params.VAPIDSubject, "vapid-subject", os.Getenv("VAPID_SUBJECT"), "web push subject, a mailto: or https: url [VAPID_SUBJECT]")
	f.StringVar(&params.VAPIDPublicKey, "vapid-public-key", os.Getenv("VAPID_PUBLIC_KEY"), "web push public key [VAPID_PUBLIC_KEY]")
	f.StringVar(&params.VAPIDPrivateKey, "vapid-private-key", os.Getenv("VAPID_PRIVATE_KEY"), "web push private key [VAPID_PRIVATE_KEY]")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Dev {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	return zcfg.Build()
}

func run(cfg *config.Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	dbConn, err := database.NewPgGoSocialRepository(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("db close", zap.Error(err))
		}
	}()

	if !cfg.SkipMigrations {
		logger.Info("applying migrations")
		if err := dbConn.Migrate(); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mux := http.NewServeMux()
	statsUpdater := stats.NewStatsUpdater(mux)

	store := chat.NewStore(dbConn)
	registry := chat.NewRegistry(dbConn)

	csOpts := []server.Option{server.WithHistoryLimit(cfg.HistoryLimit)}
	var relay *server.RedisRelay
	if cfg.RedisURL != "" {
		relay, err = server.NewRedisRelay(logger.Named("relay"), cfg.RedisURL, server.DefaultRelayChannel)
		if err != nil {
			return fmt.Errorf("redis relay: %w", err)
		}
		defer relay.Close()
		csOpts = append(csOpts,
			server.WithRelay(relay),
			// other instances append to the same conversations
			server.WithConversationLocker(dbConn),
		)
	}

	chatServer := server.NewChatServer(logger.Named("chat"), store, statsUpdater, csOpts...)

	svc := api.Services{}
	subs := push.NewSubscriptions(dbConn)

	var notifier chat.Notifier
	if cfg.VAPID != nil {
		dispatcher := push.NewWebPushDispatcher(cfg.VAPID.Subject, cfg.VAPID.PublicKey, cfg.VAPID.PrivateKey)
		notifier = push.NewFanOut(logger.Named("push"), subs, dispatcher, statsUpdater)
		svc.Push = subs
		svc.VAPIDPublicKey = dispatcher.PublicKey()
	} else {
		logger.Info("push notifications disabled")
	}

	if cfg.S3 != nil {
		presigner, err := storage.NewS3Presigner(ctx, cfg.S3.Region, cfg.S3.Bucket, cfg.S3.PublicBaseURL)
		if err != nil {
			return fmt.Errorf("s3 presigner: %w", err)
		}
		svc.Uploads = presigner
	} else {
		logger.Info("uploads disabled")
	}

	svc.Chat = chat.NewService(logger.Named("chat"), store, registry, chatServer, notifier, statsUpdater)

	app := api.NewGoSocialApp(mux, logger.Named("api"), chatServer, dbConn, svc, cfg)

	errCh := make(chan error, 2)
	go func() {
		if err := chatServer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("chat server: %w", err)
		}
	}()
	go func() {
		if err := app.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigs:
		logger.Info("received signal", zap.String("signal", sig.String()))
	case runErr = <-errCh:
		logger.Error("server stopped", zap.Error(runErr))
	}

	shutDownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.Shutdown(shutDownCtx); err != nil {
		logger.Error("HTTP server shutdown", zap.Error(err))
	}

	// stops the relay subscription before the sessions go away
	cancel()
	chatServer.Shutdown()

	logger.Info("shutdown complete")
	return runErr
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
