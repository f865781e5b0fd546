package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"findit/internal/app"
	"findit/internal/config"
	"findit/internal/server"
	"findit/internal/util"
	"findit/pkg/notify"
	"findit/pkg/storage"
	"findit/pkg/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("failed to load .env: %v", err)
	}
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	smtpTimeout, _ := config.ParseDuration(cfg.SMTPTimeout, 15*time.Second)
	presignExpiry, _ := config.ParseDuration(cfg.MinioPresignExpiry, 15*time.Minute)
	shutdownTimeout, _ := config.ParseDuration(cfg.ShutdownTimeout, 10*time.Second)

	logger := util.InitLogger(cfg.LogLevel)

	st, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}
	defer st.Close()

	var notifier notify.Notifier = notify.LogNotifier{Logger: logger}
	if cfg.SMTPHost != "" {
		smtp, err := notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			Timeout:  smtpTimeout,
		})
		if err != nil {
			log.Fatalf("failed to init smtp notifier: %v", err)
		}
		notifier = smtp
	} else {
		logger.Warn("smtpHost not set, notifications are logged only")
	}

	var images storage.ImageStore
	if cfg.MinioEndpoint != "" {
		images, err = storage.NewMinioStore(storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		}, cfg.AllowedExtensions)
	} else {
		images, err = storage.NewFileStore(cfg.UploadDir, cfg.AllowedExtensions)
	}
	if err != nil {
		log.Fatalf("failed to init image store: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer redisClient.Close()
	} else {
		logger.Warn("redisAddr not set, rate limiting disabled")
	}

	appCore, err := app.New(app.Config{
		Store:    st,
		Notifier: notifier,
		Images:   images,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:                      appCore,
		Images:                   images,
		Redis:                    redisClient,
		SignupRateLimitPerMinute: cfg.SignupRateLimitPerMinute,
		SigninRateLimitPerMinute: cfg.SigninRateLimitPerMinute,
		ClaimRateLimitPerMinute:  cfg.ClaimRateLimitPerMinute,
		MaxUploadBytes:           cfg.MaxUploadBytes,
		PresignExpiry:            presignExpiry,
		TrustedProxyCIDRs:        cfg.TrustedProxyCIDRs,
		CORSAllowedOrigins:       cfg.CORSAllowedOrigins,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: config.HTTPWriteTimeout(smtpTimeout),
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("findit server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
		}
		return
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", shutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
}
