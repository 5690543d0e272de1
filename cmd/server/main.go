package main

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"vidshare/internal/auth"
	"vidshare/internal/config"
	"vidshare/internal/email"
	"vidshare/internal/httpapi"
	"vidshare/internal/service"
	"vidshare/internal/storage"
	"vidshare/internal/store/memory"
	"vidshare/internal/store/postgres"
	"vidshare/internal/userui"
)

// staticPrefix is the URL path local uploads are served under.
const staticPrefix = "static/videos"

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)
	ctx := context.Background()

	var (
		users  service.UsersStore
		tokens service.TokenStore
		videos service.VideosStore
		dbPing func(context.Context) error
	)

	if cfg.DBDSN != "" {
		pgPool, err := postgres.Open(ctx, cfg.DBDSN)
		if err != nil {
			logger.Error("db open failed", "err", err)
			os.Exit(1)
		}
		defer pgPool.Close()

		if err := postgres.Migrate(ctx, pgPool); err != nil {
			logger.Error("db migrate failed", "err", err)
			os.Exit(1)
		}

		users = postgres.NewUsersStore(pgPool)
		tokens = postgres.NewTokensStore(pgPool)
		videos = postgres.NewVideosStore(pgPool)
		dbPing = pgPool.Ping
	} else {
		logger.Warn("APP_DB_DSN not set, using in-memory storage")
		mem := memory.New()
		users, tokens, videos = mem, mem, mem
	}

	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			logger.Error("generate session secret failed", "err", err)
			os.Exit(1)
		}
		logger.Warn("APP_JWT_SECRET not set, sessions will not survive a restart")
	}
	sessions := auth.NewSessionIssuer(secret, cfg.SessionTTL)

	var notifier service.Notifier
	if cfg.SMTP.Host != "" && cfg.MailFrom != "" {
		notifier = &service.EmailService{
			SMTP: email.SMTPSettings{
				Host:     cfg.SMTP.Host,
				Port:     cfg.SMTP.Port,
				Username: cfg.SMTP.Username,
				Password: cfg.SMTP.Password,
				TLSMode:  cfg.SMTP.TLSMode,
				Timeout:  10 * time.Second,
			},
			FromName:  cfg.MailFromName,
			FromEmail: cfg.MailFrom,
			PublicURL: cfg.BaseURL(),
		}
	} else {
		logger.Warn("smtp not configured, account emails will be dropped")
	}

	authSvc := &service.AuthService{
		Users:               users,
		Tokens:              &service.TokenService{Store: tokens},
		Sessions:            sessions,
		Notifier:            notifier,
		Logger:              logger,
		VerifyTokenTTL:      cfg.VerifyTokenTTL,
		ResetTokenTTL:       cfg.ResetTokenTTL,
		GoogleClientID:      cfg.GoogleClientID,
		AppleServiceID:      cfg.AppleServiceID,
		VerifyGoogleIDToken: auth.VerifyGoogleIDToken,
		VerifyAppleIDToken:  auth.VerifyAppleIDToken,
	}

	var (
		blobs     service.BlobStore
		staticDir string
	)
	if cfg.S3.Bucket != "" {
		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			Prefix:         cfg.S3.Prefix,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			PublicBaseURL:  cfg.S3.PublicURL,
		})
		if err != nil {
			logger.Error("s3 storage init failed", "err", err)
			os.Exit(1)
		}
		blobs = s3Store
		logger.Info("video storage", "backend", "s3", "bucket", cfg.S3.Bucket)
	} else {
		local, err := storage.NewLocalStore(cfg.UploadDir, cfg.BaseURL()+"/"+staticPrefix, cfg.MaxUploadBytes)
		if err != nil {
			logger.Error("local storage init failed", "err", err)
			os.Exit(1)
		}
		blobs = local
		staticDir = cfg.UploadDir
		logger.Info("video storage", "backend", "local", "dir", cfg.UploadDir)
	}

	videoSvc := &service.VideoService{Videos: videos, Blobs: blobs, Logger: logger}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	apiRouter := httpapi.NewRouter(httpapi.RouterOpts{
		Logger:         logger,
		IsProd:         cfg.IsProd(),
		DBPing:         dbPing,
		Auth:           authSvc,
		Videos:         videoSvc,
		Sessions:       sessions,
		Metrics:        httpapi.NewMetrics(reg),
		CORSOrigins:    cfg.CORSOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
		StaticDir:      staticDir,
		StaticPrefix:   staticPrefix,
		Pages:          userui.New(userui.Opts{Logger: logger, Auth: authSvc}),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiRouter,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr, "public_url", cfg.BaseURL())
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
