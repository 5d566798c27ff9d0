package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codex-app/codex/config"
	"github.com/codex-app/codex/internal/handler"
	"github.com/codex-app/codex/internal/repository"
	"github.com/codex-app/codex/internal/router"
	"github.com/codex-app/codex/internal/scheduler"
	"github.com/codex-app/codex/internal/service"
	"github.com/codex-app/codex/pkg/blob"
	"github.com/codex-app/codex/pkg/database"
	"github.com/codex-app/codex/pkg/logger"
	"github.com/codex-app/codex/pkg/mailer"
	"github.com/codex-app/codex/pkg/redis"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	if err := logger.InitLogger(cfg.App.Environment); err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.GetLogger()
	log.Info("Starting service",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
		zap.String("port", cfg.App.Port),
	)

	db, err := database.NewPostgresDB(database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Name,
		SSLMode:         cfg.Database.SSLMode,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.CloseDB(db); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()

	if err := database.AutoMigrate(db); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	redisClient := redis.NewClient(redis.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.Database,
		Enabled:      cfg.Redis.Enabled,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	}, log)
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error("Failed to close Redis client", zap.Error(err))
		}
	}()

	blobStore, err := blob.NewS3Store(context.Background(), blob.Config{
		Region:       cfg.S3.Region,
		BaseEndpoint: cfg.S3.BaseEndpoint,
		Bucket:       cfg.S3.Bucket,
		AccessKey:    cfg.S3.AccessKey,
		SecretKey:    cfg.S3.SecretKey,
	})
	if err != nil {
		log.Fatal("Failed to initialize blob store", zap.Error(err))
	}

	smtpMailer := mailer.NewSMTPMailer(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		Timeout:  cfg.SMTP.Timeout,
	})

	userRepo := repository.NewUserRepository(db)
	promptRepo := repository.NewPromptRepository(db)

	rateLimiter := service.NewRateLimitService(
		redisClient,
		cfg.Auth.LoginIPLimit,
		cfg.Auth.LoginEmailLimit,
		cfg.Auth.LoginWindow,
	)
	tokenService := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Expiration)
	verificationService := service.NewVerificationService(smtpMailer, cfg.App.Name, cfg.Auth.CodeTTL)
	authService := service.NewAuthService(userRepo, rateLimiter, tokenService, verificationService, cfg.Auth.RetentionDays)
	purgeService := service.NewPurgeService(userRepo, promptRepo, blobStore, cfg.Auth.RetentionDays)
	promptService := service.NewPromptService(promptRepo, blobStore)

	purgeScheduler := scheduler.New(purgeService, cfg.Auth.PurgeInterval)
	purgeScheduler.Start(context.Background())
	defer purgeScheduler.Stop()

	engine := router.Setup(cfg, router.Handlers{
		Auth:   handler.NewAuthHandler(authService, purgeService, cfg.App.CronKey, cfg.App.Debug),
		Prompt: handler.NewPromptHandler(promptService, cfg.App.Debug),
		Health: handler.NewHealthHandler(db, redisClient, cfg.App.Name),
	}, tokenService, userRepo)

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.App.Timeout,
		WriteTimeout: cfg.App.Timeout,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}
