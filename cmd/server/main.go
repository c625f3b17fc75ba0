package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pr-poehali-dev/rusbakery-email-system/internal/api"
	"github.com/pr-poehali-dev/rusbakery-email-system/internal/config"
	"github.com/pr-poehali-dev/rusbakery-email-system/internal/db"
	"github.com/pr-poehali-dev/rusbakery-email-system/internal/observ"
	"github.com/pr-poehali-dev/rusbakery-email-system/internal/presence"
	"github.com/pr-poehali-dev/rusbakery-email-system/internal/repository/postgres"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// Startup has no parent deadline — connecting takes as long as it takes.
	// Once the server runs, each request carries its own context.
	ctx := context.Background()

	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	// Presence is degradable: if redis is down at startup the service still
	// serves requests, activity marks just fail until it comes back.
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, presence timeouts degraded", zap.Error(err))
	}

	pool := database.Pool()
	userRepo := postgres.NewUserStore(pool)
	messageRepo := postgres.NewMessageStore(pool)

	tracker := presence.NewTracker(rdb, userRepo, cfg.PresenceTTL, logger)
	go tracker.Run(ctx, time.Minute)

	authHandler := api.NewAuthHandler(userRepo, tracker, cfg.JWTSecret, logger)
	userHandler := api.NewUserHandler(userRepo, logger)
	messageHandler := api.NewMessageHandler(messageRepo, logger)

	router := api.NewRouter(authHandler, userHandler, messageHandler, cfg.JWTSecret, logger)

	logger.Info("starting rusbakery messenger",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)

	if err := router.Run(":" + cfg.Port); err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	return nil
}
