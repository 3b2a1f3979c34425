package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/roomdrop/internal/api"
	"github.com/eldtechnologies/roomdrop/internal/api/middleware"
	"github.com/eldtechnologies/roomdrop/internal/config"
	"github.com/eldtechnologies/roomdrop/internal/handlers"
	"github.com/eldtechnologies/roomdrop/internal/rooms"
	"github.com/eldtechnologies/roomdrop/internal/store"
	"github.com/eldtechnologies/roomdrop/internal/upload"
)

func main() {
	// Initialize a bootstrap logger until configuration is known
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)

	ctx := context.Background()

	// Initialize the room store and a rate limiter that fits it
	var (
		kv      store.KVStore
		limiter middleware.Limiter
	)
	limiterCfg := middleware.RateLimiterConfig{
		Whitelist:        cfg.RateLimitWhitelist,
		AutoBlockEnabled: cfg.AutoBlockEnabled,
	}
	switch cfg.StoreBackend {
	case config.BackendBadger:
		badgerStore, err := store.NewBadgerStore(cfg.BadgerPath, logger)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.BadgerPath).Msg("badger open failed")
		}
		kv = badgerStore
		limiter = middleware.NewLocalRateLimiter(logger, limiterCfg)
		logger.Info().Str("path", cfg.BadgerPath).Msg("opened Badger store")
	default:
		redisStore, err := store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		kv = redisStore
		limiter = middleware.NewRateLimiter(redisStore.Client(), logger, limiterCfg)
		logger.Info().Msg("connected to Redis")
	}
	defer kv.Close()

	roomSvc := rooms.NewService(kv, logger,
		rooms.WithTTL(cfg.RoomTTL),
		rooms.WithCodeAttempts(cfg.RoomCodeAttempts),
	)

	tokens := upload.NewTokenIssuer(cfg.UploadTokenURL, cfg.UploadTokenTimeout, logger)

	h := handlers.NewHandler(roomSvc, tokens, kv, logger)

	// Create router
	router := api.NewRouter(logger, h, api.Options{
		Limiter:      limiter,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("store", cfg.StoreBackend).
			Dur("room_ttl", cfg.RoomTTL).
			Msg("starting roomdrop server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	logger.Info().Msg("server stopped")
}
