package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/subhodeep2005s/realtime-chat/internal/api"
	"github.com/subhodeep2005s/realtime-chat/internal/api/middleware"
	"github.com/subhodeep2005s/realtime-chat/internal/auth"
	"github.com/subhodeep2005s/realtime-chat/internal/config"
	"github.com/subhodeep2005s/realtime-chat/internal/crypto"
	"github.com/subhodeep2005s/realtime-chat/internal/handlers"
	"github.com/subhodeep2005s/realtime-chat/internal/messages"
	"github.com/subhodeep2005s/realtime-chat/internal/realtime"
	"github.com/subhodeep2005s/realtime-chat/internal/rooms"
	"github.com/subhodeep2005s/realtime-chat/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}
	logger = logger.Level(cfg.Level())

	ctx := context.Background()

	redisStore, err := store.NewRedisStore(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer redisStore.Close()
	logger.Info().Msg("connected to Redis")

	var transport realtime.Transport
	switch cfg.RealtimeDriver {
	case "nats":
		nt, err := realtime.NewNATSTransport(cfg.NATSURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Str("url", cfg.NATSURL).Msg("nats connection failed")
		}
		transport = nt
		logger.Info().Msg("connected to NATS")
	default:
		transport = realtime.NewRedisTransport(redisStore.Client(), logger)
	}
	defer transport.Close()

	secret := cfg.TokenSecret
	if secret == "" {
		// Only reachable outside production; tokens will not survive a restart
		secret, err = crypto.NewSecret()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to generate token secret")
		}
		logger.Warn().Msg("TOKEN_SECRET not set, using a random secret")
	}
	hasher, err := crypto.NewTokenHasher(secret)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid token secret")
	}

	fanout := realtime.NewFanout(transport, logger)
	roomMgr := rooms.NewManager(redisStore, fanout, cfg.RoomTTLSeconds, logger)
	authn := auth.NewAuthenticator(redisStore, hasher, roomMgr, auth.Options{
		MaxParticipants: cfg.RoomMaxParticipants,
	}, logger)

	deps := handlers.Deps{
		Keys:          redisStore,
		Rooms:         roomMgr,
		Auth:          authn,
		Messages:      messages.NewStore(redisStore, fanout, roomMgr, logger),
		Presence:      realtime.NewPresence(redisStore, roomMgr),
		Subscriber:    transport,
		Logger:        logger,
		SecureCookies: !cfg.IsDevelopment(),
	}

	router := api.NewRouter(deps, api.Options{
		RateLimitClient: redisStore.Client(),
		RateLimit: middleware.RateLimiterConfig{
			Whitelist:        cfg.RateLimitWhitelist,
			AutoBlockEnabled: cfg.RateLimitAutoBlock,
		},
		AllowedOrigin: cfg.AllowedOrigin,
	})

	// Websocket connections clear these deadlines when they upgrade
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("realtime", cfg.RealtimeDriver).
			Int64("room_ttl", cfg.RoomTTLSeconds).
			Msg("starting chat server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
