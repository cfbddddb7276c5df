package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all configuration for the application.
type Config struct {
	Port     string
	Env      string
	LogLevel string
	RedisURL string

	// Realtime transport: "redis" or "nats"
	RealtimeDriver string
	NATSURL        string

	// Token digests are keyed with a subkey of this secret
	TokenSecret string

	RoomTTLSeconds      int64
	RoomMaxParticipants int // 0 disables the cap

	AllowedOrigin      string
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
	RateLimitAutoBlock bool
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		Env:                 getEnv("ENV", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RealtimeDriver:      strings.ToLower(getEnv("REALTIME_DRIVER", "redis")),
		NATSURL:             getEnv("NATS_URL", "nats://localhost:4222"),
		TokenSecret:         os.Getenv("TOKEN_SECRET"),
		RoomTTLSeconds:      getEnvInt64("ROOM_TTL_SECONDS", 600),
		RoomMaxParticipants: int(getEnvInt64("ROOM_MAX_PARTICIPANTS", 0)),
		AllowedOrigin:       getEnv("ALLOWED_ORIGIN", "*"),
		RateLimitWhitelist:  splitList(os.Getenv("RATE_LIMIT_WHITELIST")),
		RateLimitAutoBlock:  getEnv("RATE_LIMIT_AUTOBLOCK", "false") == "true",
	}

	if cfg.Env == "production" {
		if os.Getenv("REDIS_URL") == "" {
			panic("REDIS_URL is required in production")
		}
		if cfg.TokenSecret == "" {
			panic("TOKEN_SECRET is required in production")
		}
	}

	switch cfg.RealtimeDriver {
	case "redis", "nats":
	default:
		panic("REALTIME_DRIVER must be one of: redis, nats")
	}

	if cfg.RoomTTLSeconds <= 0 {
		cfg.RoomTTLSeconds = 600
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Level returns the configured zerolog level, falling back to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}
