package config

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendRedis  = "redis"
	BackendBadger = "badger"
)

// Config holds all configuration for the application.
type Config struct {
	Port     string `env:"PORT,default=8080"`
	Env      string `env:"ENV,default=development"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	// Room store
	StoreBackend string `env:"STORE_BACKEND,default=redis"`
	RedisURL     string `env:"REDIS_URL"`
	BadgerPath   string `env:"BADGER_PATH,default=./data/rooms"`

	// Rooms
	RoomTTL          time.Duration `env:"ROOM_TTL,default=24h"`
	RoomCodeAttempts int           `env:"ROOM_CODE_ATTEMPTS,default=10"`

	// Upload token issuer
	UploadTokenURL     string        `env:"UPLOAD_TOKEN_URL"`
	UploadTokenTimeout time.Duration `env:"UPLOAD_TOKEN_TIMEOUT,default=10s"`

	MaxBodyBytes int64 `env:"MAX_BODY_BYTES,default=1048576"`

	// Rate limiting
	RateLimitWhitelistRaw string   `env:"RATE_LIMIT_WHITELIST"`
	RateLimitWhitelist    []string // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled      bool     `env:"AUTO_BLOCK_ENABLED,default=false"`
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
func Load() (*Config, error) {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	// Parse whitelist (comma-separated IPs or CIDRs)
	for _, entry := range strings.Split(cfg.RateLimitWhitelistRaw, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			cfg.RateLimitWhitelist = append(cfg.RateLimitWhitelist, entry)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that cannot be expressed as defaults.
func (c *Config) Validate() error {
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	switch c.StoreBackend {
	case BackendRedis:
		// In production, require an explicit Redis URL
		if c.RedisURL == "" {
			if c.IsProduction() {
				return fmt.Errorf("REDIS_URL is required in production")
			}
			c.RedisURL = "redis://localhost:6379/0"
		}
	case BackendBadger:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (want %s or %s)", c.StoreBackend, BackendRedis, BackendBadger)
	}

	if c.RoomTTL <= 0 {
		return fmt.Errorf("ROOM_TTL must be positive")
	}
	if c.RoomCodeAttempts <= 0 {
		return fmt.Errorf("ROOM_CODE_ATTEMPTS must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
