package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DBDriver        string        `env:"DB_DRIVER" envDefault:"sqlite"`
	DatabaseURL     string        `env:"DATABASE_URL" envDefault:"process_tracker.db"`
	RedisAddr       string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	SessionSecret   string        `env:"SESSION_SECRET" envDefault:"default-secret-key-change-me"`
	JWTSecret       string        `env:"JWT_SECRET_KEY" envDefault:"your-secret-key-change-in-production"`
	JWTAccessExpiry time.Duration `env:"JWT_ACCESS_EXPIRY" envDefault:"30m"`
	GinMode         string        `env:"GIN_MODE" envDefault:"debug"`
	Port            string        `env:"PORT" envDefault:"8000"`
	FrontendURL     string        `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	APIURL          string        `env:"API_URL" envDefault:"http://localhost:8000"`

	DiscordClientID     string `env:"DISCORD_CLIENT_ID"`
	DiscordClientSecret string `env:"DISCORD_CLIENT_SECRET"`
	GoogleClientID      string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret  string `env:"GOOGLE_CLIENT_SECRET"`

	AdminEmails     []string `env:"ADMIN_EMAILS" envSeparator:","`
	BotSharedSecret string   `env:"BOT_SHARED_SECRET"`

	// Redis is optional; without it identity locks are process-local.
	UseRedisLocks    bool          `env:"IDENTITY_LOCKS_REDIS" envDefault:"true"`
	IdentityLockTTL  time.Duration `env:"IDENTITY_LOCK_TTL" envDefault:"15s"`
	IdentityLockWait time.Duration `env:"IDENTITY_LOCK_WAIT" envDefault:"5s"`
}

// Load reads an optional .env file and then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.AdminEmails = normalizeEmails(cfg.AdminEmails)
	cfg.FrontendURL = strings.TrimSuffix(cfg.FrontendURL, "/")
	cfg.APIURL = strings.TrimSuffix(cfg.APIURL, "/")

	return &cfg, nil
}

// IsProduction reports whether Gin runs in release mode.
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

func normalizeEmails(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
