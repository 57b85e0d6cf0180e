package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all runtime settings for the API server. Every field is
// sourced from the environment; a local .env file is honored in dev.
type Config struct {
	Env      string `env:"APP_ENV" env-default:"local"`
	HTTPAddr string `env:"HTTP_ADDR" env-default:":8080"`

	DatabaseDSN string `env:"DATABASE_DSN"`

	Auth AuthConfig

	RateBurst  int `env:"LOGIN_RATE_BURST" env-default:"10"`
	RatePerSec int `env:"LOGIN_RATE_PER_SEC" env-default:"5"`

	MigrationsDir string `env:"MIGRATIONS_DIR" env-default:"ops/migrations/sql"`
	SeedsDir      string `env:"SEEDS_DIR" env-default:"ops/migrations/seeds"`
}

// AuthConfig groups token and password policy settings.
type AuthConfig struct {
	JWTSecret  string        `env:"AUTH_JWT_SECRET"`
	Issuer     string        `env:"AUTH_ISSUER" env-default:"erp-api"`
	AccessTTL  time.Duration `env:"AUTH_ACCESS_TTL" env-default:"1h"`
	RefreshTTL time.Duration `env:"AUTH_REFRESH_TTL" env-default:"168h"`

	// RevokeSessionsOnPasswordChange enables the stricter policy of
	// invalidating all of a user's outstanding refresh tokens whenever
	// their password is changed.
	RevokeSessionsOnPasswordChange bool `env:"AUTH_REVOKE_SESSIONS_ON_PASSWORD_CHANGE" env-default:"false"`
}

// Load reads configuration from the environment. In local/dev
// environments a .env file in the working directory is loaded first.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if cfg.Env == "local" || cfg.Env == "dev" {
		_ = godotenv.Load()
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("read env: %w", err)
		}
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	return &cfg, nil
}
