/*
Package config loads server configuration from the environment.

PURPOSE:
  One place for every tunable of the server binary. A .env file is loaded
  first when present (local development), then the FINANCE_* environment
  variables override it.

VARIABLES:
  FINANCE_PORT                HTTP port (default 8080)
  FINANCE_DATABASE_PATH       SQLite path, ":memory:" for in-memory
  FINANCE_LOG_LEVEL           debug | info | warn | error
  FINANCE_CORS_ORIGINS        comma-separated allowed origins
  FINANCE_SCHEDULER_ENABLED   run the periodic cashflow batch job
  FINANCE_CASHFLOW_INTERVAL   how often the job runs (default 24h)
*/
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the server configuration.
type Config struct {
	Port         int    `envconfig:"PORT" default:"8080"`
	DatabasePath string `envconfig:"DATABASE_PATH" default:"finance.db"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173,http://localhost:8080"`

	SchedulerEnabled bool          `envconfig:"SCHEDULER_ENABLED" default:"false"`
	CashflowInterval time.Duration `envconfig:"CASHFLOW_INTERVAL" default:"24h"`
}

// Load reads the configuration from .env (if present) and the environment.
func Load() (*Config, error) {
	// Missing .env is fine; the environment alone is a valid source.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("finance", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	return &cfg, nil
}

// SlogLevel maps the configured level to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
