package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the sample server configuration. Values are loaded from
// environment variables with the prefix "APP", e.g. APP_PORT=8080.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	Port int    `envconfig:"PORT" default:"8080"`

	// RateLimit is the per-client request rate; zero disables limiting.
	RateLimit float64 `envconfig:"RATE_LIMIT" default:"20"`
	Burst     int     `envconfig:"RATE_BURST" default:"40"`
}

// DatabaseConfig holds PostgreSQL settings. An empty URL keeps the books in
// memory.
type DatabaseConfig struct {
	URL             string        `envconfig:"DATABASE_URL"`
	MaxConns        int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `envconfig:"LOG_LEVEL" default:"info"`

	// Format is json or text.
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// loadConfig reads every section under the same prefix so variables stay
// flat (APP_PORT rather than APP_SERVER_PORT).
func loadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("APP", &cfg.Server); err != nil {
		return nil, fmt.Errorf("load server config: %w", err)
	}
	if err := envconfig.Process("APP", &cfg.Database); err != nil {
		return nil, fmt.Errorf("load database config: %w", err)
	}
	if err := envconfig.Process("APP", &cfg.Log); err != nil {
		return nil, fmt.Errorf("load log config: %w", err)
	}
	return &cfg, nil
}

func newLogger(cfg LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
