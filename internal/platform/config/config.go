// Package config provides environment-based configuration.
//
// Loads from .env file (godotenv), maps to Config struct via go-simpler/env struct tags.
// Validates log settings, CORS origins, and connection limits.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"ENVIRONMENT" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`
	CORSOrigins string `env:"CORS_ORIGINS" default:"http://localhost:5173"`

	MaxWebSocketConnections int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP     int     `env:"MAX_CONNECTIONS_PER_IP" default:"32"`
	ConnectionRatePerIP     float64 `env:"CONNECTION_RATE_PER_IP" default:"5"` // new dials per second
	ConnectionBurstPerIP    int     `env:"CONNECTION_BURST_PER_IP" default:"10"`

	MessageRatePerClient  float64 `env:"MESSAGE_RATE_PER_CLIENT" default:"10"` // inbound frames per second
	MessageBurstPerClient int     `env:"MESSAGE_BURST_PER_CLIENT" default:"20"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug/info/warn/error, got %q", cfg.LogLevel)
	}

	switch cfg.LogFormat {
	case "json", "text", "pretty":
	default:
		return fmt.Errorf("LOG_FORMAT must be one of json/text/pretty, got %q", cfg.LogFormat)
	}

	if len(cfg.Origins()) == 0 {
		return fmt.Errorf("CORS_ORIGINS must contain at least one origin")
	}
	for _, origin := range cfg.Origins() {
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("CORS_ORIGINS entry %q must start with http:// or https://", origin)
		}
	}

	if cfg.MaxWebSocketConnections <= 0 {
		return fmt.Errorf("MAX_WEBSOCKET_CONNECTIONS must be positive, got %d", cfg.MaxWebSocketConnections)
	}
	if cfg.MaxConnectionsPerIP <= 0 {
		return fmt.Errorf("MAX_CONNECTIONS_PER_IP must be positive, got %d", cfg.MaxConnectionsPerIP)
	}
	if cfg.ConnectionRatePerIP <= 0 || cfg.ConnectionBurstPerIP <= 0 {
		return fmt.Errorf("connection rate limit settings must be positive")
	}
	if cfg.MessageRatePerClient <= 0 || cfg.MessageBurstPerClient <= 0 {
		return fmt.Errorf("message rate limit settings must be positive")
	}

	return nil
}

// Origins returns the configured CORS origins, comma-separated in the
// environment, trimmed and with empty entries dropped.
func (c *Config) Origins() []string {
	parts := strings.Split(c.CORSOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if origin := strings.TrimSpace(part); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// IsDevelopment reports whether the app runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
