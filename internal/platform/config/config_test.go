package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Origins())
	assert.Equal(t, 10000, cfg.MaxWebSocketConnections)
	assert.Equal(t, 32, cfg.MaxConnectionsPerIP)
	assert.Equal(t, 5.0, cfg.ConnectionRatePerIP)
	assert.Equal(t, 10, cfg.ConnectionBurstPerIP)
	assert.Equal(t, 10.0, cfg.MessageRatePerClient)
	assert.Equal(t, 20, cfg.MessageBurstPerClient)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("CORS_ORIGINS", "https://threadbrain.app")
	t.Setenv("MAX_WEBSOCKET_CONNECTIONS", "500")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.AppEnv)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []string{"https://threadbrain.app"}, cfg.Origins())
	assert.Equal(t, 500, cfg.MaxWebSocketConnections)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_OriginsParsing(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "http://localhost:5173, https://threadbrain.app ,http://127.0.0.1:3000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"http://localhost:5173",
		"https://threadbrain.app",
		"http://127.0.0.1:3000",
	}, cfg.Origins())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"unknown log level", "LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"unknown log format", "LOG_FORMAT", "logfmt", "LOG_FORMAT"},
		{"empty origins", "CORS_ORIGINS", " , ", "CORS_ORIGINS"},
		{"origin without scheme", "CORS_ORIGINS", "localhost:5173", "http:// or https://"},
		{"zero connection cap", "MAX_WEBSOCKET_CONNECTIONS", "0", "MAX_WEBSOCKET_CONNECTIONS"},
		{"negative per-IP cap", "MAX_CONNECTIONS_PER_IP", "-1", "MAX_CONNECTIONS_PER_IP"},
		{"zero connection rate", "CONNECTION_RATE_PER_IP", "0", "connection rate limit"},
		{"zero message rate", "MESSAGE_RATE_PER_CLIENT", "0", "message rate limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
