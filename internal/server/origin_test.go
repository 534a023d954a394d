package server

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCheckOrigin(t *testing.T) {
	allowedOrigins := []string{"http://localhost:5173", "https://threadbrain.example.com"}

	tests := []struct {
		name          string
		origin        string
		isDevelopment bool
		want          bool
	}{
		// Always allowed
		{"empty origin", "", false, true},
		{"allowed origin", "https://threadbrain.example.com", false, true},
		{"allowed localhost origin", "http://localhost:5173", false, true},

		// Rejected in production
		{"different host", "https://evil.com", false, false},
		{"different port", "https://threadbrain.example.com:9090", false, false},
		{"http instead of https", "http://threadbrain.example.com", false, false},
		{"subdomain", "https://sub.threadbrain.example.com", false, false},
		{"unlisted localhost port prod", "http://localhost:3000", false, false},

		// Localhost: allowed in dev regardless of port
		{"localhost dev", "http://localhost:3000", true, true},
		{"localhost no port dev", "http://localhost", true, true},
		{"127.0.0.1 dev", "http://127.0.0.1:3000", true, true},
		{"non-localhost dev still rejected", "https://evil.com", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewCheckOrigin(allowedOrigins, tt.isDevelopment)
			r, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, checker(r))
		})
	}
}

func TestIsLocalhostOrigin(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{"localhost with port", "http://localhost:8080", true},
		{"localhost without port", "http://localhost", true},
		{"loopback IP", "http://127.0.0.1:3000", true},
		{"public host", "https://example.com", false},
		{"localhost as subdomain", "http://localhost.evil.com", false},
		{"not a URL", "://broken", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isLocalhostOrigin(tt.origin))
		})
	}
}
