// Package server implements the HTTP and WebSocket surface using Echo framework.
//
// Routes: discussion API (/api/threads, /api/stats), realtime endpoint (/ws),
// health probes, version, and Prometheus metrics. Handlers split by concern:
// handlers.go, handlers_api.go, handlers_health.go, handlers_ws.go.
package server
