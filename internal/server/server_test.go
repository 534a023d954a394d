package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/nikhilpandasgit/Threadbrain/internal/hub"
	"github.com/nikhilpandasgit/Threadbrain/internal/platform/config"
	apperrors "github.com/nikhilpandasgit/Threadbrain/internal/platform/errors"
	"github.com/nikhilpandasgit/Threadbrain/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:      "test",
		Port:        "8080",
		LogLevel:    "info",
		LogFormat:   "text",
		CORSOrigins: "http://localhost:5173",

		MaxWebSocketConnections: 100,
		MaxConnectionsPerIP:     50,
		ConnectionRatePerIP:     1000,
		ConnectionBurstPerIP:    1000,

		MessageRatePerClient:  1000,
		MessageBurstPerClient: 1000,

		ShutdownTimeout: time.Second,
	}
}

func newTestServer(t *testing.T, opts ...func(*Server)) *Server {
	t.Helper()

	// Real clock: these tests push real frames through real sockets, and
	// socket deadlines derive from this clock.
	clock := clockwork.NewRealClock()
	cfg := testConfig()

	h := hub.New(clock)
	t.Cleanup(h.Stop)

	// Private registry so repeated registerRoutes calls across tests do
	// not collide in the default one.
	reg := prometheus.NewRegistry()

	srv := &Server{
		echo:   echo.New(),
		config: cfg,
		hub:    h,
		store:  store.NewThreadStore(clock),
		clock:  clock,
		limits: NewConnectionLimits(
			clock,
			int64(cfg.MaxWebSocketConnections),
			cfg.MaxConnectionsPerIP,
			cfg.ConnectionRatePerIP,
			cfg.ConnectionBurstPerIP,
		),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     NewCheckOrigin(cfg.Origins(), true),
		},
		metricsRegisterer: reg,
		metricsGatherer:   reg,
		startTime:         clock.Now(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()

	return srv
}

func withHealthChecks(checks ...HealthCheck) func(*Server) {
	return func(s *Server) {
		s.healthChecks = checks
	}
}

func withConfigTweak(tweak func(*config.Config)) func(*Server) {
	return func(s *Server) {
		tweak(s.config)
	}
}

func withLimits(limits *ConnectionLimits) func(*Server) {
	return func(s *Server) {
		s.limits = limits
	}
}

// callHandler wraps a handler with error middleware, matching production behavior
func callHandler(handler echo.HandlerFunc, c echo.Context) error {
	return apperrors.Middleware()(handler)(c)
}

// startTestServer exposes the full router over a real listener for
// WebSocket dials.
func startTestServer(t *testing.T, opts ...func(*Server)) (*Server, *httptest.Server) {
	t.Helper()

	srv := newTestServer(t, opts...)
	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)

	return srv, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}
