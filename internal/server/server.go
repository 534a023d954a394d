package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nikhilpandasgit/Threadbrain/internal/hub"
	"github.com/nikhilpandasgit/Threadbrain/internal/platform/config"
	"github.com/nikhilpandasgit/Threadbrain/internal/store"
)

type Server struct {
	echo   *echo.Echo
	config *config.Config

	hub   *hub.Hub
	store *store.ThreadStore
	clock clockwork.Clock

	limits   *ConnectionLimits
	upgrader websocket.Upgrader

	metricsRegisterer prometheus.Registerer
	metricsGatherer   prometheus.Gatherer

	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, h *hub.Hub, st *store.ThreadStore, clock clockwork.Clock, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	limits := NewConnectionLimits(
		clock,
		int64(cfg.MaxWebSocketConnections),
		cfg.MaxConnectionsPerIP,
		cfg.ConnectionRatePerIP,
		cfg.ConnectionBurstPerIP,
	)

	srv := &Server{
		echo:   e,
		config: cfg,
		hub:    h,
		store:  st,
		clock:  clock,
		limits: limits,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     NewCheckOrigin(cfg.Origins(), cfg.IsDevelopment()),
		},
		metricsRegisterer: prometheus.DefaultRegisterer,
		metricsGatherer:   prometheus.DefaultGatherer,
		healthChecks:      healthChecks,
		startTime:         clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
