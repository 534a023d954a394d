package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nikhilpandasgit/Threadbrain/internal/hub"
	"github.com/nikhilpandasgit/Threadbrain/internal/metrics"
	"github.com/nikhilpandasgit/Threadbrain/internal/platform/config"
	"github.com/nikhilpandasgit/Threadbrain/internal/platform/logging"
	"github.com/nikhilpandasgit/Threadbrain/internal/platform/version"
	"github.com/nikhilpandasgit/Threadbrain/internal/server"
	"github.com/nikhilpandasgit/Threadbrain/internal/store"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func healthChecks(h *hub.Hub, st *store.ThreadStore) []server.HealthCheck {
	return []server.HealthCheck{
		{
			Name: "hub",
			Check: func(_ context.Context) error {
				if h.ClientCount() < 0 {
					return errors.New("hub actor is not responding")
				}
				return nil
			},
		},
		{
			Name: "store",
			Check: func(ctx context.Context) error {
				_, err := st.ListThreads(ctx)
				return err
			},
		},
	}
}

func runGracefulShutdown(srv *server.Server, h *hub.Hub, timeout time.Duration) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		// Server first so no new clients arrive, then the hub sends
		// close frames to the ones still connected.
		h.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	info := version.Get()
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", info.String())
	metrics.BuildInfo.WithLabelValues(info.Version, info.Commit, info.BuildTime, info.GoVersion).Set(1)

	h := hub.New(clock)
	threadStore := store.NewThreadStore(clock)

	srv := server.NewServer(cfg, h, threadStore, clock, healthChecks(h, threadStore))

	done := runGracefulShutdown(srv, h, cfg.ShutdownTimeout)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
