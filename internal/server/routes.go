package server

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/nikhilpandasgit/Threadbrain/internal/platform/correlation"
	apperrors "github.com/nikhilpandasgit/Threadbrain/internal/platform/errors"
)

func (s *Server) registerRoutes() {
	s.echo.Use(correlationMiddleware)
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(apperrors.Middleware())
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     s.config.Origins(),
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		AllowCredentials: true,
	}))
	s.echo.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "threadbrain",
		Registerer: s.metricsRegisterer,
	}))

	s.echo.GET("/", s.handleRoot)
	s.echo.GET("/users", s.handleUsers)
	s.echo.GET("/test", s.handleCORSTest)

	s.registerHealthRoutes()

	s.echo.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: s.metricsGatherer,
	}))
	s.echo.GET("/ws", s.handleWebSocket)

	api := s.echo.Group("/api")
	api.GET("/threads", s.handleListThreads)
	api.POST("/threads", s.handleCreateThread)
	api.GET("/threads/:id", s.handleGetThread)
	api.PATCH("/threads/:id", s.handleUpdateThread)
	api.DELETE("/threads/:id", s.handleDeleteThread)
	api.GET("/threads/:id/messages", s.handleListMessages)
	api.POST("/threads/:id/messages", s.handlePostMessage)
	api.GET("/stats", s.handleStats)
}

func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := correlation.WithID(c.Request().Context(), correlation.NewID())
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.InfoContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}
