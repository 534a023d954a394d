package server

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/nikhilpandasgit/Threadbrain/internal/platform/errors"
)

func (s *Server) handleRoot(c echo.Context) error {
	response := map[string]string{
		"message": "ThreadBrain backend is running 🚀",
		"status":  "healthy",
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleUsers(c echo.Context) error {
	users, err := s.store.ListUsers(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to list users", err)
	}

	if err := c.JSON(http.StatusOK, users); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleCORSTest(c echo.Context) error {
	response := map[string]any{
		"message": "CORS is working!",
		"origins": s.config.Origins(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
