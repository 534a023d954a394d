package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/nikhilpandasgit/Threadbrain/internal/domain"
	apperrors "github.com/nikhilpandasgit/Threadbrain/internal/platform/errors"
)

// Input length caps for the discussion API.
const (
	maxTitleLength  = 200
	maxAuthorLength = 80
	maxBodyLength   = 4000
)

type createThreadRequest struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

type updateThreadRequest struct {
	Title string `json:"title"`
}

type postMessageRequest struct {
	Author string `json:"author"`
	Body   string `json:"body"`
}

func (s *Server) handleListThreads(c echo.Context) error {
	threads, err := s.store.ListThreads(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to list threads", err)
	}

	if err := c.JSON(http.StatusOK, threads); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleCreateThread(c echo.Context) error {
	var req createThreadRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	title := strings.TrimSpace(req.Title)
	author := strings.TrimSpace(req.Author)
	if err := validateThreadInput(title, author); err != nil {
		return err
	}

	thread, err := s.store.CreateThread(c.Request().Context(), title, author)
	if err != nil {
		return apperrors.InternalError("failed to create thread", err)
	}

	s.broadcastEvent(domain.ThreadEvent{Type: domain.EventThreadCreated, Thread: thread})

	if err := c.JSON(http.StatusCreated, thread); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetThread(c echo.Context) error {
	id := c.Param("id")

	thread, err := s.store.GetThread(c.Request().Context(), id)
	if errors.Is(err, domain.ErrThreadNotFound) {
		return apperrors.NotFoundError("thread not found").WithContext("thread_id", id)
	}
	if err != nil {
		return apperrors.InternalError("failed to load thread", err).WithContext("thread_id", id)
	}

	if err := c.JSON(http.StatusOK, thread); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleUpdateThread(c echo.Context) error {
	id := c.Param("id")

	var req updateThreadRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return apperrors.ValidationError("title must not be empty")
	}
	if len(title) > maxTitleLength {
		return apperrors.ValidationError("title too long").WithContext("max_length", maxTitleLength)
	}

	thread, err := s.store.UpdateThread(c.Request().Context(), id, title)
	if errors.Is(err, domain.ErrThreadNotFound) {
		return apperrors.NotFoundError("thread not found").WithContext("thread_id", id)
	}
	if err != nil {
		return apperrors.InternalError("failed to update thread", err).WithContext("thread_id", id)
	}

	s.broadcastEvent(domain.ThreadEvent{Type: domain.EventThreadUpdated, Thread: thread})

	if err := c.JSON(http.StatusOK, thread); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleDeleteThread(c echo.Context) error {
	id := c.Param("id")

	err := s.store.DeleteThread(c.Request().Context(), id)
	if errors.Is(err, domain.ErrThreadNotFound) {
		return apperrors.NotFoundError("thread not found").WithContext("thread_id", id)
	}
	if err != nil {
		return apperrors.InternalError("failed to delete thread", err).WithContext("thread_id", id)
	}

	s.broadcastEvent(domain.ThreadDeletedEvent{Type: domain.EventThreadDeleted, ThreadID: id})

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListMessages(c echo.Context) error {
	id := c.Param("id")

	thread, err := s.store.GetThread(c.Request().Context(), id)
	if errors.Is(err, domain.ErrThreadNotFound) {
		return apperrors.NotFoundError("thread not found").WithContext("thread_id", id)
	}
	if err != nil {
		return apperrors.InternalError("failed to load thread", err).WithContext("thread_id", id)
	}

	if err := c.JSON(http.StatusOK, thread.Messages); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handlePostMessage(c echo.Context) error {
	id := c.Param("id")

	var req postMessageRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	author := strings.TrimSpace(req.Author)
	body := strings.TrimSpace(req.Body)
	if err := validateMessageInput(author, body); err != nil {
		return err
	}

	message, err := s.store.AddMessage(c.Request().Context(), id, author, body)
	if errors.Is(err, domain.ErrThreadNotFound) {
		return apperrors.NotFoundError("thread not found").WithContext("thread_id", id)
	}
	if err != nil {
		return apperrors.InternalError("failed to post message", err).WithContext("thread_id", id)
	}

	s.broadcastEvent(domain.MessagePostedEvent{Type: domain.EventMessagePosted, ThreadID: id, Message: message})

	if err := c.JSON(http.StatusCreated, message); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleStats(c echo.Context) error {
	stats := domain.Stats{
		Hub:   s.hub.Stats(),
		Store: s.store.Counts(c.Request().Context()),
	}

	if err := c.JSON(http.StatusOK, stats); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func validateThreadInput(title, author string) error {
	if title == "" {
		return apperrors.ValidationError("title must not be empty")
	}
	if len(title) > maxTitleLength {
		return apperrors.ValidationError("title too long").WithContext("max_length", maxTitleLength)
	}
	if author == "" {
		return apperrors.ValidationError("author must not be empty")
	}
	if len(author) > maxAuthorLength {
		return apperrors.ValidationError("author too long").WithContext("max_length", maxAuthorLength)
	}
	return nil
}

func validateMessageInput(author, body string) error {
	if author == "" {
		return apperrors.ValidationError("author must not be empty")
	}
	if len(author) > maxAuthorLength {
		return apperrors.ValidationError("author too long").WithContext("max_length", maxAuthorLength)
	}
	if body == "" {
		return apperrors.ValidationError("body must not be empty")
	}
	if len(body) > maxBodyLength {
		return apperrors.ValidationError("body too long").WithContext("max_length", maxBodyLength)
	}
	return nil
}

// broadcastEvent fans a domain event out to every connected WebSocket
// client. REST responses never depend on delivery, so failures are only
// logged.
func (s *Server) broadcastEvent(event any) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal broadcast event", "error", err)
		return
	}
	s.hub.Broadcast(data)
}
