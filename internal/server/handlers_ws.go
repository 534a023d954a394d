package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/nikhilpandasgit/Threadbrain/internal/domain"
	"github.com/nikhilpandasgit/Threadbrain/internal/metrics"
)

// maxInboundMessageSize bounds a single WebSocket frame from a client.
const maxInboundMessageSize = 4096

func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()

	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.WebSocketConnectionsRejected.WithLabelValues(string(reason)).Inc()
		slog.Warn("WebSocket connection rejected", "reason", reason, "ip", ip)

		if reason == LimitReasonGlobal {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "server at connection capacity")
		}
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many connections from this address")
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.limits.Release(ip)
		metrics.WebSocketConnectionsTotal.WithLabelValues("upgrade_failed").Inc()
		slog.Error("WebSocket upgrade failed", "error", err, "ip", ip)
		// Upgrade already wrote the HTTP error response.
		return nil
	}

	clientID, err := s.hub.Register(conn)
	if err != nil {
		metrics.WebSocketConnectionsTotal.WithLabelValues("register_failed").Inc()
		slog.Error("Failed to register WebSocket client", "error", err, "ip", ip)
		_ = conn.Close()
		s.limits.Release(ip)
		return nil
	}

	metrics.WebSocketConnectionsTotal.WithLabelValues("accepted").Inc()
	metrics.WebSocketConnectionsCurrent.Inc()
	metrics.WebSocketConnectionCapacity.Set(s.limits.Global().CapacityPct())
	metrics.WebSocketUniqueIPs.Set(float64(s.limits.PerIP().UniqueIPs()))
	connectedAt := s.clock.Now()

	logger := slog.With("client_id", clientID, "ip", ip)
	logger.Info("WebSocket client connected", "client_count", s.hub.ClientCount())

	s.sendWelcome(conn, clientID)
	s.broadcastPresence(domain.PresenceJoin, clientID)

	s.readPump(c.Request().Context(), conn, clientID, logger)

	// The read loop owns the socket. The hub only forgets the
	// connection, it never closes it.
	s.hub.Unregister(conn)
	_ = conn.Close()
	s.limits.Release(ip)

	metrics.WebSocketConnectionsCurrent.Dec()
	metrics.WebSocketConnectionDuration.Observe(s.clock.Now().Sub(connectedAt).Seconds())
	metrics.WebSocketConnectionCapacity.Set(s.limits.Global().CapacityPct())
	metrics.WebSocketUniqueIPs.Set(float64(s.limits.PerIP().UniqueIPs()))

	s.broadcastPresence(domain.PresenceLeave, clientID)
	logger.Info("WebSocket client disconnected", "client_count", s.hub.ClientCount())

	return nil
}

// readPump consumes inbound frames until the connection dies or the
// client misbehaves past the rate limit.
func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, clientID string, logger *slog.Logger) {
	conn.SetReadLimit(maxInboundMessageSize)
	limiter := rate.NewLimiter(rate.Limit(s.config.MessageRatePerClient), s.config.MessageBurstPerClient)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Warn("WebSocket read failed", "error", err)
			}
			return
		}

		if !limiter.Allow() {
			metrics.WebSocketMessagesRateLimited.Inc()
			s.sendError(conn, clientID, "rate_limited", "message rate limit exceeded")
			continue
		}

		var frame domain.ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			metrics.WebSocketMessagesReceived.WithLabelValues("invalid").Inc()
			s.sendError(conn, clientID, "invalid_frame", "message is not valid JSON")
			continue
		}

		switch frame.Type {
		case domain.FrameChat:
			s.handleChatFrame(conn, clientID, frame)
		case domain.FramePostMessage:
			s.handlePostMessageFrame(ctx, conn, clientID, frame, logger)
		default:
			metrics.WebSocketMessagesReceived.WithLabelValues("unknown").Inc()
			s.sendError(conn, clientID, "unknown_type", fmt.Sprintf("unknown frame type %q", frame.Type))
		}
	}
}

func (s *Server) handleChatFrame(conn *websocket.Conn, clientID string, frame domain.ClientFrame) {
	metrics.WebSocketMessagesReceived.WithLabelValues(domain.FrameChat).Inc()

	if strings.TrimSpace(frame.Body) == "" {
		s.sendError(conn, clientID, "empty_body", "chat body must not be empty")
		return
	}

	s.broadcastEvent(domain.ChatEvent{
		Type:     domain.EventChat,
		ClientID: clientID,
		Body:     frame.Body,
		SentAt:   s.clock.Now().UTC(),
	})
}

func (s *Server) handlePostMessageFrame(ctx context.Context, conn *websocket.Conn, clientID string, frame domain.ClientFrame, logger *slog.Logger) {
	metrics.WebSocketMessagesReceived.WithLabelValues(domain.FramePostMessage).Inc()

	author := strings.TrimSpace(frame.Author)
	if author == "" {
		author = clientID
	}
	body := strings.TrimSpace(frame.Body)
	if body == "" {
		s.sendError(conn, clientID, "empty_body", "message body must not be empty")
		return
	}

	message, err := s.store.AddMessage(ctx, frame.ThreadID, author, body)
	if errors.Is(err, domain.ErrThreadNotFound) {
		s.sendError(conn, clientID, "thread_not_found", "thread does not exist")
		return
	}
	if err != nil {
		logger.Error("Failed to store message", "error", err, "thread_id", frame.ThreadID)
		s.sendError(conn, clientID, "internal", "failed to store message")
		return
	}

	s.broadcastEvent(domain.MessagePostedEvent{
		Type:     domain.EventMessagePosted,
		ThreadID: frame.ThreadID,
		Message:  message,
	})
}

// sendWelcome greets a newly registered client with its assigned ID.
func (s *Server) sendWelcome(conn *websocket.Conn, clientID string) {
	event := domain.WelcomeEvent{
		Type:        domain.EventWelcome,
		ClientID:    clientID,
		ClientCount: s.hub.ClientCount(),
	}
	s.sendTo(conn, clientID, event)
}

// sendError reports a protocol problem to a single client.
func (s *Server) sendError(conn *websocket.Conn, clientID, code, message string) {
	event := domain.ErrorEvent{
		Type:    domain.EventError,
		Code:    code,
		Message: message,
	}
	s.sendTo(conn, clientID, event)
}

func (s *Server) sendTo(conn *websocket.Conn, clientID string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal directed event", "error", err, "client_id", clientID)
		return
	}
	if err := s.hub.SendTo(conn, data); err != nil {
		slog.Warn("Failed to deliver directed event", "error", err, "client_id", clientID)
	}
}

func (s *Server) broadcastPresence(event, clientID string) {
	s.broadcastEvent(domain.PresenceEvent{
		Type:        domain.EventPresence,
		Event:       event,
		ClientID:    clientID,
		ClientCount: s.hub.ClientCount(),
	})
}
