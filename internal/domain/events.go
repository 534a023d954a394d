package domain

import "time"

// EventType identifies a realtime event pushed to WebSocket clients.
type EventType string

const (
	EventWelcome       EventType = "welcome"
	EventPresence      EventType = "presence"
	EventChat          EventType = "chat"
	EventThreadCreated EventType = "thread.created"
	EventThreadUpdated EventType = "thread.updated"
	EventThreadDeleted EventType = "thread.deleted"
	EventMessagePosted EventType = "message.posted"
	EventError         EventType = "error"
	EventIdleWarning   EventType = "idle.warning"
)

// Presence event kinds.
const (
	PresenceJoin  = "join"
	PresenceLeave = "leave"
)

// WelcomeEvent greets a newly registered client with its assigned ID.
// Sent directly to the joining client, never broadcast.
type WelcomeEvent struct {
	Type        EventType `json:"type"`
	ClientID    string    `json:"client_id"`
	ClientCount int       `json:"client_count"`
}

// PresenceEvent announces a client joining or leaving.
type PresenceEvent struct {
	Type        EventType `json:"type"`
	Event       string    `json:"event"`
	ClientID    string    `json:"client_id"`
	ClientCount int       `json:"client_count"`
}

// ChatEvent relays a chat line from one client to all clients.
type ChatEvent struct {
	Type     EventType `json:"type"`
	ClientID string    `json:"client_id"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
}

// ThreadEvent carries a full thread snapshot for created/updated notifications.
type ThreadEvent struct {
	Type   EventType `json:"type"`
	Thread Thread    `json:"thread"`
}

// ThreadDeletedEvent announces a removed thread.
type ThreadDeletedEvent struct {
	Type     EventType `json:"type"`
	ThreadID string    `json:"thread_id"`
}

// MessagePostedEvent carries a newly posted message.
type MessagePostedEvent struct {
	Type     EventType `json:"type"`
	ThreadID string    `json:"thread_id"`
	Message  Message   `json:"message"`
}

// ErrorEvent reports a per-client protocol problem. Sent directly to the
// offending client, never broadcast.
type ErrorEvent struct {
	Type    EventType `json:"type"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

// Inbound frame types accepted on the WebSocket.
const (
	FrameChat        = "chat"
	FramePostMessage = "post_message"
)

// ClientFrame is the single inbound message shape. Type selects which
// fields are meaningful.
type ClientFrame struct {
	Type     string `json:"type"`
	Body     string `json:"body,omitempty"`
	ThreadID string `json:"thread_id,omitempty"`
	Author   string `json:"author,omitempty"`
}
