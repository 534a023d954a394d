package domain

import "time"

// Thread is a discussion thread with its messages in posting order.
type Thread struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// Message is a single post inside a thread.
type Message struct {
	ID       string    `json:"id"`
	ThreadID string    `json:"thread_id"`
	Author   string    `json:"author"`
	Body     string    `json:"body"`
	PostedAt time.Time `json:"posted_at"`
}
