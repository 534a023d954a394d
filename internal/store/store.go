// Package store provides in-memory persistence for threads, messages, and users.
package store

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/xid"

	"github.com/nikhilpandasgit/Threadbrain/internal/domain"
	"github.com/nikhilpandasgit/Threadbrain/internal/metrics"
)

// ThreadStore holds all discussion state for single-instance mode.
// Safe for concurrent use; reads take the shared lock, writes the exclusive one.
type ThreadStore struct {
	clock clockwork.Clock

	mu          sync.RWMutex
	threads     map[string]*domain.Thread
	threadOrder []string
	users       []domain.User
}

// NewThreadStore creates an empty store seeded with the default user roster.
func NewThreadStore(clock clockwork.Clock) *ThreadStore {
	return &ThreadStore{
		clock:   clock,
		threads: make(map[string]*domain.Thread),
		users: []domain.User{
			{ID: 1, Name: "Nik", Email: "nik@example.com"},
			{ID: 2, Name: "Kev", Email: "kev@example.com"},
		},
	}
}

// ListUsers returns the seeded user roster.
func (s *ThreadStore) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics.StoreOperationsTotal.WithLabelValues("list_users").Inc()

	users := make([]domain.User, len(s.users))
	copy(users, s.users)
	return users, nil
}

// ListThreads returns all threads in creation order.
func (s *ThreadStore) ListThreads(_ context.Context) ([]domain.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics.StoreOperationsTotal.WithLabelValues("list_threads").Inc()

	threads := make([]domain.Thread, 0, len(s.threadOrder))
	for _, id := range s.threadOrder {
		threads = append(threads, copyThread(s.threads[id]))
	}
	return threads, nil
}

// GetThread returns the thread with the given ID, including its messages.
func (s *ThreadStore) GetThread(_ context.Context, id string) (domain.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics.StoreOperationsTotal.WithLabelValues("get_thread").Inc()

	thread, exists := s.threads[id]
	if !exists {
		return domain.Thread{}, domain.ErrThreadNotFound
	}
	return copyThread(thread), nil
}

// CreateThread creates a new thread with a generated ID and returns it.
func (s *ThreadStore) CreateThread(_ context.Context, title, author string) (domain.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	metrics.StoreOperationsTotal.WithLabelValues("create_thread").Inc()

	now := s.clock.Now().UTC()
	thread := &domain.Thread{
		ID:        xid.New().String(),
		Title:     title,
		Author:    author,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.threads[thread.ID] = thread
	s.threadOrder = append(s.threadOrder, thread.ID)
	metrics.StoreThreadsCurrent.Set(float64(len(s.threads)))

	return copyThread(thread), nil
}

// UpdateThread renames the thread with the given ID and returns the updated copy.
func (s *ThreadStore) UpdateThread(_ context.Context, id, title string) (domain.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	metrics.StoreOperationsTotal.WithLabelValues("update_thread").Inc()

	thread, exists := s.threads[id]
	if !exists {
		return domain.Thread{}, domain.ErrThreadNotFound
	}

	thread.Title = title
	thread.UpdatedAt = s.clock.Now().UTC()
	return copyThread(thread), nil
}

// DeleteThread removes the thread with the given ID and all its messages.
func (s *ThreadStore) DeleteThread(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	metrics.StoreOperationsTotal.WithLabelValues("delete_thread").Inc()

	thread, exists := s.threads[id]
	if !exists {
		return domain.ErrThreadNotFound
	}

	delete(s.threads, id)
	for i, orderedID := range s.threadOrder {
		if orderedID == id {
			s.threadOrder = append(s.threadOrder[:i], s.threadOrder[i+1:]...)
			break
		}
	}

	metrics.StoreThreadsCurrent.Set(float64(len(s.threads)))
	metrics.StoreMessagesCurrent.Sub(float64(len(thread.Messages)))
	return nil
}

// AddMessage appends a message to the thread and bumps its UpdatedAt.
func (s *ThreadStore) AddMessage(_ context.Context, threadID, author, body string) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	metrics.StoreOperationsTotal.WithLabelValues("add_message").Inc()

	thread, exists := s.threads[threadID]
	if !exists {
		return domain.Message{}, domain.ErrThreadNotFound
	}

	message := domain.Message{
		ID:       xid.New().String(),
		ThreadID: threadID,
		Author:   author,
		Body:     body,
		PostedAt: s.clock.Now().UTC(),
	}

	thread.Messages = append(thread.Messages, message)
	thread.UpdatedAt = message.PostedAt
	metrics.StoreMessagesCurrent.Inc()

	return message, nil
}

// Counts reports current store sizes for the stats endpoint.
func (s *ThreadStore) Counts(_ context.Context) domain.StoreCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := 0
	for _, thread := range s.threads {
		messages += len(thread.Messages)
	}

	return domain.StoreCounts{
		Threads:  len(s.threads),
		Messages: messages,
		Users:    len(s.users),
	}
}

// copyThread returns a deep copy so callers cannot mutate store state.
func copyThread(t *domain.Thread) domain.Thread {
	out := *t
	out.Messages = make([]domain.Message, len(t.Messages))
	copy(out.Messages, t.Messages)
	return out
}
