// Package memstore provides in-memory fakes of pkg/store's interfaces for
// use in agent-loop and HTTP handler tests, grounded in the teacher's
// test/database convention of an ephemeral backing store dedicated to
// tests rather than a real database.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tarsy-labs/mcp-gateway/pkg/store"
)

// SessionStore is an in-memory store.SessionStore.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*store.Session
	messages map[string][]*store.Message
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*store.Session),
		messages: make(map[string][]*store.Message),
	}
}

func (s *SessionStore) CreateSession(_ context.Context, userID, title, vertical string) (*store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	sess := &store.Session{
		SessionID: uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Vertical:  vertical,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[sess.SessionID] = sess
	return cloneSession(sess), nil
}

func (s *SessionStore) GetSession(_ context.Context, sessionID, userID string) (*store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sess.UserID != userID {
		return nil, store.ErrNotFound
	}
	return cloneSession(sess), nil
}

func (s *SessionStore) ListSessions(_ context.Context, userID string) ([]*store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*store.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, cloneSession(sess))
		}
	}
	return out, nil
}

func (s *SessionStore) DeleteSession(_ context.Context, sessionID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sess.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.sessions, sessionID)
	delete(s.messages, sessionID)
	return nil
}

func (s *SessionStore) UpdateSessionTitle(_ context.Context, sessionID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return store.ErrNotFound
	}
	sess.Title = title
	sess.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *SessionStore) AppendMessage(_ context.Context, msg *store.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *msg
	cp.CreatedAt = time.Now().UTC()
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], &cp)
	return nil
}

func (s *SessionStore) GetMessages(_ context.Context, sessionID string, limit int) ([]*store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.messages[sessionID]
	if limit <= 0 || limit >= len(all) {
		out := make([]*store.Message, len(all))
		copy(out, all)
		return out, nil
	}
	start := len(all) - limit
	out := make([]*store.Message, limit)
	copy(out, all[start:])
	return out, nil
}

func cloneSession(s *store.Session) *store.Session {
	cp := *s
	return &cp
}
