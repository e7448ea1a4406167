package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tarsy-labs/mcp-gateway/pkg/store"
)

// UserStore is an in-memory store.UserStore seeded directly by tests.
type UserStore struct {
	mu    sync.Mutex
	byID  map[string]*store.User
}

func NewUserStore(users ...*store.User) *UserStore {
	s := &UserStore{byID: make(map[string]*store.User)}
	for _, u := range users {
		s.byID[u.UserID] = u
	}
	return s
}

func (s *UserStore) Put(u *store.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[u.UserID] = u
}

func (s *UserStore) GetUserByID(_ context.Context, userID string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *UserStore) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

// AuthStore is an in-memory store.AuthStore.
type AuthStore struct {
	mu       sync.Mutex
	sessions map[string]*store.AuthSession
}

func NewAuthStore() *AuthStore {
	return &AuthStore{sessions: make(map[string]*store.AuthSession)}
}

func (s *AuthStore) Put(sess *store.AuthSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Token] = sess
}

func (s *AuthStore) CreateAuthSession(_ context.Context, userID string) (*store.AuthSession, error) {
	now := time.Now().UTC()
	sess := &store.AuthSession{
		Token:        uuid.NewString(),
		UserID:       userID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(store.AuthTokenTTL),
		LastAccessed: now,
	}
	s.mu.Lock()
	s.sessions[sess.Token] = sess
	s.mu.Unlock()
	return sess, nil
}

func (s *AuthStore) GetAuthSession(_ context.Context, token string) (*store.AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *AuthStore) TouchAuthSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[token]; !ok {
		return store.ErrNotFound
	}
	return nil
}

func (s *AuthStore) DeleteAuthSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}
