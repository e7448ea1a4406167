package memstore

import (
	"context"
	"sync"

	"github.com/tarsy-labs/mcp-gateway/pkg/store"
)

// AclConfigStore is an in-memory store.AclConfigStore.
type AclConfigStore struct {
	mu  sync.Mutex
	cfg *store.AclConfig
}

func NewAclConfigStore() *AclConfigStore {
	return &AclConfigStore{}
}

func (s *AclConfigStore) GetAclConfig(_ context.Context) (*store.AclConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == nil {
		return nil, store.ErrNotFound
	}
	cp := *s.cfg
	return &cp, nil
}

func (s *AclConfigStore) PutAclConfig(_ context.Context, cfg *store.AclConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cfg
	s.cfg = &cp
	return nil
}
