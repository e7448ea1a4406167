// Package cache provides a typed key/value layer over a shared store
// (Redis), falling back transparently to a process-local map when the
// shared store is unreachable or not configured.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the typed key/value layer consumed by the ACL evaluator, the MCP
// bridge's per-user tool listing, and the agent loop's response cache. Every
// caller gets its own namespace so keys never collide across concerns.
type Cache struct {
	namespace string
	ttl       time.Duration
	client    *redis.Client
	local     *localStore
}

// New returns a Cache namespaced under ns with the given default TTL. If
// client is nil, the cache operates purely out of the in-memory fallback —
// this is how CACHE_URL being unset activates fallback mode per the
// environment contract.
func New(client *redis.Client, ns string, defaultTTL time.Duration) *Cache {
	return &Cache{
		namespace: ns,
		ttl:       defaultTTL,
		client:    client,
		local:     newLocalStore(),
	}
}

func (c *Cache) key(k string) string {
	return c.namespace + ":" + k
}

// Get looks up key, decoding the JSON-serialized value into dst. Returns
// (false, nil) on a clean miss. Any Redis error falls back to the local
// store transparently — correctness is preserved, sharing across processes
// is not.
func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c.client != nil {
		raw, err := c.client.Get(ctx, c.key(key)).Bytes()
		switch {
		case err == nil:
			return true, json.Unmarshal(raw, dst)
		case err == redis.Nil:
			return false, nil
		default:
			slog.Warn("cache: redis unavailable, falling back to local store", "namespace", c.namespace, "error", err)
		}
	}
	return c.local.get(c.key(key), dst)
}

// Set stores value under key with ttl (or the cache's default TTL when
// ttl<=0). Falls back to the local store on any Redis error.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}

	if c.client != nil {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("cache: marshal value: %w", err)
		}
		if err := c.client.Set(ctx, c.key(key), raw, ttl).Err(); err == nil {
			return nil
		} else {
			slog.Warn("cache: redis unavailable, falling back to local store", "namespace", c.namespace, "error", err)
		}
	}
	c.local.set(c.key(key), value, ttl)
	return nil
}

// Invalidate removes key from both the shared store (if configured) and the
// local fallback, used by admin ACL mutations to force a fresh read.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	if c.client != nil {
		_ = c.client.Del(ctx, c.key(key)).Err()
	}
	c.local.delete(c.key(key))
}

// UsingFallback reports whether this cache is currently relying on the
// in-memory store because no Redis client was configured. The health
// endpoint does not report it.
func (c *Cache) UsingFallback() bool {
	return c.client == nil
}

// localStore is a process-local map with the same TTL semantics as Redis.
// Protected by a single mutex; lookups and writes are O(1) and infrequent
// enough that lock contention is not a concern here.
type localStore struct {
	mu    sync.Mutex
	items map[string]localItem
}

type localItem struct {
	raw      []byte
	expireAt time.Time
}

func newLocalStore() *localStore {
	return &localStore{items: make(map[string]localItem)}
}

func (s *localStore) get(key string, dst any) (bool, error) {
	s.mu.Lock()
	item, ok := s.items[key]
	if ok && time.Now().After(item.expireAt) {
		delete(s.items, key)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(item.raw, dst)
}

func (s *localStore) set(key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.items[key] = localItem{raw: raw, expireAt: time.Now().Add(ttl)}
	s.mu.Unlock()
}

func (s *localStore) delete(key string) {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}
