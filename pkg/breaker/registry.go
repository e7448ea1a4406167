package breaker

import "sync"

// Registry holds one Breaker per dependency, keyed by name, so that callers
// never need to thread breaker instances through constructors by hand.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*Breaker)}
}

// GetOrCreate returns the named breaker, constructing it with cfg on first
// use. Subsequent calls with the same name ignore cfg and return the
// existing instance — this keeps call sites simple (pass the config every
// time) while guaranteeing exactly one Breaker per name.
func (r *Registry) GetOrCreate(cfg Config) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[cfg.Name]; ok {
		return b
	}
	b := New(cfg)
	r.breakers[cfg.Name] = b
	return b
}

// Get returns the named breaker and whether it exists.
func (r *Registry) Get(name string) (*Breaker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[name]
	return b, ok
}

// Snapshot returns a name -> state-string map for every registered breaker,
// suitable for embedding directly in the /api/health response.
func (r *Registry) Snapshot() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.GetState().State
	}
	return out
}
