// Package breaker implements a generic three-state circuit breaker used to
// isolate failures in the gateway's upstream dependencies: the LLM vendor
// and each MCP server. Calls to the relational store are not wrapped by a
// breaker.
package breaker

import (
	"errors"
	"sync"
	"time"
)

// State is one of closed, open, half-open.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned by Execute when the breaker is open and the
// reset timeout has not yet elapsed, or when a half-open probe is in flight.
var ErrCircuitOpen = errors.New("circuit open")

// IsTransient classifies an error returned by the wrapped call. A transient
// error is not counted against consecutive_failures — it is expected to
// clear on its own (e.g. upstream overload or rate-limiting).
type IsTransient func(err error) bool

// Breaker is a named failure isolator with three states. Zero value is not
// usable; construct with New.
type Breaker struct {
	name            string
	failureThreshold int
	resetTimeout     time.Duration
	isTransient      IsTransient

	mu                   sync.Mutex
	state                State
	consecutiveFailures  int
	openedAt             time.Time
}

// Config parameterizes a new Breaker.
type Config struct {
	Name             string
	FailureThreshold int
	ResetTimeout     time.Duration
	IsTransient      IsTransient // optional; nil means no error is ever transient
}

// New constructs a Breaker in the closed state.
func New(cfg Config) *Breaker {
	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = 5
	}
	timeout := cfg.ResetTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Breaker{
		name:             cfg.Name,
		failureThreshold: threshold,
		resetTimeout:     timeout,
		isTransient:      cfg.IsTransient,
		state:            Closed,
	}
}

// Name returns the breaker's identifier (e.g. "claude-api", "mcp-helpdesk").
func (b *Breaker) Name() string {
	return b.name
}

// Execute runs f under the breaker's protection. It returns ErrCircuitOpen
// without calling f when the circuit is open and the reset timeout has not
// elapsed. A single probe is allowed once the timeout elapses, transitioning
// the breaker to half-open for the duration of that call; other calls made
// while the probe runs get ErrCircuitOpen.
func (b *Breaker) Execute(f func() error) error {
	if !b.allow() {
		return ErrCircuitOpen
	}

	err := f()
	if err == nil {
		b.recordSuccess()
		return nil
	}

	if b.isTransient != nil && b.isTransient(err) {
		// Transient failures are surfaced to the caller but never counted.
		// A transient probe result puts the breaker back to open with its
		// timeout already elapsed, so the next call probes again.
		b.mu.Lock()
		if b.state == HalfOpen {
			b.state = Open
		}
		b.mu.Unlock()
		return err
	}
	b.recordFailure()
	return err
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case HalfOpen:
		// The single probe admitted on the open→half-open transition is
		// still running.
		return false
	case Open:
		if time.Since(b.openedAt) >= b.resetTimeout {
			b.state = HalfOpen
			return true
		}
		return false
	default:
		return false
	}
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.consecutiveFailures = 0
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures++
	if b.state == HalfOpen {
		// A half-open probe failing re-opens immediately, regardless of threshold.
		b.state = Open
		b.openedAt = time.Now()
		return
	}
	if b.consecutiveFailures >= b.failureThreshold {
		b.state = Open
		b.openedAt = time.Now()
	}
}

// Snapshot is the serializable view of breaker state for health endpoints.
type Snapshot struct {
	Name                string `json:"name"`
	State               string `json:"state"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
}

// GetState returns a serializable snapshot of the breaker's current state.
func (b *Breaker) GetState() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:                b.name,
		State:               b.state.String(),
		ConsecutiveFailures: b.consecutiveFailures,
	}
}
