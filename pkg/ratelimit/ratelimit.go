// Package ratelimit implements the gateway's two sliding-window rate
// limiters (overall and chat-specific) via ulule/limiter, backed by Redis
// when available and by an in-memory store otherwise — mirroring the same
// fallback discipline as pkg/cache.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Result is the outcome of a Check call, carrying the headers the HTTP
// layer must attach to the response per spec's rate-limit contract.
type Result struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	Reset     int64 // unix seconds
}

// Limiter wraps the two named sliding-window windows the gateway enforces:
// "overall" (60 req/min) and "chat" (20 req/min, applied only to the two
// chat endpoints). Both share a store so a Redis outage degrades both the
// same way.
type Limiter struct {
	overall *limiter.Limiter
	chat    *limiter.Limiter
	local   bool
}

// New constructs a Limiter. When client is nil, both windows run against an
// in-memory store (fallback mode).
func New(client *redis.Client) (*Limiter, error) {
	overallRate, err := limiter.NewRateFromFormatted("60-M")
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse overall rate: %w", err)
	}
	chatRate, err := limiter.NewRateFromFormatted("20-M")
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse chat rate: %w", err)
	}

	store, local, err := newStore(client)
	if err != nil {
		return nil, err
	}

	return &Limiter{
		overall: limiter.New(store, overallRate),
		chat:    limiter.New(store, chatRate),
		local:   local,
	}, nil
}

func newStore(client *redis.Client) (limiter.Store, bool, error) {
	if client == nil {
		return memory.NewStore(), true, nil
	}
	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: "ratelimit"})
	if err != nil {
		slog.Warn("ratelimit: redis store unavailable, falling back to in-memory store", "error", err)
		return memory.NewStore(), true, nil
	}
	return store, false, nil
}

// UsingFallback reports whether the in-memory store is in use.
func (l *Limiter) UsingFallback() bool {
	return l.local
}

// CheckOverall consumes one unit of the 60-req/min overall window for key
// (user email, or client IP when unauthenticated).
func (l *Limiter) CheckOverall(ctx context.Context, key string) (Result, error) {
	return check(ctx, l.overall, "overall:"+key)
}

// CheckChat consumes one unit of the 20-req/min chat window, applied in
// addition to CheckOverall on the two chat endpoints.
func (l *Limiter) CheckChat(ctx context.Context, key string) (Result, error) {
	return check(ctx, l.chat, "chat:"+key)
}

func check(ctx context.Context, lim *limiter.Limiter, key string) (Result, error) {
	ctxRes, err := lim.Get(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: check %s: %w", key, err)
	}
	return Result{
		Allowed:   !ctxRes.Reached,
		Limit:     ctxRes.Limit,
		Remaining: ctxRes.Remaining,
		Reset:     ctxRes.Reset,
	}, nil
}
