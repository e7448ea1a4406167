package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_FallbackMode(t *testing.T) {
	l, err := New(nil)
	require.NoError(t, err)
	assert.True(t, l.UsingFallback())
}

func TestLimiter_OverallAllowsWithinBudget(t *testing.T) {
	l, err := New(nil)
	require.NoError(t, err)

	ctx := context.Background()
	res, err := l.CheckOverall(ctx, "user@example.com")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(60), res.Limit)
}

func TestLimiter_ChatTripsAfterBudgetExceeded(t *testing.T) {
	l, err := New(nil)
	require.NoError(t, err)

	ctx := context.Background()
	var last Result
	for i := 0; i < 21; i++ {
		last, err = l.CheckChat(ctx, "user@example.com")
		require.NoError(t, err)
	}
	assert.False(t, last.Allowed)
	assert.Equal(t, int64(0), last.Remaining)
}

func TestLimiter_DistinctKeysAreIndependent(t *testing.T) {
	l, err := New(nil)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 21; i++ {
		_, err = l.CheckChat(ctx, "a@example.com")
		require.NoError(t, err)
	}
	res, err := l.CheckChat(ctx, "b@example.com")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
