package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userRecord struct {
	Email  string   `json:"email"`
	Active bool     `json:"active"`
	Tags   []string `json:"tags"`
}

func TestCache_FallbackSetGet(t *testing.T) {
	c := New(nil, "acl:user", 5*time.Minute)
	assert.True(t, c.UsingFallback())

	ctx := context.Background()
	want := userRecord{Email: "a@example.com", Active: true, Tags: []string{"sales_admin"}}
	require.NoError(t, c.Set(ctx, "a@example.com", want, 0))

	var got userRecord
	ok, err := c.Get(ctx, "a@example.com", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestCache_MissReturnsFalse(t *testing.T) {
	c := New(nil, "acl:user", 5*time.Minute)
	var got userRecord
	ok, err := c.Get(context.Background(), "nobody@example.com", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c := New(nil, "tools:user", 20*time.Millisecond)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", "v", 0))

	time.Sleep(30 * time.Millisecond)

	var got string
	ok, _ := c.Get(ctx, "k", &got)
	assert.False(t, ok)
}

func TestCache_Invalidate(t *testing.T) {
	c := New(nil, "acl:config", time.Minute)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "global", "v1", 0))

	c.Invalidate(ctx, "global")

	var got string
	ok, _ := c.Get(ctx, "global", &got)
	assert.False(t, ok)
}
