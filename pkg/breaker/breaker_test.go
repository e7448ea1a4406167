package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New(Config{Name: "test", FailureThreshold: 3, ResetTimeout: 50 * time.Millisecond})

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		err := b.Execute(func() error { return boom })
		require.ErrorIs(t, err, boom)
		assert.Equal(t, "closed", b.GetState().State)
	}

	err := b.Execute(func() error { return boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "open", b.GetState().State)

	err = b.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreaker_HalfOpenProbeSucceeds(t *testing.T) {
	b := New(Config{Name: "test", FailureThreshold: 1, ResetTimeout: 10 * time.Millisecond})

	_ = b.Execute(func() error { return errors.New("fail") })
	assert.Equal(t, "open", b.GetState().State)

	time.Sleep(15 * time.Millisecond)

	err := b.Execute(func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, "closed", b.GetState().State)
}

func TestBreaker_HalfOpenProbeFailsReopens(t *testing.T) {
	b := New(Config{Name: "test", FailureThreshold: 1, ResetTimeout: 10 * time.Millisecond})

	_ = b.Execute(func() error { return errors.New("fail") })
	time.Sleep(15 * time.Millisecond)

	err := b.Execute(func() error { return errors.New("still failing") })
	require.Error(t, err)
	assert.Equal(t, "open", b.GetState().State)
}

func TestBreaker_TransientFailuresNotCounted(t *testing.T) {
	overload := errors.New("overloaded")
	b := New(Config{
		Name:             "claude-api",
		FailureThreshold: 2,
		ResetTimeout:     time.Second,
		IsTransient:      func(err error) bool { return errors.Is(err, overload) },
	})

	for i := 0; i < 5; i++ {
		err := b.Execute(func() error { return overload })
		assert.ErrorIs(t, err, overload)
	}

	assert.Equal(t, "closed", b.GetState().State)
}

func TestRegistry_GetOrCreateIsIdempotent(t *testing.T) {
	r := NewRegistry()
	a := r.GetOrCreate(Config{Name: "mcp-helpdesk", FailureThreshold: 5, ResetTimeout: 30 * time.Second})
	b := r.GetOrCreate(Config{Name: "mcp-helpdesk", FailureThreshold: 99, ResetTimeout: time.Hour})
	assert.Same(t, a, b)
}

func TestRegistry_Snapshot(t *testing.T) {
	r := NewRegistry()
	r.GetOrCreate(Config{Name: "database", FailureThreshold: 5, ResetTimeout: 30 * time.Second})
	snap := r.Snapshot()
	assert.Equal(t, "closed", snap["database"])
}
