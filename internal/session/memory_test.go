package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rolegate/rolegate/internal/store"
	"github.com/rolegate/rolegate/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	now := time.Now()
	m.now = func() time.Time { return now }

	s := types.Session{ID: "a", UserID: 1, Username: "alice", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, m.Create(ctx, s))
	require.ErrorIs(t, m.Create(ctx, s), store.ErrConflict)

	got, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	require.NoError(t, m.Delete(ctx, "a"))
	require.NoError(t, m.Delete(ctx, "a"), "second delete must be a no-op")

	_, err = m.Get(ctx, "a")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestMemoryStore_ExpiredSessionsAreAbsent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	now := time.Now()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Create(ctx, types.Session{ID: "old", ExpiresAt: now.Add(-time.Second)}))
	require.NoError(t, m.Create(ctx, types.Session{ID: "stale", ExpiresAt: now}))
	require.NoError(t, m.Create(ctx, types.Session{ID: "live", ExpiresAt: now.Add(time.Minute)}))

	_, err := m.Get(ctx, "old")
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 2, m.Len(), "expired session should be dropped on read")

	n, err := m.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, m.Len())
}

func TestSweep_StopsWithContext(t *testing.T) {
	m := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Sweep(ctx, m, time.Millisecond, discardLogger())
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("sweeper did not stop")
	}
}
