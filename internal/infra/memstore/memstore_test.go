package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoapply-agent/internal/domain"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func TestLocker(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLocker()
	l.clock = clk.Now

	token, err := l.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)

	_, err = l.TryLock(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockNotAcquired)

	require.NoError(t, l.Unlock(ctx, "k", "stale"))
	_, err = l.TryLock(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockNotAcquired, "stale token must not release")

	require.NoError(t, l.Unlock(ctx, "k", token))
	_, err = l.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)

	clk.now = clk.now.Add(2 * time.Minute)
	_, err = l.TryLock(ctx, "k", time.Minute)
	assert.NoError(t, err, "expired lease can be taken over")
}

func TestSeenStore(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewSeenStore(24 * time.Hour)
	s.clock = clk.Now

	seen, _ := s.Seen(ctx, "u1", "https://a")
	assert.False(t, seen)

	require.NoError(t, s.Mark(ctx, "u1", "https://a"))
	seen, _ = s.Seen(ctx, "u1", "https://a")
	assert.True(t, seen)
	seen, _ = s.Seen(ctx, "u2", "https://a")
	assert.False(t, seen)

	clk.now = clk.now.Add(25 * time.Hour)
	seen, _ = s.Seen(ctx, "u1", "https://a")
	assert.False(t, seen, "entry expires after ttl")
}
