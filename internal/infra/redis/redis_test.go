package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoapply-agent/internal/domain"
)

// fakeClient is an in-memory RedisClient without expiry.
type fakeClient struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newFakeClient() *fakeClient {
	return &fakeClient{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeClient) Ping(context.Context) error { return f.err }

func (f *fakeClient) Set(_ context.Context, key string, value interface{}, exp time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.data[key] = fmt.Sprint(value)
	f.ttls[key] = exp
	return nil
}

func (f *fakeClient) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", errors.New("redis: nil")
	}
	return v, f.err
}

func (f *fakeClient) SetNX(_ context.Context, key string, value interface{}, exp time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = fmt.Sprint(value)
	f.ttls[key] = exp
	return true, nil
}

func (f *fakeClient) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok, f.err
}

func (f *fakeClient) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return f.err
}

func (f *fakeClient) CompareAndDelete(_ context.Context, key, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.data[key] != value {
		return false, nil
	}
	delete(f.data, key)
	return true, nil
}

func (f *fakeClient) Close() error { return nil }

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("second lock on held key fails", func(t *testing.T) {
		l := NewLocker(newFakeClient())

		token, err := l.TryLock(ctx, "agent:run:u1", time.Minute)
		require.NoError(t, err)
		require.NotEmpty(t, token)

		_, err = l.TryLock(ctx, "agent:run:u1", time.Minute)
		assert.ErrorIs(t, err, domain.ErrLockNotAcquired)

		_, err = l.TryLock(ctx, "agent:run:u2", time.Minute)
		assert.NoError(t, err)
	})

	t.Run("unlock with a stale token keeps the lock", func(t *testing.T) {
		cli := newFakeClient()
		l := NewLocker(cli)
		token, err := l.TryLock(ctx, "k", time.Minute)
		require.NoError(t, err)

		require.NoError(t, l.Unlock(ctx, "k", "someone-else"))
		_, err = l.TryLock(ctx, "k", time.Minute)
		assert.ErrorIs(t, err, domain.ErrLockNotAcquired)

		require.NoError(t, l.Unlock(ctx, "k", token))
		_, err = l.TryLock(ctx, "k", time.Minute)
		assert.NoError(t, err)
	})

	t.Run("backend error is returned as is", func(t *testing.T) {
		cli := newFakeClient()
		cli.err = errors.New("connection refused")
		_, err := NewLocker(cli).TryLock(ctx, "k", time.Minute)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrLockNotAcquired)
	})
}

func TestSeenStore(t *testing.T) {
	ctx := context.Background()
	cli := newFakeClient()
	s := NewSeenStore(cli, 30*24*time.Hour)

	seen, err := s.Seen(ctx, "u1", "https://example.com/job/1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, s.Mark(ctx, "u1", "https://example.com/job/1"))

	seen, _ = s.Seen(ctx, "u1", "https://example.com/job/1")
	assert.True(t, seen)
	seen, _ = s.Seen(ctx, "u2", "https://example.com/job/1")
	assert.False(t, seen, "dedup is per user")
	assert.Equal(t, 30*24*time.Hour, cli.ttls[SeenKey("u1", "https://example.com/job/1")])
}

func TestSeenKey(t *testing.T) {
	k := SeenKey("u1", " https://example.com/a?b=c ")
	assert.Equal(t, SeenKey("u1", "https://example.com/a?b=c"), k)
	assert.Regexp(t, `^seen:u1:[0-9a-f]{40}$`, k)
}
