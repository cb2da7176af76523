package redis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"autoapply-agent/internal/domain"
	"autoapply-agent/internal/domain/ports/adapter"
)

var _ adapter.Locker = (*RedisLocker)(nil)

// RedisLocker is a single-instance SET NX lock with a random token.
type RedisLocker struct {
	cli RedisClient
}

func NewLocker(c RedisClient) *RedisLocker {
	return &RedisLocker{cli: c}
}

// TryLock makes one attempt; a held key yields domain.ErrLockNotAcquired.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.cli.SetNX(ctx, key, token, ttl)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrLockNotAcquired
	}
	return token, nil
}

// Unlock releases key only if token still owns it. An expired lock taken
// over by someone else is left alone.
func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := l.cli.CompareAndDelete(ctx, key, token)
	return err
}
