package adapter

import (
	"context"
	"time"
)

// Locker is a best-effort mutual exclusion keyed by string.
// TryLock returns domain.ErrLockNotAcquired when the key is held.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// SeenStore remembers job URLs already attempted for a user.
type SeenStore interface {
	Seen(ctx context.Context, userID, jobURL string) (bool, error)
	Mark(ctx context.Context, userID, jobURL string) error
}
