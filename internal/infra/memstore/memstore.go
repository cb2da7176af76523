// Package memstore holds single-process stand-ins for the Redis lock and
// dedup store, used when no Redis URL is configured.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"autoapply-agent/internal/domain"
	"autoapply-agent/internal/domain/ports/adapter"
)

var (
	_ adapter.Locker    = (*Locker)(nil)
	_ adapter.SeenStore = (*SeenStore)(nil)
)

type lease struct {
	token   string
	expires time.Time
}

type Locker struct {
	mu    sync.Mutex
	held  map[string]lease
	clock func() time.Time
}

func NewLocker() *Locker {
	return &Locker{held: make(map[string]lease), clock: time.Now}
}

func (l *Locker) TryLock(_ context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	if cur, ok := l.held[key]; ok && now.Before(cur.expires) {
		return "", domain.ErrLockNotAcquired
	}
	token := uuid.NewString()
	l.held[key] = lease{token: token, expires: now.Add(ttl)}
	return token, nil
}

func (l *Locker) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.held[key]; ok && cur.token == token {
		delete(l.held, key)
	}
	return nil
}

// SeenStore remembers (user, URL) pairs for ttl. Expired entries are
// dropped lazily on lookup.
type SeenStore struct {
	mu    sync.Mutex
	seen  map[string]time.Time
	ttl   time.Duration
	clock func() time.Time
}

func NewSeenStore(ttl time.Duration) *SeenStore {
	return &SeenStore{seen: make(map[string]time.Time), ttl: ttl, clock: time.Now}
}

func (s *SeenStore) Seen(_ context.Context, userID, jobURL string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := userID + "\x00" + jobURL
	at, ok := s.seen[k]
	if !ok {
		return false, nil
	}
	if s.ttl > 0 && s.clock().Sub(at) >= s.ttl {
		delete(s.seen, k)
		return false, nil
	}
	return true, nil
}

func (s *SeenStore) Mark(_ context.Context, userID, jobURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[userID+"\x00"+jobURL] = s.clock()
	return nil
}
