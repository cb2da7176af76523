package redis

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"autoapply-agent/internal/domain/ports/adapter"
)

var _ adapter.SeenStore = (*SeenStore)(nil)

// SeenStore keeps one expiring key per (user, job URL).
type SeenStore struct {
	cli RedisClient
	ttl time.Duration
}

func NewSeenStore(c RedisClient, ttl time.Duration) *SeenStore {
	return &SeenStore{cli: c, ttl: ttl}
}

func (s *SeenStore) Seen(ctx context.Context, userID, jobURL string) (bool, error) {
	return s.cli.Exists(ctx, SeenKey(userID, jobURL))
}

func (s *SeenStore) Mark(ctx context.Context, userID, jobURL string) error {
	return s.cli.Set(ctx, SeenKey(userID, jobURL), time.Now().UTC().Unix(), s.ttl)
}

// SeenKey hashes the URL so keys stay short and free of separators.
func SeenKey(userID, jobURL string) string {
	sum := sha1.Sum([]byte(strings.TrimSpace(jobURL)))
	return "seen:" + userID + ":" + hex.EncodeToString(sum[:])
}
