package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/opensource-finance/govguard/internal/domain"
)

// DefaultReplayTTL is how long a response stays replayable.
const DefaultReplayTTL = 24 * time.Hour

// Replayer stores evaluate responses under a client-supplied
// Idempotency-Key so a retried request gets the original answer.
type Replayer struct {
	cache domain.Cache
	ttl   time.Duration
}

// NewReplayer wraps c. A non-positive ttl uses DefaultReplayTTL.
func NewReplayer(c domain.Cache, ttl time.Duration) *Replayer {
	if ttl <= 0 {
		ttl = DefaultReplayTTL
	}
	return &Replayer{cache: c, ttl: ttl}
}

// Lookup returns the stored response for key, if any.
func (r *Replayer) Lookup(ctx context.Context, key string) ([]byte, bool, error) {
	body, err := r.cache.Get(ctx, replayKey(key))
	if err != nil {
		return nil, false, err
	}
	return body, body != nil, nil
}

// Remember stores body under key.
func (r *Replayer) Remember(ctx context.Context, key string, body []byte) error {
	return r.cache.Set(ctx, replayKey(key), body, r.ttl)
}

// replayKey hashes the client key so arbitrary header values map to a
// bounded cache key.
func replayKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "replay:" + hex.EncodeToString(sum[:])
}
