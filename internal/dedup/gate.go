package dedup

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/oakmind/oakmind-backend/internal/pkg/logger"
)

// Store is the minimal atomic insert-if-absent surface the gate needs.
// *goredis.Client satisfies it via SetNX.
type Store interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.BoolCmd
	Get(ctx context.Context, key string) *goredis.StringCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// Gate is a short-TTL idempotency lock. TryAcquire returns true only for the
// first caller of a key within its TTL window. When the store is unreachable
// the gate fails closed: duplicates are cheaper to deny than generator calls
// are to duplicate.
type Gate struct {
	store  Store
	log    *logger.Logger
	prefix string
}

const lockSentinel = "1"

func NewGate(store Store, baseLog *logger.Logger) *Gate {
	return &Gate{
		store:  store,
		log:    baseLog.With("service", "DedupGate"),
		prefix: "dedup:",
	}
}

func (g *Gate) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("dedup: empty key")
	}
	if ttl <= 0 {
		return false, fmt.Errorf("dedup: non-positive ttl")
	}

	ok, err := g.store.SetNX(ctx, g.prefix+key, lockSentinel, ttl).Result()
	if err != nil {
		g.log.Error("dedup store unreachable, denying", "key", key, "error", err)
		return false, fmt.Errorf("dedup store: %w", err)
	}
	if !ok {
		g.log.Debug("dedup key already held", "key", key)
	}
	return ok, nil
}

// TryAcquireOwned acquires key with owner recorded as the lock value. When
// the key is already held BY THE SAME OWNER the call succeeds again: a failed
// attempt whose Release was lost to a store blip must not suppress its own
// retry. A denial therefore means a different owner holds the key.
func (g *Gate) TryAcquireOwned(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if owner == "" {
		return g.TryAcquire(ctx, key, ttl)
	}
	if key == "" {
		return false, fmt.Errorf("dedup: empty key")
	}
	if ttl <= 0 {
		return false, fmt.Errorf("dedup: non-positive ttl")
	}

	ok, err := g.store.SetNX(ctx, g.prefix+key, owner, ttl).Result()
	if err != nil {
		g.log.Error("dedup store unreachable, denying", "key", key, "error", err)
		return false, fmt.Errorf("dedup store: %w", err)
	}
	if ok {
		return true, nil
	}

	holder, err := g.store.Get(ctx, g.prefix+key).Result()
	if err == goredis.Nil {
		// Expired between the two calls; take it now.
		ok, err := g.store.SetNX(ctx, g.prefix+key, owner, ttl).Result()
		if err != nil {
			g.log.Error("dedup store unreachable, denying", "key", key, "error", err)
			return false, fmt.Errorf("dedup store: %w", err)
		}
		return ok, nil
	}
	if err != nil {
		g.log.Error("dedup store unreachable, denying", "key", key, "error", err)
		return false, fmt.Errorf("dedup store: %w", err)
	}
	if holder == owner {
		g.log.Info("re-entering dedup lock held by same owner", "key", key)
		return true, nil
	}
	return false, nil
}

// Release frees a held key early so a failed attempt does not suppress its
// own retry. Best effort: if the delete is lost, owner re-entry via
// TryAcquireOwned still keeps the retry path open.
func (g *Gate) Release(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := g.store.Del(ctx, g.prefix+key).Err(); err != nil {
		g.log.Warn("failed to release dedup key, it will expire by TTL", "key", key, "error", err)
	}
}
