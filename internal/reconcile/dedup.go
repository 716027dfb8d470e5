package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Gate tracks which donations have already been committed so redundant
// provider deliveries are suppressed.
type Gate interface {
	// Claim atomically marks the key as processed and reports whether this
	// caller won the claim. Losing the claim means a duplicate delivery.
	Claim(ctx context.Context, p Provider, itemID string) (bool, error)
	// Release frees a claimed key after a failed commit so a provider
	// redelivery can retry.
	Release(ctx context.Context, p Provider, itemID string) error
}

func dedupKey(p Provider, itemID string) string {
	return fmt.Sprintf("dedup:%s:%s", p, itemID)
}

// RedisGate is a durable, keyed idempotency gate backed by Redis SETNX.
// Keys expire after TTL; deliveries older than the retention window are
// treated as new.
type RedisGate struct {
	R   *redis.Client
	TTL time.Duration
}

// Claim implements Gate.
func (g RedisGate) Claim(ctx context.Context, p Provider, itemID string) (bool, error) {
	if g.R == nil {
		return false, errors.New("dedup: redis client not configured")
	}
	ttl := g.TTL
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return g.R.SetNX(ctx, dedupKey(p, itemID), "1", ttl).Result()
}

// Release implements Gate.
func (g RedisGate) Release(ctx context.Context, p Provider, itemID string) error {
	if g.R == nil {
		return errors.New("dedup: redis client not configured")
	}
	return g.R.Del(ctx, dedupKey(p, itemID)).Err()
}

// MemoryGate is an in-process keyed gate for tests and single-instance
// deployments without Redis. Claims are lost on restart. The zero value is
// ready to use.
type MemoryGate struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryGate constructs an empty in-process gate.
func NewMemoryGate() *MemoryGate {
	return &MemoryGate{seen: map[string]struct{}{}}
}

// Claim implements Gate.
func (g *MemoryGate) Claim(_ context.Context, p Provider, itemID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen == nil {
		g.seen = map[string]struct{}{}
	}
	key := dedupKey(p, itemID)
	if _, ok := g.seen[key]; ok {
		return false, nil
	}
	g.seen[key] = struct{}{}
	return true, nil
}

// Release implements Gate.
func (g *MemoryGate) Release(_ context.Context, p Provider, itemID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, dedupKey(p, itemID))
	return nil
}
