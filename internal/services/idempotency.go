package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// IdempotencyGuard short-circuits duplicate external events before they
// reach the ledger. It is an optimization only: the unique index on
// (type, reference) in the ledger store remains authoritative, so a
// missing or unavailable Redis degrades to letting events through.
type IdempotencyGuard struct {
	redis     *redis.Client
	retention time.Duration
}

func NewIdempotencyGuard(redisClient *redis.Client, retention time.Duration) *IdempotencyGuard {
	if retention <= 0 {
		// References are never reused by compliant callers; the TTL only
		// bounds storage growth.
		retention = 365 * 24 * time.Hour
	}
	return &IdempotencyGuard{
		redis:     redisClient,
		retention: retention,
	}
}

// CheckAndReserve atomically marks key as seen and reports whether this
// is the first observation.
func (g *IdempotencyGuard) CheckAndReserve(ctx context.Context, key string) (bool, error) {
	if g.redis == nil {
		return true, nil
	}

	firstSeen, err := g.redis.SetNX(ctx, g.redisKey(key), time.Now().Unix(), g.retention).Result()
	if err != nil {
		// Guard unavailable; the ledger's uniqueness check still holds.
		log.Printf("[IDEMPOTENCY] Guard unavailable for key %s, falling through: %v", key, err)
		return true, nil
	}
	return firstSeen, nil
}

// Release frees a reservation after the ledger rejected the event, so a
// later legitimate retry is not blocked by the guard.
func (g *IdempotencyGuard) Release(ctx context.Context, key string) {
	if g.redis == nil {
		return
	}
	if err := g.redis.Del(ctx, g.redisKey(key)).Err(); err != nil {
		log.Printf("[IDEMPOTENCY] Failed to release key %s: %v", key, err)
	}
}

func (g *IdempotencyGuard) redisKey(key string) string {
	return fmt.Sprintf("idempotency:%s", key)
}
