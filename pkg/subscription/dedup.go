package subscription

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupCache is an optional fast path that suppresses already-processed
// provider event IDs before they reach the store. Correctness never depends
// on it: the ordering rule on the record rejects duplicates regardless, so
// implementations may fail open.
type DedupCache interface {
	// Seen reports whether the event ID was already processed.
	Seen(ctx context.Context, eventID string) (bool, error)

	// Mark records the event ID as processed.
	Mark(ctx context.Context, eventID string) error
}

const dedupKeyPrefix = "billing:event:"

// RedisDedup implements DedupCache on Redis with a bounded TTL. Providers
// redeliver within a limited retry window, so entries do not need to live
// longer than that.
type RedisDedup struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDedup returns a Redis-backed dedup cache. A non-positive ttl
// defaults to 24 hours, comfortably past typical provider retry schedules.
func NewRedisDedup(client *redis.Client, ttl time.Duration) *RedisDedup {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDedup{client: client, ttl: ttl}
}

func (d *RedisDedup) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, dedupKeyPrefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *RedisDedup) Mark(ctx context.Context, eventID string) error {
	return d.client.Set(ctx, dedupKeyPrefix+eventID, 1, d.ttl).Err()
}
