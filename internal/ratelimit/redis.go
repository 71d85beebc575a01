package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const counterKeyPrefix = "gateway:ratelimit:"

// RedisStore shares fixed-window counters across gateway instances. INCR is
// atomic on the server side, so the exact-enforcement contract holds without
// client-side locking.
type RedisStore struct {
	client *redis.Client
}

var _ CounterStore = (*RedisStore)(nil)

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Increment implements CounterStore.
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	fullKey := counterKeyPrefix + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, fullKey)
	ttl := pipe.PTTL(ctx, fullKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}

	count := incr.Val()
	reset := ttl.Val()
	// First hit in a window, or a key left over without an expiry: start
	// the window now.
	if count == 1 || reset < 0 {
		if err := s.client.Expire(ctx, fullKey, window).Err(); err != nil {
			return 0, 0, err
		}
		reset = window
	}
	return count, reset, nil
}
