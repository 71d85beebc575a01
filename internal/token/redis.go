package token

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const revocationKeyPrefix = "gateway:revoked:"

// RedisRevocations is the shared revocation list for horizontally scaled
// deployments. Redis expires entries on its own, so no janitor is needed.
type RedisRevocations struct {
	client *redis.Client
}

var _ RevocationStore = (*RedisRevocations)(nil)

// NewRedisRevocations wraps an existing client.
func NewRedisRevocations(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{client: client}
}

// Revoke implements RevocationStore. SETNX is atomic on the server side,
// so exactly one of any set of concurrent callers observes a fresh insert.
func (r *RedisRevocations) Revoke(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	set, err := r.client.SetNX(ctx, revocationKeyPrefix+tokenID, "1", ttl).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}

// IsRevoked implements RevocationStore.
func (r *RedisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	exists, err := r.client.Exists(ctx, revocationKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
