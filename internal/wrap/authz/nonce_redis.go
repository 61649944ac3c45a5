package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zintarh/wrap-registry/pkg/platform/sentinel"
)

const noncePrefix = "wrap:nonce:"

// RedisNonceStore tracks consumed nonces in Redis so replay protection holds
// across service replicas. SET NX is the atomic consume: the first writer
// wins, everyone else sees the nonce as already used.
type RedisNonceStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisNonceStore constructs a Redis-backed nonce store.
func NewRedisNonceStore(client *redis.Client, ttl time.Duration) *RedisNonceStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisNonceStore{client: client, ttl: ttl}
}

func (s *RedisNonceStore) Consume(ctx context.Context, nonce string) error {
	set, err := s.client.SetNX(ctx, noncePrefix+nonce, 1, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("consume nonce: %w: %w", sentinel.ErrUnavailable, err)
	}
	if !set {
		return fmt.Errorf("nonce %s: %w", nonce, sentinel.ErrAlreadyUsed)
	}
	return nil
}
