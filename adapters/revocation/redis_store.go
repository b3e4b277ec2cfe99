package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/pricewatch/ports"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "pricewatch:revoked:"

// RedisStore is a Redis implementation of the RevocationStore interface.
// Records expire with the tokens they describe.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client) ports.RevocationStore {
	return &RedisStore{
		client: client,
		prefix: defaultPrefix,
	}
}

// InvalidateToken marks a token as invalidated in Redis
func (s *RedisStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+tokenID, "1", expiry).Err(); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}
	return nil
}

// IsTokenInvalidated checks if a token is invalidated in Redis
func (s *RedisStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	val, err := s.client.Exists(ctx, s.prefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token invalidation: %w", err)
	}
	return val > 0, nil
}

// ConsumeToken invalidates tokenID with SETNX so that exactly one of
// several concurrent callers wins
func (s *RedisStore) ConsumeToken(ctx context.Context, tokenID string, expiry time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+tokenID, "1", expiry).Result()
	if err != nil {
		return false, fmt.Errorf("failed to consume token: %w", err)
	}
	return ok, nil
}
