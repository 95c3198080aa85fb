package biography

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"mortality/internal/platform/redis"
)

// RedisClaimCache shares claim tokens across worker processes so concurrent
// runs do not hammer the Wikidata API for the same entities.
type RedisClaimCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClaimCache wraps an established Redis connection. TTL bounds how
// long a claim token (or a recorded miss) stays authoritative.
func NewRedisClaimCache(client *redis.Client, ttl time.Duration) *RedisClaimCache {
	return &RedisClaimCache{client: client, ttl: ttl}
}

func claimKey(property, entityID string) string {
	return fmt.Sprintf("claim:%s:%s", property, entityID)
}

func (c *RedisClaimCache) Get(ctx context.Context, property, entityID string) (string, bool, error) {
	token, err := c.client.Get(ctx, claimKey(property, entityID)).Result()
	if err == goredis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("claim cache get: %w", err)
	}
	return token, true, nil
}

func (c *RedisClaimCache) Set(ctx context.Context, property, entityID, token string) error {
	if err := c.client.Set(ctx, claimKey(property, entityID), token, c.ttl).Err(); err != nil {
		return fmt.Errorf("claim cache set: %w", err)
	}
	return nil
}
