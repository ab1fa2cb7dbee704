package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache satisfies policy.Cache: a namespace-scoped string key/value store
// backed by Redis, used for action memoization.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache dials addr and returns a cache with entries expiring after ttl.
// ttl <= 0 means entries never expire.
func NewRedisCache(addr, password string, db int, ttl time.Duration) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) redisKey(namespace, key string) string {
	return namespace + ":" + key
}

// Get implements policy.Cache.
func (c *RedisCache) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, c.redisKey(namespace, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set implements policy.Cache.
func (c *RedisCache) Set(ctx context.Context, namespace, key, value string) error {
	return c.client.Set(ctx, c.redisKey(namespace, key), value, c.ttl).Err()
}

// Ping checks connectivity, used by the gateway's /health handler.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// RateLimitAllow implements a fixed-window counter for the gateway's per-key
// rate limiting, independent of the in-process resilience.RateLimiter (which
// guards outbound calls to external collaborators, not inbound API traffic).
func (c *RedisCache) RateLimitAllow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := c.client.Incr(ctx, "ratelimit:"+key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		c.client.Expire(ctx, "ratelimit:"+key, window)
	}
	return count <= int64(limit), nil
}
