package cache

import (
	"context"
	"time"

	rediscommon "github.com/lyzr/pubmigrate/common/redis"
)

// RedisCache stores entries in Redis so mappings survive between runs
type RedisCache struct {
	client *rediscommon.Client
	prefix string
}

// NewRedisCache creates a cache whose keys are namespaced by prefix
func NewRedisCache(client *rediscommon.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

// Get retrieves a value from Redis
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, found, err := c.client.Lookup(ctx, c.key(key))
	if err != nil || !found {
		return nil, false, err
	}
	return []byte(val), true, nil
}

// Set stores a value in Redis
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return c.client.Set(ctx, c.key(key), string(value), ttl)
}

// Delete removes a value from Redis
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Delete(ctx, c.key(key))
}

// Close closes the underlying connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
