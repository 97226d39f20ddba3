package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CacheKey is where the last status map is kept.
const CacheKey = "leetbuddy:statuses"

// Cache stores opaque values with a TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisCache implements Cache on a Redis server.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to the Redis server at url and pings it.
func NewRedisCache(ctx context.Context, url string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

// NewRedisCacheFromClient wraps an existing client without pinging it.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close releases the connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// CachedSource is a decorator that serves the last status map from a Cache
// while it is fresh. Cache failures are logged and fall through to inner.
type CachedSource struct {
	inner StatusSource
	cache Cache
	ttl   time.Duration
	log   zerolog.Logger
}

// WithCache wraps a StatusSource with a read-through cache.
func WithCache(s StatusSource, c Cache, ttl time.Duration, log zerolog.Logger) StatusSource {
	return &CachedSource{inner: s, cache: c, ttl: ttl, log: log}
}

func (c *CachedSource) Statuses(ctx context.Context) (Statuses, error) {
	if !BypassCacheFrom(ctx) {
		b, ok, err := c.cache.Get(ctx, CacheKey)
		switch {
		case err != nil:
			c.log.Warn().Err(err).Msg("status cache read failed")
		case ok:
			var st Statuses
			if err := json.Unmarshal(b, &st); err == nil {
				return st, nil
			}
			c.log.Warn().Msg("status cache holds invalid data, refetching")
		}
	}

	st, err := c.inner.Statuses(ctx)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(st); err == nil {
		if err := c.cache.Set(ctx, CacheKey, b, c.ttl); err != nil {
			c.log.Warn().Err(err).Msg("status cache write failed")
		}
	}
	return st, nil
}
