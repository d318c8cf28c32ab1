package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a JSON cache over Redis. A Cache built from a nil client (or a nil
// *Cache) misses on every read and drops every write.
type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

// Get decodes the value at key into dest and reports whether it was found.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.enabled() {
		return false, nil
	}

	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		slog.Warn("cache get failed", "key", key, "error", err)
		return false, err
	}

	if err := json.Unmarshal(val, dest); err != nil {
		slog.Warn("cache entry undecodable, dropping", "key", key, "error", err)
		_ = c.client.Del(ctx, key).Err()
		return false, err
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.enabled() {
		return nil
	}

	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, b, ttl).Err()
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if !c.enabled() || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// GetVersion returns the current value of a version counter, 0 when unset.
func (c *Cache) GetVersion(ctx context.Context, key string) int64 {
	if !c.enabled() {
		return 0
	}
	v, err := c.client.Get(ctx, key).Int64()
	if err != nil {
		return 0
	}
	return v
}

// IncrementVersion bumps a version counter, invalidating every key built from
// the previous value.
func (c *Cache) IncrementVersion(ctx context.Context, key string) {
	if !c.enabled() {
		return
	}
	if err := c.client.Incr(ctx, key).Err(); err != nil {
		slog.Warn("cache version bump failed", "key", key, "error", err)
	}
}
