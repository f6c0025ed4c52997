// Package cache stores JSON documents in Redis with a fixed TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/rajasatyajit/CommentIntel/pkg/utils"
)

const keyPrefix = "commentintel:cache:"

// Cache is a Redis-backed JSON cache. A nil *Cache is valid and never hits.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a cache on client. A non-positive ttl disables caching.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if client == nil || ttl <= 0 {
		return nil
	}
	return &Cache{client: client, ttl: ttl}
}

// Key derives a cache key from a namespace and the parts identifying the entry
func Key(namespace string, parts ...string) string {
	return keyPrefix + namespace + ":" + utils.HashParts(parts...)
}

// Get decodes the entry at key into dst. It reports false on a miss.
func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("cache decode: %w", err)
	}
	return true, nil
}

// Set stores v at key for the cache TTL
func (c *Cache) Set(ctx context.Context, key string, v any) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// TTL returns the entry lifetime
func (c *Cache) TTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.ttl
}
