package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatsCache holds short-lived aggregate results. It is never authoritative.
type StatsCache interface {
	// Get decodes the cached value into dst and reports whether it was present.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisStatsCache stores JSON-encoded values in Redis
type RedisStatsCache struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStatsCache(rdb *redis.Client) *RedisStatsCache {
	return &RedisStatsCache{rdb: rdb, prefix: "firedoor:"}
}

func (c *RedisStatsCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (c *RedisStatsCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, c.prefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *RedisStatsCache) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

type memoryEntry struct {
	raw     []byte
	expires time.Time
}

// MemoryStatsCache is the process-local fallback used when Redis is not configured
type MemoryStatsCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStatsCache() *MemoryStatsCache {
	return &MemoryStatsCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryStatsCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && !c.now().Before(entry.expires) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(entry.raw, dst); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (c *MemoryStatsCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	c.mu.Lock()
	c.entries[key] = memoryEntry{raw: raw, expires: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryStatsCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}
