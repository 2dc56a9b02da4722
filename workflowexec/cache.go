package workflowexec

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// cacheKey builds the step-result cache key from a step id and its resolved
// input. encoding/json sorts map keys during marshaling, so two inputs that
// are equal as maps always canonicalize to the same key regardless of
// insertion order.
func cacheKey(stepID string, input map[string]any) string {
	raw, err := json.Marshal(input)
	if err != nil {
		// Unmarshalable input can't be cached consistently; fall back to a
		// key that never collides with a real hash so the lookup just misses.
		return fmt.Sprintf("%s|unhashable", stepID)
	}
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%s|%s", stepID, hex.EncodeToString(sum[:]))
}

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// stepCacheBackend stores cached step results keyed by cacheKey. stepCache
// is the in-memory default; redisStepCache backs the cache with Redis so
// results survive an Executor restart.
type stepCacheBackend interface {
	get(ctx context.Context, key string) (any, bool)
	set(ctx context.Context, key string, value any, ttl time.Duration)
}

// stepCache holds cached step results keyed by cacheKey, with expired
// entries purged lazily on the next lookup for that key.
type stepCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

func newStepCache() *stepCache {
	return &stepCache{entries: make(map[string]cacheEntry)}
}

func (c *stepCache) get(_ context.Context, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.value, true
}

func (c *stepCache) set(_ context.Context, key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expiresAt: time.Now().Add(ttl)}
}

// redisStepCache backs cached step results in Redis, same key-per-entry and
// TTL-on-write shape as networkexec's redisPersistence.
type redisStepCache struct {
	rdb *redis.Client
}

func newRedisStepCache(rdb *redis.Client) *redisStepCache {
	return &redisStepCache{rdb: rdb}
}

func (c *redisStepCache) redisKey(key string) string {
	return "mastra:workflow-step:" + key
}

func (c *redisStepCache) get(ctx context.Context, key string) (any, bool) {
	raw, err := c.rdb.Get(ctx, c.redisKey(key)).Bytes()
	if err != nil {
		return nil, false
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false
	}
	return value, true
}

func (c *redisStepCache) set(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, c.redisKey(key), raw, ttl).Err()
}
