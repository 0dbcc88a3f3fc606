package cache

import (
	"context"
	"encoding/json"
	"time"

	"novita-orchestrator/pkg/logger"

	"github.com/go-redis/redis/v8"
)

// RedisCache backs a named cache with Redis, storing the same Entry
// envelope as MemoryCache under key "cache:<name>:<k>" plus a companion set
// "cache:<name>:__keys__" tracking namespace membership, following the
// same Save/GetAll pipelining idiom as a plain Redis repository.
// When enableFallback is set and a Redis op errors, the cache transparently
// falls back to an in-process MemoryCache for that operation (§4.8).
type RedisCache struct {
	client         *redis.Client
	name           string
	maxSize        int
	defaultTTL     time.Duration
	enableFallback bool
	fallback       *MemoryCache
	metrics        Metrics
}

// NewRedisCache wires a named Redis-backed cache. fallback may be nil if
// enableFallback is false.
func NewRedisCache(client *redis.Client, name string, maxSize int, defaultTTL time.Duration, enableFallback bool) *RedisCache {
	var fb *MemoryCache
	if enableFallback {
		fb = NewMemoryCache(maxSize, defaultTTL)
	}
	return &RedisCache{
		client:         client,
		name:           name,
		maxSize:        maxSize,
		defaultTTL:     defaultTTL,
		enableFallback: enableFallback,
		fallback:       fb,
	}
}

func (c *RedisCache) dataKey(key string) string  { return "cache:" + c.name + ":" + key }
func (c *RedisCache) setKey() string             { return "cache:" + c.name + ":__keys__" }

func (c *RedisCache) onError(op string, err error) bool {
	logger.Warnf("cache %s: redis %s failed, falling back: %v", c.name, op, err)
	return c.enableFallback
}

func (c *RedisCache) Get(key string) (interface{}, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	raw, err := c.client.Get(ctx, c.dataKey(key)).Result()
	if err == redis.Nil {
		c.metrics.Misses++
		if c.enableFallback {
			return c.fallback.Get(key)
		}
		return missMarker, false
	}
	if err != nil {
		if c.onError("get", err) {
			return c.fallback.Get(key)
		}
		c.metrics.Misses++
		return missMarker, false
	}

	var e Entry
	if jsonErr := json.Unmarshal([]byte(raw), &e); jsonErr != nil {
		c.metrics.Misses++
		return missMarker, false
	}
	if e.expired(time.Now()) {
		c.client.Del(ctx, c.dataKey(key))
		c.client.SRem(ctx, c.setKey(), key)
		c.metrics.Misses++
		return missMarker, false
	}

	e.AccessCount++
	e.LastAccessed = time.Now()
	if body, jsonErr := json.Marshal(e); jsonErr == nil {
		c.client.Set(ctx, c.dataKey(key), body, ttlWithFloor(e.TTL))
	}
	c.metrics.Hits++
	return e.Value, true
}

func (c *RedisCache) Set(key string, value interface{}, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := time.Now()
	e := Entry{Value: value, Timestamp: now, TTL: ttl, LastAccessed: now}
	body, err := json.Marshal(e)
	if err != nil {
		if c.onError("set/marshal", err) {
			c.fallback.Set(key, value, ttl)
		}
		return
	}

	exists, err := c.client.SIsMember(ctx, c.setKey(), key).Result()
	if err == nil && !exists {
		if size, sizeErr := c.client.SCard(ctx, c.setKey()).Result(); sizeErr == nil && int(size) >= c.maxSize {
			c.evictOldest(ctx)
		}
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, c.dataKey(key), body, ttlWithFloor(ttl))
	pipe.SAdd(ctx, c.setKey(), key)
	if ttl > 0 {
		pipe.Expire(ctx, c.setKey(), ttlWithFloor(ttl)*2)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		if c.onError("set", err) {
			c.fallback.Set(key, value, ttl)
			return
		}
	}
	c.metrics.Sets++
}

// evictOldest scans the namespace's key set (bounded by maxSize, per
// §4.8's "iterating keys in the namespace — bounded by maxSize") and
// removes the entry with the oldest LastAccessed.
func (c *RedisCache) evictOldest(ctx context.Context) {
	members, err := c.client.SMembers(ctx, c.setKey()).Result()
	if err != nil || len(members) == 0 {
		return
	}
	var oldestKey string
	var oldestAt time.Time
	first := true
	for _, m := range members {
		raw, err := c.client.Get(ctx, c.dataKey(m)).Result()
		if err != nil {
			continue
		}
		var e Entry
		if json.Unmarshal([]byte(raw), &e) != nil {
			continue
		}
		if first || e.LastAccessed.Before(oldestAt) {
			oldestKey = m
			oldestAt = e.LastAccessed
			first = false
		}
	}
	if !first {
		c.client.Del(ctx, c.dataKey(oldestKey))
		c.client.SRem(ctx, c.setKey(), oldestKey)
		c.metrics.Evictions++
	}
}

func (c *RedisCache) Delete(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	n, err := c.client.Del(ctx, c.dataKey(key)).Result()
	c.client.SRem(ctx, c.setKey(), key)
	if err != nil {
		if c.enableFallback {
			return c.fallback.Delete(key)
		}
		return false
	}
	if n > 0 {
		c.metrics.Deletes++
	}
	return n > 0
}

func (c *RedisCache) Has(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	n, err := c.client.Exists(ctx, c.dataKey(key)).Result()
	if err != nil {
		if c.enableFallback {
			return c.fallback.Has(key)
		}
		return false
	}
	return n > 0
}

func (c *RedisCache) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	members, err := c.client.SMembers(ctx, c.setKey()).Result()
	if err == nil {
		for _, m := range members {
			c.client.Del(ctx, c.dataKey(m))
		}
	}
	c.client.Del(ctx, c.setKey())
	if c.enableFallback {
		c.fallback.Clear()
	}
}

func (c *RedisCache) Size() int {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	n, err := c.client.SCard(ctx, c.setKey()).Result()
	if err != nil {
		if c.enableFallback {
			return c.fallback.Size()
		}
		return 0
	}
	return int(n)
}

func (c *RedisCache) Keys() []string {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	members, err := c.client.SMembers(ctx, c.setKey()).Result()
	if err != nil {
		if c.enableFallback {
			return c.fallback.Keys()
		}
		return nil
	}
	return members
}

func (c *RedisCache) GetTTL(key string) (time.Duration, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	d, err := c.client.TTL(ctx, c.dataKey(key)).Result()
	if err != nil || d < 0 {
		return 0, false
	}
	return d, true
}

func (c *RedisCache) SetTTL(key string, ttl time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	ok, err := c.client.Expire(ctx, c.dataKey(key), ttlWithFloor(ttl)).Result()
	return err == nil && ok
}

func (c *RedisCache) CleanupExpired() int {
	// Redis's own TTL expiry already reclaims individual keys; this walks
	// the key set dropping entries whose data key is already gone, so the
	// set doesn't accumulate stale members.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	members, err := c.client.SMembers(ctx, c.setKey()).Result()
	if err != nil {
		return 0
	}
	removed := 0
	for _, m := range members {
		n, err := c.client.Exists(ctx, c.dataKey(m)).Result()
		if err == nil && n == 0 {
			c.client.SRem(ctx, c.setKey(), m)
			removed++
		}
	}
	return removed
}

func (c *RedisCache) GetStats() Stats {
	return Stats{Size: c.Size(), MaxSize: c.maxSize, Metrics: c.metrics}
}

func (c *RedisCache) GetMetrics() Metrics {
	return c.metrics
}

func (c *RedisCache) GetHitRatio() float64 {
	return c.metrics.HitRatio()
}

func (c *RedisCache) ResetMetrics() {
	c.metrics = Metrics{}
}

func (c *RedisCache) Destroy() {
	c.Clear()
}

func ttlWithFloor(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl
}
