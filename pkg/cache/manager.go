package cache

import (
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Options configures a named cache at creation time.
type Options struct {
	Backend        Backend
	MaxSize        int
	DefaultTTL     time.Duration
	CleanupInterval time.Duration
}

// Manager owns named caches, as required by §4.8's Cache Manager contract.
type Manager struct {
	mu             sync.Mutex
	caches         map[string]Cache
	redisClient    *redis.Client
	enableFallback bool
}

// NewManager builds a Cache Manager. redisClient may be nil if no cache in
// this process ever requests BackendRedis/BackendFallback.
func NewManager(redisClient *redis.Client, enableFallback bool) *Manager {
	return &Manager{
		caches:         make(map[string]Cache),
		redisClient:    redisClient,
		enableFallback: enableFallback,
	}
}

// GetCache returns the named cache, creating it on first use per opts.
func (m *Manager) GetCache(name string, opts Options) Cache {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.caches[name]; ok {
		return c
	}

	var c Cache
	switch opts.Backend {
	case BackendRedis:
		c = NewRedisCache(m.redisClient, name, opts.MaxSize, opts.DefaultTTL, false)
	case BackendFallback:
		c = NewRedisCache(m.redisClient, name, opts.MaxSize, opts.DefaultTTL, true)
	default:
		mc := NewMemoryCache(opts.MaxSize, opts.DefaultTTL)
		if opts.CleanupInterval > 0 {
			mc.StartCleanup(opts.CleanupInterval)
		}
		c = mc
	}
	m.caches[name] = c
	return c
}

// GetAllStats returns every named cache's stats snapshot.
func (m *Manager) GetAllStats() map[string]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Stats, len(m.caches))
	for name, c := range m.caches {
		out[name] = c.GetStats()
	}
	return out
}

// GetAllMetrics returns every named cache's metrics.
func (m *Manager) GetAllMetrics() map[string]Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Metrics, len(m.caches))
	for name, c := range m.caches {
		out[name] = c.GetMetrics()
	}
	return out
}

// ClearAll clears every named cache's contents (not their metrics).
func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.caches {
		c.Clear()
	}
}

// CleanupAllExpired runs CleanupExpired on every named cache, returning the
// total number of entries reclaimed. No scheduled job calls it: the asynq
// cache-maintenance task only logs cache stats.
func (m *Manager) CleanupAllExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, c := range m.caches {
		total += c.CleanupExpired()
	}
	return total
}

// DestroyAll tears down every named cache, per §9's process-wide state
// bundle shutdown contract.
func (m *Manager) DestroyAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, c := range m.caches {
		c.Destroy()
		delete(m.caches, name)
	}
}
