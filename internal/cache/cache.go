package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yourorg/stoplist/internal/models"
)

// ============================================================================
// IN-MEMORY TTL CACHE
// ============================================================================
// Thread-safe key/value store with per-item expiration. Scraping a stop list
// takes seconds of browser time, so the API keeps recent results for a short
// TTL instead of launching Chrome on every request.
//
// Usage:
//   c := NewCache[[]models.Stop](30*time.Second, time.Minute)
//   c.Set(StopsKey("0100000A00", models.DirectionGo), stops)
//   if stops, found := c.Get(StopsKey("0100000A00", models.DirectionGo)); found {
//       return stops
//   }

type item[V any] struct {
	value      V
	expiration int64 // unix nanos, 0 never expires
}

// Cache is a thread-safe key/value store with TTL.
type Cache[V any] struct {
	items             map[string]item[V]
	mu                sync.RWMutex
	defaultExpiration time.Duration
	cleanupInterval   time.Duration
	stopCleanup       chan struct{}
	stopOnce          sync.Once
}

// NewCache creates a cache whose Set uses defaultExpiration. A background
// goroutine removes expired items every cleanupInterval until Stop.
func NewCache[V any](defaultExpiration, cleanupInterval time.Duration) *Cache[V] {
	c := &Cache[V]{
		items:             make(map[string]item[V]),
		defaultExpiration: defaultExpiration,
		cleanupInterval:   cleanupInterval,
		stopCleanup:       make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go c.startCleanupTimer()
	}

	return c
}

func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.defaultExpiration)
}

// SetWithTTL stores value for duration; duration <= 0 never expires.
func (c *Cache[V]) SetWithTTL(key string, value V, duration time.Duration) {
	var expiration int64
	if duration > 0 {
		expiration = time.Now().Add(duration).UnixNano()
	}

	c.mu.Lock()
	c.items[key] = item[V]{value: value, expiration: expiration}
	c.mu.Unlock()
}

// Get returns the value and true when key exists and has not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	it, found := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !found {
		return zero, false
	}
	if it.expiration > 0 && time.Now().UnixNano() > it.expiration {
		c.Delete(key)
		return zero, false
	}
	return it.value, true
}

func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// DeletePrefix removes every key starting with prefix and returns how many
// were removed, e.g. "stops:0100000A00:" drops both directions of a route.
func (c *Cache[V]) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
			count++
		}
	}
	return count
}

func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.items = make(map[string]item[V])
	c.mu.Unlock()
}

// Count includes items that expired but were not cleaned up yet.
func (c *Cache[V]) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

type CacheStats struct {
	TotalItems   int `json:"totalItems"`
	ExpiredItems int `json:"expiredItems"`
	ValidItems   int `json:"validItems"`
}

func (c *Cache[V]) GetStats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CacheStats{TotalItems: len(c.items)}

	now := time.Now().UnixNano()
	for _, it := range c.items {
		if it.expiration > 0 && now > it.expiration {
			stats.ExpiredItems++
		} else {
			stats.ValidItems++
		}
	}
	return stats
}

func (c *Cache[V]) startCleanupTimer() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *Cache[V]) deleteExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UnixNano()
	for key, it := range c.items {
		if it.expiration > 0 && now > it.expiration {
			delete(c.items, key)
		}
	}
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (c *Cache[V]) Stop() {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
}

// ============================================================================
// PRESETS
// ============================================================================

var (
	// StopsCache holds fetched stop lists keyed by StopsKey. Countdowns go
	// stale quickly, so its TTL is short.
	StopsCache *Cache[[]models.Stop]

	// RoutesCache holds the route catalog under RoutesKey.
	RoutesCache *Cache[[]models.RouteEntry]
)

const RoutesKey = "routes:all"

// routesTTLFactor stretches the catalog TTL; routes change far less often
// than countdowns.
const routesTTLFactor = 20

// StopsKey is the cache key for one (route, direction) stop list.
func StopsKey(routeID string, dir models.Direction) string {
	return fmt.Sprintf("stops:%s:%s", routeID, dir)
}

// InitCaches creates the presets. stopsTTL <= 0 falls back to 30 seconds.
func InitCaches(stopsTTL time.Duration) {
	if stopsTTL <= 0 {
		stopsTTL = 30 * time.Second
	}
	StopsCache = NewCache[[]models.Stop](stopsTTL, 2*stopsTTL)
	RoutesCache = NewCache[[]models.RouteEntry](routesTTLFactor*stopsTTL, 2*stopsTTL)
}

func StopCaches() {
	if StopsCache != nil {
		StopsCache.Stop()
	}
	if RoutesCache != nil {
		RoutesCache.Stop()
	}
}

func ClearAllCaches() {
	if StopsCache != nil {
		StopsCache.Clear()
	}
	if RoutesCache != nil {
		RoutesCache.Clear()
	}
}

func GetAllCacheStats() map[string]CacheStats {
	stats := make(map[string]CacheStats)
	if StopsCache != nil {
		stats["stops"] = StopsCache.GetStats()
	}
	if RoutesCache != nil {
		stats["routes"] = RoutesCache.GetStats()
	}
	return stats
}
