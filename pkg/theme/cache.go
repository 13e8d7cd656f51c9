package theme

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCacheCapacity is the default maximum number of cached variable sets.
const DefaultCacheCapacity = 50

// evictionFraction is the share of entries removed in one eviction pass.
// Batch eviction avoids thrashing when many distinct descriptors churn
// through a full cache.
const evictionFraction = 4 // one quarter

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	// Hits is the number of resolutions served from the cache.
	Hits uint64 `json:"hits"`

	// Misses is the number of resolutions that invoked the resolver.
	Misses uint64 `json:"misses"`

	// Evictions is the total number of entries evicted.
	Evictions uint64 `json:"evictions"`

	// Size is the current number of entries.
	Size int `json:"size"`

	// Capacity is the configured maximum number of entries.
	Capacity int `json:"capacity"`
}

// Efficiency returns hits/(hits+misses), or 0 when no resolutions happened.
func (s CacheStats) Efficiency() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type cacheEntry struct {
	key            string
	variables      VariableSet
	lastAccessedAt time.Time
	accessCount    uint64
}

// Cache memoizes resolved variable sets per descriptor. Eviction is
// LRU-with-frequency: when an insert pushes the cache over capacity, entries
// are ranked by (accessCount, lastAccessedAt) ascending and the lowest-ranked
// quarter is removed in one pass. The entry for the active descriptor is
// never evicted.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*cacheEntry
	capacity  int
	active    string
	hasActive bool
	hits      uint64
	misses    uint64
	evictions uint64
	logger    zerolog.Logger

	// now is replaceable for deterministic eviction tests.
	now func() time.Time

	onEvict func(keys []string)
}

// NewCache creates a cache with the given capacity. Capacity <= 0 selects
// DefaultCacheCapacity.
func NewCache(capacity int, logger zerolog.Logger) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cache{
		entries:  make(map[string]*cacheEntry),
		capacity: capacity,
		logger:   logger.With().Str("component", "variable-cache").Logger(),
		now:      time.Now,
	}
}

// SetEvictionHook registers a callback invoked with the keys removed by an
// eviction pass. The hook runs on its own goroutine, outside the cache lock.
func (c *Cache) SetEvictionHook(fn func(keys []string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

// SetActive marks the descriptor whose entry must survive eviction. The
// orchestrator calls this when a transition makes a descriptor current.
func (c *Cache) SetActive(desc Descriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = desc.Key()
	c.hasActive = true
}

// Resolve returns the variable set for the descriptor, consulting the cache
// first. On a hit the entry's access stats are updated and a copy of the
// cached set is returned. On a miss the resolver runs; its result is stored
// and a copy returned. Resolver errors propagate uncached: the cache is never
// left holding a partial entry for the key.
func (c *Cache) Resolve(ctx context.Context, desc Descriptor, resolver Resolver) (VariableSet, error) {
	key := desc.Key()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.accessCount++
		e.lastAccessedAt = c.now()
		c.hits++
		vars := e.variables.Clone()
		c.mu.Unlock()
		return vars, nil
	}
	c.misses++
	c.mu.Unlock()

	// Resolver runs outside the lock; it may be slow.
	vars, err := resolver.ResolveVariables(ctx, desc)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// A concurrent resolve for the same key may have stored first; the sets
	// are equal by contract, so either copy serves.
	if _, ok := c.entries[key]; !ok {
		c.entries[key] = &cacheEntry{
			key:            key,
			variables:      vars.Clone(),
			lastAccessedAt: c.now(),
			accessCount:    1,
		}
		c.evictLocked()
	}
	return vars.Clone(), nil
}

// evictLocked removes the lowest-ranked quarter of entries when the cache is
// over capacity. Caller holds c.mu.
func (c *Cache) evictLocked() {
	if len(c.entries) <= c.capacity {
		return
	}

	ranked := make([]*cacheEntry, 0, len(c.entries))
	for _, e := range c.entries {
		if c.hasActive && e.key == c.active {
			continue
		}
		ranked = append(ranked, e)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].accessCount != ranked[j].accessCount {
			return ranked[i].accessCount < ranked[j].accessCount
		}
		return ranked[i].lastAccessedAt.Before(ranked[j].lastAccessedAt)
	})

	remove := len(c.entries) / evictionFraction
	if remove < 1 {
		remove = 1
	}
	if over := len(c.entries) - c.capacity; over > remove {
		remove = over
	}
	if remove > len(ranked) {
		remove = len(ranked)
	}

	evicted := make([]string, 0, remove)
	for _, e := range ranked[:remove] {
		delete(c.entries, e.key)
		c.evictions++
		evicted = append(evicted, e.key)
		c.logger.Debug().Str("key", e.key).Uint64("access_count", e.accessCount).Msg("evicted variable set")
	}
	if c.onEvict != nil && len(evicted) > 0 {
		go c.onEvict(evicted)
	}
}

// Invalidate removes the entry for a descriptor. Used when the underlying
// theme definition changes.
func (c *Cache) Invalidate(desc Descriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, desc.Key())
}

// InvalidateTheme removes every entry belonging to a theme, across all modes
// and contexts. Returns the number of entries removed.
func (c *Cache) InvalidateTheme(themeID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := themeID + "|"
	removed := 0
	for key := range c.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Info().Str("theme", themeID).Int("removed", removed).Msg("invalidated cached theme")
	}
	return removed
}

// Contains reports whether the descriptor currently has a cached entry.
func (c *Cache) Contains(desc Descriptor) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[desc.Key()]
	return ok
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.entries),
		Capacity:  c.capacity,
	}
}
