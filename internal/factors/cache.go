package factors

import (
	"fmt"
	"sync"

	"tick-adjust-lab/internal/domain"
)

// CacheStats reports cache usage for one batch run.
type CacheStats struct {
	Hits    int
	Misses  int
	Entries int
}

// Cache holds resolved factor series keyed by (security, start key, end key).
// It is read-through and never invalidated: the first Put for a key wins.
// A Cache belongs to one Store and lives for one batch run.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*domain.FactorSeries
	hits    int
	misses  int
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]*domain.FactorSeries),
	}
}

// cacheKey generates a unique key for a request.
func cacheKey(securityID string, start, end int) string {
	return fmt.Sprintf("%s|%d|%d", securityID, start, end)
}

// Get returns the cached series for a request and records a hit or miss.
func (c *Cache) Get(securityID string, start, end int) (*domain.FactorSeries, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.entries[cacheKey(securityID, start, end)]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return s, ok
}

// Put stores a series. Returns the series already cached under the key, if any.
func (c *Cache) Put(securityID string, start, end int, s *domain.FactorSeries) *domain.FactorSeries {
	key := cacheKey(securityID, start, end)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		return existing
	}
	c.entries[key] = s
	return s
}

// Stats returns usage counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Entries: len(c.entries)}
}

// Reset drops every entry and counter. Called when a batch run ends.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*domain.FactorSeries)
	c.hits, c.misses = 0, 0
}
