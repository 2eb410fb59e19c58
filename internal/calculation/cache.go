package calculation

import (
	"fmt"
	"sync"

	"cloud.google.com/go/civil"
	"github.com/rgehrsitz/kepay/internal/domain"
)

// CacheKey identifies one cached resolution
type CacheKey struct {
	Group domain.GroupKey
	Date  civil.Date
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s@%s", k.Group, k.Date)
}

// ResolutionCache stores resolutions that did not involve an override.
// Put carries the generation observed before resolving; implementations drop
// the entry if an invalidation happened in between, so a resolution computed
// from pre-write catalog state is never cached after the write.
type ResolutionCache interface {
	Get(key CacheKey) (Resolution, bool)
	Put(key CacheKey, res Resolution, generation uint64)
	Generation() uint64
	InvalidateGroup(group domain.GroupKey)
	Purge()
	Len() int
}

// MemoryCache is an unbounded map-backed ResolutionCache. The key space is
// small in practice: one entry per (group, payroll date).
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[CacheKey]Resolution
	generation uint64
}

// NewMemoryCache creates an empty cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[CacheKey]Resolution)}
}

func (c *MemoryCache) Get(key CacheKey) (Resolution, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res, ok := c.entries[key]
	return res, ok
}

func (c *MemoryCache) Put(key CacheKey, res Resolution, generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return
	}
	c.entries[key] = res
}

func (c *MemoryCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

func (c *MemoryCache) InvalidateGroup(group domain.GroupKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	for k := range c.entries {
		if k.Group == group {
			delete(c.entries, k)
		}
	}
}

func (c *MemoryCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.entries = make(map[CacheKey]Resolution)
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
