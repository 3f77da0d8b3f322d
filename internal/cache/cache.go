// Package cache implements the bounded in-memory cache of the most recent
// normalized records. It serves initial-state snapshots for newly connected
// sessions and cold-start fallback queries, and deduplicates records that
// are re-fetched across poll cycles.
package cache

import (
	"sort"
	"sync"

	"github.com/soclens/soclens/internal/model"
)

// DefaultCapacity is the cache bound when none is configured.
const DefaultCapacity = 100

// Cache keeps the K most recent entities by event time, newest first.
// Eviction happens only by capacity, never by age, so a burst of old but
// never-seen records still populates an under-capacity cache.
type Cache struct {
	mu       sync.RWMutex
	capacity int
	byKey    map[string]model.Entity
	ordered  []model.Entity // newest first
}

// New creates a Cache bounded to capacity entries. A non-positive capacity
// falls back to DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		byKey:    make(map[string]model.Entity),
	}
}

// InsertBatch adds entities not already present by key, then trims the
// combined collection to the newest capacity entries by event time.
// Inserting the same batch twice leaves the cache unchanged.
func (c *Cache) InsertBatch(entities []model.Entity) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, e := range entities {
		if _, ok := c.byKey[e.Key()]; ok {
			continue
		}
		c.byKey[e.Key()] = e
		c.ordered = append(c.ordered, e)
		added++
	}
	if added > 0 {
		c.trim()
	}
	return added
}

// Upsert adds or replaces entities by key, then trims. Used by the agent
// pipeline, where a record with an advanced keepalive supersedes the cached
// entry for the same agent.
func (c *Cache) Upsert(entities []model.Entity) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := 0
	for _, e := range entities {
		if prev, ok := c.byKey[e.Key()]; ok {
			for i, o := range c.ordered {
				if o.Key() == prev.Key() {
					c.ordered[i] = e
					break
				}
			}
			c.byKey[e.Key()] = e
			changed++
			continue
		}
		c.byKey[e.Key()] = e
		c.ordered = append(c.ordered, e)
		changed++
	}
	if changed > 0 {
		c.trim()
	}
	return changed
}

// trim re-sorts newest-first and drops everything past capacity.
// Caller must hold the lock.
func (c *Cache) trim() {
	sort.SliceStable(c.ordered, func(i, j int) bool {
		return c.ordered[i].EventTime().After(c.ordered[j].EventTime())
	})
	if len(c.ordered) > c.capacity {
		for _, evicted := range c.ordered[c.capacity:] {
			delete(c.byKey, evicted.Key())
		}
		c.ordered = c.ordered[:c.capacity]
	}
}

// Snapshot returns a copy of the current contents, newest first.
func (c *Cache) Snapshot() []model.Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.Entity, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Get returns the cached entity for a key, if any.
func (c *Cache) Get(key string) (model.Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byKey[key]
	return e, ok
}

// Contains reports whether an entity with the given key is cached.
func (c *Cache) Contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.byKey[key]
	return ok
}

// Len returns the current number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ordered)
}

// Capacity returns the configured bound.
func (c *Cache) Capacity() int {
	return c.capacity
}
