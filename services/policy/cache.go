package policy

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/upb/card-control-plane/models"
)

type cacheEntry struct {
	orgID      uuid.UUID
	policies   []*models.Policy
	insertedAt time.Time
	element    *list.Element
}

func (e *cacheEntry) isExpired(ttl time.Duration) bool {
	return time.Since(e.insertedAt) > ttl
}

// Generation identifies the invalidation state of one organization's entry.
// A list read from the database may only be cached under the generation
// observed before the read.
type Generation struct {
	cleared uint64
	org     uint64
}

// PolicyCache is an LRU cache with TTL holding each organization's active
// policies in evaluation order. Safe for concurrent use.
type PolicyCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*cacheEntry
	// generations counts invalidations per organization; cleared counts
	// Clear calls. Both only grow.
	generations map[uuid.UUID]uint64
	cleared     uint64
	lruList     *list.List
	maxSize     int
	ttl         time.Duration
	hits        uint64
	misses      uint64
}

// NewPolicyCache creates a new PolicyCache with specified max size and TTL
func NewPolicyCache(maxSize int, ttl time.Duration) *PolicyCache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &PolicyCache{
		entries:     make(map[uuid.UUID]*cacheEntry),
		generations: make(map[uuid.UUID]uint64),
		lruList:     list.New(),
		maxSize:     maxSize,
		ttl:         ttl,
	}
}

// Get returns the cached policies for an organization. The boolean is false
// on a miss or an expired entry; an organization with no policies is a hit
// with an empty slice.
func (c *PolicyCache) Get(orgID uuid.UUID) ([]*models.Policy, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[orgID]
	if !exists || entry.isExpired(c.ttl) {
		c.misses++
		if exists {
			c.removeEntry(orgID)
		}
		return nil, false
	}

	c.lruList.MoveToFront(entry.element)
	c.hits++

	return entry.policies, true
}

// Generation returns the organization's current generation
func (c *PolicyCache) Generation(orgID uuid.UUID) Generation {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Generation{cleared: c.cleared, org: c.generations[orgID]}
}

// SetIfCurrent stores policies only when no Invalidate or Clear happened
// since gen was taken. It reports whether the entry was stored.
func (c *PolicyCache) SetIfCurrent(orgID uuid.UUID, gen Generation, policies []*models.Policy) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != (Generation{cleared: c.cleared, org: c.generations[orgID]}) {
		return false
	}
	c.set(orgID, policies)
	return true
}

// Set stores the policies of an organization
func (c *PolicyCache) Set(orgID uuid.UUID, policies []*models.Policy) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.set(orgID, policies)
}

// set must be called with the lock held
func (c *PolicyCache) set(orgID uuid.UUID, policies []*models.Policy) {
	if policies == nil {
		policies = []*models.Policy{}
	}

	if entry, exists := c.entries[orgID]; exists {
		entry.policies = policies
		entry.insertedAt = time.Now()
		c.lruList.MoveToFront(entry.element)
		return
	}

	if c.lruList.Len() >= c.maxSize {
		c.evictLRU()
	}

	entry := &cacheEntry{
		orgID:      orgID,
		policies:   policies,
		insertedAt: time.Now(),
	}
	entry.element = c.lruList.PushFront(orgID)
	c.entries[orgID] = entry
}

// Invalidate drops an organization's entry and advances its generation
func (c *PolicyCache) Invalidate(orgID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generations[orgID]++
	c.removeEntry(orgID)
}

// Clear removes all entries from the cache
func (c *PolicyCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleared++
	c.entries = make(map[uuid.UUID]*cacheEntry)
	c.lruList.Init()
}

// CacheStats represents cache statistics
type CacheStats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Stats returns cache statistics
func (c *PolicyCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var hitRate float64
	if total := c.hits + c.misses; total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return CacheStats{
		Size:    c.lruList.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: hitRate,
	}
}

// CleanupExpired removes all expired entries and reports how many went
func (c *PolicyCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for orgID, entry := range c.entries {
		if entry.isExpired(c.ttl) {
			c.removeEntry(orgID)
			removed++
		}
	}
	return removed
}

// StartCleanupWorker sweeps expired entries every interval until ctx is done.
func (c *PolicyCache) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CleanupExpired()
		case <-ctx.Done():
			return
		}
	}
}

// removeEntry must be called with the lock held
func (c *PolicyCache) removeEntry(orgID uuid.UUID) {
	if entry, exists := c.entries[orgID]; exists {
		c.lruList.Remove(entry.element)
		delete(c.entries, orgID)
	}
}

// evictLRU must be called with the lock held
func (c *PolicyCache) evictLRU() {
	if back := c.lruList.Back(); back != nil {
		c.removeEntry(back.Value.(uuid.UUID))
	}
}
