package encounter

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ProcessedCache remembers which encounters have already produced a
// completion event, keyed by encounter id with the detection time as value.
// The mutex makes check-and-insert atomic with respect to Purge.
type ProcessedCache struct {
	mu    sync.Mutex
	store *gocache.Cache
	now   func() time.Time
}

func NewProcessedCache() *ProcessedCache {
	return &ProcessedCache{
		store: gocache.New(gocache.NoExpiration, 0),
		now:   time.Now,
	}
}

// TryAdd records encounterID as processed now. It returns false if the
// encounter was already present.
func (c *ProcessedCache) TryAdd(encounterID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Add(encounterID, c.now().UTC(), gocache.NoExpiration) == nil
}

// Remove forgets encounterID so a later poll can emit it again.
func (c *ProcessedCache) Remove(encounterID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Delete(encounterID)
}

func (c *ProcessedCache) IsProcessed(encounterID string) bool {
	_, ok := c.DetectedAt(encounterID)
	return ok
}

// DetectedAt returns when encounterID was first seen finished.
func (c *ProcessedCache) DetectedAt(encounterID string) (time.Time, bool) {
	v, ok := c.store.Get(encounterID)
	if !ok {
		return time.Time{}, false
	}
	return v.(time.Time), true
}

func (c *ProcessedCache) Count() int {
	return c.store.ItemCount()
}

// Purge removes entries detected strictly before now-maxAge and returns how
// many were removed.
func (c *ProcessedCache) Purge(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := c.now().UTC().Add(-maxAge)
	removed := 0
	for id, item := range c.store.Items() {
		if item.Object.(time.Time).Before(cutoff) {
			c.store.Delete(id)
			removed++
		}
	}
	return removed
}

func (c *ProcessedCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Flush()
}
