package positions

import (
	"sync"

	"NavLedger/internal/math"
)

// Cache holds the latest reported base-token value of each external app
// position, per pool. Readings are absolute snapshots, so applying one is a
// plain overwrite.
type Cache struct {
	mu     sync.RWMutex
	values map[string]map[string]int64 // pool -> app -> value in base units
}

func NewCache() *Cache {
	return &Cache{values: make(map[string]map[string]int64)}
}

// Set records the latest reading for (pool, app).
func (c *Cache) Set(pool, app string, value int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	apps, ok := c.values[pool]
	if !ok {
		apps = make(map[string]int64)
		c.values[pool] = apps
	}
	apps[app] = value
}

// Total sums all app positions of a pool with overflow checking.
func (c *Cache) Total(pool string) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total int64
	for _, v := range c.values[pool] {
		var err error
		total, err = math.AddChecked(total, v)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// Snapshot returns a copy of a pool's positions for persistence and queries.
func (c *Cache) Snapshot(pool string) map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int64, len(c.values[pool]))
	for app, v := range c.values[pool] {
		out[app] = v
	}
	return out
}

// Restore replaces a pool's positions wholesale, used on snapshot recovery.
func (c *Cache) Restore(pool string, positions map[string]int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	apps := make(map[string]int64, len(positions))
	for app, v := range positions {
		apps[app] = v
	}
	c.values[pool] = apps
}
