package cache

import "time"

// memorySweepInterval is how often the hot layer evicts expired entries.
const memorySweepInterval = 10 * time.Minute

// LayeredCache fronts the disk cache with an in-memory layer. Reads
// check memory first and promote disk hits; writes go through to both
// layers so a restart still finds the entry on disk.
type LayeredCache struct {
	hot  Cache
	cold Cache
}

func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		hot:  NewMemoryCache(memoryTTL, memorySweepInterval),
		cold: NewDiskCache(diskDir, diskTTL),
	}
}

func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.hot.Get(key); found {
		return val, true
	}

	val, found := c.cold.Get(key)
	if !found {
		return nil, false
	}

	// Promote so the next read stays off disk.
	_ = c.hot.Set(key, val, 0)
	return val, true
}

func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.cold.Set(key, value, ttl); err != nil {
		return err
	}
	return c.hot.Set(key, value, ttl)
}

func (c *LayeredCache) Delete(key string) error {
	_ = c.hot.Delete(key)
	return c.cold.Delete(key)
}

func (c *LayeredCache) Clear() error {
	_ = c.hot.Clear()
	return c.cold.Clear()
}
