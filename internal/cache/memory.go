package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache keeps recently fetched source content in memory so a run
// that re-crawls the same sources skips the network entirely. Entries
// expire after their TTL and are swept on the cleanup interval. Values
// are copied on both Set and Get; callers may mutate their slices
// without corrupting the cached copy.
type MemoryCache struct {
	entries *gocache.Cache
}

func NewMemoryCache(defaultTTL, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{entries: gocache.New(defaultTTL, cleanupInterval)}
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	val, found := c.entries.Get(key)
	if !found {
		return nil, false
	}
	return cloneBytes(val.([]byte)), true
}

func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	c.entries.Set(key, cloneBytes(value), ttl)
	return nil
}

func (c *MemoryCache) Delete(key string) error {
	c.entries.Delete(key)
	return nil
}

func (c *MemoryCache) Clear() error {
	c.entries.Flush()
	return nil
}

// Len reports the number of live entries, expired ones included until
// the next sweep
func (c *MemoryCache) Len() int {
	return c.entries.ItemCount()
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
