package cache

import (
	"encoding/json"
	"time"

	"github.com/dmarchuk/newsloom/internal/model"
)

// FetchCache is the typed layer the fetcher talks to. It stores whole
// FetchResult snapshots so a cache hit carries the exact segmentation
// earlier provenance pointers were built against.
type FetchCache struct {
	backend Cache
	ttl     time.Duration
}

// NewFetchCache wraps a byte cache with FetchResult encoding
func NewFetchCache(backend Cache, ttl time.Duration) *FetchCache {
	return &FetchCache{backend: backend, ttl: ttl}
}

// Get returns the cached snapshot for a source URL, if fresh
func (c *FetchCache) Get(url string) (*model.FetchResult, bool) {
	data, found := c.backend.Get(Key(url))
	if !found {
		return nil, false
	}

	var result model.FetchResult
	if err := json.Unmarshal(data, &result); err != nil {
		_ = c.backend.Delete(Key(url))
		return nil, false
	}
	result.FromCache = true
	return &result, true
}

// Put stores a successful fetch snapshot. Failures are never cached;
// the scheduler's backoff handles those.
func (c *FetchCache) Put(url string, result *model.FetchResult) error {
	if !result.Success {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.backend.Set(Key(url), data, c.ttl)
}
