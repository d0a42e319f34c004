package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache is the byte-level caching interface backing the fetch cache
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives the cache key for a source URL
func Key(url string) string {
	hash := sha256.Sum256([]byte(url))
	return "newsloom:v1:" + hex.EncodeToString(hash[:])
}
