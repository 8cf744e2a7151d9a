package media

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultURLTTL is how long a signed URL is served from cache.
	DefaultURLTTL = 30 * time.Minute
	// SignedURLExpiry is the lifetime requested for new signed URLs.
	SignedURLExpiry = time.Hour

	defaultURLCacheSize = 1024
)

// URLCache caches resolved display URLs per bucket and path. One cache is
// owned by the session that created it.
type URLCache struct {
	lru *expirable.LRU[string, string]
}

// NewURLCache creates a cache holding at most size entries for ttl each.
func NewURLCache(size int, ttl time.Duration) *URLCache {
	if size <= 0 {
		size = defaultURLCacheSize
	}
	return &URLCache{lru: expirable.NewLRU[string, string](size, nil, ttl)}
}

func cacheKey(bucket, path string) string { return bucket + ":" + path }

func (c *URLCache) Get(bucket, path string) (string, bool) {
	return c.lru.Get(cacheKey(bucket, path))
}

func (c *URLCache) Put(bucket, path, url string) {
	c.lru.Add(cacheKey(bucket, path), url)
}

// Invalidate drops the cached URLs of paths.
func (c *URLCache) Invalidate(bucket string, paths ...string) {
	for _, p := range paths {
		c.lru.Remove(cacheKey(bucket, p))
	}
}

// Len returns the number of live entries.
func (c *URLCache) Len() int { return c.lru.Len() }
