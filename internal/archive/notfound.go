package archive

import "sync"

// NotFoundCache remembers URLs the server reported as permanently missing,
// so they are never requested again for the life of the process.
type NotFoundCache struct {
	mu   sync.RWMutex
	urls map[string]struct{}
}

// NewNotFoundCache returns an empty cache.
func NewNotFoundCache() *NotFoundCache {
	return &NotFoundCache{urls: make(map[string]struct{})}
}

// Add records url as permanently missing.
func (c *NotFoundCache) Add(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.urls[url] = struct{}{}
}

// Contains reports whether url was recorded as permanently missing.
func (c *NotFoundCache) Contains(url string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.urls[url]
	return ok
}

// Len is the number of memoised URLs.
func (c *NotFoundCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.urls)
}
