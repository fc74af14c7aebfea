package boundary

import (
	"sync"

	"github.com/WessleyAI/vidrag/engine/segment"
)

// Cache remembers detected hints for a transcript text within one run.
type Cache interface {
	Get(key string) ([]segment.Hint, bool)
	Put(key string, hints []segment.Hint)
	Len() int
}

// MemoryCache is an unbounded, goroutine-safe Cache.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string][]segment.Hint
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string][]segment.Hint)}
}

// Get returns a copy of the cached hints for key.
func (c *MemoryCache) Get(key string) ([]segment.Hint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.items[key]
	if !ok {
		return nil, false
	}
	return append([]segment.Hint(nil), h...), true
}

// Put stores a copy of hints under key.
func (c *MemoryCache) Put(key string, hints []segment.Hint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = append([]segment.Hint(nil), hints...)
}

// Len reports the number of cached transcripts.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
