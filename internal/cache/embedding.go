// Package cache provides the embedding and answer caches for the pipeline.
package cache

import (
	"sync"

	"github.com/askdesk/askdesk/internal/pkg/hash"
)

// EmbeddingCache caches query embeddings by text hash with LRU eviction.
// Identical questions skip the embedding call entirely.
type EmbeddingCache struct {
	mu      sync.RWMutex
	cache   map[string][]float32
	order   []string // LRU order, oldest first
	maxSize int
}

// NewEmbeddingCache creates an embedding cache.
func NewEmbeddingCache(maxSize int) *EmbeddingCache {
	if maxSize <= 0 {
		maxSize = 10000
	}

	return &EmbeddingCache{
		cache:   make(map[string][]float32),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
	}
}

// Get retrieves an embedding from cache.
func (c *EmbeddingCache) Get(text string) ([]float32, bool) {
	key := hash.SHA256String(text)

	c.mu.RLock()
	emb, ok := c.cache[key]
	c.mu.RUnlock()

	return emb, ok
}

// Put stores an embedding, evicting the least recently added entry when full.
func (c *EmbeddingCache) Put(text string, embedding []float32) {
	key := hash.SHA256String(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cache[key]; exists {
		return
	}

	if len(c.cache) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.cache, oldest)
	}

	c.cache[key] = embedding
	c.order = append(c.order, key)
}

// Len returns the number of cached embeddings.
func (c *EmbeddingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
