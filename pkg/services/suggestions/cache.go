// Package suggestions fetches AI suggestions for authoring questions in the
// background and caches the latest result per question.
package suggestions

import (
	"context"
	"sync"
)

// Cache holds the latest suggestion per question id for one authoring session.
// Writes are last-writer-wins.
type Cache interface {
	Get(ctx context.Context, questionID string) (string, bool)
	Put(ctx context.Context, questionID, text string)
	Snapshot(ctx context.Context) map[string]string
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]string)}
}

func (c *MemoryCache) Get(_ context.Context, questionID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	text, ok := c.entries[questionID]
	return text, ok
}

func (c *MemoryCache) Put(_ context.Context, questionID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[questionID] = text
}

// Snapshot returns a copy of every cached suggestion.
func (c *MemoryCache) Snapshot(_ context.Context) map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

var _ Cache = (*MemoryCache)(nil)
