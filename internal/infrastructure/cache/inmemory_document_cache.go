package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/docprint/internal/domain/printing"
)

// InMemoryDocumentCache is a process-local DocumentCache.
// It is used when Redis is disabled or unreachable.
type InMemoryDocumentCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	doc       printing.Document
	expiresAt time.Time
}

// NewInMemoryDocumentCache creates an empty in-memory cache
func NewInMemoryDocumentCache() *InMemoryDocumentCache {
	return &InMemoryDocumentCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns a copy of the cached document
func (c *InMemoryDocumentCache) Get(ctx context.Context, ref printing.DocumentRef) (*printing.Document, error) {
	key := cacheKey("", ref)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		if e, ok := c.entries[key]; ok && e.expiresAt.Equal(entry.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, nil
	}
	doc := entry.doc.Clone()
	return &doc, nil
}

// Set stores a copy of doc
func (c *InMemoryDocumentCache) Set(ctx context.Context, doc *printing.Document, ttl time.Duration) error {
	if doc == nil || ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey("", doc.Ref())] = memoryEntry{doc: doc.Clone(), expiresAt: c.now().Add(ttl)}
	return nil
}

// Delete removes the entry of ref
func (c *InMemoryDocumentCache) Delete(ctx context.Context, ref printing.DocumentRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey("", ref))
	return nil
}

// Len returns the number of stored entries, expired ones included
func (c *InMemoryDocumentCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ DocumentCache = (*InMemoryDocumentCache)(nil)
