package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erp/docprint/internal/domain/printing"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces document keys in Redis
const DefaultKeyPrefix = "docprint:document:"

// RedisDocumentCache implements DocumentCache on Redis so that every
// instance behind a load balancer shares fetched documents.
type RedisDocumentCache struct {
	client    redis.Cmdable
	keyPrefix string
}

// NewRedisDocumentCache creates a cache on an existing client
func NewRedisDocumentCache(client redis.Cmdable, keyPrefix string) *RedisDocumentCache {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisDocumentCache{client: client, keyPrefix: keyPrefix}
}

// Get returns the cached document, or nil on a miss
func (c *RedisDocumentCache) Get(ctx context.Context, ref printing.DocumentRef) (*printing.Document, error) {
	data, err := c.client.Get(ctx, cacheKey(c.keyPrefix, ref)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached document: %w", err)
	}

	var doc printing.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		// A payload written by an incompatible version is treated as a miss.
		_ = c.client.Del(ctx, cacheKey(c.keyPrefix, ref)).Err()
		return nil, nil
	}
	return &doc, nil
}

// Set stores doc with ttl
func (c *RedisDocumentCache) Set(ctx context.Context, doc *printing.Document, ttl time.Duration) error {
	if doc == nil || ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(c.keyPrefix, doc.Ref()), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache document: %w", err)
	}
	return nil
}

// Delete removes the entry of ref
func (c *RedisDocumentCache) Delete(ctx context.Context, ref printing.DocumentRef) error {
	if err := c.client.Del(ctx, cacheKey(c.keyPrefix, ref)).Err(); err != nil {
		return fmt.Errorf("failed to delete cached document: %w", err)
	}
	return nil
}

var _ DocumentCache = (*RedisDocumentCache)(nil)
