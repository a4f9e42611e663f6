// Package cache caches upstream document payloads.
package cache

import (
	"context"
	"time"

	"github.com/erp/docprint/internal/domain/printing"
)

// DocumentCache stores fetched documents for a bounded time
type DocumentCache interface {
	// Get returns the cached document, or nil without error on a miss
	Get(ctx context.Context, ref printing.DocumentRef) (*printing.Document, error)
	Set(ctx context.Context, doc *printing.Document, ttl time.Duration) error
	Delete(ctx context.Context, ref printing.DocumentRef) error
}

// cacheKey returns the storage key of ref
func cacheKey(prefix string, ref printing.DocumentRef) string {
	return prefix + ref.Type.String() + ":" + ref.Number
}
