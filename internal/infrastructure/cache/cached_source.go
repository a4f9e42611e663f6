package cache

import (
	"context"
	"time"

	"github.com/erp/docprint/internal/domain/printing"
	"go.uber.org/zap"
)

// CachedDocumentSource serves documents from a DocumentCache and falls
// through to the wrapped source on a miss.
// Cache failures never fail a fetch.
type CachedDocumentSource struct {
	source printing.DocumentSource
	cache  DocumentCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedDocumentSource wraps source with cache
func NewCachedDocumentSource(source printing.DocumentSource, cache DocumentCache, ttl time.Duration, logger *zap.Logger) *CachedDocumentSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedDocumentSource{
		source: source,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

// Fetch implements printing.DocumentSource
func (s *CachedDocumentSource) Fetch(ctx context.Context, ref printing.DocumentRef) (*printing.Document, error) {
	if s.ttl > 0 {
		doc, err := s.cache.Get(ctx, ref)
		if err != nil {
			s.logger.Warn("Document cache read failed",
				zap.String("ref", ref.String()),
				zap.Error(err))
		} else if doc != nil {
			clone := doc.Clone()
			return &clone, nil
		}
	}

	doc, err := s.source.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}

	if s.ttl > 0 {
		if err := s.cache.Set(ctx, doc, s.ttl); err != nil {
			s.logger.Warn("Document cache write failed",
				zap.String("ref", ref.String()),
				zap.Error(err))
		}
	}
	return doc, nil
}

// Invalidate drops the cached copy of ref
func (s *CachedDocumentSource) Invalidate(ctx context.Context, ref printing.DocumentRef) error {
	return s.cache.Delete(ctx, ref)
}

var _ printing.DocumentSource = (*CachedDocumentSource)(nil)
