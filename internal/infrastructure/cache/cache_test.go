package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/docprint/internal/domain/printing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func sampleDocument(number string) *printing.Document {
	return &printing.Document{
		Type:      printing.DocTypeInvoice,
		Number:    number,
		IssueDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Issuer:    printing.Party{Name: "Acme"},
		Items: []printing.LineItem{{
			Description: "Widget",
			Quantity:    decimal.NewFromInt(2),
			UnitPrice:   decimal.NewFromInt(10),
		}},
	}
}

type countingSource struct {
	calls int
	doc   *printing.Document
	err   error
}

func (s *countingSource) Fetch(ctx context.Context, ref printing.DocumentRef) (*printing.Document, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.doc, nil
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, printing.DocumentRef) (*printing.Document, error) {
	return nil, errors.New("connection refused")
}

func (brokenCache) Set(context.Context, *printing.Document, time.Duration) error {
	return errors.New("connection refused")
}

func (brokenCache) Delete(context.Context, printing.DocumentRef) error { return nil }

func TestInMemoryDocumentCache(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryDocumentCache()
	now := time.Now()
	c.now = func() time.Time { return now }

	doc := sampleDocument("INV-1")
	got, err := c.Get(ctx, doc.Ref())
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Set(ctx, doc, time.Minute))
	got, err = c.Get(ctx, doc.Ref())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "INV-1", got.Number)

	// Stored entries are copies
	got.Items[0].Description = "changed"
	again, _ := c.Get(ctx, doc.Ref())
	assert.Equal(t, "Widget", again.Items[0].Description)

	now = now.Add(2 * time.Minute)
	got, err = c.Get(ctx, doc.Ref())
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, c.Len())
}

func TestInMemoryDocumentCache_DeleteAndZeroTTL(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryDocumentCache()
	doc := sampleDocument("INV-2")

	require.NoError(t, c.Set(ctx, doc, 0))
	assert.Equal(t, 0, c.Len())

	require.NoError(t, c.Set(ctx, doc, time.Minute))
	require.NoError(t, c.Delete(ctx, doc.Ref()))
	got, _ := c.Get(ctx, doc.Ref())
	assert.Nil(t, got)
}

func TestCachedDocumentSource_ServesHits(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{doc: sampleDocument("INV-3")}
	cached := NewCachedDocumentSource(src, NewInMemoryDocumentCache(), time.Minute, nil)
	ref := src.doc.Ref()

	first, err := cached.Fetch(ctx, ref)
	require.NoError(t, err)
	second, err := cached.Fetch(ctx, ref)
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	assert.Equal(t, first.Number, second.Number)

	require.NoError(t, cached.Invalidate(ctx, ref))
	_, err = cached.Fetch(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestCachedDocumentSource_DoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{err: printing.ErrDocumentUnavailable}
	cached := NewCachedDocumentSource(src, NewInMemoryDocumentCache(), time.Minute, nil)
	ref := printing.DocumentRef{Type: printing.DocTypeInvoice, Number: "MISSING"}

	_, err := cached.Fetch(ctx, ref)
	assert.ErrorIs(t, err, printing.ErrDocumentUnavailable)
	_, err = cached.Fetch(ctx, ref)
	assert.ErrorIs(t, err, printing.ErrDocumentUnavailable)
	assert.Equal(t, 2, src.calls)
}

func TestCachedDocumentSource_ZeroTTLBypassesCache(t *testing.T) {
	src := &countingSource{doc: sampleDocument("INV-4")}
	cached := NewCachedDocumentSource(src, NewInMemoryDocumentCache(), 0, nil)

	for i := 0; i < 3; i++ {
		_, err := cached.Fetch(context.Background(), src.doc.Ref())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, src.calls)
}

func TestCachedDocumentSource_CacheFailuresAreLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	src := &countingSource{doc: sampleDocument("INV-5")}
	cached := NewCachedDocumentSource(src, brokenCache{}, time.Minute, zap.New(core))

	doc, err := cached.Fetch(context.Background(), src.doc.Ref())
	require.NoError(t, err)
	assert.Equal(t, "INV-5", doc.Number)
	assert.Equal(t, 2, logs.FilterMessageSnippet("cache").Len())
}

func TestNewDocumentCache(t *testing.T) {
	t.Run("disabled uses memory", func(t *testing.T) {
		c, closeFn, err := NewDocumentCache(FactoryConfig{Enabled: false})
		require.NoError(t, err)
		assert.IsType(t, &InMemoryDocumentCache{}, c)
		assert.NoError(t, closeFn())
	})

	t.Run("unreachable redis falls back", func(t *testing.T) {
		c, _, err := NewDocumentCache(
			FactoryConfig{Enabled: true, Addr: "127.0.0.1:1"},
			WithInMemoryFallback(true),
			WithLogger(zap.NewNop()),
		)
		require.NoError(t, err)
		assert.IsType(t, &InMemoryDocumentCache{}, c)
	})

	t.Run("unreachable redis without fallback fails", func(t *testing.T) {
		_, _, err := NewDocumentCache(FactoryConfig{Enabled: true, Addr: "127.0.0.1:1"})
		assert.Error(t, err)
	})
}
