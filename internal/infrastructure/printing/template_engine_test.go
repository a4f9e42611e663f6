package printing

import (
	"context"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/erp/docprint/internal/domain/printing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		value    any
		currency string
		want     string
	}{
		{decimal.RequireFromString("1234.5"), "USD", "$1,234.50"},
		{decimal.RequireFromString("1234567.891"), "DOP", "RD$1,234,567.89"},
		{decimal.RequireFromString("-42"), "EUR", "-€42.00"},
		{0, "usd", "$0.00"},
		{"99.999", "XYZ", "XYZ 100.00"},
		{nil, "USD", "$0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatMoney(tt.value, tt.currency))
		})
	}
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "2.5", formatQuantity(decimal.RequireFromString("2.50")))
	assert.Equal(t, "3", formatQuantity(decimal.RequireFromString("3.00")))
	assert.Equal(t, "18%", formatPercent(18))
	assert.Equal(t, "3.142", formatDecimal(3.14159, 3))

	date := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-01-15", formatDate(date))
	assert.Equal(t, "2026-01-15", formatDate(&date))
	assert.Equal(t, "2026-01-15 09:30", formatDateTime(date))
	assert.Equal(t, "2026-01-15", formatDate("2026-01-15"))
	assert.Equal(t, "", formatDate((*time.Time)(nil)))

	assert.Equal(t, "Hello…", truncate("Hello world", 6, "…"))
	assert.Equal(t, "Hi", truncate("Hi", 6))
	assert.Equal(t, "Sales Order", titleCase("SALES ORDER"))
	assert.Equal(t, "-", defaultFunc("  ", "-"))
	assert.Equal(t, "x", defaultFunc("x", "-"))
}

func TestTemplateEngine_RenderDocument(t *testing.T) {
	store, err := NewTemplateStore(nil)
	require.NoError(t, err)
	engine := NewTemplateEngine(store)
	ctx := context.Background()

	t.Run("document template shows computed values", func(t *testing.T) {
		html, err := engine.RenderDocument(ctx, sampleDocument(), DefaultTheme(), printing.DefaultRenderOptions())
		require.NoError(t, err)

		assert.Contains(t, html, "Invoice")
		assert.Contains(t, html, "INV-2026-0042")
		assert.Contains(t, html, "2026-04-30")
		assert.Contains(t, html, "Paper A4 500 sheets")
		// 3 x 25.50 = 76.50 + 18% = 90.27
		assert.Contains(t, html, "$90.27")
		// Total: 76.50 + 50.00 net, 13.77 + 9.00 tax
		assert.Contains(t, html, "$149.27")
		assert.Contains(t, html, `data-strategy="template"`)
		assert.Contains(t, html, "--doc-primary:#1565c0")
	})

	t.Run("receipt paper uses the receipt template", func(t *testing.T) {
		opts := printing.DefaultRenderOptions()
		opts.PaperSize = printing.PaperSizeReceipt80MM

		html, err := engine.RenderDocument(ctx, sampleDocument(), DefaultTheme(), opts)
		require.NoError(t, err)
		assert.Contains(t, html, `class="doc receipt"`)
	})

	t.Run("empty document renders placeholder row", func(t *testing.T) {
		html, err := engine.RenderDocument(ctx, emptyDocument(), DefaultTheme(), printing.DefaultRenderOptions())
		require.NoError(t, err)
		assert.Contains(t, html, "No line items available")
		assert.Contains(t, html, "$0.00")
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := engine.RenderDocument(cctx, sampleDocument(), DefaultTheme(), printing.DefaultRenderOptions())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestTemplateEngine_RenderString(t *testing.T) {
	store, err := NewTemplateStore(nil)
	require.NoError(t, err)
	engine := NewTemplateEngine(store, WithTemplateFuncs(template.FuncMap{
		"shout": func(s string) string { return strings.ToUpper(s) + "!" },
	}))

	out, err := engine.RenderString("t", `{{shout .Name}} {{formatMoney .Amount "USD"}}`, map[string]any{
		"Name":   "total",
		"Amount": decimal.NewFromInt(5),
	})
	require.NoError(t, err)
	assert.Equal(t, "TOTAL! $5.00", out)

	_, err = engine.RenderString("t", "", nil)
	assert.ErrorIs(t, err, printing.ErrRenderingFailed)

	_, err = engine.RenderString("t", "{{", nil)
	assert.ErrorIs(t, err, printing.ErrRenderingFailed)
}

func TestTemplateStore_ExternalOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "document.html"),
		[]byte(`<div data-print-root>{{.Doc.Number}}</div>`), 0o644))

	store, err := NewTemplateStore(&TemplateStoreConfig{ExternalDir: dir})
	require.NoError(t, err)
	engine := NewTemplateEngine(store)

	html, err := engine.RenderDocument(context.Background(), sampleDocument(), DefaultTheme(), printing.DefaultRenderOptions())
	require.NoError(t, err)
	assert.Equal(t, `<div data-print-root>INV-2026-0042</div>`, html)

	receipt, err := store.Content(TemplateReceipt)
	require.NoError(t, err)
	assert.Contains(t, receipt, "receipt", "missing files fall back to embedded templates")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "document.html"),
		[]byte(`<div data-print-root>v2 {{.Doc.Number}}</div>`), 0o644))
	require.NoError(t, engine.Reload())
	html, err = engine.RenderDocument(context.Background(), sampleDocument(), DefaultTheme(), printing.DefaultRenderOptions())
	require.NoError(t, err)
	assert.Contains(t, html, "v2")

	_, err = store.Content("unknown")
	assert.Error(t, err)
}

func TestTemplateNameFor(t *testing.T) {
	assert.Equal(t, TemplateReceipt, TemplateNameFor(printing.PaperSizeReceipt58MM))
	assert.Equal(t, TemplateDocument, TemplateNameFor(printing.PaperSizeA4))
	assert.Equal(t, TemplateDocument, TemplateNameFor(printing.PaperSizeContinuous241))
}
