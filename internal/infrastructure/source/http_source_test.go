package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/docprint/internal/domain/printing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const invoiceJSON = `{
	"type": "INVOICE",
	"number": "INV-001",
	"issue_date": "2026-03-01T00:00:00Z",
	"issuer": {"name": "Acme"},
	"counterparty": {"name": "Globex"},
	"items": [{"description": "Widget", "quantity": "2", "unit_price": "10.50", "discount": "0", "tax_rate": "20"}]
}`

var invoiceRef = printing.DocumentRef{Type: printing.DocTypeInvoice, Number: "INV-001"}

func newTestSource(t *testing.T, handler http.HandlerFunc) *HTTPDocumentSource {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	src, err := NewHTTPDocumentSource(HTTPSourceConfig{BaseURL: server.URL, Timeout: time.Second, APIKey: "secret"})
	require.NoError(t, err)
	return src
}

func TestNewHTTPDocumentSource_InvalidURL(t *testing.T) {
	_, err := NewHTTPDocumentSource(HTTPSourceConfig{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestFetch_Envelope(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/documents/INVOICE/INV-001", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true, "data": ` + invoiceJSON + `}`))
	})

	doc, err := src.Fetch(context.Background(), invoiceRef)
	require.NoError(t, err)
	assert.Equal(t, "INV-001", doc.Number)
	assert.Equal(t, "Globex", doc.Counterparty.Name)
	assert.Equal(t, "25.2", doc.Totals().Total.String())
}

func TestFetch_BareDocument(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(invoiceJSON))
	})

	doc, err := src.Fetch(context.Background(), invoiceRef)
	require.NoError(t, err)
	assert.Len(t, doc.Items, 1)
}

func TestFetch_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"not found", http.StatusNotFound, `{"success":false}`, printing.ErrDocumentUnavailable},
		{"server error", http.StatusBadGateway, ``, printing.ErrDocumentUnavailable},
		{"error envelope", http.StatusOK, `{"success":false,"error":{"code":"NOT_FOUND","message":"gone"}}`, printing.ErrDocumentUnavailable},
		{"malformed", http.StatusOK, `{"type":`, printing.ErrInvalidDocument},
		{"wrong document", http.StatusOK, `{"type":"INVOICE","number":"OTHER","issue_date":"2026-03-01T00:00:00Z"}`, printing.ErrInvalidDocument},
		{"invalid document", http.StatusOK, `{"type":"INVOICE","number":"INV-001"}`, printing.ErrInvalidDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := src.Fetch(context.Background(), invoiceRef)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFetch_InvalidRef(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := src.Fetch(context.Background(), printing.DocumentRef{Type: "BOGUS", Number: "1"})
	assert.ErrorIs(t, err, printing.ErrDocumentUnavailable)
}

func TestFetch_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	src, err := NewHTTPDocumentSource(HTTPSourceConfig{BaseURL: server.URL})
	require.NoError(t, err)
	server.Close()

	_, err = src.Fetch(context.Background(), invoiceRef)
	assert.ErrorIs(t, err, printing.ErrDocumentUnavailable)
}

func TestFetch_ContextCancelled(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Fetch(ctx, invoiceRef)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, printing.ErrCodeSessionCancelled, printing.AsPrintError(err, printing.ErrCodeInternal).Code)
}
