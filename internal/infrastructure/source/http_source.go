// Package source loads document payloads from the upstream ERP backend.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/erp/docprint/internal/domain/printing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// maxPayloadBytes bounds a single document response
const maxPayloadBytes = 8 << 20

// HTTPSourceConfig holds the upstream API settings
type HTTPSourceConfig struct {
	BaseURL string
	Timeout time.Duration
	APIKey  string
	Logger  *zap.Logger
}

// HTTPDocumentSource fetches documents from
// GET {base}/api/v1/documents/{type}/{number}.
type HTTPDocumentSource struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// envelope mirrors the upstream response wrapper
type envelope struct {
	Success bool               `json:"success"`
	Data    *printing.Document `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewHTTPDocumentSource creates a source for the configured backend
func NewHTTPDocumentSource(cfg HTTPSourceConfig) (*HTTPDocumentSource, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid document source base url %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HTTPDocumentSource{
		baseURL: base.String(),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}, nil
}

// Fetch implements printing.DocumentSource
func (s *HTTPDocumentSource) Fetch(ctx context.Context, ref printing.DocumentRef) (*printing.Document, error) {
	if err := ref.Validate(); err != nil {
		return nil, printing.NewPrintError(printing.ErrCodeDocumentUnavailable, err.Error(), err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/documents/%s/%s",
		s.baseURL, url.PathEscape(ref.Type.String()), url.PathEscape(ref.Number))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, printing.NewPrintError(printing.ErrCodeDocumentUnavailable,
			"document source unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, printing.NewPrintError(printing.ErrCodeDocumentUnavailable,
			"failed to read document response", err)
	}

	s.logger.Debug("Fetched document",
		zap.String("ref", ref.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, printing.NewPrintError(printing.ErrCodeDocumentUnavailable,
			"document "+ref.String()+" not found", nil)
	case resp.StatusCode >= 300:
		return nil, printing.NewPrintError(printing.ErrCodeDocumentUnavailable,
			fmt.Sprintf("document source returned status %d", resp.StatusCode), nil)
	}

	doc, err := decodeDocument(body)
	if err != nil {
		return nil, err
	}
	if doc.Ref() != ref {
		return nil, printing.NewPrintError(printing.ErrCodeInvalidDocument,
			"document source returned "+doc.Ref().String()+" for "+ref.String(), nil)
	}
	if err := doc.Validate(); err != nil {
		return nil, printing.NewPrintError(printing.ErrCodeInvalidDocument, err.Error(), err)
	}
	return doc, nil
}

// decodeDocument accepts the wrapped response and a bare document
func decodeDocument(body []byte) (*printing.Document, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, printing.NewPrintError(printing.ErrCodeInvalidDocument, "malformed document payload", err)
	}
	if env.Error != nil {
		return nil, printing.NewPrintError(printing.ErrCodeDocumentUnavailable, env.Error.Message, nil)
	}
	if env.Data != nil {
		return env.Data, nil
	}

	var doc printing.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, printing.NewPrintError(printing.ErrCodeInvalidDocument, "malformed document payload", err)
	}
	return &doc, nil
}

var _ printing.DocumentSource = (*HTTPDocumentSource)(nil)
