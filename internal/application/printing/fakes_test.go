package printing_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/erp/docprint/internal/application/printing"
	domain "github.com/erp/docprint/internal/domain/printing"
	"github.com/erp/docprint/internal/domain/shared"
	infra "github.com/erp/docprint/internal/infrastructure/printing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// =============================================================================
// Surface
// =============================================================================

// fakeSurface measures mounted HTML by its table rows and prints a PDF that
// embeds the markup, so equal input yields equal output.
type fakeSurface struct {
	mu            sync.Mutex
	html          string
	mounts        int
	closed        bool
	blankStrategy string
}

func (s *fakeSurface) Mount(ctx context.Context, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.html = html
	s.mounts++
	return nil
}

func (s *fakeSurface) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.html = ""
	return nil
}

func (s *fakeSurface) WaitForContent(ctx context.Context, _ time.Duration) (infra.Measurement, error) {
	m, _ := s.Measure(ctx)
	if m.IsEmpty() {
		return m, context.DeadlineExceeded
	}
	return m, nil
}

func (s *fakeSurface) Measure(context.Context) (infra.Measurement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !strings.Contains(s.html, "data-print-root") {
		return infra.Measurement{}, nil
	}
	if s.blankStrategy != "" && strings.Contains(s.html, `data-strategy="`+s.blankStrategy+`"`) {
		return infra.Measurement{ScrollWidth: 800, HTMLLength: len(s.html)}, nil
	}
	return infra.Measurement{
		ScrollWidth:  800,
		ScrollHeight: 120 + strings.Count(s.html, "<tr")*24,
		TextLength:   len(s.html) / 2,
		HTMLLength:   len(s.html),
	}, nil
}

func (s *fakeSurface) InjectStyle(context.Context, string, string) error { return nil }

func (s *fakeSurface) RemoveStyle(context.Context, string) error { return nil }

func (s *fakeSurface) PrintPDF(ctx context.Context, _ infra.PrintParams) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n1 0 obj << /Type /Pages /Count 1 >> endobj\n2 0 obj << /Type /Page >> endobj\n")
	b.WriteString(s.html)
	b.WriteString("\n%%EOF")
	return b.Bytes(), nil
}

func (s *fakeSurface) Screenshot(context.Context, int) ([]byte, error) {
	return []byte{0xFF, 0xD8, 0xFF}, nil
}

func (s *fakeSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type fakeSurfaceFactory struct {
	mu            sync.Mutex
	opened        []*fakeSurface
	widths        []int
	blankStrategy string
	openErr       error
}

func (f *fakeSurfaceFactory) Open(_ context.Context, viewportWidth int) (infra.Surface, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &fakeSurface{blankStrategy: f.blankStrategy}
	f.opened = append(f.opened, s)
	f.widths = append(f.widths, viewportWidth)
	return s, nil
}

func (f *fakeSurfaceFactory) Close() error { return nil }

func (f *fakeSurfaceFactory) surfaces() []*fakeSurface {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeSurface(nil), f.opened...)
}

// =============================================================================
// Delivery targets
// =============================================================================

type fakeTarget struct {
	mu    sync.Mutex
	url   string
	err   error
	calls int
}

func (t *fakeTarget) Share(_ context.Context, artifact *domain.Artifact) (infra.Link, error) {
	return t.deliver(artifact)
}

func (t *fakeTarget) Download(_ context.Context, artifact *domain.Artifact) (infra.Link, error) {
	return t.deliver(artifact)
}

func (t *fakeTarget) deliver(artifact *domain.Artifact) (infra.Link, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if t.err != nil {
		return infra.Link{}, t.err
	}
	return infra.Link{URL: t.url + "/" + artifact.Filename, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

// =============================================================================
// Document source
// =============================================================================

type fakeSource struct {
	mu      sync.Mutex
	docs    map[domain.DocumentRef]domain.Document
	fetched []domain.DocumentRef
}

func newFakeSource(docs ...domain.Document) *fakeSource {
	s := &fakeSource{docs: make(map[domain.DocumentRef]domain.Document)}
	for _, d := range docs {
		s.docs[d.Ref()] = d
	}
	return s
}

func (s *fakeSource) Fetch(ctx context.Context, ref domain.DocumentRef) (*domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = append(s.fetched, ref)
	doc, ok := s.docs[ref]
	if !ok {
		return nil, domain.NewPrintError(domain.ErrCodeDocumentUnavailable, "document "+ref.String()+" not found", nil)
	}
	c := doc.Clone()
	return &c, nil
}

// =============================================================================
// Artifact producer
// =============================================================================

// fakeProducer returns a fixed artifact per document, failing or blocking on demand
type fakeProducer struct {
	mu       sync.Mutex
	produced []domain.DocumentRef
	failOn   map[domain.DocumentRef]error
	panicOn  map[domain.DocumentRef]bool
	// block holds Produce until the context ends
	block bool
}

func (p *fakeProducer) Produce(ctx context.Context, doc domain.Document, opts domain.RenderOptions) (*domain.Artifact, error) {
	ref := doc.Ref()
	p.mu.Lock()
	p.produced = append(p.produced, ref)
	err := p.failOn[ref]
	shouldPanic := p.panicOn[ref]
	block := p.block
	p.mu.Unlock()

	if shouldPanic {
		panic("renderer exploded")
	}
	if block {
		<-ctx.Done()
		return nil, domain.AsPrintError(ctx.Err(), domain.ErrCodeRenderingFailed)
	}
	if err != nil {
		return nil, err
	}
	return domain.NewArtifact(bytes.Repeat([]byte("%"), 2048), opts.Filename, 1, domain.RenderStrategyTemplate), nil
}

func (p *fakeProducer) producedRefs() []domain.DocumentRef {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.DocumentRef(nil), p.produced...)
}

// =============================================================================
// Print dialogs
// =============================================================================

// autoDialog signals completion as soon as it opens
type autoDialog struct {
	mu     sync.Mutex
	opened []infra.PrintRequest
	closed int
}

func (d *autoDialog) Open(_ context.Context, req infra.PrintRequest) (<-chan infra.PrintSignal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened = append(d.opened, req)
	ch := make(chan infra.PrintSignal, 1)
	ch <- infra.PrintSignal{Kind: infra.SignalCompleted}
	return ch, nil
}

func (d *autoDialog) Close(uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
}

// silentDialog never reports completion
type silentDialog struct{}

func (silentDialog) Open(context.Context, infra.PrintRequest) (<-chan infra.PrintSignal, error) {
	return make(chan infra.PrintSignal), nil
}

func (silentDialog) Close(uuid.UUID) {}

// =============================================================================
// Recording hooks
// =============================================================================

type hookCall struct {
	Kind   string
	Index  int
	Reason string
	Code   domain.ErrorCode
}

type hookRecorder struct {
	mu    sync.Mutex
	calls []hookCall
}

func (r *hookRecorder) add(c hookCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *hookRecorder) hooks() printing.Hooks {
	return printing.Hooks{
		OnStarted: func(_ context.Context, doc domain.DocumentProgress) {
			r.add(hookCall{Kind: "started", Index: doc.Index})
		},
		OnCompleted: func(_ context.Context, doc domain.DocumentProgress) {
			r.add(hookCall{Kind: "completed", Index: doc.Index})
		},
		OnCancelled: func(_ context.Context, doc domain.DocumentProgress, reason string) {
			r.add(hookCall{Kind: "cancelled", Index: doc.Index, Reason: reason})
		},
		OnFailed: func(_ context.Context, doc domain.DocumentProgress, err *domain.PrintError) {
			r.add(hookCall{Kind: "failed", Index: doc.Index, Code: err.Code})
		},
	}
}

func (r *hookRecorder) sequence() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = fmt.Sprintf("%s:%d", c.Kind, c.Index)
	}
	return out
}

func (r *hookRecorder) count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

// =============================================================================
// Event publisher
// =============================================================================

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

// =============================================================================
// Fixtures
// =============================================================================

func sampleDocument(number string) domain.Document {
	return domain.Document{
		Type:      domain.DocTypeInvoice,
		Number:    number,
		IssueDate: time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Currency:  "USD",
		Issuer:    domain.Party{Name: "Acme Supplies", TaxID: "101-22334-5"},
		Counterparty: domain.Party{
			Code: "C-001",
			Name: "Globex Retail",
		},
		Items: []domain.LineItem{
			{
				Code:        "P-1",
				Description: "Paper A4 500 sheets",
				Quantity:    decimal.NewFromInt(3),
				Unit:        "box",
				UnitPrice:   decimal.RequireFromString("25.50"),
				TaxRate:     decimal.NewFromInt(18),
			},
		},
	}
}

func emptyDocument() domain.Document {
	return domain.Document{
		Type:      domain.DocTypeCollectionReceipt,
		Number:    "RC-7",
		IssueDate: time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Issuer:    domain.Party{Name: "Acme Supplies"},
	}
}

func refsOf(docs ...domain.Document) []domain.DocumentRef {
	refs := make([]domain.DocumentRef, len(docs))
	for i, d := range docs {
		refs[i] = d.Ref()
	}
	return refs
}

type testPipeline struct {
	*printing.Pipeline
	surfaces *fakeSurfaceFactory
	share    *fakeTarget
	download *fakeTarget
}

func newTestPipeline(t *testing.T) *testPipeline {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store, err := infra.NewTemplateStore(&infra.TemplateStoreConfig{})
	require.NoError(t, err)
	renderer := infra.NewDocumentRenderer(infra.NewTemplateEngine(store), infra.DefaultTheme(), &infra.RendererConfig{
		SettleTimeout: 50 * time.Millisecond,
		Logger:        logger,
	})
	capturer := infra.NewPDFCapturer(&infra.CaptureConfig{Logger: logger})

	tp := &testPipeline{
		surfaces: &fakeSurfaceFactory{},
		share:    &fakeTarget{url: "https://share.example.com"},
		download: &fakeTarget{url: "https://print.example.com/downloads"},
	}
	tp.Pipeline = printing.NewPipeline(tp.surfaces, renderer, capturer,
		infra.NewDelivery(tp.share, tp.download, logger),
		&printing.PipelineConfig{MaxConcurrentRenders: 2, Logger: logger})
	return tp
}

func newTestTracker(t *testing.T, producer printing.ArtifactProducer, source domain.DocumentSource, dialog infra.PrintDialog, cfg *printing.TrackerConfig) *printing.Tracker {
	t.Helper()
	if cfg == nil {
		cfg = &printing.TrackerConfig{}
	}
	if cfg.BatchDelay == 0 {
		cfg.BatchDelay = time.Millisecond
	}
	if cfg.PrintFallbackTimeout == 0 {
		cfg.PrintFallbackTimeout = 5 * time.Second
	}
	cfg.Logger = zaptest.NewLogger(t)
	tracker := printing.NewTracker(producer, source, dialog, cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracker.Shutdown(ctx)
	})
	return tracker
}

// waitForEvent reads events until one of the given type arrives
func waitForEvent(t *testing.T, events <-chan printing.LifecycleEvent, eventType string) printing.LifecycleEvent {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("event stream closed before %s", eventType)
			}
			if ev.Type == eventType {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", eventType)
		}
	}
}

var errBoom = errors.New("boom")
