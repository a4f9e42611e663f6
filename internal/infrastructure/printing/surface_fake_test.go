package printing

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/erp/docprint/internal/domain/printing"
	"github.com/shopspring/decimal"
)

// fakeSurface lays out mounted HTML by counting table rows and prints a PDF
// whose size follows the markup, so identical input gives identical output.
type fakeSurface struct {
	mu sync.Mutex

	html    string
	mounts  []string
	clears  int
	styles  map[string]string
	styleAt []bool // whether the color style was present at each PrintPDF call
	prints  []PrintParams
	shots   int
	closed  bool

	// blankStrategy makes mounts carrying this data-strategy measure empty
	blankStrategy string
	mountErr      error
	waitErr       error
	printErr      error
	// pdfOverride replaces the generated PDF bytes
	pdfOverride []byte
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{styles: make(map[string]string)}
}

func (s *fakeSurface) Mount(ctx context.Context, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mountErr != nil {
		return s.mountErr
	}
	s.html = html
	s.mounts = append(s.mounts, html)
	return nil
}

func (s *fakeSurface) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.html = ""
	s.clears++
	return nil
}

func (s *fakeSurface) WaitForContent(ctx context.Context, _ time.Duration) (Measurement, error) {
	if err := ctx.Err(); err != nil {
		return Measurement{}, err
	}
	m, _ := s.Measure(ctx)
	if m.IsEmpty() {
		return m, errors.Join(context.DeadlineExceeded, s.waitErr)
	}
	return m, s.waitErr
}

func (s *fakeSurface) Measure(ctx context.Context) (Measurement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.html == "" || !strings.Contains(s.html, "data-print-root") {
		return Measurement{}, nil
	}
	if s.blankStrategy != "" && strings.Contains(s.html, `data-strategy="`+s.blankStrategy+`"`) {
		return Measurement{ScrollWidth: 800, HTMLLength: len(s.html)}, nil
	}
	rows := strings.Count(s.html, "<tr")
	return Measurement{
		ScrollWidth:  800,
		ScrollHeight: 120 + rows*24,
		TextLength:   len(s.html) / 2,
		HTMLLength:   len(s.html),
	}, nil
}

func (s *fakeSurface) InjectStyle(_ context.Context, id, css string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.styles[id] = css
	return nil
}

func (s *fakeSurface) RemoveStyle(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.styles, id)
	return nil
}

func (s *fakeSurface) PrintPDF(ctx context.Context, params PrintParams) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, styled := s.styles[printColorStyleID]
	s.styleAt = append(s.styleAt, styled)
	s.prints = append(s.prints, params)
	if s.printErr != nil {
		return nil, s.printErr
	}
	if s.pdfOverride != nil {
		return s.pdfOverride, nil
	}
	return fakePDF(s.html), nil
}

func (s *fakeSurface) Screenshot(_ context.Context, _ int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shots++
	return []byte{0xFF, 0xD8, 0xFF}, nil
}

func (s *fakeSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func fakePDF(html string) []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n1 0 obj << /Type /Pages /Count 1 >> endobj\n2 0 obj << /Type /Page >> endobj\n")
	b.WriteString(html)
	b.WriteString("\n%%EOF")
	return b.Bytes()
}

type fakeSurfaceFactory struct {
	mu       sync.Mutex
	opened   []*fakeSurface
	widths   []int
	prepare  func(*fakeSurface)
	openErr  error
	closed   bool
}

func (f *fakeSurfaceFactory) Open(ctx context.Context, viewportWidth int) (Surface, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	s := newFakeSurface()
	if f.prepare != nil {
		f.prepare(s)
	}
	f.mu.Lock()
	f.opened = append(f.opened, s)
	f.widths = append(f.widths, viewportWidth)
	f.mu.Unlock()
	return s, nil
}

func (f *fakeSurfaceFactory) Close() error {
	f.closed = true
	return nil
}

func sampleDocument() printing.Document {
	due := time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)
	return printing.Document{
		Type:      printing.DocTypeInvoice,
		Number:    "INV-2026-0042",
		IssueDate: time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		DueDate:   &due,
		Currency:  "USD",
		Issuer:    printing.Party{Name: "Acme Supplies", TaxID: "101-22334-5", Address: "12 Harbor Rd"},
		Counterparty: printing.Party{
			Code: "C-001",
			Name: "Globex <Retail>",
		},
		Items: []printing.LineItem{
			{
				Code:        "P-1",
				Description: "Paper A4 500 sheets",
				Quantity:    decimal.NewFromInt(3),
				Unit:        "box",
				UnitPrice:   decimal.RequireFromString("25.50"),
				TaxRate:     decimal.NewFromInt(18),
			},
			{
				Code:        "P-2",
				Description: "Toner cartridge",
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   decimal.RequireFromString("55.00"),
				Discount:    decimal.RequireFromString("5.00"),
				TaxRate:     decimal.NewFromInt(18),
			},
		},
		Note: "Thank you for your business",
	}
}

func emptyDocument() printing.Document {
	return printing.Document{
		Type:      printing.DocTypeCollectionReceipt,
		Number:    "RC-7",
		IssueDate: time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Issuer:    printing.Party{Name: "Acme Supplies"},
	}
}
