package printing

import (
	"context"
	"time"
)

// RootSelector marks the element whose size is measured and captured
const RootSelector = "[data-print-root]"

// Measurement describes the rendered content of a surface
type Measurement struct {
	ScrollWidth  int `json:"scrollWidth"`
	ScrollHeight int `json:"scrollHeight"`
	TextLength   int `json:"textLength"`
	HTMLLength   int `json:"htmlLength"`
}

// IsEmpty returns true if the surface shows no visible content
func (m Measurement) IsEmpty() bool {
	return m.ScrollHeight <= 0 || m.TextLength == 0
}

// PrintParams are the page settings passed to the PDF printer, in inches
type PrintParams struct {
	PaperWidth      float64
	PaperHeight     float64
	MarginTop       float64
	MarginRight     float64
	MarginBottom    float64
	MarginLeft      float64
	Scale           float64
	Landscape       bool
	PrintBackground bool
}

// Surface is an off-screen rendering container, one per document render.
// It is reused between the template and fallback attempts of one render and
// never shared between documents.
type Surface interface {
	// Mount replaces the surface content with a complete HTML document
	Mount(ctx context.Context, html string) error
	// Clear discards the mounted content
	Clear(ctx context.Context) error
	// WaitForContent blocks until the root element has visible content and
	// layout has settled, or until timeout elapses. On timeout it returns the
	// last measurement together with the timeout error.
	WaitForContent(ctx context.Context, timeout time.Duration) (Measurement, error)
	// Measure returns the current size of the root element
	Measure(ctx context.Context) (Measurement, error)
	// InjectStyle adds or replaces a stylesheet identified by id
	InjectStyle(ctx context.Context, id, css string) error
	// RemoveStyle removes a stylesheet added by InjectStyle
	RemoveStyle(ctx context.Context, id string) error
	// PrintPDF prints the surface to PDF bytes
	PrintPDF(ctx context.Context, params PrintParams) ([]byte, error)
	// Screenshot rasterizes the full surface as JPEG at the given quality
	Screenshot(ctx context.Context, quality int) ([]byte, error)
	// Close releases the surface
	Close() error
}

// SurfaceFactory opens surfaces
type SurfaceFactory interface {
	// Open creates a surface whose layout viewport is viewportWidth CSS pixels wide
	Open(ctx context.Context, viewportWidth int) (Surface, error)
	// Close releases resources shared by all surfaces
	Close() error
}
