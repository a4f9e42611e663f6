package printing

import (
	"regexp"
	"strings"

	"github.com/erp/docprint/internal/domain/shared"
)

// Margins represents the page margins in millimeters
type Margins struct {
	Top    int `json:"top"`    // Top margin in mm
	Right  int `json:"right"`  // Right margin in mm
	Bottom int `json:"bottom"` // Bottom margin in mm
	Left   int `json:"left"`   // Left margin in mm
}

// NewMargins creates a new Margins value object
func NewMargins(top, right, bottom, left int) (Margins, error) {
	m := Margins{Top: top, Right: right, Bottom: bottom, Left: left}
	if err := m.Validate(); err != nil {
		return Margins{}, err
	}
	return m, nil
}

// Validate checks the margins are within 0-100mm
func (m Margins) Validate() error {
	if m.Top < 0 || m.Right < 0 || m.Bottom < 0 || m.Left < 0 {
		return shared.NewDomainError("INVALID_MARGINS", "Margins cannot be negative")
	}
	if m.Top > 100 || m.Right > 100 || m.Bottom > 100 || m.Left > 100 {
		return shared.NewDomainError("INVALID_MARGINS", "Margins cannot exceed 100mm")
	}
	return nil
}

// DefaultMargins returns the default page margins for A4 paper
func DefaultMargins() Margins {
	return Margins{
		Top:    10,
		Right:  10,
		Bottom: 10,
		Left:   10,
	}
}

// ReceiptMargins returns minimal margins suitable for receipt paper
func ReceiptMargins() Margins {
	return Margins{
		Top:    2,
		Right:  2,
		Bottom: 2,
		Left:   2,
	}
}

// IsZero returns true if all margins are zero
func (m Margins) IsZero() bool {
	return m.Top == 0 && m.Right == 0 && m.Bottom == 0 && m.Left == 0
}

// Equals checks if two Margins are equal
func (m Margins) Equals(other Margins) bool {
	return m == other
}

// Capture floor defaults, in CSS pixels
const (
	DefaultMinWidthPx  = 320
	DefaultMinHeightPx = 480

	DesktopViewportWidthPx = 1024
	MobileViewportWidthPx  = 420
)

// RenderOptions configures how a document is rendered and captured.
// It is a value object: copies are independent and carry no identity.
type RenderOptions struct {
	PaperSize    PaperSize   `json:"paper_size"`
	Orientation  Orientation `json:"orientation"`
	Margins      Margins     `json:"margins"`
	Scale        float64     `json:"scale"`         // 0.1 - 2.0
	ImageQuality int         `json:"image_quality"` // 1 - 100, used for raster diagnostics
	Filename     string      `json:"filename"`

	// Explicit capture size overrides in CSS pixels, 0 means derive from the content
	WidthPx  int `json:"width_px,omitempty"`
	HeightPx int `json:"height_px,omitempty"`

	// Minimum capture dimensions guarding against degenerate output
	MinWidthPx  int `json:"min_width_px,omitempty"`
	MinHeightPx int `json:"min_height_px,omitempty"`

	// Width of the off-screen layout viewport
	ViewportWidthPx int `json:"viewport_width_px,omitempty"`
}

// DefaultRenderOptions returns A4 portrait options
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		PaperSize:       PaperSizeA4,
		Orientation:     OrientationPortrait,
		Margins:         DefaultMargins(),
		Scale:           1.0,
		ImageQuality:    92,
		Filename:        "document.pdf",
		MinWidthPx:      DefaultMinWidthPx,
		MinHeightPx:     DefaultMinHeightPx,
		ViewportWidthPx: DesktopViewportWidthPx,
	}
}

// WithDefaults returns a copy with zero-valued fields filled from DefaultRenderOptions
func (o RenderOptions) WithDefaults() RenderOptions {
	d := DefaultRenderOptions()
	if o.PaperSize == "" {
		o.PaperSize = d.PaperSize
	}
	if o.Orientation == "" {
		o.Orientation = d.Orientation
	}
	if o.Scale == 0 {
		o.Scale = d.Scale
	}
	if o.ImageQuality == 0 {
		o.ImageQuality = d.ImageQuality
	}
	if o.Filename == "" {
		o.Filename = d.Filename
	}
	if o.MinWidthPx == 0 {
		o.MinWidthPx = d.MinWidthPx
	}
	if o.MinHeightPx == 0 {
		o.MinHeightPx = d.MinHeightPx
	}
	if o.ViewportWidthPx == 0 {
		o.ViewportWidthPx = d.ViewportWidthPx
	}
	o.Filename = SanitizeFilename(o.Filename)
	return o
}

// Validate checks all option values
func (o RenderOptions) Validate() error {
	if !o.PaperSize.IsValid() {
		return NewPrintError(ErrCodeInvalidOptions, "invalid paper size: "+o.PaperSize.String(), nil)
	}
	if !o.Orientation.IsValid() {
		return NewPrintError(ErrCodeInvalidOptions, "invalid orientation: "+o.Orientation.String(), nil)
	}
	if err := o.Margins.Validate(); err != nil {
		return NewPrintError(ErrCodeInvalidOptions, err.Error(), err)
	}
	if o.Scale < 0.1 || o.Scale > 2.0 {
		return NewPrintError(ErrCodeInvalidOptions, "scale must be between 0.1 and 2.0", nil)
	}
	if o.ImageQuality < 1 || o.ImageQuality > 100 {
		return NewPrintError(ErrCodeInvalidOptions, "image quality must be between 1 and 100", nil)
	}
	if o.WidthPx < 0 || o.HeightPx < 0 || o.MinWidthPx < 0 || o.MinHeightPx < 0 || o.ViewportWidthPx < 0 {
		return NewPrintError(ErrCodeInvalidOptions, "dimensions cannot be negative", nil)
	}
	if strings.TrimSpace(o.Filename) == "" {
		return NewPrintError(ErrCodeInvalidOptions, "filename cannot be empty", nil)
	}
	return nil
}

// DeriveRenderOptions picks options from the document characteristics and the
// caller's viewport profile.
func DeriveRenderOptions(doc Document, smallViewport bool) RenderOptions {
	opts := DefaultRenderOptions()

	switch {
	case doc.Type.IsReceipt():
		opts.PaperSize = PaperSizeReceipt80MM
		opts.Margins = ReceiptMargins()
		opts.MinWidthPx = 280
	case doc.Type == DocTypeDeliveryReport:
		opts.Orientation = OrientationLandscape
	case len(doc.Items) > 0 && len(doc.Items) <= 3 && doc.Type == DocTypeSalesOrder:
		opts.PaperSize = PaperSizeA5
	}

	if smallViewport {
		opts.ViewportWidthPx = MobileViewportWidthPx
		opts.Scale = 0.8
		opts.ImageQuality = 75
	}

	opts.Filename = DefaultFilename(doc.Ref())
	return opts
}

// DefaultFilename returns "<doc-type>-<number>.pdf" for the reference
func DefaultFilename(ref DocumentRef) string {
	name := strings.ToLower(strings.ReplaceAll(ref.Type.String(), "_", "-"))
	if ref.Number != "" {
		name += "-" + strings.NewReplacer("/", "-", `\`, "-").Replace(ref.Number)
	}
	return SanitizeFilename(name + ".pdf")
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFilename strips path separators and unsafe characters and enforces a .pdf suffix
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "document"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}
