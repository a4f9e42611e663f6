package printing

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"time"

	"github.com/erp/docprint/internal/domain/printing"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
)

const (
	printColorStyleID = "docprint-color-adjust"
	printColorCSS     = `*{-webkit-print-color-adjust:exact !important;print-color-adjust:exact !important;color-adjust:exact !important;}`

	cssPixelsPerInch = 96.0
	// Tall enough for any receipt; variable height paper is trimmed to content
	maxVariablePageHeightMM = 3000
)

// CaptureSize is the effective capture area in CSS pixels
type CaptureSize struct {
	WidthPx  int
	HeightPx int
}

// DeriveCaptureSize applies explicit overrides, otherwise the measured scroll
// size, and never returns less than the minimum floor dimensions.
func DeriveCaptureSize(m Measurement, opts printing.RenderOptions) CaptureSize {
	w := opts.WidthPx
	if w <= 0 {
		w = m.ScrollWidth
	}
	h := opts.HeightPx
	if h <= 0 {
		h = m.ScrollHeight
	}
	return CaptureSize{
		WidthPx:  max(w, opts.MinWidthPx),
		HeightPx: max(h, opts.MinHeightPx),
	}
}

// BuildPrintParams converts render options and the capture size to printer settings
func BuildPrintParams(opts printing.RenderOptions, size CaptureSize) PrintParams {
	params := PrintParams{
		Scale:           opts.Scale,
		Landscape:       opts.Orientation == printing.OrientationLandscape,
		PrintBackground: true,
		MarginTop:       mmToInches(float64(opts.Margins.Top)),
		MarginRight:     mmToInches(float64(opts.Margins.Right)),
		MarginBottom:    mmToInches(float64(opts.Margins.Bottom)),
		MarginLeft:      mmToInches(float64(opts.Margins.Left)),
	}

	// Paper size in inches (Chrome uses inches)
	width, height := opts.PaperSize.Dimensions()
	params.PaperWidth = mmToInches(float64(width))
	params.PaperHeight = mmToInches(float64(height))

	if opts.PaperSize.HasVariableHeight() {
		// Content height plus vertical margins, capped to avoid runaway pages
		content := float64(size.HeightPx) * opts.Scale / cssPixelsPerInch
		params.PaperHeight = math.Min(content+params.MarginTop+params.MarginBottom, mmToInches(maxVariablePageHeightMM))
	}

	// Explicit overrides replace the paper format
	if opts.WidthPx > 0 {
		params.PaperWidth = float64(size.WidthPx) / cssPixelsPerInch
	}
	if opts.HeightPx > 0 {
		params.PaperHeight = float64(size.HeightPx) / cssPixelsPerInch
	}
	return params
}

// CaptureConfig configures the PDF capturer
type CaptureConfig struct {
	// MinArtifactBytes is the blank-capture floor
	MinArtifactBytes int
	Logger           *zap.Logger
	// OnBlankCapture is called after the diagnostic pass of a blank capture
	OnBlankCapture func(ctx context.Context, report BlankCaptureReport)
}

// BlankCaptureReport describes a capture that fell under the size floor
type BlankCaptureReport struct {
	Document        printing.DocumentRef
	Strategy        printing.RenderStrategy
	ArtifactBytes   int
	FloorBytes      int
	Size            CaptureSize
	Before          Measurement
	After           Measurement
	ScreenshotBytes int
	DiagnosticError error
}

// PDFCapturer prints rendered containers to PDF artifacts
type PDFCapturer struct {
	minBytes int
	logger   *zap.Logger
	onBlank  func(ctx context.Context, report BlankCaptureReport)
	pdfConf  *model.Configuration
}

// NewPDFCapturer creates a capturer
func NewPDFCapturer(config *CaptureConfig) *PDFCapturer {
	if config == nil {
		config = &CaptureConfig{}
	}
	if config.MinArtifactBytes <= 0 {
		config.MinArtifactBytes = printing.MinArtifactBytes
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFCapturer{
		minBytes: config.MinArtifactBytes,
		logger:   logger,
		onBlank:  config.OnBlankCapture,
		pdfConf:  conf,
	}
}

// MinBytes returns the blank-capture floor
func (c *PDFCapturer) MinBytes() int {
	return c.minBytes
}

// Capture prints the container to a PDF artifact.
// An artifact under the size floor is reported as CAPTURE_BLANK after one
// diagnostic pass.
func (c *PDFCapturer) Capture(ctx context.Context, container *Container, ref printing.DocumentRef, opts printing.RenderOptions) (*printing.Artifact, error) {
	surface := container.Surface
	size := DeriveCaptureSize(container.Measurement, opts)
	start := time.Now()

	if err := surface.InjectStyle(ctx, printColorStyleID, printColorCSS); err != nil {
		return nil, printing.Failed(err, time.Since(start)).Failure()
	}
	pdf, err := surface.PrintPDF(ctx, BuildPrintParams(opts, size))
	if rerr := surface.RemoveStyle(ctx, printColorStyleID); rerr != nil && ctx.Err() == nil {
		c.logger.Debug("Failed to remove print color style", zap.Error(rerr))
	}
	if err != nil {
		return nil, printing.Failed(err, time.Since(start)).Failure()
	}

	result := printing.Succeeded(printing.NewArtifact(pdf, opts.Filename, 0, container.Strategy), time.Since(start))
	if !result.ValidFor(c.minBytes) {
		report := c.diagnose(ctx, container, ref, size, result.Artifact.Size(), opts.ImageQuality)
		return nil, printing.NewPrintError(printing.ErrCodeCaptureBlank,
			fmt.Sprintf("captured artifact is %d bytes, below the %d byte floor", result.Artifact.Size(), c.minBytes),
			report.DiagnosticError)
	}

	artifact := result.Artifact
	artifact.PageCount = c.pageCount(pdf)
	c.logger.Debug("Artifact captured",
		zap.String("document", ref.String()),
		zap.Int("bytes", artifact.Size()),
		zap.Int("pages", artifact.PageCount),
		zap.String("strategy", container.Strategy.String()),
		zap.Duration("duration", result.Duration))
	return artifact, nil
}

// diagnose re-measures and rasterizes the container so operators can see what
// was on the surface when the capture came out blank.
func (c *PDFCapturer) diagnose(ctx context.Context, container *Container, ref printing.DocumentRef, size CaptureSize, pdfBytes, quality int) BlankCaptureReport {
	report := BlankCaptureReport{
		Document:      ref,
		Strategy:      container.Strategy,
		ArtifactBytes: pdfBytes,
		FloorBytes:    c.minBytes,
		Size:          size,
		Before:        container.Measurement,
	}

	after, err := container.Surface.Measure(ctx)
	if err != nil {
		report.DiagnosticError = err
	} else {
		report.After = after
		shot, serr := container.Surface.Screenshot(ctx, quality)
		report.ScreenshotBytes = len(shot)
		report.DiagnosticError = serr
	}

	c.logger.Warn("Blank capture detected",
		zap.String("document", ref.String()),
		zap.String("strategy", container.Strategy.String()),
		zap.Int("artifact_bytes", pdfBytes),
		zap.Int("floor_bytes", c.minBytes),
		zap.Int("capture_width_px", size.WidthPx),
		zap.Int("capture_height_px", size.HeightPx),
		zap.Int("scroll_height_before", report.Before.ScrollHeight),
		zap.Int("scroll_height_after", report.After.ScrollHeight),
		zap.Int("text_length", report.After.TextLength),
		zap.Int("html_length", report.After.HTMLLength),
		zap.Int("screenshot_bytes", report.ScreenshotBytes),
		zap.NamedError("diagnostic_error", report.DiagnosticError))

	if c.onBlank != nil {
		c.onBlank(ctx, report)
	}
	return report
}

// pageCount reads the page count with pdfcpu, falling back to a marker count
func (c *PDFCapturer) pageCount(pdf []byte) int {
	n, err := api.PageCount(bytes.NewReader(pdf), c.pdfConf)
	if err == nil && n > 0 {
		return n
	}
	return estimatePageCount(pdf)
}

// estimatePageCount counts page objects in the raw PDF
func estimatePageCount(pdf []byte) int {
	count := bytes.Count(pdf, []byte("/Type /Page")) - bytes.Count(pdf, []byte("/Type /Pages"))
	if count < 1 {
		count = 1
	}
	return count
}

// mmToInches converts millimeters to inches
func mmToInches(mm float64) float64 {
	return mm / 25.4
}
