package printing

import (
	"context"
	"errors"
	"time"

	"github.com/erp/docprint/internal/domain/printing"
	"go.uber.org/zap"
)

// DefaultMountSettleTimeout bounds the wait for mounted content to appear
const DefaultMountSettleTimeout = 3 * time.Second

// Container is a surface holding rendered document content
type Container struct {
	Surface     Surface
	Strategy    printing.RenderStrategy
	Measurement Measurement
	HTMLLength  int
}

// RendererConfig configures the document renderer
type RendererConfig struct {
	// SettleTimeout bounds each wait for mounted content
	SettleTimeout time.Duration
	Logger        *zap.Logger
}

// DocumentRenderer mounts a document into a surface, first through the themed
// template and then, if that yields nothing, through HTML synthesized from the
// document fields.
type DocumentRenderer struct {
	engine        *TemplateEngine
	theme         Theme
	settleTimeout time.Duration
	logger        *zap.Logger
}

// NewDocumentRenderer creates a renderer bound to one theme
func NewDocumentRenderer(engine *TemplateEngine, theme Theme, config *RendererConfig) *DocumentRenderer {
	if config == nil {
		config = &RendererConfig{}
	}
	if config.SettleTimeout <= 0 {
		config.SettleTimeout = DefaultMountSettleTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentRenderer{
		engine:        engine,
		theme:         theme.WithDefaults(),
		settleTimeout: config.SettleTimeout,
		logger:        logger,
	}
}

// Theme returns the theme used by this renderer
func (r *DocumentRenderer) Theme() Theme {
	return r.theme
}

// Preview returns the themed HTML of a document without mounting it
func (r *DocumentRenderer) Preview(ctx context.Context, doc printing.Document, opts printing.RenderOptions) (string, error) {
	return r.engine.RenderDocument(ctx, doc, r.theme, opts)
}

// Render mounts doc into surface and returns the populated container.
// It fails with RENDERING_FAILED when neither strategy produced content.
func (r *DocumentRenderer) Render(ctx context.Context, surface Surface, doc printing.Document, opts printing.RenderOptions) (*Container, error) {
	logger := r.logger.With(zap.String("document", doc.Ref().String()))

	container, err := r.mountTemplate(ctx, surface, doc, opts)
	if err == nil {
		return container, nil
	}
	if ctx.Err() != nil {
		return nil, printing.AsPrintError(ctx.Err(), printing.ErrCodeRenderingFailed)
	}
	logger.Warn("Template render produced no content, using fallback", zap.Error(err))

	if err := surface.Clear(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, printing.AsPrintError(ctx.Err(), printing.ErrCodeRenderingFailed)
		}
		logger.Warn("Failed to clear surface before fallback", zap.Error(err))
	}

	container, ferr := r.mountFallback(ctx, surface, doc, opts)
	if ferr != nil {
		if ctx.Err() != nil {
			return nil, printing.AsPrintError(ctx.Err(), printing.ErrCodeRenderingFailed)
		}
		logger.Error("Fallback render produced no content", zap.Error(ferr))
		return nil, printing.NewPrintError(printing.ErrCodeRenderingFailed, "rendering produced no content",
			errors.Join(err, ferr))
	}
	return container, nil
}

func (r *DocumentRenderer) mountTemplate(ctx context.Context, surface Surface, doc printing.Document, opts printing.RenderOptions) (*Container, error) {
	html, err := r.engine.RenderDocument(ctx, doc, r.theme, opts)
	if err != nil {
		return nil, err
	}
	return r.mount(ctx, surface, html, printing.RenderStrategyTemplate)
}

func (r *DocumentRenderer) mountFallback(ctx context.Context, surface Surface, doc printing.Document, opts printing.RenderOptions) (*Container, error) {
	return r.mount(ctx, surface, BuildFallbackHTML(doc, r.theme, opts), printing.RenderStrategyFallback)
}

func (r *DocumentRenderer) mount(ctx context.Context, surface Surface, html string, strategy printing.RenderStrategy) (*Container, error) {
	if err := surface.Mount(ctx, html); err != nil {
		return nil, err
	}
	m, err := surface.WaitForContent(ctx, r.settleTimeout)
	if m.IsEmpty() {
		if err == nil {
			err = errors.New("container is empty")
		}
		return nil, err
	}
	if err != nil {
		// Content appeared but layout never reported settled; accept what is there
		r.logger.Debug("Content present without settle signal",
			zap.String("strategy", strategy.String()), zap.Error(err))
	}
	return &Container{
		Surface:     surface,
		Strategy:    strategy,
		Measurement: m,
		HTMLLength:  len(html),
	}, nil
}
