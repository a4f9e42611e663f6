package printing

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/docprint/internal/domain/printing"
	"github.com/erp/docprint/internal/infrastructure/logger"
	infra "github.com/erp/docprint/internal/infrastructure/printing"
	"github.com/erp/docprint/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultMaxConcurrentRenders bounds open surfaces when no limit is configured
const DefaultMaxConcurrentRenders = 4

// Renderer mounts a document into a surface
type Renderer interface {
	Render(ctx context.Context, surface infra.Surface, doc printing.Document, opts printing.RenderOptions) (*infra.Container, error)
	Preview(ctx context.Context, doc printing.Document, opts printing.RenderOptions) (string, error)
}

// Capturer turns a rendered container into an artifact
type Capturer interface {
	Capture(ctx context.Context, container *infra.Container, ref printing.DocumentRef, opts printing.RenderOptions) (*printing.Artifact, error)
}

// Deliverer hands an artifact to the user
type Deliverer interface {
	Deliver(ctx context.Context, artifact *printing.Artifact, caps infra.PlatformCapabilities) (*infra.DeliveryReceipt, error)
}

// ArtifactProducer renders and captures one document
type ArtifactProducer interface {
	Produce(ctx context.Context, doc printing.Document, opts printing.RenderOptions) (*printing.Artifact, error)
}

// PipelineConfig configures the pipeline
type PipelineConfig struct {
	MaxConcurrentRenders int
	Metrics              *telemetry.PrintMetrics
	Logger               *zap.Logger
}

// Pipeline runs Renderer → Capture → Delivery for one document at a time.
// Each document gets its own surface, shared by the primary and fallback
// render attempts and closed once captured.
type Pipeline struct {
	surfaces  infra.SurfaceFactory
	renderer  Renderer
	capturer  Capturer
	delivery  Deliverer
	renderSem chan struct{}
	metrics   *telemetry.PrintMetrics
	logger    *zap.Logger
}

// NewPipeline creates a pipeline
func NewPipeline(surfaces infra.SurfaceFactory, renderer Renderer, capturer Capturer, delivery Deliverer, config *PipelineConfig) *Pipeline {
	if config == nil {
		config = &PipelineConfig{}
	}
	limit := config.MaxConcurrentRenders
	if limit <= 0 {
		limit = DefaultMaxConcurrentRenders
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		surfaces:  surfaces,
		renderer:  renderer,
		capturer:  capturer,
		delivery:  delivery,
		renderSem: make(chan struct{}, limit),
		metrics:   config.Metrics,
		logger:    logger,
	}
}

// Produce renders and captures doc. All failures come back as *printing.PrintError.
func (p *Pipeline) Produce(ctx context.Context, doc printing.Document, opts printing.RenderOptions) (artifact *printing.Artifact, err error) {
	ref := doc.Ref()
	ctx, span := telemetry.StartSpan(ctx, "print.produce",
		telemetry.WithAttribute(telemetry.SpanAttrDocumentType, ref.Type.String()),
		telemetry.WithAttribute(telemetry.SpanAttrDocumentNumber, ref.Number),
		telemetry.WithAttribute(telemetry.SpanAttrPaperSize, opts.PaperSize.String()))
	defer span.End()

	start := time.Now()
	var strategy printing.RenderStrategy
	defer func() {
		if r := recover(); r != nil {
			artifact = nil
			err = printing.NewPrintError(printing.ErrCodeInternal, fmt.Sprintf("render panicked: %v", r), nil)
		}
		code := ""
		if err != nil {
			code = printing.CodeOf(err).String()
			telemetry.SetAttributes(span, telemetry.SpanAttrErrorCode, code)
			telemetry.RecordError(span, err)
		} else {
			telemetry.SetAttributes(span,
				telemetry.SpanAttrStrategy, strategy.String(),
				telemetry.SpanAttrBytes, artifact.Size(),
				telemetry.SpanAttrPages, artifact.PageCount)
			telemetry.SetOK(span)
		}
		p.metrics.RecordRender(ctx, ref.Type.String(), strategy.String(), code, time.Since(start))
	}()

	if err := doc.Validate(); err != nil {
		return nil, printing.AsPrintError(err, printing.ErrCodeInvalidDocument)
	}
	if err := opts.Validate(); err != nil {
		return nil, printing.AsPrintError(err, printing.ErrCodeInvalidOptions)
	}
	if err := ctx.Err(); err != nil {
		return nil, printing.AsPrintError(err, printing.ErrCodeRenderingFailed)
	}

	select {
	case p.renderSem <- struct{}{}:
	case <-ctx.Done():
		return nil, printing.AsPrintError(ctx.Err(), printing.ErrCodeRenderingFailed)
	}
	defer func() { <-p.renderSem }()

	surface, err := p.surfaces.Open(ctx, opts.ViewportWidthPx)
	if err != nil {
		return nil, printing.AsPrintError(err, printing.ErrCodeRenderingFailed)
	}
	defer func() {
		if cerr := surface.Close(); cerr != nil {
			p.logger.Debug("Failed to close surface", zap.Error(cerr))
		}
	}()

	container, err := p.renderer.Render(ctx, surface, doc, opts)
	if err != nil {
		return nil, printing.AsPrintError(err, printing.ErrCodeRenderingFailed)
	}
	strategy = container.Strategy

	artifact, err = p.capturer.Capture(ctx, container, ref, opts)
	if err != nil {
		return nil, printing.AsPrintError(err, printing.ErrCodeRenderingFailed)
	}

	logger.WithTraceContext(ctx, p.logger).Debug("Document produced",
		zap.String("document", ref.String()),
		zap.String("strategy", strategy.String()),
		zap.Int("bytes", artifact.Size()),
		zap.Duration("elapsed", time.Since(start)))
	return artifact, nil
}

// Deliver hands artifact to the user through share or download
func (p *Pipeline) Deliver(ctx context.Context, artifact *printing.Artifact, caps infra.PlatformCapabilities) (*infra.DeliveryReceipt, error) {
	ctx, span := telemetry.StartSpan(ctx, "print.deliver",
		telemetry.WithAttribute(telemetry.SpanAttrBytes, artifact.Size()))
	defer span.End()

	receipt, err := p.delivery.Deliver(ctx, artifact, caps)
	if err != nil {
		telemetry.SetAttributes(span, telemetry.SpanAttrErrorCode, printing.CodeOf(err).String())
		telemetry.RecordError(span, err)
		return nil, printing.AsPrintError(err, printing.ErrCodeDeliveryFailed)
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrDeliveryMethod, receipt.Method.String())
	telemetry.SetOK(span)
	p.metrics.RecordDelivery(ctx, receipt.Method.String(), receipt.FallbackReason != nil)
	return receipt, nil
}

// Preview returns the themed template HTML without opening a surface
func (p *Pipeline) Preview(ctx context.Context, doc printing.Document, opts printing.RenderOptions) (string, error) {
	if err := doc.Validate(); err != nil {
		return "", printing.AsPrintError(err, printing.ErrCodeInvalidDocument)
	}
	if err := opts.Validate(); err != nil {
		return "", printing.AsPrintError(err, printing.ErrCodeInvalidOptions)
	}
	html, err := p.renderer.Preview(ctx, doc, opts)
	if err != nil {
		return "", printing.AsPrintError(err, printing.ErrCodeRenderingFailed)
	}
	return html, nil
}

var _ ArtifactProducer = (*Pipeline)(nil)
