package printing

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/docprint/internal/domain/printing"
	"github.com/erp/docprint/internal/domain/shared"
	infra "github.com/erp/docprint/internal/infrastructure/printing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InteractiveDialog is a print dialog the client drives over the API
type InteractiveDialog interface {
	infra.PrintDialog
	Signal(sessionID uuid.UUID, index int, signal infra.PrintSignal) error
	Pending(sessionID uuid.UUID) (infra.PrintRequest, bool)
}

// DownloadClaimer hands out stored downloads once
type DownloadClaimer interface {
	Claim(ctx context.Context, token string) (*infra.DownloadFile, error)
}

// ErrJobHistoryDisabled is returned by job queries when no database is configured
var ErrJobHistoryDisabled = shared.NewDomainError("NOT_CONFIGURED", "Print job history is not enabled")

// ServiceConfig holds the limits the service applies to client capabilities
type ServiceConfig struct {
	// MaxShareBytes caps shared files; 0 means unlimited
	MaxShareBytes int
}

// PrintService handles printing-related business operations
type PrintService struct {
	pipeline  *Pipeline
	tracker   *Tracker
	source    printing.DocumentSource
	dialog    InteractiveDialog
	downloads DownloadClaimer
	jobRepo   printing.PrintJobRepository
	publisher shared.EventPublisher
	config    ServiceConfig
	logger    *zap.Logger
}

// NewPrintService creates a new PrintService.
// jobRepo, downloads and publisher may be nil.
func NewPrintService(
	pipeline *Pipeline,
	tracker *Tracker,
	source printing.DocumentSource,
	dialog InteractiveDialog,
	downloads DownloadClaimer,
	jobRepo printing.PrintJobRepository,
	publisher shared.EventPublisher,
	config ServiceConfig,
	logger *zap.Logger,
) *PrintService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrintService{
		pipeline:  pipeline,
		tracker:   tracker,
		source:    source,
		dialog:    dialog,
		downloads: downloads,
		jobRepo:   jobRepo,
		publisher: publisher,
		config:    config,
		logger:    logger,
	}
}

// =============================================================================
// Export and Preview Operations
// =============================================================================

// Export renders, captures and delivers one document
func (s *PrintService) Export(ctx context.Context, req ExportRequest) (*ExportResponse, error) {
	doc, err := s.resolveDocument(ctx, req.Document, req.Payload)
	if err != nil {
		return nil, err
	}
	opts := resolveOptions(*doc, req.Options.toDomain(), req.Client.SmallViewport)

	artifact, err := s.pipeline.Produce(ctx, *doc, opts)
	if err != nil {
		return nil, err
	}

	caps := infra.RequestCapabilities{
		ShareFiles:    req.Client.ShareFiles,
		Small:         req.Client.SmallViewport,
		MaxShareBytes: s.config.MaxShareBytes,
		AcceptedTypes: req.Client.AcceptedTypes,
	}
	receipt, err := s.pipeline.Deliver(ctx, artifact, caps)
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		event := printing.NewPrintDocumentExportedEvent(doc.Ref(), artifact, receipt.Method, receipt.URL)
		if perr := s.publisher.Publish(ctx, event); perr != nil {
			s.logger.Warn("Failed to publish export event", zap.Error(perr))
		}
	}

	s.logger.Info("Document exported",
		zap.String("document", doc.Ref().String()),
		zap.String("method", receipt.Method.String()),
		zap.Int("bytes", receipt.Size))
	return toExportResponse(receipt, artifact.Strategy), nil
}

// Preview returns the themed template HTML of a document
func (s *PrintService) Preview(ctx context.Context, req PreviewRequest) (*PreviewResponse, error) {
	doc, err := s.resolveDocument(ctx, req.Document, req.Payload)
	if err != nil {
		return nil, err
	}
	opts := resolveOptions(*doc, req.Options.toDomain(), req.SmallViewport)

	html, err := s.pipeline.Preview(ctx, *doc, opts)
	if err != nil {
		return nil, err
	}
	return &PreviewResponse{
		HTML:        html,
		PaperSize:   opts.PaperSize.String(),
		Orientation: opts.Orientation.String(),
		Margins: MarginsDTO{
			Top:    opts.Margins.Top,
			Right:  opts.Margins.Right,
			Bottom: opts.Margins.Bottom,
			Left:   opts.Margins.Left,
		},
		Filename: opts.Filename,
	}, nil
}

// =============================================================================
// Print Session Operations
// =============================================================================

// StartSession starts printing the requested documents in order
func (s *PrintService) StartSession(ctx context.Context, req StartSessionRequest) (*SessionResponse, error) {
	refs := make([]printing.DocumentRef, len(req.Documents))
	for i, d := range req.Documents {
		refs[i] = d.toDomain()
		if err := refs[i].Validate(); err != nil {
			return nil, err
		}
	}

	inline := make(map[int]printing.Document)
	for _, payload := range req.Payloads {
		matched := false
		for i, ref := range refs {
			if payload.Ref() == ref {
				inline[i] = payload
				matched = true
			}
		}
		if !matched {
			return nil, printing.NewPrintError(printing.ErrCodeInvalidDocument,
				fmt.Sprintf("payload %s is not in the document list", payload.Ref()), nil)
		}
	}

	session, err := s.tracker.Start(ctx, SessionRequest{
		Documents:     refs,
		Inline:        inline,
		Copies:        req.Copies,
		Options:       req.Options.toDomain(),
		SmallViewport: req.SmallViewport,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Print session started",
		zap.String("session_id", session.ID.String()),
		zap.Int("documents", len(refs)),
		zap.Int("copies", session.Copies))
	return ToSessionResponse(session), nil
}

// GetSession returns a snapshot of a session
func (s *PrintService) GetSession(ctx context.Context, id uuid.UUID) (*SessionResponse, error) {
	session, err := s.tracker.Get(id)
	if err != nil {
		return nil, err
	}
	return ToSessionResponse(session), nil
}

// SubscribeSession streams the lifecycle events of a session
func (s *PrintService) SubscribeSession(ctx context.Context, id uuid.UUID) (<-chan LifecycleEvent, func(), error) {
	return s.tracker.Subscribe(id)
}

// CompleteSession reports that the client finished printing the document at index.
// Only the document whose dialog is open can be completed.
func (s *PrintService) CompleteSession(ctx context.Context, id uuid.UUID, index int) error {
	return s.signal(id, index, infra.PrintSignal{Kind: infra.SignalCompleted})
}

// CancelSession dismisses the dialog of req.Index, or cancels the whole session
// when no index is given
func (s *PrintService) CancelSession(ctx context.Context, id uuid.UUID, req CancelSessionRequest) error {
	if req.Index != nil {
		if err := s.signal(id, *req.Index, infra.PrintSignal{Kind: infra.SignalDismissed, Reason: req.Reason}); err != nil {
			return err
		}
		s.logger.Info("Print dialog dismissed",
			zap.String("session_id", id.String()),
			zap.Int("index", *req.Index),
			zap.String("reason", req.Reason))
		return nil
	}
	if err := s.tracker.Cancel(id, req.Reason); err != nil {
		return err
	}
	s.logger.Info("Print session cancel requested",
		zap.String("session_id", id.String()),
		zap.String("reason", req.Reason))
	return nil
}

func (s *PrintService) signal(id uuid.UUID, index int, signal infra.PrintSignal) error {
	if _, err := s.tracker.Get(id); err != nil {
		return err
	}
	err := s.dialog.Signal(id, index, signal)
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NewDomainError("INVALID_STATE", "No document is awaiting user action")
	}
	return err
}

// SessionArtifact returns the PDF of the document awaiting user action
func (s *PrintService) SessionArtifact(ctx context.Context, id uuid.UUID) (*ArtifactFile, error) {
	if _, err := s.tracker.Get(id); err != nil {
		return nil, err
	}
	req, ok := s.dialog.Pending(id)
	if !ok || req.Artifact == nil {
		return nil, shared.NewDomainError("INVALID_STATE", "No document is awaiting user action")
	}
	return &ArtifactFile{
		SessionID: id,
		Index:     req.Index,
		Filename:  req.Artifact.Filename,
		MIMEType:  req.Artifact.MIMEType,
		Content:   req.Artifact.Content,
		Copies:    req.Copies,
	}, nil
}

// ClaimDownload returns a delivered artifact once
func (s *PrintService) ClaimDownload(ctx context.Context, token string) (*infra.DownloadFile, error) {
	if s.downloads == nil {
		return nil, shared.ErrNotFound
	}
	return s.downloads.Claim(ctx, token)
}

// =============================================================================
// Print Job Operations
// =============================================================================

// ListJobs lists recorded print jobs
func (s *PrintService) ListJobs(ctx context.Context, req ListJobsRequest) (*ListJobsResponse, error) {
	if s.jobRepo == nil {
		return nil, ErrJobHistoryDisabled
	}

	filter := printing.PrintJobFilter{
		Filter: shared.Filter{
			Page:     req.Page,
			PageSize: req.PageSize,
			OrderBy:  req.OrderBy,
			OrderDir: req.OrderDir,
		},
		DocumentNumber: req.DocumentNumber,
	}
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.PageSize == 0 {
		filter.PageSize = 20
	}
	if req.DocumentType != "" {
		docType := printing.DocType(req.DocumentType)
		if !docType.IsValid() {
			return nil, shared.NewDomainError("INVALID_INPUT", "Invalid document type")
		}
		filter.DocumentType = &docType
	}
	if req.Status != "" {
		status := printing.JobStatus(req.Status)
		if !status.IsValid() {
			return nil, shared.NewDomainError("INVALID_INPUT", "Invalid job status")
		}
		filter.Status = &status
	}
	if req.SessionID != "" {
		sessionID, err := uuid.Parse(req.SessionID)
		if err != nil {
			return nil, shared.NewDomainError("INVALID_INPUT", "Invalid session ID")
		}
		filter.SessionID = &sessionID
	}

	jobs, err := s.jobRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list print jobs: %w", err)
	}
	total, err := s.jobRepo.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count print jobs: %w", err)
	}

	items := make([]PrintJobResponse, len(jobs))
	for i := range jobs {
		items[i] = ToPrintJobResponse(&jobs[i])
	}
	return &ListJobsResponse{
		Items: items,
		Total: total,
		Page:  filter.Page,
		Size:  filter.PageSize,
	}, nil
}

// GetJob returns one recorded print job
func (s *PrintService) GetJob(ctx context.Context, id uuid.UUID) (*PrintJobResponse, error) {
	if s.jobRepo == nil {
		return nil, ErrJobHistoryDisabled
	}
	job, err := s.jobRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToPrintJobResponse(job)
	return &resp, nil
}

// =============================================================================
// Reference Data
// =============================================================================

// DocumentTypes returns the printable document types
func (s *PrintService) DocumentTypes() []DocumentTypeResponse {
	types := printing.AllDocTypes()
	result := make([]DocumentTypeResponse, len(types))
	for i, t := range types {
		result[i] = DocumentTypeResponse{Code: t.String(), DisplayName: t.DisplayName()}
	}
	return result
}

// PaperSizes returns the supported paper sizes
func (s *PrintService) PaperSizes() []PaperSizeResponse {
	sizes := printing.AllPaperSizes()
	result := make([]PaperSizeResponse, len(sizes))
	for i, p := range sizes {
		w, h := p.Dimensions()
		result[i] = PaperSizeResponse{Code: p.String(), Width: w, Height: h}
	}
	return result
}

// =============================================================================
// Helpers
// =============================================================================

func (s *PrintService) resolveDocument(ctx context.Context, ref *DocumentRefDTO, payload *printing.Document) (*printing.Document, error) {
	if payload != nil {
		if err := payload.Validate(); err != nil {
			return nil, printing.AsPrintError(err, printing.ErrCodeInvalidDocument)
		}
		return payload, nil
	}
	if ref == nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Either document or payload is required")
	}
	r := ref.toDomain()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if s.source == nil {
		return nil, printing.NewPrintError(printing.ErrCodeDocumentUnavailable, "no document source configured", nil)
	}
	doc, err := s.source.Fetch(ctx, r)
	if err != nil {
		return nil, printing.AsPrintError(err, printing.ErrCodeDocumentUnavailable)
	}
	return doc, nil
}

// resolveOptions fills caller overrides with defaults, or derives options
// from the document when the caller sent none.
func resolveOptions(doc printing.Document, override *printing.RenderOptions, small bool) printing.RenderOptions {
	if override == nil {
		return printing.DeriveRenderOptions(doc, small)
	}
	opts := *override
	if opts.Filename == "" {
		opts.Filename = printing.DefaultFilename(doc.Ref())
	}
	if opts.ViewportWidthPx == 0 && small {
		opts.ViewportWidthPx = printing.MobileViewportWidthPx
	}
	return opts.WithDefaults()
}
