package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	printingapp "github.com/erp/docprint/internal/application/printing"
	"github.com/erp/docprint/internal/domain/printing"
	infra "github.com/erp/docprint/internal/infrastructure/printing"
	"github.com/erp/docprint/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Headers carried alongside PDF bodies
const (
	HeaderPrintCopies = "X-Print-Copies"
	HeaderPrintIndex  = "X-Print-Index"
)

// PrintService is the application surface the print endpoints drive.
// *printingapp.PrintService implements it.
type PrintService interface {
	Export(ctx context.Context, req printingapp.ExportRequest) (*printingapp.ExportResponse, error)
	Preview(ctx context.Context, req printingapp.PreviewRequest) (*printingapp.PreviewResponse, error)
	StartSession(ctx context.Context, req printingapp.StartSessionRequest) (*printingapp.SessionResponse, error)
	GetSession(ctx context.Context, id uuid.UUID) (*printingapp.SessionResponse, error)
	SubscribeSession(ctx context.Context, id uuid.UUID) (<-chan printingapp.LifecycleEvent, func(), error)
	CompleteSession(ctx context.Context, id uuid.UUID, index int) error
	CancelSession(ctx context.Context, id uuid.UUID, req printingapp.CancelSessionRequest) error
	SessionArtifact(ctx context.Context, id uuid.UUID) (*printingapp.ArtifactFile, error)
	ClaimDownload(ctx context.Context, token string) (*infra.DownloadFile, error)
	ListJobs(ctx context.Context, req printingapp.ListJobsRequest) (*printingapp.ListJobsResponse, error)
	GetJob(ctx context.Context, id uuid.UUID) (*printingapp.PrintJobResponse, error)
	DocumentTypes() []printingapp.DocumentTypeResponse
	PaperSizes() []printingapp.PaperSizeResponse
}

var _ PrintService = (*printingapp.PrintService)(nil)

// PrintHandler handles print-related API endpoints
type PrintHandler struct {
	BaseHandler
	printService PrintService
	logger       *zap.Logger
	heartbeat    time.Duration
}

// PrintHandlerOption is a functional option for configuring the handler
type PrintHandlerOption func(*PrintHandler)

// WithPrintLogger sets the logger for the handler
func WithPrintLogger(logger *zap.Logger) PrintHandlerOption {
	return func(h *PrintHandler) {
		h.logger = logger
	}
}

// WithEventHeartbeat sets the keep-alive interval of session event streams
func WithEventHeartbeat(interval time.Duration) PrintHandlerOption {
	return func(h *PrintHandler) {
		if interval > 0 {
			h.heartbeat = interval
		}
	}
}

// NewPrintHandler creates a new PrintHandler
func NewPrintHandler(printService PrintService, opts ...PrintHandlerOption) *PrintHandler {
	h := &PrintHandler{
		printService: printService,
		logger:       zap.NewNop(),
		heartbeat:    15 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// =============================================================================
// Export and Preview
// =============================================================================

// Export renders one document and delivers it as a share, download or print artifact.
// POST /print/export
func (h *PrintHandler) Export(c *gin.Context) {
	var req printingapp.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	resp, err := h.printService.Export(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Preview returns the themed HTML of a document without capturing it.
// POST /print/preview
func (h *PrintHandler) Preview(c *gin.Context) {
	var req printingapp.PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	resp, err := h.printService.Preview(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// =============================================================================
// Print Sessions
// =============================================================================

// StartSession starts printing a list of documents in order.
// POST /print/sessions
func (h *PrintHandler) StartSession(c *gin.Context) {
	var req printingapp.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	resp, err := h.printService.StartSession(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Location", c.FullPath()+"/"+resp.ID)
	h.Accepted(c, resp)
}

// GetSession returns a snapshot of a session.
// GET /print/sessions/:id
func (h *PrintHandler) GetSession(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}

	resp, err := h.printService.GetSession(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// SessionArtifact serves the PDF of the document awaiting user action.
// GET /print/sessions/:id/artifact
func (h *PrintHandler) SessionArtifact(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}

	file, err := h.printService.SessionArtifact(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header(HeaderPrintCopies, strconv.Itoa(file.Copies))
	c.Header(HeaderPrintIndex, strconv.Itoa(file.Index))
	c.Header("Cache-Control", "no-store")
	writePDF(c, "inline", file.Filename, file.MIMEType, file.Content)
}

// CompleteSession reports that the user finished printing the document at the
// given index.
// POST /print/sessions/:id/complete
func (h *PrintHandler) CompleteSession(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}

	var req printingapp.CompleteSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	if err := h.printService.CompleteSession(c.Request.Context(), id, *req.Index); err != nil {
		h.HandleError(c, err)
		return
	}
	h.sessionAccepted(c, id)
}

// CancelSession dismisses a session, or the dialog of one document when the
// body names its index. The body is optional.
// POST /print/sessions/:id/cancel
func (h *PrintHandler) CancelSession(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}

	var req printingapp.CancelSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.BindError(c, err)
		return
	}

	if err := h.printService.CancelSession(c.Request.Context(), id, req); err != nil {
		h.HandleError(c, err)
		return
	}
	h.sessionAccepted(c, id)
}

// sessionAccepted answers a session command with the session as it is now.
// The command itself is applied by the session goroutine.
func (h *PrintHandler) sessionAccepted(c *gin.Context, id uuid.UUID) {
	resp, err := h.printService.GetSession(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, resp)
}

// StreamSession streams the lifecycle events of a session as Server-Sent Events.
// Past events are replayed first. The SSE id is the event sequence number, so a
// Last-Event-ID header skips the ones already seen.
// The stream ends after the session finishes.
// GET /print/sessions/:id/events
func (h *PrintHandler) StreamSession(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}

	events, unsubscribe, err := h.printService.SubscribeSession(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	defer unsubscribe()

	skip, _ := strconv.Atoi(c.GetHeader("Last-Event-ID"))

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	writeSSE(c.Writer, "connected", "", fmt.Sprintf(`{"session_id":"%s","timestamp":%d}`, id, time.Now().Unix()))
	c.Writer.Flush()

	h.logger.Debug("Session event stream opened", zap.String("session_id", id.String()))

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	reqCtx := c.Request.Context()
	for {
		select {
		case <-reqCtx.Done():
			h.logger.Debug("Session event stream closed by client", zap.String("session_id", id.String()))
			return
		case <-heartbeat.C:
			writeSSE(c.Writer, "heartbeat", "", fmt.Sprintf(`{"timestamp":%d}`, time.Now().Unix()))
			c.Writer.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Seq > skip {
				data, err := json.Marshal(ev)
				if err != nil {
					h.logger.Error("Failed to marshal lifecycle event", zap.Error(err))
					continue
				}
				writeSSE(c.Writer, ev.Type, strconv.Itoa(ev.Seq), string(data))
				c.Writer.Flush()
			}
			if ev.Terminal() {
				return
			}
		}
	}
}

// =============================================================================
// Downloads
// =============================================================================

// Download serves a delivered artifact once.
// GET /print/downloads/:token
func (h *PrintHandler) Download(c *gin.Context) {
	var req dto.TokenRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.NotFound(c, "Download not found")
		return
	}

	file, err := h.printService.ClaimDownload(c.Request.Context(), req.Token)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	writePDF(c, "attachment", file.Filename, printing.MIMETypePDF, file.Content)
}

// =============================================================================
// Print Jobs
// =============================================================================

// ListJobs lists recorded print jobs with filtering and pagination.
// GET /print/jobs
func (h *PrintHandler) ListJobs(c *gin.Context) {
	var req printingapp.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}

	resp, err := h.printService.ListJobs(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, resp.Items, resp.Total, resp.Page, resp.Size)
}

// GetJob returns one recorded print job.
// GET /print/jobs/:id
func (h *PrintHandler) GetJob(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}

	resp, err := h.printService.GetJob(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// =============================================================================
// Reference Data
// =============================================================================

// GetDocumentTypes lists the printable document types.
// GET /print/document-types
func (h *PrintHandler) GetDocumentTypes(c *gin.Context) {
	h.Success(c, h.printService.DocumentTypes())
}

// GetPaperSizes lists the supported paper sizes.
// GET /print/paper-sizes
func (h *PrintHandler) GetPaperSizes(c *gin.Context) {
	h.Success(c, h.printService.PaperSizes())
}

// =============================================================================
// Helpers
// =============================================================================

func (h *PrintHandler) bindID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid ID format")
		return uuid.Nil, false
	}
	return uuid.MustParse(req.ID), true
}

func writePDF(c *gin.Context, disposition, filename, mimeType string, content []byte) {
	if mimeType == "" {
		mimeType = printing.MIMETypePDF
	}
	c.Header("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": filename}))
	c.Data(http.StatusOK, mimeType, content)
}

func writeSSE(w io.Writer, event, id, data string) {
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	if id != "" {
		fmt.Fprintf(w, "id: %s\n", id)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
