package printing

import (
	"time"

	"github.com/erp/docprint/internal/domain/printing"
	infra "github.com/erp/docprint/internal/infrastructure/printing"
	"github.com/google/uuid"
)

// =============================================================================
// Shared DTOs
// =============================================================================

// DocumentRefDTO identifies a document in the upstream backend
type DocumentRefDTO struct {
	Type   string `json:"type" binding:"required"`
	Number string `json:"number" binding:"required,max=64"`
}

func (r DocumentRefDTO) toDomain() printing.DocumentRef {
	return printing.DocumentRef{Type: printing.DocType(r.Type), Number: r.Number}
}

// MarginsDTO represents page margins
type MarginsDTO struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// RenderOptionsDTO overrides the derived render options.
// Zero values take the defaults.
type RenderOptionsDTO struct {
	PaperSize    string      `json:"paper_size"`
	Orientation  string      `json:"orientation"`
	Margins      *MarginsDTO `json:"margins"`
	Scale        float64     `json:"scale" binding:"omitempty,min=0.1,max=2"`
	ImageQuality int         `json:"image_quality" binding:"omitempty,min=1,max=100"`
	Filename     string      `json:"filename" binding:"max=200"`
	WidthPx      int         `json:"width_px" binding:"min=0"`
	HeightPx     int         `json:"height_px" binding:"min=0"`
}

func (o *RenderOptionsDTO) toDomain() *printing.RenderOptions {
	if o == nil {
		return nil
	}
	opts := printing.RenderOptions{
		PaperSize:    printing.PaperSize(o.PaperSize),
		Orientation:  printing.Orientation(o.Orientation),
		Margins:      printing.DefaultMargins(),
		Scale:        o.Scale,
		ImageQuality: o.ImageQuality,
		Filename:     o.Filename,
		WidthPx:      o.WidthPx,
		HeightPx:     o.HeightPx,
	}
	if o.Margins != nil {
		opts.Margins = printing.Margins{
			Top:    o.Margins.Top,
			Right:  o.Margins.Right,
			Bottom: o.Margins.Bottom,
			Left:   o.Margins.Left,
		}
	}
	return &opts
}

// ClientCapabilitiesDTO is what the calling client supports
type ClientCapabilitiesDTO struct {
	ShareFiles    bool     `json:"share_files"`
	SmallViewport bool     `json:"small_viewport"`
	AcceptedTypes []string `json:"accepted_types"`
}

// =============================================================================
// Export and Preview DTOs
// =============================================================================

// ExportRequest renders, captures and delivers one document.
// Either Document or Payload is required; Payload wins when both are set.
type ExportRequest struct {
	Document *DocumentRefDTO       `json:"document"`
	Payload  *printing.Document    `json:"payload"`
	Options  *RenderOptionsDTO     `json:"options"`
	Client   ClientCapabilitiesDTO `json:"client"`
}

// ExportResponse describes how the artifact reached the user
type ExportResponse struct {
	Method         string     `json:"method"`
	URL            string     `json:"url"`
	Filename       string     `json:"filename"`
	MIMEType       string     `json:"mime_type"`
	Size           int        `json:"size"`
	PageCount      int        `json:"page_count"`
	Strategy       string     `json:"strategy"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	FallbackReason string     `json:"fallback_reason,omitempty"`
}

func toExportResponse(receipt *infra.DeliveryReceipt, strategy printing.RenderStrategy) *ExportResponse {
	resp := &ExportResponse{
		Method:    receipt.Method.String(),
		URL:       receipt.URL,
		Filename:  receipt.Filename,
		MIMEType:  receipt.MIMEType,
		Size:      receipt.Size,
		PageCount: receipt.PageCount,
		Strategy:  strategy.String(),
	}
	if !receipt.ExpiresAt.IsZero() {
		expires := receipt.ExpiresAt
		resp.ExpiresAt = &expires
	}
	if receipt.FallbackReason != nil {
		resp.FallbackReason = receipt.FallbackReason.Message
	}
	return resp
}

// PreviewRequest asks for the themed HTML of a document
type PreviewRequest struct {
	Document      *DocumentRefDTO    `json:"document"`
	Payload       *printing.Document `json:"payload"`
	Options       *RenderOptionsDTO  `json:"options"`
	SmallViewport bool               `json:"small_viewport"`
}

// PreviewResponse represents the preview result
type PreviewResponse struct {
	HTML        string     `json:"html"`
	PaperSize   string     `json:"paper_size"`
	Orientation string     `json:"orientation"`
	Margins     MarginsDTO `json:"margins"`
	Filename    string     `json:"filename"`
}

// =============================================================================
// Print Session DTOs
// =============================================================================

// StartSessionRequest starts printing one document or a batch
type StartSessionRequest struct {
	Documents []DocumentRefDTO `json:"documents" binding:"required,min=1,max=50,dive"`
	// Payloads are matched to Documents by type and number
	Payloads      []printing.Document `json:"payloads"`
	Copies        int                 `json:"copies" binding:"omitempty,min=1,max=100"`
	Options       *RenderOptionsDTO   `json:"options"`
	SmallViewport bool                `json:"small_viewport"`
}

// CompleteSessionRequest reports the document the user finished printing
type CompleteSessionRequest struct {
	Index *int `json:"index" binding:"required,min=0"`
}

// CancelSessionRequest dismisses a session. With Index it dismisses the print
// dialog of that document; without it the whole session is cancelled.
type CancelSessionRequest struct {
	Reason string `json:"reason" binding:"max=500"`
	Index  *int   `json:"index" binding:"omitempty,min=0"`
}

// SessionResponse is a snapshot of a print session
type SessionResponse struct {
	ID           string                      `json:"id"`
	State        string                      `json:"state"`
	Current      int                         `json:"current"`
	Total        int                         `json:"total"`
	Copies       int                         `json:"copies"`
	Documents    []printing.DocumentProgress `json:"documents"`
	StartedAt    *time.Time                  `json:"started_at,omitempty"`
	CompletedAt  *time.Time                  `json:"completed_at,omitempty"`
	CancelledAt  *time.Time                  `json:"cancelled_at,omitempty"`
	FailedAt     *time.Time                  `json:"failed_at,omitempty"`
	ErrorCode    string                      `json:"error_code,omitempty"`
	ErrorMessage string                      `json:"error_message,omitempty"`
	CancelReason string                      `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

// ToSessionResponse converts a session snapshot to its response
func ToSessionResponse(s printing.PrintSession) *SessionResponse {
	resp := &SessionResponse{
		ID:           s.ID.String(),
		State:        s.State.String(),
		Current:      s.Current,
		Total:        len(s.Documents),
		Copies:       s.Copies,
		Documents:    s.Documents,
		StartedAt:    s.StartedAt,
		CompletedAt:  s.CompletedAt,
		CancelledAt:  s.CancelledAt,
		FailedAt:     s.FailedAt,
		CancelReason: s.CancelReason,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
	if s.LastError != nil {
		resp.ErrorCode = s.LastError.Code.String()
		resp.ErrorMessage = s.LastError.Message
	}
	return resp
}

// ArtifactFile is the PDF awaiting user action in a session
type ArtifactFile struct {
	SessionID uuid.UUID
	Index     int
	Filename  string
	MIMEType  string
	Content   []byte
	Copies    int
}

// =============================================================================
// Print Job DTOs
// =============================================================================

// ListJobsRequest represents a request to list print jobs
type ListJobsRequest struct {
	Page           int    `form:"page" binding:"omitempty,min=1"`
	PageSize       int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy        string `form:"order_by"`
	OrderDir       string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	DocumentType   string `form:"document_type"`
	DocumentNumber string `form:"document_number"`
	SessionID      string `form:"session_id" binding:"omitempty,uuid"`
	Status         string `form:"status"`
}

// PrintJobResponse represents a print job response
type PrintJobResponse struct {
	ID             string     `json:"id"`
	SessionID      string     `json:"session_id,omitempty"`
	DocumentIndex  int        `json:"document_index"`
	DocumentType   string     `json:"document_type"`
	DocumentNumber string     `json:"document_number"`
	Status         string     `json:"status"`
	Copies         int        `json:"copies"`
	Strategy       string     `json:"strategy,omitempty"`
	PageCount      int        `json:"page_count,omitempty"`
	ByteSize       int        `json:"byte_size,omitempty"`
	DeliveryMethod string     `json:"delivery_method,omitempty"`
	DeliveryURL    string     `json:"delivery_url,omitempty"`
	ErrorCode      string     `json:"error_code,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CancelReason   string     `json:"cancel_reason,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ToPrintJobResponse converts a domain job to its response
func ToPrintJobResponse(job *printing.PrintJob) PrintJobResponse {
	resp := PrintJobResponse{
		ID:             job.ID.String(),
		DocumentIndex:  job.DocumentIndex,
		DocumentType:   job.DocumentType.String(),
		DocumentNumber: job.DocumentNumber,
		Status:         job.Status.String(),
		Copies:         job.Copies,
		Strategy:       job.Strategy.String(),
		PageCount:      job.PageCount,
		ByteSize:       job.ByteSize,
		DeliveryMethod: job.DeliveryMethod.String(),
		DeliveryURL:    job.DeliveryURL,
		ErrorCode:      job.ErrorCode,
		ErrorMessage:   job.ErrorMessage,
		CancelReason:   job.CancelReason,
		FinishedAt:     job.FinishedAt,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
	}
	if job.SessionID != nil {
		resp.SessionID = job.SessionID.String()
	}
	return resp
}

// ListJobsResponse represents a paginated list of print jobs
type ListJobsResponse struct {
	Items []PrintJobResponse `json:"items"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Size  int                `json:"size"`
}

// =============================================================================
// Reference Data DTOs
// =============================================================================

// DocumentTypeResponse represents a document type
type DocumentTypeResponse struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
}

// PaperSizeResponse represents a paper size in millimeters.
// Height is 0 for paper whose length follows the content.
type PaperSizeResponse struct {
	Code   string `json:"code"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}
