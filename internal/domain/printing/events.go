package printing

import (
	"github.com/erp/docprint/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constants
const (
	AggregateTypePrintSession = "PrintSession"
	AggregateTypePrintExport  = "PrintExport"
)

// Event type constants for PrintSession
const (
	EventTypePrintSessionStarted    = "PrintSessionStarted"
	EventTypePrintDocumentStarted   = "PrintDocumentStarted"
	EventTypePrintDocumentReady     = "PrintDocumentReady"
	EventTypePrintDocumentCompleted = "PrintDocumentCompleted"
	EventTypePrintDocumentCancelled = "PrintDocumentCancelled"
	EventTypePrintDocumentFailed    = "PrintDocumentFailed"
	EventTypePrintSessionFinished   = "PrintSessionFinished"
)

// Event type constants for one-shot exports
const (
	EventTypePrintDocumentExported = "PrintDocumentExported"
)

// DocumentEvent is implemented by events that refer to one queued document
type DocumentEvent interface {
	shared.DomainEvent
	DocumentIndex() int
	DocumentRef() DocumentRef
}

// documentEventBase carries the fields shared by per-document events
type documentEventBase struct {
	shared.BaseDomainEvent
	SessionID uuid.UUID   `json:"session_id"`
	Index     int         `json:"index"`
	Ref       DocumentRef `json:"ref"`
	Total     int         `json:"total"`
}

// DocumentIndex returns the position of the document in the session queue
func (e *documentEventBase) DocumentIndex() int {
	return e.Index
}

// DocumentRef returns the document reference
func (e *documentEventBase) DocumentRef() DocumentRef {
	return e.Ref
}

func newDocumentEventBase(eventType string, s *PrintSession, doc *DocumentProgress) documentEventBase {
	return documentEventBase{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypePrintSession, s.ID),
		SessionID:       s.ID,
		Index:           doc.Index,
		Ref:             doc.Ref,
		Total:           len(s.Documents),
	}
}

// PrintSessionStartedEvent is published when a session leaves Idle
type PrintSessionStartedEvent struct {
	shared.BaseDomainEvent
	SessionID     uuid.UUID     `json:"session_id"`
	Documents     []DocumentRef `json:"documents"`
	Copies        int           `json:"copies"`
	BatchMode     bool          `json:"batch_mode"`
	DocumentCount int           `json:"document_count"`
}

// NewPrintSessionStartedEvent creates a new PrintSessionStartedEvent
func NewPrintSessionStartedEvent(s *PrintSession) *PrintSessionStartedEvent {
	refs := make([]DocumentRef, len(s.Documents))
	for i, d := range s.Documents {
		refs[i] = d.Ref
	}
	return &PrintSessionStartedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePrintSessionStarted, AggregateTypePrintSession, s.ID),
		SessionID:       s.ID,
		Documents:       refs,
		Copies:          s.Copies,
		BatchMode:       s.IsBatch(),
		DocumentCount:   len(refs),
	}
}

// PrintDocumentStartedEvent is published when a document starts loading
type PrintDocumentStartedEvent struct {
	documentEventBase
}

// NewPrintDocumentStartedEvent creates a new PrintDocumentStartedEvent
func NewPrintDocumentStartedEvent(s *PrintSession, doc *DocumentProgress) *PrintDocumentStartedEvent {
	return &PrintDocumentStartedEvent{
		documentEventBase: newDocumentEventBase(EventTypePrintDocumentStarted, s, doc),
	}
}

// PrintDocumentReadyEvent is published when the artifact is ready and the print dialog is open
type PrintDocumentReadyEvent struct {
	documentEventBase
	Strategy  RenderStrategy `json:"strategy"`
	PageCount int            `json:"page_count"`
	ByteSize  int            `json:"byte_size"`
	Copies    int            `json:"copies"`
}

// NewPrintDocumentReadyEvent creates a new PrintDocumentReadyEvent
func NewPrintDocumentReadyEvent(s *PrintSession, doc *DocumentProgress) *PrintDocumentReadyEvent {
	return &PrintDocumentReadyEvent{
		documentEventBase: newDocumentEventBase(EventTypePrintDocumentReady, s, doc),
		Strategy:          doc.Strategy,
		PageCount:         doc.PageCount,
		ByteSize:          doc.ByteSize,
		Copies:            s.Copies,
	}
}

// PrintDocumentCompletedEvent is published when a document finished printing
type PrintDocumentCompletedEvent struct {
	documentEventBase
	Trigger CompletionTrigger `json:"trigger"`
}

// NewPrintDocumentCompletedEvent creates a new PrintDocumentCompletedEvent
func NewPrintDocumentCompletedEvent(s *PrintSession, doc *DocumentProgress) *PrintDocumentCompletedEvent {
	return &PrintDocumentCompletedEvent{
		documentEventBase: newDocumentEventBase(EventTypePrintDocumentCompleted, s, doc),
		Trigger:           doc.Trigger,
	}
}

// PrintDocumentCancelledEvent is published when the user dismissed a document
type PrintDocumentCancelledEvent struct {
	documentEventBase
	Reason string `json:"reason,omitempty"`
}

// NewPrintDocumentCancelledEvent creates a new PrintDocumentCancelledEvent
func NewPrintDocumentCancelledEvent(s *PrintSession, doc *DocumentProgress) *PrintDocumentCancelledEvent {
	return &PrintDocumentCancelledEvent{
		documentEventBase: newDocumentEventBase(EventTypePrintDocumentCancelled, s, doc),
		Reason:            doc.CancelReason,
	}
}

// PrintDocumentFailedEvent is published when a document could not be printed
type PrintDocumentFailedEvent struct {
	documentEventBase
	ErrorCode    ErrorCode `json:"error_code"`
	ErrorMessage string    `json:"error_message"`
}

// NewPrintDocumentFailedEvent creates a new PrintDocumentFailedEvent
func NewPrintDocumentFailedEvent(s *PrintSession, doc *DocumentProgress) *PrintDocumentFailedEvent {
	return &PrintDocumentFailedEvent{
		documentEventBase: newDocumentEventBase(EventTypePrintDocumentFailed, s, doc),
		ErrorCode:         doc.ErrorCode,
		ErrorMessage:      doc.ErrorMessage,
	}
}

// PrintSessionFinishedEvent is published once a session reached its final state
type PrintSessionFinishedEvent struct {
	shared.BaseDomainEvent
	SessionID uuid.UUID    `json:"session_id"`
	State     SessionState `json:"state"`
	Printed   int          `json:"printed"`
	Total     int          `json:"total"`
	Reason    string       `json:"reason,omitempty"`
}

// NewPrintSessionFinishedEvent creates a new PrintSessionFinishedEvent
func NewPrintSessionFinishedEvent(s *PrintSession) *PrintSessionFinishedEvent {
	printed := 0
	for _, d := range s.Documents {
		if d.Status == DocumentStatusCompleted {
			printed++
		}
	}
	reason := s.CancelReason
	if s.State == SessionStateFailed && s.LastError != nil {
		reason = s.LastError.Message
	}
	return &PrintSessionFinishedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePrintSessionFinished, AggregateTypePrintSession, s.ID),
		SessionID:       s.ID,
		State:           s.State,
		Printed:         printed,
		Total:           len(s.Documents),
		Reason:          reason,
	}
}

// PrintDocumentExportedEvent is published when a one-shot export delivered an artifact
type PrintDocumentExportedEvent struct {
	shared.BaseDomainEvent
	ExportID  uuid.UUID      `json:"export_id"`
	Ref       DocumentRef    `json:"ref"`
	Method    DeliveryMethod `json:"method"`
	Location  string         `json:"location"`
	Strategy  RenderStrategy `json:"strategy"`
	PageCount int            `json:"page_count"`
	ByteSize  int            `json:"byte_size"`
}

// NewPrintDocumentExportedEvent creates a new PrintDocumentExportedEvent
func NewPrintDocumentExportedEvent(ref DocumentRef, artifact *Artifact, method DeliveryMethod, location string) *PrintDocumentExportedEvent {
	id := uuid.New()
	return &PrintDocumentExportedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePrintDocumentExported, AggregateTypePrintExport, id),
		ExportID:        id,
		Ref:             ref,
		Method:          method,
		Location:        location,
		Strategy:        artifact.Strategy,
		PageCount:       artifact.PageCount,
		ByteSize:        artifact.Size(),
	}
}
