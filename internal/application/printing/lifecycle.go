package printing

import (
	"context"
	"time"

	"github.com/erp/docprint/internal/domain/printing"
	"github.com/erp/docprint/internal/domain/shared"
	"github.com/google/uuid"
)

// LifecycleEvent is the subscriber view of a session transition
type LifecycleEvent struct {
	Seq          int                        `json:"seq"`
	Type         string                     `json:"type"`
	SessionID    uuid.UUID                  `json:"session_id"`
	Index        int                        `json:"index"`
	Document     *printing.DocumentRef      `json:"document,omitempty"`
	State        printing.SessionState      `json:"state,omitempty"`
	Trigger      printing.CompletionTrigger `json:"trigger,omitempty"`
	Reason       string                     `json:"reason,omitempty"`
	ErrorCode    printing.ErrorCode         `json:"error_code,omitempty"`
	ErrorMessage string                     `json:"error_message,omitempty"`
	Strategy     printing.RenderStrategy    `json:"strategy,omitempty"`
	PageCount    int                        `json:"page_count,omitempty"`
	ByteSize     int                        `json:"byte_size,omitempty"`
	Printed      int                        `json:"printed,omitempty"`
	Total        int                        `json:"total"`
	OccurredAt   time.Time                  `json:"occurred_at"`
}

// Terminal reports whether this is the last event of a session
func (e LifecycleEvent) Terminal() bool {
	return e.Type == printing.EventTypePrintSessionFinished
}

// Hooks are called synchronously from the session goroutine, in emission order.
// Any hook may be nil.
type Hooks struct {
	OnStarted   func(ctx context.Context, doc printing.DocumentProgress)
	OnCompleted func(ctx context.Context, doc printing.DocumentProgress)
	OnCancelled func(ctx context.Context, doc printing.DocumentProgress, reason string)
	OnFailed    func(ctx context.Context, doc printing.DocumentProgress, err *printing.PrintError)
}

func (h Hooks) invoke(ctx context.Context, s *printing.PrintSession, event shared.DomainEvent) {
	de, ok := event.(printing.DocumentEvent)
	if !ok {
		return
	}
	doc := s.Documents[de.DocumentIndex()]
	switch e := event.(type) {
	case *printing.PrintDocumentStartedEvent:
		if h.OnStarted != nil {
			h.OnStarted(ctx, doc)
		}
	case *printing.PrintDocumentCompletedEvent:
		if h.OnCompleted != nil {
			h.OnCompleted(ctx, doc)
		}
	case *printing.PrintDocumentCancelledEvent:
		if h.OnCancelled != nil {
			h.OnCancelled(ctx, doc, e.Reason)
		}
	case *printing.PrintDocumentFailedEvent:
		if h.OnFailed != nil {
			h.OnFailed(ctx, doc, printing.NewPrintError(e.ErrorCode, e.ErrorMessage, nil))
		}
	}
}

// toLifecycleEvent flattens a session domain event. ok is false for events
// that do not belong to a print session.
func toLifecycleEvent(event shared.DomainEvent) (LifecycleEvent, bool) {
	ev := LifecycleEvent{
		Type:       event.EventType(),
		SessionID:  event.AggregateID(),
		Index:      -1,
		OccurredAt: event.OccurredAt(),
	}
	if de, ok := event.(printing.DocumentEvent); ok {
		ref := de.DocumentRef()
		ev.Index = de.DocumentIndex()
		ev.Document = &ref
	}

	switch e := event.(type) {
	case *printing.PrintSessionStartedEvent:
		ev.State = printing.SessionStateLoading
		ev.Total = e.DocumentCount
	case *printing.PrintDocumentStartedEvent:
		ev.State = printing.SessionStateLoading
		ev.Total = e.Total
	case *printing.PrintDocumentReadyEvent:
		ev.State = printing.SessionStateAwaitingUserAction
		ev.Total = e.Total
		ev.Strategy = e.Strategy
		ev.PageCount = e.PageCount
		ev.ByteSize = e.ByteSize
	case *printing.PrintDocumentCompletedEvent:
		ev.State = printing.SessionStateCompleted
		ev.Total = e.Total
		ev.Trigger = e.Trigger
	case *printing.PrintDocumentCancelledEvent:
		ev.State = printing.SessionStateCancelled
		ev.Total = e.Total
		ev.Reason = e.Reason
	case *printing.PrintDocumentFailedEvent:
		ev.State = printing.SessionStateFailed
		ev.Total = e.Total
		ev.ErrorCode = e.ErrorCode
		ev.ErrorMessage = e.ErrorMessage
	case *printing.PrintSessionFinishedEvent:
		ev.State = e.State
		ev.Total = e.Total
		ev.Printed = e.Printed
		ev.Reason = e.Reason
	default:
		return LifecycleEvent{}, false
	}
	return ev, true
}
