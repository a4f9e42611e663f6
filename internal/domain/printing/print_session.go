package printing

import (
	"fmt"
	"time"

	"github.com/erp/docprint/internal/domain/shared"
)

// MaxBatchSize bounds the number of documents in one print session
const MaxBatchSize = 50

// DocumentStatus is the per-document outcome inside a print session
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "PENDING"
	DocumentStatusInProgress DocumentStatus = "IN_PROGRESS"
	DocumentStatusCompleted  DocumentStatus = "COMPLETED"
	DocumentStatusCancelled  DocumentStatus = "CANCELLED"
	DocumentStatusFailed     DocumentStatus = "FAILED"
	DocumentStatusAbandoned  DocumentStatus = "ABANDONED" // Queued behind a cancelled or failed document
)

// DocumentProgress tracks one queued document of a session
type DocumentProgress struct {
	Index        int               `json:"index"`
	Ref          DocumentRef       `json:"ref"`
	Status       DocumentStatus    `json:"status"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	FinishedAt   *time.Time        `json:"finished_at,omitempty"`
	Trigger      CompletionTrigger `json:"trigger,omitempty"`
	Strategy     RenderStrategy    `json:"strategy,omitempty"`
	PageCount    int               `json:"page_count,omitempty"`
	ByteSize     int               `json:"byte_size,omitempty"`
	ErrorCode    ErrorCode         `json:"error_code,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	CancelReason string            `json:"cancel_reason,omitempty"`
}

// PrintSession tracks one print invocation over an ordered queue of documents.
// Documents are processed one at a time; the next document only starts after
// the current one completed.
type PrintSession struct {
	shared.BaseAggregateRoot
	State        SessionState
	Documents    []DocumentProgress
	Current      int
	Copies       int
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CancelledAt  *time.Time
	FailedAt     *time.Time
	LastError    *PrintError
	CancelReason string
}

// NewPrintSession creates an idle session for the given documents
func NewPrintSession(refs []DocumentRef, copies int) (*PrintSession, error) {
	if len(refs) == 0 {
		return nil, shared.NewDomainError("EMPTY_SESSION", "A print session needs at least one document")
	}
	if len(refs) > MaxBatchSize {
		return nil, shared.NewDomainError("BATCH_TOO_LARGE", fmt.Sprintf("A print session cannot exceed %d documents", MaxBatchSize))
	}
	if copies == 0 {
		copies = 1
	}
	if copies < 1 || copies > 100 {
		return nil, shared.NewDomainError("INVALID_COPIES", "Number of copies must be between 1 and 100")
	}

	docs := make([]DocumentProgress, len(refs))
	for i, ref := range refs {
		if err := ref.Validate(); err != nil {
			return nil, err
		}
		docs[i] = DocumentProgress{Index: i, Ref: ref, Status: DocumentStatusPending}
	}

	return &PrintSession{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		State:             SessionStateIdle,
		Documents:         docs,
		Copies:            copies,
	}, nil
}

// Len returns the number of queued documents
func (s *PrintSession) Len() int {
	return len(s.Documents)
}

// IsBatch returns true if the session holds more than one document
func (s *PrintSession) IsBatch() bool {
	return len(s.Documents) > 1
}

// CurrentDocument returns the document being processed
func (s *PrintSession) CurrentDocument() *DocumentProgress {
	return &s.Documents[s.Current]
}

// HasNext returns true if documents remain after the current one
func (s *PrintSession) HasNext() bool {
	return s.Current < len(s.Documents)-1
}

// IsFinished returns true once no further transition can happen
func (s *PrintSession) IsFinished() bool {
	switch s.State {
	case SessionStateCancelled, SessionStateFailed:
		return true
	case SessionStateCompleted:
		return !s.HasNext()
	}
	return false
}

// betweenDocuments is the pause after a completed document while more are queued
func (s *PrintSession) betweenDocuments() bool {
	return s.State == SessionStateCompleted && s.HasNext()
}

func (s *PrintSession) transition(target SessionState) error {
	if !s.State.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot transition print session from %s to %s", s.State, target))
	}
	s.State = target
	s.Touch(time.Now())
	s.IncrementVersion()
	return nil
}

// Start moves the session from Idle to Loading for the first document
func (s *PrintSession) Start() error {
	if err := s.transition(SessionStateLoading); err != nil {
		return err
	}
	now := time.Now()
	s.StartedAt = &now
	s.AddDomainEvent(NewPrintSessionStartedEvent(s))
	s.beginCurrent(now)
	return nil
}

func (s *PrintSession) beginCurrent(now time.Time) {
	doc := s.CurrentDocument()
	doc.Status = DocumentStatusInProgress
	doc.StartedAt = &now
	s.AddDomainEvent(NewPrintDocumentStartedEvent(s, doc))
}

// MarkLoaded records that the current document payload is available
func (s *PrintSession) MarkLoaded() error {
	return s.transition(SessionStateRendering)
}

// MarkReady records the produced artifact and that the print mechanism was invoked
func (s *PrintSession) MarkReady(artifact *Artifact) error {
	if artifact == nil {
		return shared.NewDomainError("INVALID_ARTIFACT", "Artifact cannot be nil")
	}
	if err := s.transition(SessionStateAwaitingUserAction); err != nil {
		return err
	}
	doc := s.CurrentDocument()
	doc.Strategy = artifact.Strategy
	doc.PageCount = artifact.PageCount
	doc.ByteSize = artifact.Size()
	s.AddDomainEvent(NewPrintDocumentReadyEvent(s, doc))
	return nil
}

// CompleteCurrent marks the current document as printed
func (s *PrintSession) CompleteCurrent(trigger CompletionTrigger) error {
	if err := s.transition(SessionStateCompleted); err != nil {
		return err
	}
	now := time.Now()
	doc := s.CurrentDocument()
	doc.Status = DocumentStatusCompleted
	doc.Trigger = trigger
	doc.FinishedAt = &now
	s.AddDomainEvent(NewPrintDocumentCompletedEvent(s, doc))

	if !s.HasNext() {
		s.CompletedAt = &now
		s.AddDomainEvent(NewPrintSessionFinishedEvent(s))
	}
	return nil
}

// Advance moves a batch to the next queued document
func (s *PrintSession) Advance() error {
	if !s.betweenDocuments() {
		return shared.NewDomainError("INVALID_STATE", "No further document to print in state "+s.State.String())
	}
	if err := s.transition(SessionStateLoading); err != nil {
		return err
	}
	s.Current++
	s.beginCurrent(time.Now())
	return nil
}

// Cancel dismisses the session. The in-flight document is cancelled and the
// remaining queue is abandoned.
func (s *PrintSession) Cancel(reason string) error {
	between := s.betweenDocuments()
	if !between && !s.State.CanTransitionTo(SessionStateCancelled) {
		return shared.NewDomainError("INVALID_STATE", "Cannot cancel print session in state "+s.State.String())
	}

	now := time.Now()
	s.State = SessionStateCancelled
	s.CancelledAt = &now
	s.CancelReason = reason
	s.Touch(now)
	s.IncrementVersion()

	start := s.Current
	if between {
		start = s.Current + 1
	} else if doc := s.CurrentDocument(); doc.Status == DocumentStatusInProgress {
		doc.Status = DocumentStatusCancelled
		doc.CancelReason = reason
		doc.FinishedAt = &now
		s.AddDomainEvent(NewPrintDocumentCancelledEvent(s, doc))
		start = s.Current + 1
	}
	s.abandonFrom(start)
	s.AddDomainEvent(NewPrintSessionFinishedEvent(s))
	return nil
}

// Fail records an unrecoverable error for the current document
func (s *PrintSession) Fail(err error) error {
	between := s.betweenDocuments()
	if !between && !s.State.CanTransitionTo(SessionStateFailed) {
		return shared.NewDomainError("INVALID_STATE", "Cannot fail print session in state "+s.State.String())
	}

	pe := AsPrintError(err, ErrCodeInternal)
	now := time.Now()
	s.State = SessionStateFailed
	s.FailedAt = &now
	s.LastError = pe
	s.Touch(now)
	s.IncrementVersion()

	start := s.Current
	if between {
		start = s.Current + 1
	} else if doc := s.CurrentDocument(); doc.Status == DocumentStatusInProgress {
		doc.Status = DocumentStatusFailed
		doc.ErrorCode = pe.Code
		doc.ErrorMessage = pe.Message
		doc.FinishedAt = &now
		s.AddDomainEvent(NewPrintDocumentFailedEvent(s, doc))
		start = s.Current + 1
	}
	s.abandonFrom(start)
	s.AddDomainEvent(NewPrintSessionFinishedEvent(s))
	return nil
}

func (s *PrintSession) abandonFrom(index int) {
	for i := index; i < len(s.Documents); i++ {
		if s.Documents[i].Status == DocumentStatusPending || s.Documents[i].Status == DocumentStatusInProgress {
			s.Documents[i].Status = DocumentStatusAbandoned
		}
	}
}

// Snapshot returns a copy safe to hand out while the session keeps running
func (s *PrintSession) Snapshot() PrintSession {
	c := *s
	c.Documents = make([]DocumentProgress, len(s.Documents))
	copy(c.Documents, s.Documents)
	c.ClearDomainEvents()
	return c
}
