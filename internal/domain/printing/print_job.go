package printing

import (
	"time"

	"github.com/erp/docprint/internal/domain/shared"
	"github.com/google/uuid"
)

// PrintJob is the audit record of one document going through the pipeline,
// either as part of a print session or as a one-shot export.
type PrintJob struct {
	shared.BaseAggregateRoot
	SessionID      *uuid.UUID     // Print session, nil for exports
	DocumentIndex  int            // Position inside the session queue
	DocumentType   DocType        // Type of document being printed
	DocumentNumber string         // Document number (for display)
	Status         JobStatus      // Current job status
	Copies         int            // Number of copies to print
	Strategy       RenderStrategy // Renderer path that produced the artifact
	PageCount      int
	ByteSize       int
	DeliveryMethod DeliveryMethod
	DeliveryURL    string // Share URL or download location
	ErrorCode      string
	ErrorMessage   string // Error message if job failed
	CancelReason   string
	FinishedAt     *time.Time
}

// NewPrintJob creates a new pending print job
func NewPrintJob(ref DocumentRef) (*PrintJob, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	return &PrintJob{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		DocumentType:      ref.Type,
		DocumentNumber:    ref.Number,
		Status:            JobStatusPending,
		Copies:            1,
	}, nil
}

// NewSessionPrintJob creates a pending job bound to a session document
func NewSessionPrintJob(sessionID uuid.UUID, index int, ref DocumentRef) (*PrintJob, error) {
	job, err := NewPrintJob(ref)
	if err != nil {
		return nil, err
	}
	job.SessionID = &sessionID
	job.DocumentIndex = index
	return job, nil
}

// SetCopies sets the number of copies to print
func (j *PrintJob) SetCopies(copies int) error {
	if copies < 1 {
		return shared.NewDomainError("INVALID_COPIES", "Number of copies must be at least 1")
	}
	if copies > 100 {
		return shared.NewDomainError("INVALID_COPIES", "Number of copies cannot exceed 100")
	}

	j.Copies = copies
	j.Touch(time.Now())

	return nil
}

// StartRendering marks the job as rendering
func (j *PrintJob) StartRendering() error {
	if !j.Status.CanTransitionTo(JobStatusRendering) {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot start rendering from status: "+j.Status.String())
	}

	j.Status = JobStatusRendering
	j.Touch(time.Now())
	j.IncrementVersion()

	return nil
}

// RecordArtifact stores details of the produced artifact
func (j *PrintJob) RecordArtifact(strategy RenderStrategy, pageCount, byteSize int) {
	j.Strategy = strategy
	j.PageCount = pageCount
	j.ByteSize = byteSize
	j.Touch(time.Now())
}

// RecordDelivery stores how the artifact was handed to the user
func (j *PrintJob) RecordDelivery(method DeliveryMethod, url string) {
	j.DeliveryMethod = method
	j.DeliveryURL = url
	j.Touch(time.Now())
}

// Complete marks the job as completed
func (j *PrintJob) Complete() error {
	if !j.Status.CanTransitionTo(JobStatusCompleted) {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot complete from status: "+j.Status.String())
	}
	j.finish(JobStatusCompleted)
	return nil
}

// Cancel marks the job as cancelled by the user
func (j *PrintJob) Cancel(reason string) error {
	if !j.Status.CanTransitionTo(JobStatusCancelled) {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot cancel from status: "+j.Status.String())
	}
	j.CancelReason = reason
	j.finish(JobStatusCancelled)
	return nil
}

// Fail marks the job as failed with an error code and message
func (j *PrintJob) Fail(code ErrorCode, errorMessage string) error {
	if j.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot fail a job that is already in terminal status: "+j.Status.String())
	}
	j.ErrorCode = code.String()
	j.ErrorMessage = errorMessage
	j.finish(JobStatusFailed)
	return nil
}

func (j *PrintJob) finish(status JobStatus) {
	now := time.Now()
	j.Status = status
	j.FinishedAt = &now
	j.Touch(now)
	j.IncrementVersion()
}

// IsTerminal returns true if the job is in a terminal state
func (j *PrintJob) IsTerminal() bool {
	return j.Status.IsTerminal()
}
