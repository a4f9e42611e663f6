package printing

import (
	"context"
	"time"

	"github.com/erp/docprint/internal/domain/shared"
	"github.com/google/uuid"
)

// DocumentSource loads document payloads from the upstream backend
type DocumentSource interface {
	// Fetch returns the document identified by ref.
	// Implementations return ErrDocumentUnavailable when it does not exist.
	Fetch(ctx context.Context, ref DocumentRef) (*Document, error)
}

// PrintJobRepository defines the interface for print job persistence
type PrintJobRepository interface {
	// FindByID finds a job by ID
	FindByID(ctx context.Context, id uuid.UUID) (*PrintJob, error)

	// FindBySessionDocument finds the job recorded for a session document
	FindBySessionDocument(ctx context.Context, sessionID uuid.UUID, index int) (*PrintJob, error)

	// FindAll finds jobs matching the filter
	FindAll(ctx context.Context, filter PrintJobFilter) ([]PrintJob, error)

	// Count returns the total count of jobs matching the filter
	Count(ctx context.Context, filter PrintJobFilter) (int64, error)

	// Save saves a job (insert or update)
	Save(ctx context.Context, job *PrintJob) error

	// DeleteOlderThan deletes jobs created before the cutoff
	// Used for job history cleanup
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PrintJobFilter extends the standard filter with print job specific criteria
type PrintJobFilter struct {
	shared.Filter
	DocumentType   *DocType   // Filter by document type
	DocumentNumber string     // Filter by document number
	SessionID      *uuid.UUID // Filter by print session
	Status         *JobStatus // Filter by status
}
