package printing

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/docprint/internal/domain/printing"
	"github.com/erp/docprint/internal/domain/shared"
	"go.uber.org/zap"
)

// PrintJobRecorder keeps the print job history in step with session and
// export events
type PrintJobRecorder struct {
	repo   printing.PrintJobRepository
	logger *zap.Logger
}

// NewPrintJobRecorder creates a new handler recording print jobs
func NewPrintJobRecorder(repo printing.PrintJobRepository, logger *zap.Logger) *PrintJobRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrintJobRecorder{repo: repo, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *PrintJobRecorder) EventTypes() []string {
	return []string{
		printing.EventTypePrintDocumentStarted,
		printing.EventTypePrintDocumentReady,
		printing.EventTypePrintDocumentCompleted,
		printing.EventTypePrintDocumentCancelled,
		printing.EventTypePrintDocumentFailed,
		printing.EventTypePrintDocumentExported,
	}
}

// Handle records one event on the matching job
func (h *PrintJobRecorder) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *printing.PrintDocumentStartedEvent:
		job, err := printing.NewSessionPrintJob(e.SessionID, e.Index, e.Ref)
		if err != nil {
			return err
		}
		return h.save(ctx, job)

	case *printing.PrintDocumentReadyEvent:
		return h.update(ctx, e, func(job *printing.PrintJob) error {
			if err := job.StartRendering(); err != nil {
				return err
			}
			if err := job.SetCopies(e.Copies); err != nil {
				return err
			}
			job.RecordArtifact(e.Strategy, e.PageCount, e.ByteSize)
			job.RecordDelivery(printing.DeliveryMethodPrint, "")
			return nil
		})

	case *printing.PrintDocumentCompletedEvent:
		return h.update(ctx, e, func(job *printing.PrintJob) error { return job.Complete() })

	case *printing.PrintDocumentCancelledEvent:
		return h.update(ctx, e, func(job *printing.PrintJob) error { return job.Cancel(e.Reason) })

	case *printing.PrintDocumentFailedEvent:
		return h.update(ctx, e, func(job *printing.PrintJob) error { return job.Fail(e.ErrorCode, e.ErrorMessage) })

	case *printing.PrintDocumentExportedEvent:
		job, err := printing.NewPrintJob(e.Ref)
		if err != nil {
			return err
		}
		if err := job.StartRendering(); err != nil {
			return err
		}
		job.RecordArtifact(e.Strategy, e.PageCount, e.ByteSize)
		job.RecordDelivery(e.Method, e.Location)
		if err := job.Complete(); err != nil {
			return err
		}
		return h.save(ctx, job)
	}

	h.logger.Error("unexpected event type", zap.String("actual", event.EventType()))
	return fmt.Errorf("unexpected event type: %s", event.EventType())
}

func (h *PrintJobRecorder) update(ctx context.Context, e printing.DocumentEvent, change func(*printing.PrintJob) error) error {
	sessionID := e.AggregateID()
	job, err := h.repo.FindBySessionDocument(ctx, sessionID, e.DocumentIndex())
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.logger.Warn("No print job recorded for session document",
				zap.String("session_id", sessionID.String()),
				zap.Int("index", e.DocumentIndex()),
				zap.String("event_type", e.EventType()))
			return nil
		}
		return fmt.Errorf("failed to load print job: %w", err)
	}
	if err := change(job); err != nil {
		return err
	}
	return h.save(ctx, job)
}

func (h *PrintJobRecorder) save(ctx context.Context, job *printing.PrintJob) error {
	if err := h.repo.Save(ctx, job); err != nil {
		return fmt.Errorf("failed to save print job: %w", err)
	}
	h.logger.Debug("Print job recorded",
		zap.String("job_id", job.ID.String()),
		zap.String("document", job.DocumentType.String()+"/"+job.DocumentNumber),
		zap.String("status", job.Status.String()))
	return nil
}

var _ shared.EventHandler = (*PrintJobRecorder)(nil)
