package printing

import (
	"context"
	"fmt"
	"sync"

	"github.com/erp/docprint/internal/domain/printing"
	"github.com/erp/docprint/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SignalKind is what the user did with an open print dialog
type SignalKind string

const (
	SignalCompleted SignalKind = "COMPLETED"
	SignalDismissed SignalKind = "DISMISSED"
)

// PrintSignal is sent by the client once the print dialog closed
type PrintSignal struct {
	Kind   SignalKind
	Reason string
}

// PrintRequest asks the environment to print one artifact
type PrintRequest struct {
	SessionID uuid.UUID
	Index     int
	Document  printing.DocumentRef
	Artifact  *printing.Artifact
	Copies    int
}

// PrintDialog is the environment's print mechanism.
// The returned channel yields at most one signal; environments that never
// report completion simply never send.
type PrintDialog interface {
	Open(ctx context.Context, req PrintRequest) (<-chan PrintSignal, error)
	// Close releases the dialog of a session, whether or not it signalled
	Close(sessionID uuid.UUID)
}

type pendingPrint struct {
	req       PrintRequest
	signals   chan PrintSignal
	signalled bool
}

// ClientPrintDialog holds the artifact awaiting user action per session. The
// client fetches it, prints it and reports back through Signal.
type ClientPrintDialog struct {
	mu      sync.Mutex
	pending map[uuid.UUID]*pendingPrint
	logger  *zap.Logger
}

// NewClientPrintDialog creates an empty dialog registry
func NewClientPrintDialog(logger *zap.Logger) *ClientPrintDialog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientPrintDialog{
		pending: make(map[uuid.UUID]*pendingPrint),
		logger:  logger,
	}
}

// Open registers the artifact of a session. Only one dialog per session can be open.
func (d *ClientPrintDialog) Open(ctx context.Context, req PrintRequest) (<-chan PrintSignal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Artifact == nil {
		return nil, shared.NewDomainError("INVALID_ARTIFACT", "Artifact cannot be nil")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pending[req.SessionID]; ok {
		return nil, shared.NewDomainError("DIALOG_OPEN", "A print dialog is already open for this session")
	}
	p := &pendingPrint{req: req, signals: make(chan PrintSignal, 1)}
	d.pending[req.SessionID] = p

	d.logger.Debug("Print dialog opened",
		zap.String("session_id", req.SessionID.String()),
		zap.Int("index", req.Index),
		zap.String("document", req.Document.String()))
	return p.signals, nil
}

// Signal delivers the client's completion or dismissal for the document at
// index. A signal for any other document than the one open is rejected, so a
// late answer for a document the fallback timer already completed cannot
// close the next one.
func (d *ClientPrintDialog) Signal(sessionID uuid.UUID, index int, signal PrintSignal) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pending[sessionID]
	if !ok {
		return shared.ErrNotFound
	}
	if p.req.Index != index {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Document %d is not awaiting user action, document %d is", index, p.req.Index))
	}
	if p.signalled {
		return shared.NewDomainError("INVALID_STATE", "The print dialog already closed")
	}
	p.signalled = true
	p.signals <- signal
	return nil
}

// Pending returns the request awaiting user action for a session
func (d *ClientPrintDialog) Pending(sessionID uuid.UUID) (PrintRequest, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pending[sessionID]
	if !ok {
		return PrintRequest{}, false
	}
	return p.req, true
}

// Close drops the dialog of a session
func (d *ClientPrintDialog) Close(sessionID uuid.UUID) {
	d.mu.Lock()
	delete(d.pending, sessionID)
	d.mu.Unlock()
}

var _ PrintDialog = (*ClientPrintDialog)(nil)
