package printing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/docprint/internal/application/printing"
	domain "github.com/erp/docprint/internal/domain/printing"
	"github.com/erp/docprint/internal/domain/shared"
	infra "github.com/erp/docprint/internal/infrastructure/printing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// =============================================================================
// Mock Implementations
// =============================================================================

type MockPrintJobRepository struct {
	mock.Mock
}

func (m *MockPrintJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.PrintJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PrintJob), args.Error(1)
}

func (m *MockPrintJobRepository) FindBySessionDocument(ctx context.Context, sessionID uuid.UUID, index int) (*domain.PrintJob, error) {
	args := m.Called(ctx, sessionID, index)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PrintJob), args.Error(1)
}

func (m *MockPrintJobRepository) FindAll(ctx context.Context, filter domain.PrintJobFilter) ([]domain.PrintJob, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PrintJob), args.Error(1)
}

func (m *MockPrintJobRepository) Count(ctx context.Context, filter domain.PrintJobFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPrintJobRepository) Save(ctx context.Context, job *domain.PrintJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockPrintJobRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// =============================================================================
// Test Setup
// =============================================================================

type serviceFixture struct {
	service   *printing.PrintService
	pipeline  *testPipeline
	source    *fakeSource
	dialog    *infra.ClientPrintDialog
	tracker   *printing.Tracker
	publisher *recordingPublisher
	repo      *MockPrintJobRepository
}

func newServiceFixture(t *testing.T, withRepo bool, docs ...domain.Document) *serviceFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	f := &serviceFixture{
		pipeline:  newTestPipeline(t),
		source:    newFakeSource(docs...),
		dialog:    infra.NewClientPrintDialog(logger),
		publisher: &recordingPublisher{},
	}
	f.tracker = newTestTracker(t, f.pipeline, f.source, f.dialog, &printing.TrackerConfig{Publisher: f.publisher})

	var repo domain.PrintJobRepository
	if withRepo {
		f.repo = new(MockPrintJobRepository)
		repo = f.repo
	}
	f.service = printing.NewPrintService(f.pipeline.Pipeline, f.tracker, f.source, f.dialog, nil, repo,
		f.publisher, printing.ServiceConfig{MaxShareBytes: 10 << 20}, logger)
	return f
}

// =============================================================================
// Export and Preview Tests
// =============================================================================

func TestPrintService_Export(t *testing.T) {
	ctx := context.Background()
	doc := sampleDocument("INV-1")

	t.Run("by reference without share capability downloads", func(t *testing.T) {
		f := newServiceFixture(t, false, doc)

		resp, err := f.service.Export(ctx, printing.ExportRequest{
			Document: &printing.DocumentRefDTO{Type: "INVOICE", Number: "INV-1"},
		})
		require.NoError(t, err)
		assert.Equal(t, "DOWNLOAD", resp.Method)
		assert.Equal(t, "invoice-INV-1.pdf", resp.Filename)
		assert.Equal(t, domain.MIMETypePDF, resp.MIMEType)
		assert.Equal(t, "TEMPLATE", resp.Strategy)
		assert.NotEmpty(t, resp.FallbackReason)
		assert.NotNil(t, resp.ExpiresAt)
		assert.Equal(t, []string{domain.EventTypePrintDocumentExported}, f.publisher.types())
	})

	t.Run("inline payload with share capability", func(t *testing.T) {
		f := newServiceFixture(t, false)

		resp, err := f.service.Export(ctx, printing.ExportRequest{
			Payload: &doc,
			Options: &printing.RenderOptionsDTO{PaperSize: "A5", Filename: "custom"},
			Client:  printing.ClientCapabilitiesDTO{ShareFiles: true},
		})
		require.NoError(t, err)
		assert.Equal(t, "SHARE", resp.Method)
		assert.Equal(t, "custom.pdf", resp.Filename)
		assert.Empty(t, resp.FallbackReason)
		assert.Empty(t, f.source.fetched)
	})

	t.Run("missing document", func(t *testing.T) {
		f := newServiceFixture(t, false)

		_, err := f.service.Export(ctx, printing.ExportRequest{
			Document: &printing.DocumentRefDTO{Type: "INVOICE", Number: "NOPE"},
		})
		assert.True(t, errors.Is(err, domain.ErrDocumentUnavailable))
	})

	t.Run("neither reference nor payload", func(t *testing.T) {
		f := newServiceFixture(t, false)

		_, err := f.service.Export(ctx, printing.ExportRequest{})
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})
}

func TestPrintService_Preview(t *testing.T) {
	doc := sampleDocument("INV-1")
	f := newServiceFixture(t, false, doc)

	resp, err := f.service.Preview(context.Background(), printing.PreviewRequest{
		Document: &printing.DocumentRefDTO{Type: "INVOICE", Number: "INV-1"},
		Options:  &printing.RenderOptionsDTO{Orientation: "LANDSCAPE"},
	})
	require.NoError(t, err)
	assert.Contains(t, resp.HTML, "INV-1")
	assert.Equal(t, "A4", resp.PaperSize)
	assert.Equal(t, "LANDSCAPE", resp.Orientation)
	assert.Equal(t, "invoice-INV-1.pdf", resp.Filename)
}

// =============================================================================
// Print Session Tests
// =============================================================================

func TestPrintService_SessionFlow(t *testing.T) {
	ctx := context.Background()
	docs := []domain.Document{sampleDocument("INV-1"), sampleDocument("INV-2")}
	f := newServiceFixture(t, false, docs...)

	resp, err := f.service.StartSession(ctx, printing.StartSessionRequest{
		Documents: []printing.DocumentRefDTO{
			{Type: "INVOICE", Number: "INV-1"},
			{Type: "INVOICE", Number: "INV-2"},
		},
		Copies: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 3, resp.Copies)
	id := uuid.MustParse(resp.ID)

	events, unsubscribe, err := f.service.SubscribeSession(ctx, id)
	require.NoError(t, err)
	defer unsubscribe()

	for i := range docs {
		ready := waitForEvent(t, events, domain.EventTypePrintDocumentReady)
		assert.Equal(t, i, ready.Index)

		artifact, err := f.service.SessionArtifact(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, i, artifact.Index)
		assert.Equal(t, 3, artifact.Copies)
		assert.Equal(t, domain.MIMETypePDF, artifact.MIMEType)
		assert.NotEmpty(t, artifact.Content)

		assert.True(t, errors.Is(f.service.CompleteSession(ctx, id, i+1), shared.ErrInvalidState),
			"only the open document can be completed")
		require.NoError(t, f.service.CompleteSession(ctx, id, i))
		waitForEvent(t, events, domain.EventTypePrintDocumentCompleted)
	}
	finished := waitForEvent(t, events, domain.EventTypePrintSessionFinished)
	assert.Equal(t, domain.SessionStateCompleted, finished.State)
	assert.Equal(t, 2, finished.Printed)

	snapshot, err := f.service.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", snapshot.State)

	_, err = f.service.SessionArtifact(ctx, id)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
	assert.True(t, errors.Is(f.service.CompleteSession(ctx, id, 1), shared.ErrInvalidState))
}

func TestPrintService_CancelSession(t *testing.T) {
	ctx := context.Background()
	doc := sampleDocument("INV-1")
	f := newServiceFixture(t, false, doc)

	resp, err := f.service.StartSession(ctx, printing.StartSessionRequest{
		Documents: []printing.DocumentRefDTO{{Type: "INVOICE", Number: "INV-1"}},
	})
	require.NoError(t, err)
	id := uuid.MustParse(resp.ID)

	events, unsubscribe, err := f.service.SubscribeSession(ctx, id)
	require.NoError(t, err)
	defer unsubscribe()
	waitForEvent(t, events, domain.EventTypePrintDocumentReady)

	require.NoError(t, f.service.CancelSession(ctx, id, printing.CancelSessionRequest{Reason: "wrong printer"}))
	finished := waitForEvent(t, events, domain.EventTypePrintSessionFinished)
	assert.Equal(t, domain.SessionStateCancelled, finished.State)
	assert.Equal(t, "wrong printer", finished.Reason)
}

func TestPrintService_DismissDocument(t *testing.T) {
	ctx := context.Background()
	doc := sampleDocument("INV-1")
	f := newServiceFixture(t, false, doc)

	resp, err := f.service.StartSession(ctx, printing.StartSessionRequest{
		Documents: []printing.DocumentRefDTO{{Type: "INVOICE", Number: "INV-1"}},
	})
	require.NoError(t, err)
	id := uuid.MustParse(resp.ID)

	events, unsubscribe, err := f.service.SubscribeSession(ctx, id)
	require.NoError(t, err)
	defer unsubscribe()
	waitForEvent(t, events, domain.EventTypePrintDocumentReady)

	other := 1
	err = f.service.CancelSession(ctx, id, printing.CancelSessionRequest{Reason: "paper jam", Index: &other})
	assert.True(t, errors.Is(err, shared.ErrInvalidState))

	current := 0
	require.NoError(t, f.service.CancelSession(ctx, id, printing.CancelSessionRequest{Reason: "paper jam", Index: &current}))
	finished := waitForEvent(t, events, domain.EventTypePrintSessionFinished)
	assert.Equal(t, domain.SessionStateCancelled, finished.State)
	assert.Equal(t, "paper jam", finished.Reason)
}

func TestPrintService_StartSessionValidation(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, false)

	_, err := f.service.StartSession(ctx, printing.StartSessionRequest{
		Documents: []printing.DocumentRefDTO{{Type: "NOT_A_TYPE", Number: "1"}},
	})
	assert.Error(t, err)

	other := sampleDocument("INV-9")
	_, err = f.service.StartSession(ctx, printing.StartSessionRequest{
		Documents: []printing.DocumentRefDTO{{Type: "INVOICE", Number: "INV-1"}},
		Payloads:  []domain.Document{other},
	})
	assert.Equal(t, domain.ErrCodeInvalidDocument, domain.CodeOf(err))

	_, err = f.service.GetSession(ctx, uuid.New())
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

// =============================================================================
// Print Job Tests
// =============================================================================

func TestPrintService_ListJobs(t *testing.T) {
	ctx := context.Background()

	t.Run("history disabled", func(t *testing.T) {
		f := newServiceFixture(t, false)
		_, err := f.service.ListJobs(ctx, printing.ListJobsRequest{})
		assert.True(t, errors.Is(err, printing.ErrJobHistoryDisabled))
	})

	t.Run("filters and pagination", func(t *testing.T) {
		f := newServiceFixture(t, true)
		job, err := domain.NewPrintJob(domain.DocumentRef{Type: domain.DocTypeInvoice, Number: "INV-1"})
		require.NoError(t, err)

		docType := domain.DocTypeInvoice
		status := domain.JobStatusPending
		expected := domain.PrintJobFilter{
			Filter:         shared.Filter{Page: 1, PageSize: 20},
			DocumentType:   &docType,
			DocumentNumber: "INV-1",
			Status:         &status,
		}
		f.repo.On("FindAll", ctx, expected).Return([]domain.PrintJob{*job}, nil)
		f.repo.On("Count", ctx, expected).Return(int64(1), nil)

		resp, err := f.service.ListJobs(ctx, printing.ListJobsRequest{
			DocumentType:   "INVOICE",
			DocumentNumber: "INV-1",
			Status:         "PENDING",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), resp.Total)
		require.Len(t, resp.Items, 1)
		assert.Equal(t, "INV-1", resp.Items[0].DocumentNumber)
		assert.Equal(t, "PENDING", resp.Items[0].Status)
		f.repo.AssertExpectations(t)
	})

	t.Run("invalid filters", func(t *testing.T) {
		f := newServiceFixture(t, true)
		_, err := f.service.ListJobs(ctx, printing.ListJobsRequest{DocumentType: "MEMO"})
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
		_, err = f.service.ListJobs(ctx, printing.ListJobsRequest{Status: "LOST"})
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
		f.repo.AssertNotCalled(t, "FindAll", mock.Anything, mock.Anything)
	})

	t.Run("repository error", func(t *testing.T) {
		f := newServiceFixture(t, true)
		f.repo.On("FindAll", ctx, mock.Anything).Return(nil, errBoom)

		_, err := f.service.ListJobs(ctx, printing.ListJobsRequest{})
		assert.ErrorIs(t, err, errBoom)
	})
}

func TestPrintService_GetJob(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, true)
	job, err := domain.NewPrintJob(domain.DocumentRef{Type: domain.DocTypeSalesOrder, Number: "SO-1"})
	require.NoError(t, err)
	f.repo.On("FindByID", ctx, job.ID).Return(job, nil)
	missing := uuid.New()
	f.repo.On("FindByID", ctx, missing).Return(nil, shared.ErrNotFound)

	resp, err := f.service.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "SALES_ORDER", resp.DocumentType)

	_, err = f.service.GetJob(ctx, missing)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

// =============================================================================
// Reference Data Tests
// =============================================================================

func TestPrintService_ReferenceData(t *testing.T) {
	f := newServiceFixture(t, false)

	types := f.service.DocumentTypes()
	assert.Len(t, types, len(domain.AllDocTypes()))
	assert.NotEmpty(t, types[0].DisplayName)

	sizes := f.service.PaperSizes()
	require.Len(t, sizes, len(domain.AllPaperSizes()))
	assert.Equal(t, printing.PaperSizeResponse{Code: "A4", Width: 210, Height: 297}, sizes[0])
}
