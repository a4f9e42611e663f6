package printing

import (
	"errors"
	"testing"

	"github.com/erp/docprint/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRefs(n int) []DocumentRef {
	refs := make([]DocumentRef, n)
	for i := range refs {
		refs[i] = DocumentRef{Type: DocTypeInvoice, Number: string(rune('A' + i))}
	}
	return refs
}

func eventTypes(events []shared.DomainEvent) []string {
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.EventType()
	}
	return types
}

func TestNewPrintSession(t *testing.T) {
	t.Run("valid single document", func(t *testing.T) {
		s, err := NewPrintSession(testRefs(1), 0)
		require.NoError(t, err)
		assert.Equal(t, SessionStateIdle, s.State)
		assert.Equal(t, 1, s.Copies)
		assert.False(t, s.IsBatch())
		assert.Equal(t, DocumentStatusPending, s.Documents[0].Status)
	})

	t.Run("empty queue", func(t *testing.T) {
		_, err := NewPrintSession(nil, 1)
		assert.Error(t, err)
	})

	t.Run("batch too large", func(t *testing.T) {
		_, err := NewPrintSession(testRefs(MaxBatchSize+1), 1)
		assert.Error(t, err)
	})

	t.Run("invalid copies", func(t *testing.T) {
		_, err := NewPrintSession(testRefs(1), 101)
		assert.Error(t, err)
	})

	t.Run("invalid ref", func(t *testing.T) {
		_, err := NewPrintSession([]DocumentRef{{Type: "X", Number: "1"}}, 1)
		assert.Error(t, err)
	})
}

func runToAwaiting(t *testing.T, s *PrintSession) {
	t.Helper()
	require.NoError(t, s.MarkLoaded())
	require.NoError(t, s.MarkReady(NewArtifact(make([]byte, 2048), "a.pdf", 1, RenderStrategyTemplate)))
}

func TestPrintSession_SingleDocumentHappyPath(t *testing.T) {
	s, err := NewPrintSession(testRefs(1), 1)
	require.NoError(t, err)

	require.NoError(t, s.Start())
	assert.Equal(t, SessionStateLoading, s.State)
	assert.NotNil(t, s.StartedAt)

	runToAwaiting(t, s)
	assert.Equal(t, SessionStateAwaitingUserAction, s.State)
	assert.Equal(t, 2048, s.CurrentDocument().ByteSize)

	require.NoError(t, s.CompleteCurrent(CompletionTriggerTimer))
	assert.Equal(t, SessionStateCompleted, s.State)
	assert.True(t, s.IsFinished())
	assert.NotNil(t, s.CompletedAt)
	assert.Equal(t, CompletionTriggerTimer, s.Documents[0].Trigger)

	assert.Equal(t, []string{
		EventTypePrintSessionStarted,
		EventTypePrintDocumentStarted,
		EventTypePrintDocumentReady,
		EventTypePrintDocumentCompleted,
		EventTypePrintSessionFinished,
	}, eventTypes(s.GetDomainEvents()))
}

func TestPrintSession_InvalidTransitions(t *testing.T) {
	s, err := NewPrintSession(testRefs(1), 1)
	require.NoError(t, err)

	assert.Error(t, s.MarkLoaded(), "cannot load before start")
	assert.Error(t, s.CompleteCurrent(CompletionTriggerSignal))

	require.NoError(t, s.Start())
	assert.Error(t, s.Start())
	assert.Error(t, s.MarkReady(nil))
	assert.Error(t, s.Advance())
}

func TestPrintSession_BatchAdvance(t *testing.T) {
	s, err := NewPrintSession(testRefs(2), 1)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	runToAwaiting(t, s)
	require.NoError(t, s.CompleteCurrent(CompletionTriggerSignal))

	assert.False(t, s.IsFinished())
	assert.Nil(t, s.CompletedAt)

	require.NoError(t, s.Advance())
	assert.Equal(t, 1, s.Current)
	assert.Equal(t, SessionStateLoading, s.State)
	assert.Equal(t, DocumentStatusInProgress, s.Documents[1].Status)

	runToAwaiting(t, s)
	require.NoError(t, s.CompleteCurrent(CompletionTriggerSignal))
	assert.True(t, s.IsFinished())
	assert.Error(t, s.Advance())
}

func TestPrintSession_CancelWhileAwaiting(t *testing.T) {
	s, err := NewPrintSession(testRefs(3), 1)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	runToAwaiting(t, s)
	s.ClearDomainEvents()

	require.NoError(t, s.Cancel("closed by user"))

	assert.Equal(t, SessionStateCancelled, s.State)
	assert.True(t, s.IsFinished())
	assert.Equal(t, DocumentStatusCancelled, s.Documents[0].Status)
	assert.Equal(t, "closed by user", s.Documents[0].CancelReason)
	assert.Equal(t, DocumentStatusAbandoned, s.Documents[1].Status)
	assert.Equal(t, DocumentStatusAbandoned, s.Documents[2].Status)
	assert.Equal(t, []string{EventTypePrintDocumentCancelled, EventTypePrintSessionFinished}, eventTypes(s.GetDomainEvents()))

	assert.Error(t, s.Cancel("again"), "cancelling twice is rejected")
	assert.Error(t, s.CompleteCurrent(CompletionTriggerTimer))
}

func TestPrintSession_CancelBetweenDocuments(t *testing.T) {
	s, err := NewPrintSession(testRefs(2), 1)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	runToAwaiting(t, s)
	require.NoError(t, s.CompleteCurrent(CompletionTriggerSignal))
	s.ClearDomainEvents()

	require.NoError(t, s.Cancel(""))
	assert.Equal(t, DocumentStatusCompleted, s.Documents[0].Status)
	assert.Equal(t, DocumentStatusAbandoned, s.Documents[1].Status)
	assert.Equal(t, []string{EventTypePrintSessionFinished}, eventTypes(s.GetDomainEvents()))
}

func TestPrintSession_Fail(t *testing.T) {
	s, err := NewPrintSession(testRefs(3), 1)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	runToAwaiting(t, s)
	require.NoError(t, s.CompleteCurrent(CompletionTriggerSignal))
	require.NoError(t, s.Advance())
	require.NoError(t, s.MarkLoaded())

	require.NoError(t, s.Fail(ErrRenderingFailed))

	assert.Equal(t, SessionStateFailed, s.State)
	assert.Equal(t, ErrCodeRenderingFailed, s.LastError.Code)
	assert.Equal(t, DocumentStatusCompleted, s.Documents[0].Status)
	assert.Equal(t, DocumentStatusFailed, s.Documents[1].Status)
	assert.Equal(t, DocumentStatusAbandoned, s.Documents[2].Status)
	assert.Nil(t, s.Documents[2].StartedAt)

	assert.Error(t, s.Fail(errors.New("again")))
}

func TestPrintSession_Snapshot(t *testing.T) {
	s, err := NewPrintSession(testRefs(2), 1)
	require.NoError(t, err)
	require.NoError(t, s.Start())

	snap := s.Snapshot()
	snap.Documents[0].Status = DocumentStatusFailed

	assert.Equal(t, DocumentStatusInProgress, s.Documents[0].Status)
	assert.Empty(t, snap.GetDomainEvents())
	assert.NotEmpty(t, s.GetDomainEvents())
}
