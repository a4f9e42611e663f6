package printing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/erp/docprint/internal/domain/printing"
	"github.com/erp/docprint/internal/domain/shared"
	"github.com/erp/docprint/internal/infrastructure/logger"
	infra "github.com/erp/docprint/internal/infrastructure/printing"
	"github.com/erp/docprint/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Tracker defaults
const (
	DefaultPrintFallbackTimeout = 5 * time.Second
	DefaultBatchDelay           = time.Second
	DefaultSessionRetention     = 15 * time.Minute
	DefaultSubscriberBuffer     = 64
	DefaultPrefetchConcurrency  = 4
)

// ErrTrackerClosed is returned when sessions are started after Shutdown
var ErrTrackerClosed = shared.NewDomainError("SHUTTING_DOWN", "Print service is shutting down")

// TrackerConfig configures the lifecycle tracker
type TrackerConfig struct {
	// PrintFallbackTimeout completes a document whose dialog never signals
	PrintFallbackTimeout time.Duration
	// BatchDelay is the pause between two documents of a batch
	BatchDelay time.Duration
	// SessionRetention keeps finished sessions queryable
	SessionRetention    time.Duration
	SubscriberBuffer    int
	PrefetchConcurrency int
	Publisher           shared.EventPublisher
	Metrics             *telemetry.PrintMetrics
	Logger              *zap.Logger
}

// SessionRequest starts a print session
type SessionRequest struct {
	Documents []printing.DocumentRef
	// Inline payloads by queue position; those documents skip the source
	Inline map[int]printing.Document
	Copies int
	// Options applies to every document; nil derives options per document
	Options       *printing.RenderOptions
	SmallViewport bool
	Hooks         Hooks
}

func (r SessionRequest) validate() error {
	for i, doc := range r.Inline {
		if i < 0 || i >= len(r.Documents) {
			return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Inline document %d has no queue position", i))
		}
		if doc.Ref() != r.Documents[i] {
			return printing.NewPrintError(printing.ErrCodeInvalidDocument,
				fmt.Sprintf("inline document %s does not match %s", doc.Ref(), r.Documents[i]), nil)
		}
		if err := doc.Validate(); err != nil {
			return printing.AsPrintError(err, printing.ErrCodeInvalidDocument)
		}
	}
	if r.Options != nil {
		if err := r.Options.WithDefaults().Validate(); err != nil {
			return printing.AsPrintError(err, printing.ErrCodeInvalidOptions)
		}
	}
	return nil
}

// Tracker runs print sessions, one goroutine per session, and keeps them
// queryable until they are evicted.
type Tracker struct {
	producer ArtifactProducer
	source   printing.DocumentSource
	dialog   infra.PrintDialog
	config   TrackerConfig
	logger   *zap.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*trackedSession
	closed   bool
	wg       sync.WaitGroup
}

// NewTracker creates a tracker
func NewTracker(producer ArtifactProducer, source printing.DocumentSource, dialog infra.PrintDialog, config *TrackerConfig) *Tracker {
	cfg := TrackerConfig{}
	if config != nil {
		cfg = *config
	}
	if cfg.PrintFallbackTimeout <= 0 {
		cfg.PrintFallbackTimeout = DefaultPrintFallbackTimeout
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	if cfg.SessionRetention <= 0 {
		cfg.SessionRetention = DefaultSessionRetention
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = DefaultSubscriberBuffer
	}
	if cfg.PrefetchConcurrency <= 0 {
		cfg.PrefetchConcurrency = DefaultPrefetchConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Tracker{
		producer: producer,
		source:   source,
		dialog:   dialog,
		config:   cfg,
		logger:   cfg.Logger,
		sessions: make(map[uuid.UUID]*trackedSession),
	}
}

type trackedSession struct {
	id      uuid.UUID
	inline  map[int]printing.Document
	options *printing.RenderOptions
	small   bool
	hooks   Hooks
	cancel  context.CancelCauseFunc
	done    chan struct{}
	logger  *zap.Logger

	mu          sync.Mutex
	session     *printing.PrintSession
	history     []LifecycleEvent
	subscribers map[int]chan LifecycleEvent
	nextSub     int
	dropped     int
	finishedAt  time.Time
}

// Start validates the request, registers a session and runs it in the
// background. The session outlives ctx; only its values are kept.
func (t *Tracker) Start(ctx context.Context, req SessionRequest) (printing.PrintSession, error) {
	session, err := printing.NewPrintSession(req.Documents, req.Copies)
	if err != nil {
		return printing.PrintSession{}, err
	}
	if err := req.validate(); err != nil {
		return printing.PrintSession{}, err
	}

	sctx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	sctx, sessionLogger := logger.WithSessionID(sctx, t.logger, session.ID.String())
	ts := &trackedSession{
		id:          session.ID,
		inline:      req.Inline,
		options:     req.Options,
		small:       req.SmallViewport,
		hooks:       req.Hooks,
		cancel:      cancel,
		done:        make(chan struct{}),
		logger:      sessionLogger,
		session:     session,
		subscribers: make(map[int]chan LifecycleEvent),
	}
	snapshot := session.Snapshot()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		cancel(nil)
		return printing.PrintSession{}, ErrTrackerClosed
	}
	t.sessions[session.ID] = ts
	t.wg.Add(1)
	t.mu.Unlock()

	t.EvictFinished(time.Now())
	go t.run(sctx, ts)
	return snapshot, nil
}

// Run starts a session and blocks until it finished. Cancelling ctx cancels
// the session. The error is the failure or cancellation of the session.
func (t *Tracker) Run(ctx context.Context, req SessionRequest) (printing.PrintSession, error) {
	snapshot, err := t.Start(ctx, req)
	if err != nil {
		return snapshot, err
	}
	ts, err := t.lookup(snapshot.ID)
	if err != nil {
		return snapshot, err
	}
	select {
	case <-ts.done:
	case <-ctx.Done():
		ts.cancel(printing.NewPrintError(printing.ErrCodeSessionCancelled, "caller context cancelled", ctx.Err()))
		<-ts.done
	}
	final := ts.snapshot()
	return final, sessionError(final)
}

// Wait blocks until the session finished or ctx is done
func (t *Tracker) Wait(ctx context.Context, id uuid.UUID) (printing.PrintSession, error) {
	ts, err := t.lookup(id)
	if err != nil {
		return printing.PrintSession{}, err
	}
	select {
	case <-ts.done:
		return ts.snapshot(), nil
	case <-ctx.Done():
		return ts.snapshot(), ctx.Err()
	}
}

// Get returns a snapshot of the session
func (t *Tracker) Get(id uuid.UUID) (printing.PrintSession, error) {
	ts, err := t.lookup(id)
	if err != nil {
		return printing.PrintSession{}, err
	}
	return ts.snapshot(), nil
}

// Cancel dismisses a running session. The document in flight is cancelled
// and the rest of the queue abandoned.
func (t *Tracker) Cancel(id uuid.UUID, reason string) error {
	ts, err := t.lookup(id)
	if err != nil {
		return err
	}
	ts.mu.Lock()
	finished := ts.session.IsFinished()
	ts.mu.Unlock()
	if finished {
		return shared.NewDomainError("INVALID_STATE", "Print session already finished")
	}
	if reason == "" {
		reason = "cancelled by user"
	}
	ts.cancel(printing.NewPrintError(printing.ErrCodeSessionCancelled, reason, nil))
	return nil
}

// Subscribe returns the events emitted so far followed by live events. The
// channel is closed after the final event or by the returned func. Events are
// dropped for a subscriber that does not keep up, but the final event is always
// delivered. Seq numbers let a subscriber detect the gap.
func (t *Tracker) Subscribe(id uuid.UUID) (<-chan LifecycleEvent, func(), error) {
	ts, err := t.lookup(id)
	if err != nil {
		return nil, nil, err
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ch := make(chan LifecycleEvent, len(ts.history)+t.config.SubscriberBuffer)
	for _, ev := range ts.history {
		ch <- ev
	}
	if !ts.finishedAt.IsZero() {
		close(ch)
		return ch, func() {}, nil
	}
	subID := ts.nextSub
	ts.nextSub++
	ts.subscribers[subID] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			ts.mu.Lock()
			defer ts.mu.Unlock()
			if c, ok := ts.subscribers[subID]; ok {
				delete(ts.subscribers, subID)
				close(c)
			}
		})
	}
	return ch, unsubscribe, nil
}

// EvictFinished drops sessions finished longer than the retention ago
func (t *Tracker) EvictFinished(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	evicted := 0
	for id, ts := range t.sessions {
		ts.mu.Lock()
		expired := !ts.finishedAt.IsZero() && now.Sub(ts.finishedAt) > t.config.SessionRetention
		ts.mu.Unlock()
		if expired {
			delete(t.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		t.logger.Debug("Evicted finished print sessions", zap.Int("count", evicted))
	}
	return evicted
}

// Len returns the number of registered sessions
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// Shutdown cancels all running sessions and waits for them to finish
func (t *Tracker) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	for _, ts := range t.sessions {
		ts.cancel(printing.NewPrintError(printing.ErrCodeSessionCancelled, "print service shutting down", nil))
	}
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("print sessions still running: %w", ctx.Err())
	}
}

func (t *Tracker) lookup(id uuid.UUID) (*trackedSession, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ts, ok := t.sessions[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return ts, nil
}

func (t *Tracker) run(ctx context.Context, ts *trackedSession) {
	ctx, span := telemetry.StartSpan(ctx, "print.session",
		telemetry.WithAttribute(telemetry.SpanAttrSessionID, ts.id.String()))
	t.config.Metrics.SessionStarted(ctx)

	defer t.wg.Done()
	defer close(ts.done)
	defer func() {
		final := ts.snapshot()
		t.config.Metrics.SessionFinished(ctx, final.State.String())
		if final.State == printing.SessionStateFailed {
			telemetry.RecordError(span, final.LastError)
		} else {
			telemetry.SetOK(span)
		}
		span.End()
	}()
	defer ts.cancel(nil)
	defer t.dialog.Close(ts.id)
	defer func() {
		if r := recover(); r != nil {
			ts.logger.Error("Print session panicked", zap.Any("panic", r), zap.Stack("stack"))
			t.terminate(ctx, ts, printing.NewPrintError(printing.ErrCodeInternal,
				fmt.Sprintf("print session panicked: %v", r), nil))
		}
	}()

	fetches := t.prefetch(ctx, ts)
	if err := t.apply(ctx, ts, (*printing.PrintSession).Start); err != nil {
		t.terminate(ctx, ts, err)
		return
	}
	for {
		if err := t.printCurrent(ctx, ts, fetches); err != nil {
			t.terminate(ctx, ts, err)
			return
		}
		if ts.finished() {
			return
		}
		if err := t.pause(ctx); err != nil {
			t.terminate(ctx, ts, err)
			return
		}
		if err := t.apply(ctx, ts, (*printing.PrintSession).Advance); err != nil {
			t.terminate(ctx, ts, err)
			return
		}
	}
}

// printCurrent drives the current document from Loading to Completed
func (t *Tracker) printCurrent(ctx context.Context, ts *trackedSession, fetches *prefetcher) error {
	ts.mu.Lock()
	index := ts.session.Current
	ref := ts.session.Documents[index].Ref
	copies := ts.session.Copies
	ts.mu.Unlock()

	doc, err := fetches.wait(ctx, index)
	if err != nil {
		return err
	}
	if err := t.apply(ctx, ts, (*printing.PrintSession).MarkLoaded); err != nil {
		return err
	}

	artifact, err := t.producer.Produce(ctx, *doc, ts.optionsFor(*doc))
	if err != nil {
		return err
	}

	signals, err := t.dialog.Open(ctx, infra.PrintRequest{
		SessionID: ts.id,
		Index:     index,
		Document:  ref,
		Artifact:  artifact,
		Copies:    copies,
	})
	if err != nil {
		return printing.AsPrintError(err, printing.ErrCodeInternal)
	}
	defer t.dialog.Close(ts.id)

	if err := t.apply(ctx, ts, func(s *printing.PrintSession) error { return s.MarkReady(artifact) }); err != nil {
		return err
	}
	trigger, err := t.awaitPrint(ctx, signals)
	if err != nil {
		return err
	}
	return t.apply(ctx, ts, func(s *printing.PrintSession) error { return s.CompleteCurrent(trigger) })
}

// awaitPrint waits for the dialog signal, bounded by the fallback timer
func (t *Tracker) awaitPrint(ctx context.Context, signals <-chan infra.PrintSignal) (printing.CompletionTrigger, error) {
	timer := time.NewTimer(t.config.PrintFallbackTimeout)
	defer timer.Stop()
	for {
		select {
		case sig, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}
			if sig.Kind == infra.SignalDismissed {
				reason := sig.Reason
				if reason == "" {
					reason = "print dialog dismissed"
				}
				return "", printing.NewPrintError(printing.ErrCodeSessionCancelled, reason, nil)
			}
			return printing.CompletionTriggerSignal, nil
		case <-timer.C:
			return printing.CompletionTriggerTimer, nil
		case <-ctx.Done():
			return "", context.Cause(ctx)
		}
	}
}

func (t *Tracker) pause(ctx context.Context) error {
	if t.config.BatchDelay == 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(t.config.BatchDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// terminate moves the session to Cancelled or Failed
func (t *Tracker) terminate(ctx context.Context, ts *trackedSession, err error) {
	pe := printing.AsPrintError(err, printing.ErrCodeInternal)
	if ctx.Err() != nil {
		pe = printing.AsPrintError(context.Cause(ctx), printing.ErrCodeSessionCancelled)
	}

	var applyErr error
	if pe.Code == printing.ErrCodeSessionCancelled {
		applyErr = t.apply(ctx, ts, func(s *printing.PrintSession) error { return s.Cancel(pe.Message) })
		ts.logger.Info("Print session cancelled", zap.String("reason", pe.Message))
	} else {
		applyErr = t.apply(ctx, ts, func(s *printing.PrintSession) error { return s.Fail(pe) })
		ts.logger.Warn("Print session failed", zap.String("code", pe.Code.String()), zap.Error(pe))
	}
	if applyErr != nil {
		ts.logger.Debug("Print session already finished", zap.Error(applyErr))
	}
}

// apply runs one transition and emits the events it raised
func (t *Tracker) apply(ctx context.Context, ts *trackedSession, transition func(*printing.PrintSession) error) error {
	ts.mu.Lock()
	err := transition(ts.session)
	events := ts.session.PullDomainEvents()
	snapshot := ts.session.Snapshot()
	ts.mu.Unlock()

	if len(events) == 0 {
		return err
	}
	ctx = context.WithoutCancel(ctx)
	for _, event := range events {
		t.invokeHooks(ctx, ts, &snapshot, event)
		if le, ok := toLifecycleEvent(event); ok {
			ts.broadcast(le)
		}
	}
	if t.config.Publisher != nil {
		if perr := t.config.Publisher.Publish(ctx, events...); perr != nil {
			ts.logger.Warn("Failed to publish print session events", zap.Error(perr))
		}
	}
	return err
}

// invokeHooks isolates the pipeline from panicking hooks
func (t *Tracker) invokeHooks(ctx context.Context, ts *trackedSession, s *printing.PrintSession, event shared.DomainEvent) {
	defer func() {
		if r := recover(); r != nil {
			ts.logger.Error("Print session hook panicked",
				zap.String("event_type", event.EventType()), zap.Any("panic", r))
		}
	}()
	ts.hooks.invoke(ctx, s, event)
}

func (ts *trackedSession) broadcast(ev LifecycleEvent) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ev.Seq = len(ts.history) + 1
	ts.history = append(ts.history, ev)
	for _, ch := range ts.subscribers {
		if trySend(ch, ev) {
			continue
		}
		ts.dropped++
		if ev.Terminal() {
			// The final event evicts the oldest buffered one.
			select {
			case <-ch:
			default:
			}
			trySend(ch, ev)
		}
	}
	if ev.Terminal() {
		for id, ch := range ts.subscribers {
			close(ch)
			delete(ts.subscribers, id)
		}
		ts.finishedAt = time.Now()
		if ts.dropped > 0 {
			ts.logger.Debug("Slow subscribers missed lifecycle events", zap.Int("dropped", ts.dropped))
		}
	}
}

// trySend delivers ev unless ch is full
func trySend(ch chan LifecycleEvent, ev LifecycleEvent) bool {
	select {
	case ch <- ev:
		return true
	default:
		return false
	}
}

func (ts *trackedSession) snapshot() printing.PrintSession {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.session.Snapshot()
}

func (ts *trackedSession) finished() bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.session.IsFinished()
}

func (ts *trackedSession) optionsFor(doc printing.Document) printing.RenderOptions {
	return resolveOptions(doc, ts.options, ts.small)
}

// sessionError describes why a finished session did not print everything
func sessionError(s printing.PrintSession) error {
	switch s.State {
	case printing.SessionStateFailed:
		if s.LastError != nil {
			return s.LastError
		}
		return printing.NewPrintError(printing.ErrCodeInternal, "print session failed", nil)
	case printing.SessionStateCancelled:
		return printing.NewPrintError(printing.ErrCodeSessionCancelled, s.CancelReason, nil)
	}
	return nil
}

type fetchResult struct {
	done chan struct{}
	doc  *printing.Document
	err  error
}

// prefetcher loads queued payloads ahead of the document being printed.
// Only fetching runs in parallel; rendering stays strictly sequential.
type prefetcher struct {
	refs    []printing.DocumentRef
	results []*fetchResult
}

func (t *Tracker) prefetch(ctx context.Context, ts *trackedSession) *prefetcher {
	ts.mu.Lock()
	refs := make([]printing.DocumentRef, len(ts.session.Documents))
	for i, d := range ts.session.Documents {
		refs[i] = d.Ref
	}
	ts.mu.Unlock()

	p := &prefetcher{refs: refs, results: make([]*fetchResult, len(refs))}
	for i := range p.results {
		p.results[i] = &fetchResult{done: make(chan struct{})}
	}

	var g errgroup.Group
	g.SetLimit(t.config.PrefetchConcurrency)
	go func() {
		for i, ref := range refs {
			r := p.results[i]
			if doc, ok := ts.inline[i]; ok {
				c := doc.Clone()
				r.doc = &c
				close(r.done)
				continue
			}
			if err := ctx.Err(); err != nil {
				r.err = err
				close(r.done)
				continue
			}
			g.Go(func() error {
				defer close(r.done)
				if t.source == nil {
					r.err = printing.NewPrintError(printing.ErrCodeDocumentUnavailable, "no document source configured", nil)
					return nil
				}
				r.doc, r.err = t.source.Fetch(ctx, ref)
				return nil
			})
		}
		_ = g.Wait()
	}()
	return p
}

func (p *prefetcher) wait(ctx context.Context, index int) (*printing.Document, error) {
	r := p.results[index]
	select {
	case <-r.done:
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
	if r.err != nil {
		if errors.Is(r.err, context.Canceled) {
			return nil, printing.AsPrintError(r.err, printing.ErrCodeSessionCancelled)
		}
		return nil, printing.AsPrintError(r.err, printing.ErrCodeDocumentUnavailable)
	}
	if r.doc == nil {
		return nil, printing.NewPrintError(printing.ErrCodeDocumentUnavailable,
			"document "+p.refs[index].String()+" is not available", nil)
	}
	return r.doc, nil
}
