// Package event provides the in-process domain event bus.
package event

import (
	"context"
	"errors"
	"sync"

	"github.com/erp/docprint/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultQueueSize is the number of events buffered while the bus is started
const DefaultQueueSize = 256

// ErrBusStopped is returned when publishing to a stopped asynchronous bus
var ErrBusStopped = errors.New("event bus stopped")

// InMemoryEventBus dispatches domain events to subscribed handlers.
//
// Before Start, and after Stop, Publish dispatches synchronously on the caller's
// goroutine. Between Start and Stop events are queued and dispatched by a single
// worker, so handlers still observe events in publish order while publishers
// never wait on handler I/O.
type InMemoryEventBus struct {
	logger *zap.Logger

	mu       sync.RWMutex
	handlers map[string][]shared.EventHandler
	wildcard []shared.EventHandler

	queueSize int
	queueMu   sync.RWMutex
	queue     chan queuedEvent
	done      chan struct{}
}

type queuedEvent struct {
	ctx   context.Context
	event shared.DomainEvent
}

// Option configures the bus
type Option func(*InMemoryEventBus)

// WithQueueSize sets the asynchronous queue capacity
func WithQueueSize(n int) Option {
	return func(b *InMemoryEventBus) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger, opts ...Option) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &InMemoryEventBus{
		logger:    logger,
		handlers:  make(map[string][]shared.EventHandler),
		queueSize: DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish dispatches events in order. Handler failures are logged and do not
// stop delivery to other handlers.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	b.queueMu.RLock()
	defer b.queueMu.RUnlock()

	if b.queue == nil {
		for _, e := range events {
			b.dispatch(ctx, e)
		}
		return nil
	}

	// Handlers run after the publishing request may have finished.
	detached := context.WithoutCancel(ctx)
	for _, e := range events {
		select {
		case b.queue <- queuedEvent{ctx: detached, event: e}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe registers a handler. Without event types the handler's own
// EventTypes are used; an empty list subscribes to everything.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(eventTypes) == 0 {
		b.wildcard = append(b.wildcard, handler)
	}
	for _, t := range eventTypes {
		b.handlers[t] = append(b.handlers[t], handler)
	}
	b.logger.Debug("handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler from every subscription
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wildcard = without(b.wildcard, handler)
	for t, hs := range b.handlers {
		if hs = without(hs, handler); len(hs) == 0 {
			delete(b.handlers, t)
		} else {
			b.handlers[t] = hs
		}
	}
}

// HandlerCount returns the number of handlers receiving eventType
func (b *InMemoryEventBus) HandlerCount(eventType string) int {
	return len(b.handlersFor(eventType))
}

// Start switches the bus to queued dispatch
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()
	if b.queue != nil {
		return nil
	}
	b.queue = make(chan queuedEvent, b.queueSize)
	b.done = make(chan struct{})
	go b.run(b.queue, b.done)
	b.logger.Info("event bus started", zap.Int("queue_size", b.queueSize))
	return nil
}

// Stop drains queued events and returns to synchronous dispatch.
// It gives up waiting for the drain when ctx is done.
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.queueMu.Lock()
	queue, done := b.queue, b.done
	b.queue, b.done = nil, nil
	b.queueMu.Unlock()

	if queue == nil {
		return nil
	}
	close(queue)
	select {
	case <-done:
		b.logger.Info("event bus stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *InMemoryEventBus) run(queue <-chan queuedEvent, done chan<- struct{}) {
	defer close(done)
	for q := range queue {
		b.dispatch(q.ctx, q.event)
	}
}

func (b *InMemoryEventBus) dispatch(ctx context.Context, e shared.DomainEvent) {
	for _, h := range b.handlersFor(e.EventType()) {
		if err := b.safeHandle(ctx, h, e); err != nil {
			b.logger.Error("handler failed to process event",
				zap.String("event_type", e.EventType()),
				zap.String("event_id", e.EventID().String()),
				zap.Error(err),
			)
		}
	}
}

func (b *InMemoryEventBus) handlersFor(eventType string) []shared.EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	typed := b.handlers[eventType]
	out := make([]shared.EventHandler, 0, len(typed)+len(b.wildcard))
	out = append(out, typed...)
	return append(out, b.wildcard...)
}

func (b *InMemoryEventBus) safeHandle(ctx context.Context, h shared.EventHandler, e shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked",
				zap.String("event_type", e.EventType()),
				zap.Any("panic", r),
			)
		}
	}()
	return h.Handle(ctx, e)
}

func without(handlers []shared.EventHandler, target shared.EventHandler) []shared.EventHandler {
	out := handlers[:0:0]
	for _, h := range handlers {
		if h != target {
			out = append(out, h)
		}
	}
	return out
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
