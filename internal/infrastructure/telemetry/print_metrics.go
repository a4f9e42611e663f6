package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PrintMetrics holds the print pipeline instruments
type PrintMetrics struct {
	renders        *Counter
	blankCaptures  *Counter
	deliveries     *Counter
	sessions       *Counter
	activeSessions *UpDownCounter
	stageDuration  *Histogram
}

// NewPrintMetrics registers the print pipeline instruments on meter
func NewPrintMetrics(meter metric.Meter) (*PrintMetrics, error) {
	m := &PrintMetrics{}
	var err error

	if m.renders, err = NewCounter(meter, "print_renders_total",
		"Documents rendered, by strategy and outcome", "{render}"); err != nil {
		return nil, err
	}
	if m.blankCaptures, err = NewCounter(meter, "print_blank_captures_total",
		"Captures rejected under the artifact size floor", "{capture}"); err != nil {
		return nil, err
	}
	if m.deliveries, err = NewCounter(meter, "print_deliveries_total",
		"Delivered artifacts, by method", "{delivery}"); err != nil {
		return nil, err
	}
	if m.sessions, err = NewCounter(meter, "print_sessions_total",
		"Finished print sessions, by final state", "{session}"); err != nil {
		return nil, err
	}
	if m.activeSessions, err = NewUpDownCounter(meter, "print_sessions_active",
		"Print sessions that have not finished", "{session}"); err != nil {
		return nil, err
	}
	if m.stageDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "print_stage_duration_seconds",
		Description: "Duration of pipeline stages",
		Unit:        "s",
		Boundaries:  RenderDurationBuckets,
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordRender counts one render attempt. strategy is empty when nothing rendered.
func (m *PrintMetrics) RecordRender(ctx context.Context, docType, strategy, errorCode string, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if errorCode != "" {
		outcome = "failure"
	}
	m.renders.Inc(ctx,
		AttrDocumentType.String(docType),
		AttrStrategy.String(strategy),
		AttrOutcome.String(outcome),
		AttrErrorCode.String(errorCode))
	m.stageDuration.RecordDuration(ctx, d, AttrStage.String("render"))
}

// RecordBlankCapture counts one capture under the size floor
func (m *PrintMetrics) RecordBlankCapture(ctx context.Context, docType, strategy string) {
	if m == nil {
		return
	}
	m.blankCaptures.Inc(ctx, AttrDocumentType.String(docType), AttrStrategy.String(strategy))
}

// RecordDelivery counts one delivered artifact
func (m *PrintMetrics) RecordDelivery(ctx context.Context, method string, fellBack bool) {
	if m == nil {
		return
	}
	m.deliveries.Inc(ctx, AttrDeliveryMethod.String(method), attribute.Bool("fallback", fellBack))
}

// SessionStarted tracks a session as active
func (m *PrintMetrics) SessionStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, 1)
}

// SessionFinished records the final state of a session
func (m *PrintMetrics) SessionFinished(ctx context.Context, state string) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, -1)
	m.sessions.Inc(ctx, AttrOutcome.String(state))
}
