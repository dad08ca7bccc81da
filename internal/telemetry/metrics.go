package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/wolfeidau/jobdash"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Session metrics
	LoginAttemptsTotal   metric.Int64Counter
	LoginDuration        metric.Float64Histogram
	SessionRestoresTotal metric.Int64Counter
	LogoutsTotal         metric.Int64Counter

	// Access gate metrics
	GateDecisionsTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// Tracer returns the tracer used for session spans.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// RecordLogin counts a login attempt by the path that resolved it and its outcome.
func (m *Metrics) RecordLogin(ctx context.Context, path, outcome string, durationMs float64) {
	attrs := metric.WithAttributes(
		attribute.String("path", path),
		attribute.String("outcome", outcome),
	)
	m.LoginAttemptsTotal.Add(ctx, 1, attrs)
	m.LoginDuration.Record(ctx, durationMs, attrs)
}

// RecordRestore counts a session restore by outcome.
func (m *Metrics) RecordRestore(ctx context.Context, outcome string) {
	m.SessionRestoresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordGateDecision counts an access gate decision by outcome.
func (m *Metrics) RecordGateDecision(ctx context.Context, outcome string) {
	m.GateDecisionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(instrumentationName)

	m := &Metrics{}

	m.LoginAttemptsTotal, _ = meter.Int64Counter(
		"jobdash.session.login.attempts.total",
		metric.WithDescription("Total number of login attempts by resolving path and outcome"),
		metric.WithUnit("{attempt}"),
	)

	m.LoginDuration, _ = meter.Float64Histogram(
		"jobdash.session.login.duration",
		metric.WithDescription("Duration of login attempts including fallback"),
		metric.WithUnit("ms"),
	)

	m.SessionRestoresTotal, _ = meter.Int64Counter(
		"jobdash.session.restores.total",
		metric.WithDescription("Total number of session restores by outcome"),
		metric.WithUnit("{restore}"),
	)

	m.LogoutsTotal, _ = meter.Int64Counter(
		"jobdash.session.logouts.total",
		metric.WithDescription("Total number of logouts"),
		metric.WithUnit("{logout}"),
	)

	m.GateDecisionsTotal, _ = meter.Int64Counter(
		"jobdash.gate.decisions.total",
		metric.WithDescription("Total number of access gate decisions by outcome"),
		metric.WithUnit("{decision}"),
	)

	return m
}
