// Package observe provides application-wide observability primitives for
// voiceflowd: OpenTelemetry metrics and a Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voiceflowd metrics.
const meterName = "github.com/voiceflow/voiceflowd"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// TranscriptionDuration tracks single-pass ASR inference latency.
	TranscriptionDuration metric.Float64Histogram

	// PolishDuration tracks AI polish request latency.
	PolishDuration metric.Float64Histogram

	// PipelineDuration tracks full text-pipeline latency per finalisation.
	PipelineDuration metric.Float64Histogram

	// --- Counters ---

	// ReconcilePasses counts reconciliation passes. Use with attribute:
	//   attribute.String("outcome", "ok"|"skipped"|"error")
	ReconcilePasses metric.Int64Counter

	// WordsConfirmed counts words promoted to confirmed text.
	WordsConfirmed metric.Int64Counter

	// RateLimited counts requests rejected by the per-IP limiter.
	RateLimited metric.Int64Counter

	// EngineErrors counts ASR engine failures.
	EngineErrors metric.Int64Counter

	// BufferEvictions counts sliding-window audio evictions across sessions.
	BufferEvictions metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live dictation sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for dictation-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TranscriptionDuration, err = m.Float64Histogram("voiceflowd.transcription.duration",
		metric.WithDescription("Latency of a single ASR inference pass."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PolishDuration, err = m.Float64Histogram("voiceflowd.polish.duration",
		metric.WithDescription("Latency of AI polish requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PipelineDuration, err = m.Float64Histogram("voiceflowd.pipeline.duration",
		metric.WithDescription("Latency of the full text pipeline per finalisation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ReconcilePasses, err = m.Int64Counter("voiceflowd.reconcile.passes",
		metric.WithDescription("Total reconciliation passes by outcome."),
	); err != nil {
		return nil, err
	}
	if met.WordsConfirmed, err = m.Int64Counter("voiceflowd.reconcile.words_confirmed",
		metric.WithDescription("Total words promoted to confirmed text."),
	); err != nil {
		return nil, err
	}
	if met.RateLimited, err = m.Int64Counter("voiceflowd.ratelimit.rejected",
		metric.WithDescription("Total requests rejected by the per-IP rate limiter."),
	); err != nil {
		return nil, err
	}
	if met.EngineErrors, err = m.Int64Counter("voiceflowd.engine.errors",
		metric.WithDescription("Total ASR engine failures."),
	); err != nil {
		return nil, err
	}
	if met.BufferEvictions, err = m.Int64Counter("voiceflowd.audio.evictions",
		metric.WithDescription("Total sliding-window audio buffer evictions."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("voiceflowd.active_sessions",
		metric.WithDescription("Number of live dictation sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordReconcilePass records a reconciliation pass counter increment with
// its outcome attribute.
func (m *Metrics) RecordReconcilePass(ctx context.Context, outcome string) {
	m.ReconcilePasses.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordEngineError records an ASR engine failure for the given operation
// ("reconcile", "final", "single_shot").
func (m *Metrics) RecordEngineError(ctx context.Context, op string) {
	m.EngineErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("op", op)),
	)
}
