// Package observe provides application-wide observability primitives for
// VoxBridge: OpenTelemetry metrics with a Prometheus exporter bridge so that
// the standard /metrics endpoint keeps working.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all VoxBridge metrics.
const meterName = "github.com/voxbridge/voxbridge"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TranslationDuration tracks machine-translation latency per sentence.
	TranslationDuration metric.Float64Histogram

	// SynthesisDuration tracks text-to-speech synthesis latency per sentence.
	SynthesisDuration metric.Float64Histogram

	// SentenceDuration tracks end-to-end relay latency from finalize to
	// partner delivery.
	SentenceDuration metric.Float64Histogram

	// --- Counters ---

	// SentencesFinalized counts finalized sentences. Use with attribute:
	//   attribute.String("trigger", "silence"|"stream_end"|"teardown")
	SentencesFinalized metric.Int64Counter

	// SentencesDropped counts sentences rejected by the single-flight guard.
	SentencesDropped metric.Int64Counter

	// StreamRestarts counts recognition stream restarts. Use with attribute:
	//   attribute.String("reason", "rotation"|"write_error"|"stream_error")
	StreamRestarts metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attribute:
	//   attribute.String("kind", "stt"|"translate"|"tts")
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live paired sessions.
	ActiveSessions metric.Int64UpDownCounter

	// ActiveConnections tracks the number of connected participants across
	// all sessions.
	ActiveConnections metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
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
	if met.TranslationDuration, err = m.Float64Histogram("voxbridge.translation.duration",
		metric.WithDescription("Latency of machine translation per sentence."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("voxbridge.synthesis.duration",
		metric.WithDescription("Latency of speech synthesis per sentence."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SentenceDuration, err = m.Float64Histogram("voxbridge.sentence.duration",
		metric.WithDescription("End-to-end relay latency from finalize to partner delivery."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.SentencesFinalized, err = m.Int64Counter("voxbridge.sentences.finalized",
		metric.WithDescription("Total finalized sentences by trigger."),
	); err != nil {
		return nil, err
	}
	if met.SentencesDropped, err = m.Int64Counter("voxbridge.sentences.dropped",
		metric.WithDescription("Sentences dropped by the single-flight guard."),
	); err != nil {
		return nil, err
	}
	if met.StreamRestarts, err = m.Int64Counter("voxbridge.stream.restarts",
		metric.WithDescription("Recognition stream restarts by reason."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("voxbridge.provider.errors",
		metric.WithDescription("Total provider errors by kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("voxbridge.active_sessions",
		metric.WithDescription("Number of live paired sessions."),
	); err != nil {
		return nil, err
	}
	if met.ActiveConnections, err = m.Int64UpDownCounter("voxbridge.active_connections",
		metric.WithDescription("Number of connected participants across all sessions."),
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

// RecordFinalized records one finalized sentence with its trigger.
func (m *Metrics) RecordFinalized(ctx context.Context, trigger string) {
	m.SentencesFinalized.Add(ctx, 1,
		metric.WithAttributes(attribute.String("trigger", trigger)),
	)
}

// RecordRestart records one recognition stream restart with its reason.
func (m *Metrics) RecordRestart(ctx context.Context, reason string) {
	m.StreamRestarts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordProviderError records one provider error by kind.
func (m *Metrics) RecordProviderError(ctx context.Context, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}
