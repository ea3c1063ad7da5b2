// Package observe provides application-wide observability primitives for
// Vesta: OpenTelemetry metrics, distributed tracing, and trace-aware
// structured logging.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Vesta metrics.
const meterName = "github.com/vesta-home/vesta"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text transcription latency per engine.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks gateway response latency (first token to done).
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// --- Counters ---

	// Turns counts completed voice turns. Use with attribute:
	//   attribute.String("status", "ok"|"error")
	Turns metric.Int64Counter

	// STTSelections counts which engine's transcript won the parallel race.
	// Use with attribute: attribute.String("engine", ...)
	STTSelections metric.Int64Counter

	// Interrupts counts hard playback interruptions.
	Interrupts metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live voice sessions.
	ActiveSessions metric.Int64UpDownCounter
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
	if met.STTDuration, err = m.Float64Histogram("vesta.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription by engine."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("vesta.llm.duration",
		metric.WithDescription("Latency of the gateway response stream."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("vesta.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Turns, err = m.Int64Counter("vesta.turns",
		metric.WithDescription("Total completed voice turns by status."),
	); err != nil {
		return nil, err
	}
	if met.STTSelections, err = m.Int64Counter("vesta.stt.selections",
		metric.WithDescription("Parallel transcription race wins by engine."),
	); err != nil {
		return nil, err
	}
	if met.Interrupts, err = m.Int64Counter("vesta.interrupts",
		metric.WithDescription("Total hard playback interruptions."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("vesta.active_sessions",
		metric.WithDescription("Number of live voice sessions."),
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

// RecordSessionStart increments the live-session gauge.
func (m *Metrics) RecordSessionStart(ctx context.Context) {
	m.ActiveSessions.Add(ctx, 1)
}

// RecordSessionEnd decrements the live-session gauge.
func (m *Metrics) RecordSessionEnd(ctx context.Context) {
	m.ActiveSessions.Add(ctx, -1)
}

// RecordTurn records a completed voice turn with its outcome.
func (m *Metrics) RecordTurn(ctx context.Context, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	m.Turns.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordSTT records a transcription latency sample for the given engine.
func (m *Metrics) RecordSTT(ctx context.Context, engine string, d time.Duration) {
	m.STTDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("engine", engine)),
	)
}

// RecordLLM records a gateway response latency sample.
func (m *Metrics) RecordLLM(ctx context.Context, d time.Duration) {
	m.LLMDuration.Record(ctx, d.Seconds())
}

// RecordTTS records a synthesis latency sample.
func (m *Metrics) RecordTTS(ctx context.Context, d time.Duration) {
	m.TTSDuration.Record(ctx, d.Seconds())
}

// RecordSelection records which engine won the parallel transcription race.
func (m *Metrics) RecordSelection(ctx context.Context, engine string) {
	m.STTSelections.Add(ctx, 1,
		metric.WithAttributes(attribute.String("engine", engine)),
	)
}

// RecordInterrupt records a hard playback interruption.
func (m *Metrics) RecordInterrupt(ctx context.Context) {
	m.Interrupts.Add(ctx, 1)
}
