package engine

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const (
	meterName = "github.com/neonvoidvibes/align/internal/engine"

	runsMetric              = "align.runs"
	inferenceFailuresMetric = "align.inference.failures"
)

var outcomeKey = attribute.Key("outcome")

// Metrics is an in-process meter provider whose counters can be read back,
// so a running server can report them without an external collector.
type Metrics struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
}

// NewMetrics creates a meter provider backed by a manual reader.
func NewMetrics() *Metrics {
	reader := sdkmetric.NewManualReader()
	return &Metrics{
		reader:   reader,
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}
}

// MeterProvider returns the provider to record against.
func (m *Metrics) MeterProvider() metric.MeterProvider {
	return m.provider
}

// Shutdown flushes and stops the provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// Counts is a point-in-time read of the engine counters.
type Counts struct {
	Runs              map[string]int64 `json:"runs"` // by outcome: done, skipped, failed
	InferenceFailures int64            `json:"inference_failures"`
}

// Counts collects the cumulative counter values.
func (m *Metrics) Counts(ctx context.Context) (Counts, error) {
	var rm metricdata.ResourceMetrics
	if err := m.reader.Collect(ctx, &rm); err != nil {
		return Counts{}, fmt.Errorf("collect metrics: %w", err)
	}

	out := Counts{Runs: make(map[string]int64)}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				switch md.Name {
				case runsMetric:
					outcome, _ := dp.Attributes.Value(outcomeKey)
					out.Runs[outcome.AsString()] += dp.Value
				case inferenceFailuresMetric:
					out.InferenceFailures += dp.Value
				}
			}
		}
	}
	return out, nil
}

type instruments struct {
	runs              metric.Int64Counter
	inferenceFailures metric.Int64Counter
}

// newInstruments registers the engine counters on mp, or on the global
// provider when mp is nil.
func newInstruments(mp metric.MeterProvider) instruments {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	runs, err := meter.Int64Counter(runsMetric,
		metric.WithDescription("Analysis runs by outcome"),
		metric.WithUnit("{run}"))
	if err != nil {
		log.Printf("metrics: %s: %v", runsMetric, err)
	}
	failures, err := meter.Int64Counter(inferenceFailuresMetric,
		metric.WithDescription("Inference calls that degraded to decay only"),
		metric.WithUnit("{call}"))
	if err != nil {
		log.Printf("metrics: %s: %v", inferenceFailuresMetric, err)
	}
	return instruments{runs: runs, inferenceFailures: failures}
}

func (m instruments) run(ctx context.Context, outcome string) {
	if m.runs == nil {
		return
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(outcomeKey.String(outcome)))
}

func (m instruments) inferenceFailed(ctx context.Context) {
	if m.inferenceFailures == nil {
		return
	}
	m.inferenceFailures.Add(ctx, 1)
}
