package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// FetchMetricsMeterName is the name used for the fetch pipeline meter
	FetchMetricsMeterName = "github.com/vellankikoti/tool-versions/fetch"
)

// FetchMetrics holds the instruments recorded by the orchestrator
type FetchMetrics struct {
	fetchTotal      metric.Int64Counter
	fetchDuration   metric.Float64Histogram
	documentEntries metric.Int64Gauge
}

// NewFetchMetrics creates the fetch instruments on provider.
// If provider is nil, it returns nil (no-op metrics).
func NewFetchMetrics(provider metric.MeterProvider) (*FetchMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(FetchMetricsMeterName)

	fetchTotal, err := meter.Int64Counter(
		"tool_versions_fetch_total",
		metric.WithDescription("Fetch attempts per tool by outcome"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, err
	}

	fetchDuration, err := meter.Float64Histogram(
		"tool_versions_fetch_duration_seconds",
		metric.WithDescription("Duration of a single tool fetch in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	documentEntries, err := meter.Int64Gauge(
		"tool_versions_document_entries",
		metric.WithDescription("Number of entries in the written version document"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	return &FetchMetrics{
		fetchTotal:      fetchTotal,
		fetchDuration:   fetchDuration,
		documentEntries: documentEntries,
	}, nil
}

// RecordFetch records one tool's outcome and, for attempted fetches, its duration
func (m *FetchMetrics) RecordFetch(ctx context.Context, toolID, outcome string, duration time.Duration, attempted bool) {
	if m == nil {
		return
	}

	m.fetchTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", toolID),
		attribute.String("outcome", outcome),
	))
	if attempted {
		m.fetchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("tool", toolID)))
	}
}

// RecordDocumentEntries records the size of the document about to be written
func (m *FetchMetrics) RecordDocumentEntries(ctx context.Context, entries int) {
	if m == nil {
		return
	}
	m.documentEntries.Record(ctx, int64(entries))
}
