// Package shared provides shared utilities and instrumentation for application services.
package shared

import (
	"context"
	"time"

	"github.com/archon-research/emissions-api/internal/ports/outbound"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Compile-time assertion that AppTelemetry implements MetricsRecorder.
var _ outbound.MetricsRecorder = (*AppTelemetry)(nil)

const (
	// instrumentationName is the name used for OpenTelemetry instrumentation.
	instrumentationName = "github.com/archon-research/emissions-api/internal/services"
)

// AppTelemetry provides OpenTelemetry metrics for application-level operations.
type AppTelemetry struct {
	meter metric.Meter

	operationsTotal   metric.Int64Counter
	operationDuration metric.Float64Histogram
	lookupFallbacks   metric.Int64Counter
	cacheResults      metric.Int64Counter
}

// NewAppTelemetry creates a new AppTelemetry instance with OpenTelemetry instrumentation.
// Uses the global meter provider by default.
func NewAppTelemetry() (*AppTelemetry, error) {
	return NewAppTelemetryWithProvider(otel.GetMeterProvider())
}

// NewAppTelemetryWithProvider creates a new AppTelemetry instance with a custom meter provider.
func NewAppTelemetryWithProvider(mp metric.MeterProvider) (*AppTelemetry, error) {
	meter := mp.Meter(instrumentationName)

	t := &AppTelemetry{
		meter: meter,
	}

	var err error

	t.operationsTotal, err = meter.Int64Counter(
		"emissions_api.operation.total",
		metric.WithDescription("Total number of completed operations by outcome"),
	)
	if err != nil {
		return nil, err
	}

	t.operationDuration, err = meter.Float64Histogram(
		"emissions_api.operation.duration",
		metric.WithDescription("Operation latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	t.lookupFallbacks, err = meter.Int64Counter(
		"emissions_api.lookup.fallback.total",
		metric.WithDescription("Lookups that queried their fallback criteria"),
	)
	if err != nil {
		return nil, err
	}

	t.cacheResults, err = meter.Int64Counter(
		"emissions_api.cache.requests.total",
		metric.WithDescription("Reference cache requests by result"),
	)
	if err != nil {
		return nil, err
	}

	return t, nil
}

// RecordOperation records one completed operation.
func (t *AppTelemetry) RecordOperation(ctx context.Context, operation, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	t.operationsTotal.Add(ctx, 1, attrs)
	t.operationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordLookupFallback records a fallback query and whether it matched anything.
func (t *AppTelemetry) RecordLookupFallback(ctx context.Context, matched bool) {
	t.lookupFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.Bool("matched", matched)))
}

// RecordCacheResult records a reference cache hit or miss.
func (t *AppTelemetry) RecordCacheResult(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	t.cacheResults.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
