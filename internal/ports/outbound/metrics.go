// Package outbound defines the outbound port interfaces.
package outbound

import (
	"context"
	"time"
)

// MetricsRecorder provides an interface for recording application metrics.
// This allows the application layer to record metrics without depending on
// specific telemetry implementations.
type MetricsRecorder interface {
	// RecordOperation records one completed operation with its outcome
	// ("ok", "validation_error", "storage_error", "not_found").
	RecordOperation(ctx context.Context, operation, outcome string, duration time.Duration)

	// RecordLookupFallback records that a lookup fell back to its secondary criteria.
	RecordLookupFallback(ctx context.Context, matched bool)

	// RecordCacheResult records a reference cache hit or miss.
	RecordCacheResult(ctx context.Context, hit bool)
}
