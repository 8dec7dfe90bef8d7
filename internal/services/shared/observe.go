package shared

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/archon-research/emissions-api/internal/domain/entity"
	"github.com/archon-research/emissions-api/internal/ports/outbound"
)

// Operation outcomes used as metric attributes.
const (
	OutcomeOK              = "ok"
	OutcomeValidationError = "validation_error"
	OutcomeNotFound        = "not_found"
	OutcomeStorageError    = "storage_error"
	OutcomeError           = "error"
)

// Outcome classifies an operation result for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case entity.IsValidation(err):
		return OutcomeValidationError
	case errors.Is(err, entity.ErrNotFound):
		return OutcomeNotFound
	case entity.IsStorage(err):
		return OutcomeStorageError
	default:
		return OutcomeError
	}
}

// StartOperation starts a span named after op and returns a function that
// ends it and records the operation metric. Call the returned function with
// the operation's final error.
//
//	ctx, done := shared.StartOperation(ctx, s.tracer, s.metrics, OpLookup)
//	defer func() { done(err) }()
func StartOperation(ctx context.Context, tracer trace.Tracer, metrics outbound.MetricsRecorder, op string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, op)
	return ctx, func(err error) {
		outcome := Outcome(err)
		if err != nil && outcome != OutcomeNotFound {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
		metrics.RecordOperation(ctx, op, outcome, time.Since(start))
	}
}
