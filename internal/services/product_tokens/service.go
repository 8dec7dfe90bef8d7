// Package product_tokens provides the product token use cases: filtered
// count, paginated list and insert.
package product_tokens

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/archon-research/emissions-api/internal/domain/entity"
	"github.com/archon-research/emissions-api/internal/ports/inbound"
	"github.com/archon-research/emissions-api/internal/ports/outbound"
	"github.com/archon-research/emissions-api/internal/services/shared"
)

// Compile-time check that Service implements inbound.ProductTokenService.
var _ inbound.ProductTokenService = (*Service)(nil)

// Operation names. Errors and metrics are tagged with these.
const (
	OpCount  = "productToken.count"
	OpList   = "productToken.list"
	OpInsert = "productToken.insert"
)

const (
	// DefaultLimit is the page size used when a caller does not give one.
	DefaultLimit = 10
	// MaxLimit caps the page size.
	MaxLimit = 1000
)

const tracerName = "github.com/archon-research/emissions-api/internal/services/product_tokens"

// ServiceConfig holds configuration for the product token service.
type ServiceConfig struct {
	// Events receives a ProductTokenInsertedEvent after each committed insert.
	// Optional.
	Events outbound.EventSink

	// Metrics records operation metrics. Defaults to a no-op recorder.
	Metrics outbound.MetricsRecorder

	// Logger is the structured logger for the service.
	Logger *slog.Logger
}

// Service mediates product token reads and writes.
type Service struct {
	repo    outbound.ProductTokenRepository
	events  outbound.EventSink
	metrics outbound.MetricsRecorder
	tracer  trace.Tracer
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a new product token service.
func NewService(config ServiceConfig, repo outbound.ProductTokenRepository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("repo cannot be nil")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = shared.NopMetrics{}
	}

	return &Service{
		repo:    repo,
		events:  config.Events,
		metrics: metrics,
		tracer:  otel.Tracer(tracerName),
		logger:  logger.With("component", "product-tokens"),
		now:     time.Now,
	}, nil
}

// Count returns the number of records matching all bundles.
func (s *Service) Count(ctx context.Context, bundles []entity.FilterBundle) (count int64, err error) {
	ctx, done := shared.StartOperation(ctx, s.tracer, s.metrics, OpCount)
	defer func() { done(err) }()

	if err := entity.ValidateFilterBundles(bundles); err != nil {
		return 0, err
	}

	count, err = s.repo.CountProducts(ctx, bundles)
	if err != nil {
		return 0, entity.NewStorageError(OpCount, err)
	}
	return count, nil
}

// List returns at most limit records matching all bundles starting at offset,
// together with the total number of matches. The page and the count are two
// independent reads and are not taken from one snapshot.
func (s *Service) List(ctx context.Context, bundles []entity.FilterBundle, offset, limit int) (page *entity.ProductTokenPage, err error) {
	ctx, done := shared.StartOperation(ctx, s.tracer, s.metrics, OpList)
	defer func() { done(err) }()

	if offset < 0 {
		return nil, entity.NewValidationError("offset", "must be >= 0, got %d", offset)
	}
	if limit <= 0 {
		return nil, entity.NewValidationError("limit", "must be > 0, got %d", limit)
	}
	if limit > MaxLimit {
		return nil, entity.NewValidationError("limit", "must be <= %d, got %d", MaxLimit, limit)
	}

	if err := entity.ValidateFilterBundles(bundles); err != nil {
		return nil, err
	}

	products, err := s.repo.SelectPaginated(ctx, offset, limit, bundles)
	if err != nil {
		return nil, entity.NewStorageError(OpList, err)
	}
	count, err := s.repo.CountProducts(ctx, bundles)
	if err != nil {
		return nil, entity.NewStorageError(OpList, err)
	}

	if products == nil {
		products = []*entity.ProductToken{}
	}
	return &entity.ProductTokenPage{Count: count, Products: products}, nil
}

// Insert validates and persists a product token, returning it with its
// store-assigned id. A malformed auditor address never reaches the store.
func (s *Service) Insert(ctx context.Context, input entity.ProductTokenInput) (inserted *entity.ProductToken, err error) {
	ctx, done := shared.StartOperation(ctx, s.tracer, s.metrics, OpInsert)
	defer func() { done(err) }()

	checked, err := input.Build()
	if err != nil {
		return nil, err
	}

	inserted, err = s.repo.InsertProductToken(ctx, checked)
	if err != nil {
		return nil, entity.NewStorageError(OpInsert, err)
	}

	s.logger.Info("product token inserted",
		"tokenId", inserted.TokenID,
		"productId", inserted.ProductID,
		"trackerId", inserted.TrackerID,
		"auditor", inserted.AuditorHex())

	s.publishInserted(ctx, inserted)
	return inserted, nil
}

// publishInserted notifies downstream consumers. The row is already committed,
// so a publish failure is logged and not returned.
func (s *Service) publishInserted(ctx context.Context, p *entity.ProductToken) {
	if s.events == nil {
		return
	}
	event := outbound.ProductTokenInsertedEvent{
		TokenID:    p.TokenID,
		ProductID:  p.ProductID,
		TrackerID:  p.TrackerID,
		Auditor:    p.AuditorHex(),
		Amount:     p.Amount.String(),
		Available:  p.Available.String(),
		UnitAmount: p.UnitAmount.String(),
		Name:       p.Name,
		Unit:       p.Unit,
		Hash:       p.Hash,
		InsertedAt: s.now().UTC(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish product token event", "tokenId", p.TokenID, "error", err)
	}
}
