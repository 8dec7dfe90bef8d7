// Package emissions_factors provides the emissions factor read use cases:
// hierarchical lookup with fallback, level enumeration and electricity grid metadata.
package emissions_factors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/archon-research/emissions-api/internal/domain/entity"
	"github.com/archon-research/emissions-api/internal/ports/inbound"
	"github.com/archon-research/emissions-api/internal/ports/outbound"
	"github.com/archon-research/emissions-api/internal/services/shared"
)

// Compile-time check that Service implements inbound.EmissionsFactorService.
var _ inbound.EmissionsFactorService = (*Service)(nil)

// Operation names. Errors and metrics are tagged with these.
const (
	OpGetLevel1s                 = "emissionsFactors.getLevel1s"
	OpGetLevel2s                 = "emissionsFactors.getLevel2s"
	OpGetLevel3s                 = "emissionsFactors.getLevel3s"
	OpGetLevel4s                 = "emissionsFactors.getLevel4s"
	OpGetElectricityCountries    = "emissionsFactors.getElectricityCountries"
	OpGetElectricityUSAStates    = "emissionsFactors.getElectricityUSAStates"
	OpGetElectricityUSAUtilities = "emissionsFactors.getElectricityUSAUtilities"
	OpGet                        = "emissionsFactors.get"
	OpLookup                     = "emissionsFactors.lookup"
)

const tracerName = "github.com/archon-research/emissions-api/internal/services/emissions_factors"

// ServiceConfig holds configuration for the emissions factor service.
type ServiceConfig struct {
	// Cache is an optional read-through cache for level and grid reads.
	// Lookups and single gets are never cached.
	Cache outbound.ReferenceCache

	// CacheTTL is how long cached reference reads live.
	// Defaults to 1 hour if not set.
	CacheTTL time.Duration

	// Metrics records operation metrics. Defaults to a no-op recorder.
	Metrics outbound.MetricsRecorder

	// Logger is the structured logger for the service.
	Logger *slog.Logger
}

// Service resolves emissions factor reads against the repository.
type Service struct {
	repo     outbound.EmissionsFactorRepository
	cache    outbound.ReferenceCache
	cacheTTL time.Duration
	metrics  outbound.MetricsRecorder
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewService creates a new emissions factor service.
func NewService(config ServiceConfig, repo outbound.EmissionsFactorRepository) (*Service, error) {
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
	ttl := config.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &Service{
		repo:     repo,
		cache:    config.Cache,
		cacheTTL: ttl,
		metrics:  metrics,
		tracer:   otel.Tracer(tracerName),
		logger:   logger.With("component", "emissions-factors"),
	}, nil
}

// Lookup returns the factors matching criteria. When that result is empty
// and fallback is non-nil, the fallback criteria are queried instead and
// their result is returned as is, even when also empty.
func (s *Service) Lookup(ctx context.Context, criteria entity.LookupCriteria, fallback *entity.LookupCriteria) (factors []*entity.EmissionsFactor, err error) {
	ctx, done := shared.StartOperation(ctx, s.tracer, s.metrics, OpLookup)
	defer func() { done(err) }()

	if verr := criteria.Validate(); verr != nil {
		return nil, verr
	}
	if fallback != nil {
		if verr := fallback.Validate(); verr != nil {
			return nil, prefixField("fallback", verr)
		}
	}

	factors, err = s.repo.GetEmissionsFactors(ctx, criteria)
	if err != nil {
		return nil, entity.NewStorageError(OpLookup, err)
	}
	if len(factors) > 0 || fallback == nil {
		return nonNil(factors), nil
	}

	s.logger.Debug("no factors for primary criteria, querying fallback",
		"level_1", criteria.Level1, "level_2", criteria.Level2,
		"fallback_level_1", fallback.Level1, "fallback_level_2", fallback.Level2)

	factors, err = s.repo.GetEmissionsFactors(ctx, *fallback)
	if err != nil {
		return nil, entity.NewStorageError(OpLookup, err)
	}
	s.metrics.RecordLookupFallback(ctx, len(factors) > 0)
	return nonNil(factors), nil
}

// Get returns a single factor by UUID.
func (s *Service) Get(ctx context.Context, id string) (factor *entity.EmissionsFactor, err error) {
	ctx, done := shared.StartOperation(ctx, s.tracer, s.metrics, OpGet)
	defer func() { done(err) }()

	if _, perr := uuid.Parse(id); perr != nil {
		return nil, entity.NewValidationError("uuid", "must be a UUID, got %q", id)
	}

	factor, err = s.repo.GetEmissionsFactor(ctx, id)
	if errors.Is(err, entity.ErrNotFound) {
		return nil, fmt.Errorf("emissions factor %s: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		return nil, entity.NewStorageError(OpGet, err)
	}
	return factor, nil
}

// LevelOneValues returns the distinct level_1 values, optionally within scope.
func (s *Service) LevelOneValues(ctx context.Context, scope string) ([]string, error) {
	return s.levelValues(ctx, OpGetLevel1s, 1, entity.LevelQuery{Scope: scope})
}

// LevelTwoValues returns the distinct level_2 values under level1.
func (s *Service) LevelTwoValues(ctx context.Context, scope, level1 string) ([]string, error) {
	return s.levelValues(ctx, OpGetLevel2s, 2, entity.LevelQuery{Scope: scope, Level1: level1})
}

// LevelThreeValues returns the distinct level_3 values under level1/level2.
func (s *Service) LevelThreeValues(ctx context.Context, scope, level1, level2 string) ([]string, error) {
	return s.levelValues(ctx, OpGetLevel3s, 3, entity.LevelQuery{Scope: scope, Level1: level1, Level2: level2})
}

// LevelFourValues returns the distinct level_4 values under level1/level2/level3.
func (s *Service) LevelFourValues(ctx context.Context, scope, level1, level2, level3 string) ([]string, error) {
	return s.levelValues(ctx, OpGetLevel4s, 4, entity.LevelQuery{Scope: scope, Level1: level1, Level2: level2, Level3: level3})
}

func (s *Service) levelValues(ctx context.Context, op string, depth int, query entity.LevelQuery) (values []string, err error) {
	ctx, done := shared.StartOperation(ctx, s.tracer, s.metrics, op)
	defer func() { done(err) }()

	if verr := query.ValidateDepth(depth); verr != nil {
		return nil, verr
	}

	ancestors := []string{query.Scope, query.Level1, query.Level2, query.Level3}[:depth]
	key := shared.CacheKey("ef:levels:"+strconv.Itoa(depth), ancestors...)

	values, err = readThrough(ctx, s, key, func(ctx context.Context) ([]string, error) {
		return s.repo.GetLevelValues(ctx, depth, query)
	})
	if err != nil {
		return nil, entity.NewStorageError(op, err)
	}
	return nonNil(values), nil
}

// ElectricityCountries returns the countries that have grid factors.
func (s *Service) ElectricityCountries(ctx context.Context, query entity.CountryQuery) (countries []string, err error) {
	ctx, done := shared.StartOperation(ctx, s.tracer, s.metrics, OpGetElectricityCountries)
	defer func() { done(err) }()

	if verr := query.Validate(); verr != nil {
		return nil, verr
	}

	key := shared.CacheKey("ef:countries", query.Scope, shared.FormatYear(query.FromYear), shared.FormatYear(query.ThruYear))
	countries, err = readThrough(ctx, s, key, func(ctx context.Context) ([]string, error) {
		return s.repo.GetElectricityCountries(ctx, query)
	})
	if err != nil {
		return nil, entity.NewStorageError(OpGetElectricityCountries, err)
	}
	return nonNil(countries), nil
}

// ElectricityUSAStates returns the USA states that have grid factors.
func (s *Service) ElectricityUSAStates(ctx context.Context) (states []string, err error) {
	ctx, done := shared.StartOperation(ctx, s.tracer, s.metrics, OpGetElectricityUSAStates)
	defer func() { done(err) }()

	states, err = readThrough(ctx, s, shared.CacheKey("ef:usa-states"), s.repo.GetElectricityUSAStates)
	if err != nil {
		return nil, entity.NewStorageError(OpGetElectricityUSAStates, err)
	}
	return nonNil(states), nil
}

// ElectricityUSAUtilities returns the USA utilities that have grid factors.
func (s *Service) ElectricityUSAUtilities(ctx context.Context, query entity.UtilityQuery) (utilities []*entity.Utility, err error) {
	ctx, done := shared.StartOperation(ctx, s.tracer, s.metrics, OpGetElectricityUSAUtilities)
	defer func() { done(err) }()

	if verr := query.Validate(); verr != nil {
		return nil, verr
	}

	key := shared.CacheKey("ef:usa-utilities", query.StateProvince, shared.FormatYear(query.FromYear), shared.FormatYear(query.ThruYear))
	utilities, err = readThrough(ctx, s, key, func(ctx context.Context) ([]*entity.Utility, error) {
		return s.repo.GetElectricityUSAUtilities(ctx, query)
	})
	if err != nil {
		return nil, entity.NewStorageError(OpGetElectricityUSAUtilities, err)
	}
	return nonNil(utilities), nil
}

// readThrough serves key from the cache when possible and populates it after
// a store read. Cache failures are logged and never fail the request; store
// errors are returned unchanged.
func readThrough[T any](ctx context.Context, s *Service, key string, load func(context.Context) (T, error)) (T, error) {
	if s.cache == nil {
		return load(ctx)
	}

	data, found, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		s.logger.Warn("cache read failed, using store", "key", key, "error", err)
	case found:
		var cached T
		uerr := json.Unmarshal(data, &cached)
		if uerr == nil {
			s.metrics.RecordCacheResult(ctx, true)
			return cached, nil
		}
		s.logger.Warn("discarding undecodable cache entry", "key", key, "error", uerr)
	}
	s.metrics.RecordCacheResult(ctx, false)

	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("failed to encode cache entry", "key", key, "error", err)
		return value, nil
	}
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL); err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
	}
	return value, nil
}

// prefixField re-tags a validation error with the name of the nested object it came from.
func prefixField(prefix string, err error) error {
	var ve *entity.ValidationError
	if errors.As(err, &ve) {
		return &entity.ValidationError{Field: prefix + "." + ve.Field, Reason: ve.Reason}
	}
	return err
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
