// Package health reports readiness and liveness from dependency pings.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/archon-research/emissions-api/internal/ports/inbound"
	"github.com/archon-research/emissions-api/internal/ports/outbound"
)

// Compile-time check that Service implements inbound.HealthChecker.
var _ inbound.HealthChecker = (*Service)(nil)

// ServiceConfig holds configuration for the health service.
type ServiceConfig struct {
	// Optional dependencies are pinged and logged but never fail readiness.
	// The reference cache is one: reads fall through to the store without it.
	Optional map[string]outbound.HealthChecker

	// Timeout bounds each ping. Default: 2s.
	Timeout time.Duration

	// FailureThreshold is the number of consecutive failed store pings after
	// which the process reports itself unhealthy. Default: 5.
	FailureThreshold int

	// Logger is the structured logger for the service.
	Logger *slog.Logger
}

// Service checks the store and optional dependencies.
type Service struct {
	store     outbound.HealthChecker
	optional  map[string]outbound.HealthChecker
	timeout   time.Duration
	threshold int64
	failures  atomic.Int64
	logger    *slog.Logger
}

// NewService creates a health service around the required store.
func NewService(config ServiceConfig, store outbound.HealthChecker) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Second
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Service{
		store:     store,
		optional:  config.Optional,
		timeout:   config.Timeout,
		threshold: int64(config.FailureThreshold),
		logger:    config.Logger.With("component", "health"),
	}, nil
}

// IsReady pings the store. Optional dependencies are checked and logged.
// Only IsReady advances the consecutive failure count behind IsHealthy.
func (s *Service) IsReady(ctx context.Context) bool {
	if err := s.ping(ctx, s.store); err != nil {
		n := s.failures.Add(1)
		s.logger.Warn("store not reachable", "error", err, "consecutiveFailures", n)
		return false
	}
	s.failures.Store(0)
	s.checkOptional(ctx)
	return true
}

// IsHealthy reports false once the store has failed FailureThreshold
// consecutive readiness checks.
func (s *Service) IsHealthy(ctx context.Context) bool {
	return s.failures.Load() < s.threshold
}

// Status pings the store without touching the failure count, so monitoring
// polls of /health cannot push the process toward a liveness restart.
func (s *Service) Status(ctx context.Context) (ready, healthy bool) {
	if err := s.ping(ctx, s.store); err != nil {
		s.logger.Warn("store not reachable", "error", err)
	} else {
		ready = true
		s.checkOptional(ctx)
	}
	return ready, s.IsHealthy(ctx)
}

func (s *Service) checkOptional(ctx context.Context) {
	for name, dep := range s.optional {
		if err := s.ping(ctx, dep); err != nil {
			s.logger.Warn("optional dependency not reachable", "dependency", name, "error", err)
		}
	}
}

func (s *Service) ping(ctx context.Context, dep outbound.HealthChecker) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return dep.HealthCheck(ctx)
}
