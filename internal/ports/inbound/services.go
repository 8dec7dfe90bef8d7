// Package inbound contains the primary/inbound ports.
// These interfaces define the use cases that the application exposes.
package inbound

import (
	"context"

	"github.com/archon-research/emissions-api/internal/domain/entity"
)

// EmissionsFactorService defines the emissions factor read use cases.
// Inbound adapters (HTTP handlers, CLI) call these methods.
type EmissionsFactorService interface {
	// Lookup returns factors matching criteria, retrying with fallback only
	// when the primary result is empty and a fallback is given.
	Lookup(ctx context.Context, criteria entity.LookupCriteria, fallback *entity.LookupCriteria) ([]*entity.EmissionsFactor, error)

	Get(ctx context.Context, uuid string) (*entity.EmissionsFactor, error)

	LevelOneValues(ctx context.Context, scope string) ([]string, error)
	LevelTwoValues(ctx context.Context, scope, level1 string) ([]string, error)
	LevelThreeValues(ctx context.Context, scope, level1, level2 string) ([]string, error)
	LevelFourValues(ctx context.Context, scope, level1, level2, level3 string) ([]string, error)

	ElectricityCountries(ctx context.Context, query entity.CountryQuery) ([]string, error)
	ElectricityUSAStates(ctx context.Context) ([]string, error)
	ElectricityUSAUtilities(ctx context.Context, query entity.UtilityQuery) ([]*entity.Utility, error)
}

// ProductTokenService defines the product token use cases.
type ProductTokenService interface {
	Count(ctx context.Context, bundles []entity.FilterBundle) (int64, error)
	List(ctx context.Context, bundles []entity.FilterBundle, offset, limit int) (*entity.ProductTokenPage, error)
	Insert(ctx context.Context, input entity.ProductTokenInput) (*entity.ProductToken, error)
}

// HealthChecker defines the interface for services that can report readiness and liveness.
type HealthChecker interface {
	// IsReady returns true when the service can serve traffic (store reachable).
	IsReady(ctx context.Context) bool

	// IsHealthy returns true when the process is operating normally.
	IsHealthy(ctx context.Context) bool

	// Status reports readiness and liveness for monitoring. Unlike IsReady
	// it does not count toward the liveness failure threshold.
	Status(ctx context.Context) (ready, healthy bool)
}
