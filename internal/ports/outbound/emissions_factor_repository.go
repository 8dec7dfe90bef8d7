package outbound

import (
	"context"

	"github.com/archon-research/emissions-api/internal/domain/entity"
)

// EmissionsFactorRepository defines read access to the emissions factor
// reference tables. Empty results are returned as empty slices, not errors.
type EmissionsFactorRepository interface {
	// GetEmissionsFactors returns the factors matching every set field of criteria.
	GetEmissionsFactors(ctx context.Context, criteria entity.LookupCriteria) ([]*entity.EmissionsFactor, error)

	// GetEmissionsFactor returns one factor by UUID or entity.ErrNotFound.
	GetEmissionsFactor(ctx context.Context, uuid string) (*entity.EmissionsFactor, error)

	// GetLevelValues returns the distinct values at the given depth (1-4)
	// under the ancestors named in query.
	GetLevelValues(ctx context.Context, depth int, query entity.LevelQuery) ([]string, error)

	// GetElectricityCountries returns the countries with grid factors.
	GetElectricityCountries(ctx context.Context, query entity.CountryQuery) ([]string, error)

	// GetElectricityUSAStates returns the USA states with grid factors.
	GetElectricityUSAStates(ctx context.Context) ([]string, error)

	// GetElectricityUSAUtilities returns the USA utilities with grid factors.
	GetElectricityUSAUtilities(ctx context.Context, query entity.UtilityQuery) ([]*entity.Utility, error)
}
