package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/archon-research/emissions-api/internal/domain/entity"
	"github.com/archon-research/emissions-api/internal/ports/outbound"
)

// Compile-time check that EmissionsFactorRepository implements outbound.EmissionsFactorRepository.
var _ outbound.EmissionsFactorRepository = (*EmissionsFactorRepository)(nil)

const emissionsFactorColumns = `
	uuid::text, factor_type, COALESCE(scope, ''),
	level_1, COALESCE(level_2, ''), COALESCE(level_3, ''), COALESCE(level_4, ''),
	COALESCE(text, ''), COALESCE(activity_uom, ''),
	from_year, thru_year, year,
	COALESCE(country, ''), COALESCE(state_province, ''),
	COALESCE(division_type, ''), COALESCE(division_id, ''), COALESCE(division_name, ''),
	net_generation, COALESCE(net_generation_uom, ''),
	co2_equivalent_emissions, COALESCE(co2_equivalent_emissions_uom, ''),
	percent_of_renewables, COALESCE(source, '')`

// levelColumns maps a hierarchy depth to its column. Index 0 is unused.
var levelColumns = [...]string{"", "level_1", "level_2", "level_3", "level_4"}

// EmissionsFactorRepository is a PostgreSQL implementation of the
// outbound.EmissionsFactorRepository port.
//
// Year filters use interval overlap: a factor matches [from, thru] when its
// own [from_year, thru_year] interval intersects it, with NULL bounds treated
// as open-ended.
type EmissionsFactorRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewEmissionsFactorRepository creates a new PostgreSQL emissions factor repository.
func NewEmissionsFactorRepository(pool *pgxpool.Pool, logger *slog.Logger) (*EmissionsFactorRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmissionsFactorRepository{
		pool:   pool,
		logger: logger.With("component", "emissions-factor-repository"),
	}, nil
}

// GetEmissionsFactors returns every factor matching the set fields of criteria.
func (r *EmissionsFactorRepository) GetEmissionsFactors(ctx context.Context, criteria entity.LookupCriteria) ([]*entity.EmissionsFactor, error) {
	query, args := buildLookupQuery(criteria)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying emissions factors: %w", err)
	}
	defer rows.Close()

	return scanEmissionsFactors(rows)
}

func buildLookupQuery(c entity.LookupCriteria) (string, []any) {
	var w whereBuilder
	w.add("level_1 = ?", c.Level1)
	w.addIf("level_2 = ?", c.Level2)
	w.addIf("level_3 = ?", c.Level3)
	w.addIf("level_4 = ?", c.Level4)
	w.addIf("scope = ?", c.Scope)
	w.addIf("activity_uom = ?", c.ActivityUOM)
	w.yearOverlap(c.FromYear, c.ThruYear)

	return "SELECT " + emissionsFactorColumns + " FROM emissions_factor" + w.sql() +
		" ORDER BY level_1, level_2, level_3, level_4, from_year DESC NULLS LAST, uuid", w.args
}

// GetEmissionsFactor returns a single factor or entity.ErrNotFound.
func (r *EmissionsFactorRepository) GetEmissionsFactor(ctx context.Context, uuid string) (*entity.EmissionsFactor, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+emissionsFactorColumns+" FROM emissions_factor WHERE uuid = $1::uuid", uuid)
	f, err := scanEmissionsFactor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying emissions factor %s: %w", uuid, err)
	}
	return f, nil
}

// GetLevelValues returns the distinct non-empty values at depth, sorted ascending.
func (r *EmissionsFactorRepository) GetLevelValues(ctx context.Context, depth int, query entity.LevelQuery) ([]string, error) {
	sql, args, err := buildLevelQuery(depth, query)
	if err != nil {
		return nil, err
	}
	return r.queryStrings(ctx, sql, args...)
}

func buildLevelQuery(depth int, q entity.LevelQuery) (string, []any, error) {
	if depth < 1 || depth >= len(levelColumns) {
		return "", nil, fmt.Errorf("invalid level depth %d", depth)
	}
	column := levelColumns[depth]

	var w whereBuilder
	ancestors := []string{q.Level1, q.Level2, q.Level3}
	for i := 0; i < depth-1; i++ {
		w.add(levelColumns[i+1]+" = ?", ancestors[i])
	}
	w.addIf("scope = ?", q.Scope)
	w.raw(column + " IS NOT NULL")
	w.raw(column + " <> ''")

	return "SELECT DISTINCT " + column + " FROM emissions_factor" + w.sql() + " ORDER BY " + column, w.args, nil
}

// GetElectricityCountries returns the countries that have grid factors.
func (r *EmissionsFactorRepository) GetElectricityCountries(ctx context.Context, query entity.CountryQuery) ([]string, error) {
	var w whereBuilder
	w.add("factor_type = ?", entity.FactorTypeElectricity)
	w.addIf("scope = ?", query.Scope)
	w.yearOverlap(query.FromYear, query.ThruYear)
	w.raw("country IS NOT NULL")
	w.raw("country <> ''")

	return r.queryStrings(ctx, "SELECT DISTINCT country FROM emissions_factor"+w.sql()+" ORDER BY country", w.args...)
}

// GetElectricityUSAStates returns the USA states that have grid factors.
func (r *EmissionsFactorRepository) GetElectricityUSAStates(ctx context.Context) ([]string, error) {
	var w whereBuilder
	w.add("factor_type = ?", entity.FactorTypeElectricity)
	w.add("country = ?", entity.CountryUSA)
	w.raw("state_province IS NOT NULL")
	w.raw("state_province <> ''")

	return r.queryStrings(ctx, "SELECT DISTINCT state_province FROM emissions_factor"+w.sql()+" ORDER BY state_province", w.args...)
}

// GetElectricityUSAUtilities returns the distinct USA utilities with grid factors.
func (r *EmissionsFactorRepository) GetElectricityUSAUtilities(ctx context.Context, query entity.UtilityQuery) ([]*entity.Utility, error) {
	var w whereBuilder
	w.add("factor_type = ?", entity.FactorTypeElectricity)
	w.add("country = ?", entity.CountryUSA)
	w.add("division_type = ?", entity.DivisionTypeUtility)
	w.addIf("state_province = ?", query.StateProvince)
	w.yearOverlap(query.FromYear, query.ThruYear)

	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT COALESCE(division_id, ''), COALESCE(division_name, ''), COALESCE(state_province, '')
		FROM emissions_factor`+w.sql()+`
		ORDER BY 2, 1`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("querying electricity utilities: %w", err)
	}
	defer rows.Close()

	var utilities []*entity.Utility
	for rows.Next() {
		var u entity.Utility
		if err := rows.Scan(&u.DivisionID, &u.DivisionName, &u.StateProvince); err != nil {
			return nil, fmt.Errorf("scanning utility: %w", err)
		}
		utilities = append(utilities, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating utilities: %w", err)
	}
	return utilities, nil
}

func (r *EmissionsFactorRepository) queryStrings(ctx context.Context, sql string, args ...any) ([]string, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying distinct values: %w", err)
	}
	values, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collecting distinct values: %w", err)
	}
	return values, nil
}

func scanEmissionsFactor(row pgx.Row) (*entity.EmissionsFactor, error) {
	var f entity.EmissionsFactor
	if err := row.Scan(
		&f.UUID, &f.FactorType, &f.Scope,
		&f.Level1, &f.Level2, &f.Level3, &f.Level4,
		&f.Text, &f.ActivityUOM,
		&f.FromYear, &f.ThruYear, &f.Year,
		&f.Country, &f.StateProvince,
		&f.DivisionType, &f.DivisionID, &f.DivisionName,
		&f.NetGeneration, &f.NetGenerationUOM,
		&f.CO2EquivalentEmissions, &f.CO2EquivalentEmissionsUOM,
		&f.PercentOfRenewables, &f.Source,
	); err != nil {
		return nil, err
	}
	return &f, nil
}

func scanEmissionsFactors(rows pgx.Rows) ([]*entity.EmissionsFactor, error) {
	var factors []*entity.EmissionsFactor
	for rows.Next() {
		f, err := scanEmissionsFactor(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning emissions factor: %w", err)
		}
		factors = append(factors, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating emissions factors: %w", err)
	}
	return factors, nil
}
