package entity

import (
	"strconv"
	"strings"
)

// FactorTypeElectricity marks grid emissions factors (country, state and utility level).
const FactorTypeElectricity = "UTILITY_EMISSIONS_ELECTRICITY"

// CountryUSA is the country value used for USA state and utility grid factors.
const CountryUSA = "USA"

// DivisionTypeUtility is the division type of utility-level grid factors.
const DivisionTypeUtility = "UTILITY"

// EmissionsFactor is a reference coefficient converting an activity quantity
// into an estimated emissions quantity. Rows are owned by the store and are
// read-only from this service.
type EmissionsFactor struct {
	UUID       string
	FactorType string

	// Hierarchy: Scope -> Level1 -> Level2 -> Level3 -> Level4.
	Scope  string
	Level1 string
	Level2 string
	Level3 string
	Level4 string
	Text   string

	ActivityUOM string

	// Validity interval; nil means open-ended.
	FromYear *int
	ThruYear *int
	Year     *int

	// Grid location, set for electricity factors.
	Country       string
	StateProvince string
	DivisionType  string
	DivisionID    string
	DivisionName  string

	NetGeneration             *float64
	NetGenerationUOM          string
	CO2EquivalentEmissions    *float64
	CO2EquivalentEmissionsUOM string
	PercentOfRenewables       *float64
	Source                    string
}

// LookupCriteria is a partial specification over the factor hierarchy.
// Every set field is an exact-match filter; Level1 is required.
type LookupCriteria struct {
	Scope       string
	Level1      string
	Level2      string
	Level3      string
	Level4      string
	ActivityUOM string
	FromYear    *int
	ThruYear    *int
}

// Validate checks the criteria shape. Deeper levels require all shallower ones.
func (c *LookupCriteria) Validate() error {
	if strings.TrimSpace(c.Level1) == "" {
		return NewValidationError("level_1", "is required")
	}
	level2 := strings.TrimSpace(c.Level2)
	level3 := strings.TrimSpace(c.Level3)
	level4 := strings.TrimSpace(c.Level4)
	if level3 != "" && level2 == "" {
		return NewValidationError("level_3", "requires level_2")
	}
	if level4 != "" && level3 == "" {
		return NewValidationError("level_4", "requires level_3")
	}
	return validateYearRange(c.FromYear, c.ThruYear)
}

// LevelQuery selects the distinct values at one hierarchy depth, scoped by
// the already chosen ancestors and optionally by Scope.
type LevelQuery struct {
	Scope  string
	Level1 string
	Level2 string
	Level3 string
}

// ValidateDepth checks that every ancestor of the requested depth (1-4) is set.
func (q *LevelQuery) ValidateDepth(depth int) error {
	if depth < 1 || depth > 4 {
		return NewValidationError("depth", "must be between 1 and 4, got %d", depth)
	}
	ancestors := []struct {
		field string
		value string
	}{
		{"level_1", q.Level1},
		{"level_2", q.Level2},
		{"level_3", q.Level3},
	}
	for _, a := range ancestors[:depth-1] {
		if strings.TrimSpace(a.value) == "" {
			return NewValidationError(a.field, "is required")
		}
	}
	return nil
}

// CountryQuery filters the electricity country list.
type CountryQuery struct {
	Scope    string
	FromYear *int
	ThruYear *int
}

// Validate checks the year range.
func (q *CountryQuery) Validate() error {
	return validateYearRange(q.FromYear, q.ThruYear)
}

// UtilityQuery filters the USA electricity utility list.
type UtilityQuery struct {
	StateProvince string
	FromYear      *int
	ThruYear      *int
}

// Validate checks the year range.
func (q *UtilityQuery) Validate() error {
	return validateYearRange(q.FromYear, q.ThruYear)
}

// Utility is one USA electricity utility.
type Utility struct {
	DivisionID    string
	DivisionName  string
	StateProvince string
}

// ParseYear parses an optional year given as a string of digits.
// An empty string yields nil.
func ParseYear(field, raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 0 || year > 9999 {
		return nil, NewValidationError(field, "must be a year, got %q", raw)
	}
	return &year, nil
}

func validateYearRange(from, thru *int) error {
	if from != nil && thru != nil && *from > *thru {
		return NewValidationError("from_year", "must not be after thru_year (%d > %d)", *from, *thru)
	}
	return nil
}
