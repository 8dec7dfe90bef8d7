package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/archon-research/emissions-api/internal/domain/entity"
)

// defaultListLimit is the page size of productToken.list when no limit is given.
const defaultListLimit = 10

// looseString accepts a JSON string or a JSON number and keeps its text.
// Years and big integers arrive in either form. Any other token, null
// included, is rejected.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return errors.New("expected a string or a number")
	}
	switch c := b[0]; {
	case c == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	case c == '-' || (c >= '0' && c <= '9'):
		*s = looseString(b)
		return nil
	default:
		return fmt.Errorf("expected a string or a number, got %s", b)
	}
}

type yearRange struct {
	FromYear looseString `json:"from_year"`
	ThruYear looseString `json:"thru_year"`
}

func (y yearRange) parse(prefix string) (from, thru *int, err error) {
	if from, err = entity.ParseYear(prefix+"from_year", string(y.FromYear)); err != nil {
		return nil, nil, err
	}
	if thru, err = entity.ParseYear(prefix+"thru_year", string(y.ThruYear)); err != nil {
		return nil, nil, err
	}
	return from, thru, nil
}

type levelInput struct {
	Scope  string `json:"scope"`
	Level1 string `json:"level_1"`
	Level2 string `json:"level_2"`
	Level3 string `json:"level_3"`
}

type countriesInput struct {
	Scope string `json:"scope"`
	yearRange
}

func (in countriesInput) toQuery() (entity.CountryQuery, error) {
	from, thru, err := in.parse("")
	if err != nil {
		return entity.CountryQuery{}, err
	}
	return entity.CountryQuery{Scope: in.Scope, FromYear: from, ThruYear: thru}, nil
}

type utilitiesInput struct {
	StateProvince string `json:"state_province"`
	yearRange
}

func (in utilitiesInput) toQuery() (entity.UtilityQuery, error) {
	from, thru, err := in.parse("")
	if err != nil {
		return entity.UtilityQuery{}, err
	}
	return entity.UtilityQuery{StateProvince: in.StateProvince, FromYear: from, ThruYear: thru}, nil
}

type getInput struct {
	UUID string `json:"uuid"`
}

type criteriaInput struct {
	Scope       string `json:"scope"`
	Level1      string `json:"level_1"`
	Level2      string `json:"level_2"`
	Level3      string `json:"level_3"`
	Level4      string `json:"level_4"`
	ActivityUOM string `json:"activity_uom"`
	yearRange
}

func (in criteriaInput) toCriteria(prefix string) (entity.LookupCriteria, error) {
	from, thru, err := in.parse(prefix)
	if err != nil {
		return entity.LookupCriteria{}, err
	}
	return entity.LookupCriteria{
		Scope:       in.Scope,
		Level1:      in.Level1,
		Level2:      in.Level2,
		Level3:      in.Level3,
		Level4:      in.Level4,
		ActivityUOM: in.ActivityUOM,
		FromYear:    from,
		ThruYear:    thru,
	}, nil
}

type lookupInput struct {
	criteriaInput
	Fallback *criteriaInput `json:"fallback"`
}

type bundleInput struct {
	Field     string      `json:"field"`
	FieldType string      `json:"fieldType"`
	Value     looseString `json:"value"`
	Op        string      `json:"op"`
}

func parseBundles(in []bundleInput) ([]entity.FilterBundle, error) {
	bundles := make([]entity.FilterBundle, 0, len(in))
	for _, b := range in {
		bundle, err := entity.ParseFilterBundle(b.Field, b.FieldType, b.Op, string(b.Value))
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, bundle)
	}
	return bundles, nil
}

type countInput struct {
	Bundles []bundleInput `json:"bundles"`
}

type listInput struct {
	Bundles []bundleInput `json:"bundles"`
	Offset  *int          `json:"offset"`
	Limit   *int          `json:"limit"`
}

func (in listInput) page() (offset, limit int) {
	limit = defaultListLimit
	if in.Offset != nil {
		offset = *in.Offset
	}
	if in.Limit != nil {
		limit = *in.Limit
	}
	return offset, limit
}

type insertInput struct {
	ProductID  int64       `json:"productId"`
	TrackerID  int64       `json:"trackerId"`
	Auditor    string      `json:"auditor"`
	Amount     looseString `json:"amount"`
	Available  looseString `json:"available"`
	Name       string      `json:"name"`
	Unit       string      `json:"unit"`
	UnitAmount looseString `json:"unitAmount"`
	Hash       string      `json:"hash"`
}

func (in insertInput) toInput() (entity.ProductTokenInput, error) {
	amount, err := entity.ParseBigInt("amount", string(in.Amount))
	if err != nil {
		return entity.ProductTokenInput{}, err
	}
	available, err := entity.ParseBigInt("available", string(in.Available))
	if err != nil {
		return entity.ProductTokenInput{}, err
	}
	unitAmount, err := entity.ParseBigInt("unitAmount", string(in.UnitAmount))
	if err != nil {
		return entity.ProductTokenInput{}, err
	}
	return entity.ProductTokenInput{
		ProductID:  in.ProductID,
		TrackerID:  in.TrackerID,
		Auditor:    in.Auditor,
		Amount:     amount,
		Available:  available,
		Name:       in.Name,
		Unit:       in.Unit,
		UnitAmount: unitAmount,
		Hash:       in.Hash,
	}, nil
}

// emissionsFactorDTO is the wire form of an emissions factor. Field names
// follow the store columns.
type emissionsFactorDTO struct {
	UUID                      string   `json:"uuid"`
	FactorType                string   `json:"factor_type"`
	Scope                     string   `json:"scope"`
	Level1                    string   `json:"level_1"`
	Level2                    string   `json:"level_2"`
	Level3                    string   `json:"level_3"`
	Level4                    string   `json:"level_4"`
	Text                      string   `json:"text,omitempty"`
	ActivityUOM               string   `json:"activity_uom"`
	FromYear                  string   `json:"from_year,omitempty"`
	ThruYear                  string   `json:"thru_year,omitempty"`
	Year                      string   `json:"year,omitempty"`
	Country                   string   `json:"country,omitempty"`
	StateProvince             string   `json:"state_province,omitempty"`
	DivisionType              string   `json:"division_type,omitempty"`
	DivisionID                string   `json:"division_id,omitempty"`
	DivisionName              string   `json:"division_name,omitempty"`
	NetGeneration             *float64 `json:"net_generation,omitempty"`
	NetGenerationUOM          string   `json:"net_generation_uom,omitempty"`
	CO2EquivalentEmissions    *float64 `json:"co2_equivalent_emissions,omitempty"`
	CO2EquivalentEmissionsUOM string   `json:"co2_equivalent_emissions_uom,omitempty"`
	PercentOfRenewables       *float64 `json:"percent_of_renewables,omitempty"`
	Source                    string   `json:"source,omitempty"`
}

func toFactorDTO(f *entity.EmissionsFactor) emissionsFactorDTO {
	return emissionsFactorDTO{
		UUID:                      f.UUID,
		FactorType:                f.FactorType,
		Scope:                     f.Scope,
		Level1:                    f.Level1,
		Level2:                    f.Level2,
		Level3:                    f.Level3,
		Level4:                    f.Level4,
		Text:                      f.Text,
		ActivityUOM:               f.ActivityUOM,
		FromYear:                  yearString(f.FromYear),
		ThruYear:                  yearString(f.ThruYear),
		Year:                      yearString(f.Year),
		Country:                   f.Country,
		StateProvince:             f.StateProvince,
		DivisionType:              f.DivisionType,
		DivisionID:                f.DivisionID,
		DivisionName:              f.DivisionName,
		NetGeneration:             f.NetGeneration,
		NetGenerationUOM:          f.NetGenerationUOM,
		CO2EquivalentEmissions:    f.CO2EquivalentEmissions,
		CO2EquivalentEmissionsUOM: f.CO2EquivalentEmissionsUOM,
		PercentOfRenewables:       f.PercentOfRenewables,
		Source:                    f.Source,
	}
}

func toFactorDTOs(factors []*entity.EmissionsFactor) []emissionsFactorDTO {
	out := make([]emissionsFactorDTO, 0, len(factors))
	for _, f := range factors {
		out = append(out, toFactorDTO(f))
	}
	return out
}

func yearString(y *int) string {
	if y == nil {
		return ""
	}
	return strconv.Itoa(*y)
}

type utilityDTO struct {
	DivisionID    string `json:"division_id"`
	DivisionName  string `json:"division_name"`
	StateProvince string `json:"state_province"`
}

func toUtilityDTOs(utilities []*entity.Utility) []utilityDTO {
	out := make([]utilityDTO, 0, len(utilities))
	for _, u := range utilities {
		out = append(out, utilityDTO{DivisionID: u.DivisionID, DivisionName: u.DivisionName, StateProvince: u.StateProvince})
	}
	return out
}

// productTokenDTO renders big integers as decimal strings so that values
// above 2^53 survive JSON clients.
type productTokenDTO struct {
	TokenID    int64  `json:"tokenId"`
	ProductID  int64  `json:"productId"`
	TrackerID  int64  `json:"trackerId"`
	Auditor    string `json:"auditor"`
	Amount     string `json:"amount"`
	Available  string `json:"available"`
	Name       string `json:"name"`
	Unit       string `json:"unit"`
	UnitAmount string `json:"unitAmount"`
	Hash       string `json:"hash"`
}

func toProductTokenDTO(p *entity.ProductToken) productTokenDTO {
	return productTokenDTO{
		TokenID:    p.TokenID,
		ProductID:  p.ProductID,
		TrackerID:  p.TrackerID,
		Auditor:    p.AuditorHex(),
		Amount:     decimal(p.Amount),
		Available:  decimal(p.Available),
		Name:       p.Name,
		Unit:       p.Unit,
		UnitAmount: decimal(p.UnitAmount),
		Hash:       p.Hash,
	}
}

func decimal(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
