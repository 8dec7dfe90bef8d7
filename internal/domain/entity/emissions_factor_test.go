package entity

import (
	"strings"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestLookupCriteria_Validate(t *testing.T) {
	tests := []struct {
		name        string
		criteria    LookupCriteria
		wantErr     bool
		errContains string
	}{
		{
			name:     "level_1 only",
			criteria: LookupCriteria{Level1: "Electricity"},
		},
		{
			name: "full hierarchy with years",
			criteria: LookupCriteria{
				Scope:       "SCOPE 2",
				Level1:      "Electricity",
				Level2:      "Transmission",
				Level3:      "Grid",
				Level4:      "USA",
				ActivityUOM: "kWh",
				FromYear:    intPtr(2019),
				ThruYear:    intPtr(2021),
			},
		},
		{
			name:        "missing level_1",
			criteria:    LookupCriteria{Level2: "Transmission"},
			wantErr:     true,
			errContains: "level_1: is required",
		},
		{
			name:        "blank level_1",
			criteria:    LookupCriteria{Level1: "   "},
			wantErr:     true,
			errContains: "level_1",
		},
		{
			name:        "level_3 without level_2",
			criteria:    LookupCriteria{Level1: "Electricity", Level3: "Grid"},
			wantErr:     true,
			errContains: "level_3: requires level_2",
		},
		{
			name:        "level_4 without level_3",
			criteria:    LookupCriteria{Level1: "Electricity", Level2: "Transmission", Level4: "USA"},
			wantErr:     true,
			errContains: "level_4: requires level_3",
		},
		{
			name:        "blank level_2 with level_3",
			criteria:    LookupCriteria{Level1: "Electricity", Level2: " ", Level3: "Grid"},
			wantErr:     true,
			errContains: "level_3: requires level_2",
		},
		{
			name:        "blank level_3 with level_4",
			criteria:    LookupCriteria{Level1: "Electricity", Level2: "Transmission", Level3: "\t", Level4: "USA"},
			wantErr:     true,
			errContains: "level_4: requires level_3",
		},
		{
			name:        "inverted year range",
			criteria:    LookupCriteria{Level1: "Electricity", FromYear: intPtr(2022), ThruYear: intPtr(2020)},
			wantErr:     true,
			errContains: "from_year",
		},
		{
			name:     "open-ended year range",
			criteria: LookupCriteria{Level1: "Electricity", FromYear: intPtr(2022)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.criteria.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Validate() expected error, got nil")
				}
				if !IsValidation(err) {
					t.Errorf("Validate() error = %T, want *ValidationError", err)
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("Validate() error = %v, want error containing %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestLevelQuery_ValidateDepth(t *testing.T) {
	tests := []struct {
		name    string
		query   LevelQuery
		depth   int
		wantErr string
	}{
		{name: "depth 1 needs nothing", query: LevelQuery{}, depth: 1},
		{name: "depth 1 with scope", query: LevelQuery{Scope: "SCOPE 1"}, depth: 1},
		{name: "depth 2 ok", query: LevelQuery{Level1: "Fuels"}, depth: 2},
		{name: "depth 2 missing level_1", query: LevelQuery{}, depth: 2, wantErr: "level_1"},
		{name: "depth 3 ok", query: LevelQuery{Level1: "Fuels", Level2: "Gaseous"}, depth: 3},
		{name: "depth 3 missing level_2", query: LevelQuery{Level1: "Fuels"}, depth: 3, wantErr: "level_2"},
		{name: "depth 4 ok", query: LevelQuery{Level1: "Fuels", Level2: "Gaseous", Level3: "Natural gas"}, depth: 4},
		{name: "depth 4 missing level_3", query: LevelQuery{Level1: "Fuels", Level2: "Gaseous"}, depth: 4, wantErr: "level_3"},
		{name: "depth 4 missing level_1", query: LevelQuery{Level2: "Gaseous", Level3: "Natural gas"}, depth: 4, wantErr: "level_1"},
		{name: "depth out of range", query: LevelQuery{}, depth: 5, wantErr: "depth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.ValidateDepth(tt.depth)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateDepth() unexpected error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("ValidateDepth() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateDepth() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseYear(t *testing.T) {
	y, err := ParseYear("from_year", "")
	if err != nil || y != nil {
		t.Fatalf("ParseYear(\"\") = %v, %v; want nil, nil", y, err)
	}

	y, err = ParseYear("from_year", " 2020 ")
	if err != nil {
		t.Fatalf("ParseYear() unexpected error = %v", err)
	}
	if y == nil || *y != 2020 {
		t.Errorf("ParseYear() = %v, want 2020", y)
	}

	for _, bad := range []string{"twenty", "20.5", "-1", "100000"} {
		if _, err := ParseYear("thru_year", bad); !IsValidation(err) {
			t.Errorf("ParseYear(%q) error = %v, want ValidationError", bad, err)
		}
	}
}

func TestUtilityQuery_Validate(t *testing.T) {
	q := UtilityQuery{StateProvince: "CA", FromYear: intPtr(2020), ThruYear: intPtr(2020)}
	if err := q.Validate(); err != nil {
		t.Errorf("Validate() unexpected error = %v", err)
	}
	q.ThruYear = intPtr(2019)
	if err := q.Validate(); !IsValidation(err) {
		t.Errorf("Validate() error = %v, want ValidationError", err)
	}
}
