package postgres

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/archon-research/emissions-api/internal/domain/entity"
)

// TestNewEmissionsFactorRepository_NilPool tests that the constructor rejects a nil pool.
func TestNewEmissionsFactorRepository_NilPool(t *testing.T) {
	_, err := NewEmissionsFactorRepository(nil, nil)
	if err == nil {
		t.Fatal("expected error when pool is nil, got nil")
	}
	expectedMsg := "database pool cannot be nil"
	if err.Error() != expectedMsg {
		t.Errorf("expected error message %q, got %q", expectedMsg, err.Error())
	}
}

// TestNewProductTokenRepository_NilPool tests that the constructor rejects a nil pool.
func TestNewProductTokenRepository_NilPool(t *testing.T) {
	_, err := NewProductTokenRepository(nil, nil)
	if err == nil {
		t.Fatal("expected error when pool is nil, got nil")
	}
	expectedMsg := "database pool cannot be nil"
	if err.Error() != expectedMsg {
		t.Errorf("expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestNewPoolHealth_NilPool(t *testing.T) {
	if _, err := NewPoolHealth(nil); err == nil {
		t.Fatal("expected error when pool is nil, got nil")
	}
}

func TestOpenPool_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr string
	}{
		{name: "empty url", url: "", wantErr: "database URL is required"},
		{name: "unparseable url", url: "postgres://%zz", wantErr: "failed to parse database URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OpenPool(context.Background(), DefaultDBConfig(tt.url))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("OpenPool() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestBuildLookupQuery(t *testing.T) {
	from, thru := 2019, 2021

	tests := []struct {
		name         string
		criteria     entity.LookupCriteria
		wantContains []string
		wantMissing  []string
		wantArgs     []any
	}{
		{
			name:         "level 1 only",
			criteria:     entity.LookupCriteria{Level1: "FUELS"},
			wantContains: []string{"WHERE level_1 = $1"},
			wantMissing:  []string{"level_2 =", "thru_year >=", "scope ="},
			wantArgs:     []any{"FUELS"},
		},
		{
			name:         "blank optional levels are not filters",
			criteria:     entity.LookupCriteria{Level1: "FUELS", Level2: "  ", Level4: "\t"},
			wantContains: []string{"WHERE level_1 = $1"},
			wantMissing:  []string{"level_2 =", "level_4 ="},
			wantArgs:     []any{"FUELS"},
		},
		{
			name: "full criteria with years",
			criteria: entity.LookupCriteria{
				Scope: "SCOPE 1", Level1: "FUELS", Level2: "GASEOUS FUELS", Level3: "NATURAL GAS",
				ActivityUOM: "kWh", FromYear: &from, ThruYear: &thru,
			},
			wantContains: []string{
				"level_2 = $2", "level_3 = $3", "scope = $4", "activity_uom = $5",
				"(thru_year IS NULL OR thru_year >= $6)", "(from_year IS NULL OR from_year <= $7)",
			},
			wantMissing: []string{"level_4 ="},
			wantArgs:    []any{"FUELS", "GASEOUS FUELS", "NATURAL GAS", "SCOPE 1", "kWh", 2019, 2021},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := buildLookupQuery(tt.criteria)
			for _, s := range tt.wantContains {
				if !strings.Contains(sql, s) {
					t.Errorf("query missing %q:\n%s", s, sql)
				}
			}
			for _, s := range tt.wantMissing {
				if strings.Contains(sql, s) {
					t.Errorf("query unexpectedly contains %q:\n%s", s, sql)
				}
			}
			if len(args) != len(tt.wantArgs) {
				t.Fatalf("args = %v, want %v", args, tt.wantArgs)
			}
			for i := range args {
				if args[i] != tt.wantArgs[i] {
					t.Errorf("args[%d] = %v, want %v", i, args[i], tt.wantArgs[i])
				}
			}
		})
	}
}

func TestBuildLevelQuery(t *testing.T) {
	tests := []struct {
		name     string
		depth    int
		query    entity.LevelQuery
		wantSQL  []string
		wantArgs int
		wantErr  bool
	}{
		{
			name:     "depth 1 unscoped",
			depth:    1,
			wantSQL:  []string{"SELECT DISTINCT level_1", "level_1 IS NOT NULL", "ORDER BY level_1"},
			wantArgs: 0,
		},
		{
			name:     "depth 3 scoped",
			depth:    3,
			query:    entity.LevelQuery{Scope: "SCOPE 1", Level1: "FUELS", Level2: "GASEOUS FUELS"},
			wantSQL:  []string{"SELECT DISTINCT level_3", "level_1 = $1", "level_2 = $2", "scope = $3"},
			wantArgs: 3,
		},
		{name: "depth 0", depth: 0, wantErr: true},
		{name: "depth 5", depth: 5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := buildLevelQuery(tt.depth, tt.query)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error = %v", err)
			}
			for _, s := range tt.wantSQL {
				if !strings.Contains(sql, s) {
					t.Errorf("query missing %q:\n%s", s, sql)
				}
			}
			if len(args) != tt.wantArgs {
				t.Errorf("len(args) = %d, want %d", len(args), tt.wantArgs)
			}
		})
	}
}

func TestApplyFilters(t *testing.T) {
	mustBundle := func(field, fieldType, op, value string) entity.FilterBundle {
		t.Helper()
		b, err := entity.ParseFilterBundle(field, fieldType, op, value)
		if err != nil {
			t.Fatalf("ParseFilterBundle(%s) error = %v", field, err)
		}
		return b
	}

	var w whereBuilder
	err := applyFilters(&w, []entity.FilterBundle{
		mustBundle("amount", "number", "ge", "1000000000000000000000"),
		mustBundle("name", "string", "like", "%gas%"),
		mustBundle("auditor", "string", "eq", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"),
	})
	if err != nil {
		t.Fatalf("applyFilters() error = %v", err)
	}

	sql := w.sql()
	for _, s := range []string{
		"amount >= $1::numeric",
		"name LIKE $2",
		"('0x' || encode(auditor, 'hex')) = $3",
	} {
		if !strings.Contains(sql, s) {
			t.Errorf("where clause missing %q: %s", s, sql)
		}
	}
	if w.args[0] != "1000000000000000000000" {
		t.Errorf("numeric arg = %v", w.args[0])
	}
	if w.args[2] != "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed" {
		t.Errorf("auditor arg = %v, want lowercase", w.args[2])
	}
}

func TestApplyFilters_RejectsUnknownField(t *testing.T) {
	var w whereBuilder
	err := applyFilters(&w, []entity.FilterBundle{{
		Field: "token_id; DROP TABLE product_token", Type: entity.FieldTypeNumber, Op: entity.OpEq, NumberValue: big.NewInt(1),
	}})
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	if len(w.clauses) != 0 {
		t.Errorf("clauses = %v, want none", w.clauses)
	}
}

func TestBuildSelectPaginated(t *testing.T) {
	b, err := entity.ParseFilterBundle("trackerId", "number", "eq", "4")
	if err != nil {
		t.Fatal(err)
	}
	sql, args, err := buildSelectPaginated(20, 10, []entity.FilterBundle{b})
	if err != nil {
		t.Fatalf("buildSelectPaginated() error = %v", err)
	}
	if !strings.Contains(sql, "OFFSET $2 LIMIT $3") || !strings.Contains(sql, "ORDER BY token_id") {
		t.Errorf("unexpected query:\n%s", sql)
	}
	if len(args) != 3 || args[1] != 20 || args[2] != 10 {
		t.Errorf("args = %v", args)
	}
}

func TestWhereBuilder_Empty(t *testing.T) {
	var w whereBuilder
	if got := w.sql(); got != "" {
		t.Errorf("sql() = %q, want empty", got)
	}
}

func TestNumericToBigInt(t *testing.T) {
	v, err := numericToBigInt("amount", "115792089237316195423570985008687907853269984665640564039457584007913129639935")
	if err != nil {
		t.Fatalf("unexpected error = %v", err)
	}
	if v.BitLen() != 256 {
		t.Errorf("BitLen() = %d, want 256", v.BitLen())
	}
	if _, err := numericToBigInt("amount", "1.5"); err == nil {
		t.Error("expected error for fractional value")
	}
}
