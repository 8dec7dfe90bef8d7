package postgres

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// bigIntToNumeric converts a *big.Int to a string for NUMERIC column storage.
// Callers validate nil values before calling.
func bigIntToNumeric(b *big.Int) (string, error) {
	if b == nil {
		return "", fmt.Errorf("input big.Int is nil")
	}
	return b.String(), nil
}

// numericToBigInt parses a NUMERIC column read as text.
func numericToBigInt(column, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("parse %s %q: invalid integer", column, s)
	}
	return v, nil
}

// whereBuilder accumulates AND-ed predicates with positional parameters.
// Each clause marks its single parameter with '?'.
type whereBuilder struct {
	clauses []string
	args    []any
}

func (w *whereBuilder) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, strings.Replace(clause, "?", "$"+strconv.Itoa(len(w.args)), 1))
}

// addIf adds clause only when value is non-blank.
func (w *whereBuilder) addIf(clause, value string) {
	if strings.TrimSpace(value) != "" {
		w.add(clause, value)
	}
}

func (w *whereBuilder) raw(clause string) {
	w.clauses = append(w.clauses, clause)
}

// yearOverlap restricts rows to validity intervals overlapping [from, thru].
// NULL bounds on either side are open-ended.
func (w *whereBuilder) yearOverlap(from, thru *int) {
	if from != nil {
		w.add("(thru_year IS NULL OR thru_year >= ?)", *from)
	}
	if thru != nil {
		w.add("(from_year IS NULL OR from_year <= ?)", *thru)
	}
}

func (w *whereBuilder) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}
