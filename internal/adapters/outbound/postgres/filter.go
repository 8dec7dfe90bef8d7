package postgres

import (
	"fmt"
	"strings"

	"github.com/archon-research/emissions-api/internal/domain/entity"
)

// productTokenColumns maps filterable product token fields to SQL expressions.
// The auditor is stored as 20 raw bytes and compared as lowercase 0x-hex.
var productTokenColumns = map[string]string{
	"tokenId":    "token_id",
	"productId":  "product_id",
	"trackerId":  "tracker_id",
	"amount":     "amount",
	"available":  "available",
	"unitAmount": "unit_amount",
	"auditor":    "('0x' || encode(auditor, 'hex'))",
	"name":       "name",
	"unit":       "unit",
	"hash":       "hash",
}

var filterOperators = map[entity.FilterOp]string{
	entity.OpEq:   "=",
	entity.OpNe:   "<>",
	entity.OpLt:   "<",
	entity.OpLe:   "<=",
	entity.OpGt:   ">",
	entity.OpGe:   ">=",
	entity.OpLike: "LIKE",
}

// applyFilters compiles bundles into parameterized predicates on w.
// Field names and operators come from fixed maps; values are always bound.
func applyFilters(w *whereBuilder, bundles []entity.FilterBundle) error {
	for _, b := range bundles {
		column, ok := productTokenColumns[b.Field]
		if !ok {
			return fmt.Errorf("unsupported filter field %q", b.Field)
		}
		op, ok := filterOperators[b.Op]
		if !ok {
			return fmt.Errorf("unsupported filter operator %q", b.Op)
		}

		switch b.Type {
		case entity.FieldTypeNumber:
			value, err := bigIntToNumeric(b.NumberValue)
			if err != nil {
				return fmt.Errorf("filter %s: %w", b.Field, err)
			}
			w.add(fmt.Sprintf("%s %s ?::numeric", column, op), value)
		case entity.FieldTypeString:
			value := b.StringValue
			if b.Field == "auditor" {
				value = strings.ToLower(value)
			}
			w.add(fmt.Sprintf("%s %s ?", column, op), value)
		default:
			return fmt.Errorf("unsupported filter type %q", b.Type)
		}
	}
	return nil
}
