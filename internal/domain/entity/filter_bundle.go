package entity

import (
	"math/big"
	"strings"
)

// FieldType is the declared type of a filter bundle value.
type FieldType string

const (
	FieldTypeString FieldType = "string"
	FieldTypeNumber FieldType = "number"
)

// FilterOp is a comparison operator of a filter bundle.
type FilterOp string

const (
	OpEq   FilterOp = "eq"
	OpNe   FilterOp = "ne"
	OpLt   FilterOp = "lt"
	OpLe   FilterOp = "le"
	OpGt   FilterOp = "gt"
	OpGe   FilterOp = "ge"
	OpLike FilterOp = "like"
)

// ProductTokenFields is the allow-list of filterable product token fields.
var ProductTokenFields = map[string]FieldType{
	"tokenId":    FieldTypeNumber,
	"productId":  FieldTypeNumber,
	"trackerId":  FieldTypeNumber,
	"amount":     FieldTypeNumber,
	"available":  FieldTypeNumber,
	"unitAmount": FieldTypeNumber,
	"auditor":    FieldTypeString,
	"name":       FieldTypeString,
	"unit":       FieldTypeString,
	"hash":       FieldTypeString,
}

// FilterBundle is one validated (field, type, operator, value) predicate.
// Exactly one of StringValue or NumberValue is meaningful, selected by Type.
type FilterBundle struct {
	Field       string
	Type        FieldType
	Op          FilterOp
	StringValue string
	NumberValue *big.Int
}

// ParseFilterBundle validates a raw predicate against the product token
// allow-list and converts its value to the declared type.
func ParseFilterBundle(field, fieldType, op, raw string) (FilterBundle, error) {
	want, ok := ProductTokenFields[field]
	if !ok {
		return FilterBundle{}, NewValidationError("bundles.field", "unknown field %q", field)
	}
	ft := FieldType(fieldType)
	if ft != FieldTypeString && ft != FieldTypeNumber {
		return FilterBundle{}, NewValidationError("bundles.fieldType", "unsupported type %q", fieldType)
	}
	if ft != want {
		return FilterBundle{}, NewValidationError("bundles.fieldType", "field %q is of type %s, got %s", field, want, ft)
	}

	fop := FilterOp(strings.ToLower(op))
	switch fop {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
	case OpLike:
		if ft != FieldTypeString {
			return FilterBundle{}, NewValidationError("bundles.op", "like is only valid for string fields")
		}
	default:
		return FilterBundle{}, NewValidationError("bundles.op", "unsupported operator %q", op)
	}

	b := FilterBundle{Field: field, Type: ft, Op: fop}
	if ft == FieldTypeNumber {
		v, err := ParseBigInt("bundles.value", raw)
		if err != nil {
			return FilterBundle{}, err
		}
		b.NumberValue = v
	} else {
		b.StringValue = raw
	}
	return b, nil
}

// Validate re-checks a bundle against the allow-list. Bundles built by
// ParseFilterBundle always pass; hand-built ones may not.
func (b FilterBundle) Validate() error {
	want, ok := ProductTokenFields[b.Field]
	if !ok {
		return NewValidationError("bundles.field", "unknown field %q", b.Field)
	}
	if b.Type != want {
		return NewValidationError("bundles.fieldType", "field %q is of type %s, got %s", b.Field, want, b.Type)
	}
	switch b.Op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
	case OpLike:
		if b.Type != FieldTypeString {
			return NewValidationError("bundles.op", "like is only valid for string fields")
		}
	default:
		return NewValidationError("bundles.op", "unsupported operator %q", b.Op)
	}
	if b.Type == FieldTypeNumber && b.NumberValue == nil {
		return NewValidationError("bundles.value", "number value is required for field %q", b.Field)
	}
	return nil
}

// ValidateFilterBundles validates every bundle and returns the first error.
func ValidateFilterBundles(bundles []FilterBundle) error {
	for _, b := range bundles {
		if err := b.Validate(); err != nil {
			return err
		}
	}
	return nil
}
