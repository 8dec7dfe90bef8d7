package entity

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ProductToken represents a ledger-tracked quantity of a tokenized product.
type ProductToken struct {
	// TokenID is assigned by the store on insert.
	TokenID    int64
	ProductID  int64
	TrackerID  int64
	Auditor    common.Address
	Amount     *big.Int
	Available  *big.Int
	Name       string
	Unit       string
	UnitAmount *big.Int
	Hash       string
}

// NewProductToken creates a new ProductToken entity with validation.
// The auditor address is normalized to its checksum form.
func NewProductToken(productID, trackerID int64, auditor string, amount, available *big.Int, name, unit string, unitAmount *big.Int, hash string) (*ProductToken, error) {
	addr, err := ParseAuditorAddress(auditor)
	if err != nil {
		return nil, err
	}
	p := &ProductToken{
		ProductID:  productID,
		TrackerID:  trackerID,
		Auditor:    addr,
		Amount:     amount,
		Available:  available,
		Name:       name,
		Unit:       unit,
		UnitAmount: unitAmount,
		Hash:       hash,
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// validate checks that all fields have valid values.
func (p *ProductToken) validate() error {
	if p.ProductID <= 0 {
		return NewValidationError("productId", "must be positive, got %d", p.ProductID)
	}
	if p.TrackerID <= 0 {
		return NewValidationError("trackerId", "must be positive, got %d", p.TrackerID)
	}
	for _, f := range []struct {
		name  string
		value *big.Int
	}{
		{"amount", p.Amount},
		{"available", p.Available},
		{"unitAmount", p.UnitAmount},
	} {
		if f.value == nil {
			return NewValidationError(f.name, "is required")
		}
		if f.value.Sign() < 0 {
			return NewValidationError(f.name, "must be non-negative, got %s", f.value)
		}
	}
	if strings.TrimSpace(p.Name) == "" {
		return NewValidationError("name", "must not be empty")
	}
	if strings.TrimSpace(p.Unit) == "" {
		return NewValidationError("unit", "must not be empty")
	}
	if strings.TrimSpace(p.Hash) == "" {
		return NewValidationError("hash", "must not be empty")
	}
	return nil
}

// AuditorHex returns the auditor address in checksum form.
func (p *ProductToken) AuditorHex() string {
	return p.Auditor.Hex()
}

// ParseAuditorAddress validates a chain address. All-lowercase and
// all-uppercase hex is accepted as is; mixed case must carry a valid
// EIP-55 checksum.
func ParseAuditorAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, NewValidationError("auditor", "must be a valid Ethereum address, got %q", s)
	}
	addr := common.HexToAddress(s)
	body := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if body != strings.ToLower(body) && body != strings.ToUpper(body) {
		if addr.Hex()[2:] != body {
			return common.Address{}, NewValidationError("auditor", "bad address checksum for %q", s)
		}
	}
	return addr, nil
}

// ParseBigInt parses a base-10 integer of arbitrary precision.
func ParseBigInt(field, raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, NewValidationError(field, "is required")
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, NewValidationError(field, "must be an integer, got %q", raw)
	}
	return v, nil
}

// ProductTokenInput carries the caller-supplied fields of a new product token
// before validation.
type ProductTokenInput struct {
	ProductID  int64
	TrackerID  int64
	Auditor    string
	Amount     *big.Int
	Available  *big.Int
	Name       string
	Unit       string
	UnitAmount *big.Int
	Hash       string
}

// Build validates the input and returns the entity.
func (in ProductTokenInput) Build() (*ProductToken, error) {
	return NewProductToken(in.ProductID, in.TrackerID, in.Auditor, in.Amount, in.Available, in.Name, in.Unit, in.UnitAmount, in.Hash)
}

// ProductTokenPage is one page of product tokens plus the total match count.
type ProductTokenPage struct {
	Count    int64
	Products []*ProductToken
}

// String implements fmt.Stringer for log output.
func (p *ProductToken) String() string {
	return fmt.Sprintf("ProductToken{id=%d product=%d tracker=%d auditor=%s}", p.TokenID, p.ProductID, p.TrackerID, p.AuditorHex())
}
