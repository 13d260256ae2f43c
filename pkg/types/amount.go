package types

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// NormalizeAmount converts a base-unit integer amount to its human-readable
// value by shifting the decimal point left by decimals.
func NormalizeAmount(base *big.Int, decimals int32) decimal.Decimal {
	if base == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(base, -decimals)
}

// DenormalizeAmount converts a human-readable decimal string, as typed by a
// user, into base units. The result is rounded to the nearest integer so
// inputs with more fractional digits than the token supports don't fail.
func DenormalizeAmount(value string, decimals int32) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount must not be negative: %s", value)
	}
	return d.Shift(decimals).Round(0).BigInt(), nil
}

// ParseBaseAmount parses a base-unit integer string as produced by the
// quoting and balances APIs.
func ParseBaseAmount(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid base amount %q", s)
	}
	return v, nil
}
