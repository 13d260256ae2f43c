package types

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// NativeAddress is the canonical sentinel for a chain's gas asset. Balance
// and token-list sources that report the native asset under their own
// sentinel are normalized to this address at ingestion.
const NativeAddress = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"

// Token describes a selectable asset on a specific chain. Identity is the
// (address, chainId) pair, case-insensitive on address.
type Token struct {
	Address          string  `json:"address"`
	ChainID          int64   `json:"chainId"`
	Name             string  `json:"name"`
	Symbol           string  `json:"symbol"`
	Decimals         int32   `json:"decimals"`
	LogoURI          string  `json:"logoURI,omitempty"`
	Project          string  `json:"project,omitempty"`
	UnderlyingTokens []Token `json:"underlyingTokens,omitempty"`
}

// Balance is a token holding reported by the balances API. Amount is a
// base-unit integer string and must be normalized by Decimals before
// display or comparison.
type Balance struct {
	Token    string `json:"token"`
	ChainID  int64  `json:"chainId"`
	Amount   string `json:"amount"`
	Decimals int32  `json:"decimals"`
	Price    string `json:"price"`
}

// TokenPrice is a USD unit price for a token.
type TokenPrice struct {
	Address string          `json:"address"`
	ChainID int64           `json:"chainId"`
	Price   decimal.Decimal `json:"price"`
}

// IsValidAddress reports whether s is a syntactically valid EVM address
// (0x followed by 40 hex characters).
func IsValidAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// SameAddress compares two addresses case-insensitively.
func SameAddress(a, b string) bool {
	return a != "" && b != "" && strings.EqualFold(a, b)
}

// IsNative reports whether the address is the canonical native sentinel.
func IsNative(address string) bool {
	return SameAddress(address, NativeAddress)
}

// NormalizeAddress lower-cases an address so downstream comparisons and
// map lookups don't need to care about checksum casing.
func NormalizeAddress(address string) string {
	return strings.ToLower(address)
}

// Key returns the canonical identity key for a token.
func (t Token) Key() string {
	return NormalizeAddress(t.Address)
}
