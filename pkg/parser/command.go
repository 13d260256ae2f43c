package parser

import (
	"fmt"
	"regexp"
	"strings"
)

// ParsedSwap is the user's typed intent before token resolution.
type ParsedSwap struct {
	Amount   string
	TokenIn  string
	TokenOut string
}

// ParseSwapCommand parses a natural language swap command
// Examples:
//   - "swap 100 USDC to WETH"
//   - "1.5 ETH to USDC"
//   - "0.25 WBTC to DAI"
func ParseSwapCommand(command string) (*ParsedSwap, error) {
	// Normalize the command
	command = strings.TrimSpace(strings.ToUpper(command))

	// Remove the word "SWAP" if present at the beginning
	command = strings.TrimPrefix(command, "SWAP ")

	// Pattern: <amount> <source_token> TO <dest_token>
	// Matches: "100 USDC TO WETH", "1.5 ETH TO USDC", "0.25 WBTC TO DAI"
	pattern := regexp.MustCompile(`^(\d+\.?\d*)\s+([A-Z0-9]+)\s+TO\s+([A-Z0-9]+)$`)

	matches := pattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid swap command format. Expected: 'swap <amount> <token> to <token>' (e.g., 'swap 100 USDC to WETH')")
	}

	return &ParsedSwap{
		Amount:   matches[1],
		TokenIn:  matches[2],
		TokenOut: matches[3],
	}, nil
}

// ValidateParsedSwap validates that a parsed command has all required fields
func ValidateParsedSwap(p *ParsedSwap) error {
	if p.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	if p.TokenIn == "" {
		return fmt.Errorf("source token is required")
	}
	if p.TokenOut == "" {
		return fmt.Errorf("destination token is required")
	}
	if p.TokenIn == p.TokenOut {
		return fmt.Errorf("source and destination tokens must differ")
	}
	return nil
}

// NormalizeTokenSymbol normalizes token symbols to standard format
func NormalizeTokenSymbol(symbol string) string {
	// Convert to uppercase for consistency
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	// Handle common aliases
	aliases := map[string]string{
		"ETHER":  "ETH",
		"MATIC":  "POL",
		"BNBBSC": "BNB",
	}

	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}

	return symbol
}
