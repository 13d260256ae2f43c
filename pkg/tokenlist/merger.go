package tokenlist

import (
	"context"
	"math/big"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"enso-swap/pkg/types"
)

// MetadataReader resolves metadata for a token that is absent from every
// list, by reading the contract on chain.
type MetadataReader interface {
	TokenMetadata(ctx context.Context, chainID int64, token string) (*types.Token, error)
}

// Candidate is a token annotated with the user's holdings for ranking.
type Candidate struct {
	types.Token
	Balance  *big.Int
	USDValue *decimal.Decimal
}

// Filter restricts the selectable candidates on one side of the swap.
// Empty slices leave that dimension unrestricted.
type Filter struct {
	Tokens   []string
	Projects []string
}

func (f Filter) allows(t types.Token) bool {
	if len(f.Tokens) > 0 {
		ok := false
		for _, addr := range f.Tokens {
			if types.SameAddress(addr, t.Address) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.Projects) > 0 {
		ok := false
		for _, p := range f.Projects {
			if strings.EqualFold(p, t.Project) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Merge combines token lists by address, case-insensitive, first list
// winning on conflict. Merging the same lists twice yields the same
// result as merging once.
func Merge(lists ...[]types.Token) []types.Token {
	seen := make(map[string]bool)
	var merged []types.Token
	for _, list := range lists {
		for _, t := range list {
			key := t.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, t)
		}
	}
	return merged
}

// Annotate attaches the user's balance and USD value to every token that
// has a priced holding.
func Annotate(tokens []types.Token, balances []types.Balance) []Candidate {
	byToken := make(map[string]types.Balance, len(balances))
	for _, b := range balances {
		byToken[types.NormalizeAddress(b.Token)] = b
	}

	out := make([]Candidate, 0, len(tokens))
	for _, t := range tokens {
		c := Candidate{Token: t}
		if b, ok := byToken[t.Key()]; ok {
			if amount, err := types.ParseBaseAmount(b.Amount); err == nil {
				c.Balance = amount
				if price, err := decimal.NewFromString(b.Price); err == nil && !price.IsZero() {
					value := types.NormalizeAmount(amount, b.Decimals).Mul(price)
					c.USDValue = &value
				}
			}
		}
		out = append(out, c)
	}
	return out
}

// SortByValue orders candidates by USD value descending. Tokens without a
// priced balance sort last, keeping their original relative order.
func SortByValue(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].USDValue, candidates[j].USDValue
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.GreaterThan(*b)
		}
	})
}

// Search filters candidates by case-insensitive substring match on symbol,
// name or address, preserving the incoming order.
func Search(candidates []Candidate, query string) []Candidate {
	if query == "" {
		return candidates
	}
	q := strings.ToLower(query)
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if strings.Contains(strings.ToLower(c.Symbol), q) ||
			strings.Contains(strings.ToLower(c.Name), q) ||
			strings.Contains(strings.ToLower(c.Address), q) {
			out = append(out, c)
		}
	}
	return out
}

// promoteSelected moves the currently selected token to the front when it
// is present.
func promoteSelected(candidates []Candidate, selected string) {
	if selected == "" {
		return
	}
	for i, c := range candidates {
		if types.SameAddress(c.Address, selected) {
			picked := candidates[i]
			copy(candidates[1:i+1], candidates[:i])
			candidates[0] = picked
			return
		}
	}
}

// Merger produces the ranked candidate list for the token picker.
type Merger struct {
	fetcher  *Fetcher
	metadata MetadataReader
	logger   *zap.Logger
}

// NewMerger creates a merger. metadata may be nil, which disables the
// pasted-address lookup.
func NewMerger(fetcher *Fetcher, metadata MetadataReader, logger *zap.Logger) *Merger {
	return &Merger{
		fetcher:  fetcher,
		metadata: metadata,
		logger:   logger.Named("TokenListMerger"),
	}
}

// Candidates assembles the picker list: fetch and merge the chain's lists,
// resolve a pasted address that no list knows, force the selected token to
// the front, annotate with balances, sort by USD value and apply the
// free-text filter.
func (m *Merger) Candidates(ctx context.Context, chainID int64, selected, search string, balances []types.Balance, filter Filter) ([]Candidate, error) {
	lists, err := m.fetcher.FetchAll(ctx, chainID)
	if err != nil {
		return nil, err
	}
	merged := Merge(lists...)

	if types.IsValidAddress(search) && m.metadata != nil {
		if !containsAddress(merged, search) {
			token, err := m.metadata.TokenMetadata(ctx, chainID, search)
			if err != nil {
				m.logger.Warn("Pasted address lookup failed",
					zap.Int64("chainId", chainID), zap.String("address", search), zap.Error(err))
			} else {
				merged = append(merged, *token)
			}
		}
	}

	if len(filter.Tokens) > 0 || len(filter.Projects) > 0 {
		kept := merged[:0]
		for _, t := range merged {
			if filter.allows(t) || types.SameAddress(t.Address, selected) {
				kept = append(kept, t)
			}
		}
		merged = kept
	}

	candidates := Annotate(merged, balances)
	SortByValue(candidates)
	promoteSelected(candidates, selected)
	return Search(candidates, search), nil
}

func containsAddress(tokens []types.Token, address string) bool {
	for _, t := range tokens {
		if types.SameAddress(t.Address, address) {
			return true
		}
	}
	return false
}
