package tokenlist

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	gocache "github.com/patrickmn/go-cache"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"enso-swap/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	geckoListURL = "https://tokens.coingecko.com/%s/all.json"
	oneInchURL   = "https://tokens.1inch.io/v1.2/%d"
	listCacheTTL = 10 * time.Minute
	fetchTimeout = 15 * time.Second
)

// oneInchChains are the chains with an aggregator-specific list.
var oneInchChains = map[int64]bool{
	types.ChainMainnet:  true,
	types.ChainOptimism: true,
	types.ChainBSC:      true,
	types.ChainPolygon:  true,
	types.ChainBase:     true,
	types.ChainArbitrum: true,
}

// Fetcher retrieves and caches per-chain token lists from the external
// list services.
type Fetcher struct {
	http   *fasthttp.Client
	cache  *gocache.Cache
	logger *zap.Logger
}

// NewFetcher creates a token list fetcher.
func NewFetcher(logger *zap.Logger) *Fetcher {
	return &Fetcher{
		http:   &fasthttp.Client{},
		cache:  gocache.New(listCacheTTL, 2*listCacheTTL),
		logger: logger.Named("TokenListFetcher"),
	}
}

func (f *Fetcher) get(ctx context.Context, requestURL string, out any) error {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if deadline, ok := ctx.Deadline(); ok {
		if err := f.http.DoDeadline(req, resp, deadline); err != nil {
			return fmt.Errorf("request to %s failed: %w", requestURL, err)
		}
	} else {
		if err := f.http.DoTimeout(req, resp, fetchTimeout); err != nil {
			return fmt.Errorf("request to %s failed: %w", requestURL, err)
		}
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return fmt.Errorf("token list request to %s failed with status %d", requestURL, resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to decode token list from %s: %w", requestURL, err)
	}
	return nil
}

// GeckoList fetches the generic CoinGecko token list for a chain.
func (f *Fetcher) GeckoList(ctx context.Context, chainID int64) ([]types.Token, error) {
	chainName, ok := types.GeckoChainNames[chainID]
	if !ok {
		return nil, fmt.Errorf("no token list source for chain %d", chainID)
	}

	key := fmt.Sprintf("gecko:%d", chainID)
	if cached, found := f.cache.Get(key); found {
		return cached.([]types.Token), nil
	}

	var parsed struct {
		Tokens []types.Token `json:"tokens"`
	}
	if err := f.get(ctx, fmt.Sprintf(geckoListURL, chainName), &parsed); err != nil {
		return nil, err
	}
	tokens := ingest(parsed.Tokens, chainID)
	f.cache.Set(key, tokens, listCacheTTL)
	return tokens, nil
}

// OneInchList fetches the aggregator-specific list, available on a subset
// of chains. Returns nil without error elsewhere.
func (f *Fetcher) OneInchList(ctx context.Context, chainID int64) ([]types.Token, error) {
	if !oneInchChains[chainID] {
		return nil, nil
	}

	key := fmt.Sprintf("1inch:%d", chainID)
	if cached, found := f.cache.Get(key); found {
		return cached.([]types.Token), nil
	}

	var parsed map[string]types.Token
	if err := f.get(ctx, fmt.Sprintf(oneInchURL, chainID), &parsed); err != nil {
		return nil, err
	}
	tokens := make([]types.Token, 0, len(parsed))
	for _, t := range parsed {
		tokens = append(tokens, t)
	}
	tokens = ingest(tokens, chainID)
	f.cache.Set(key, tokens, listCacheTTL)
	return tokens, nil
}

// FetchAll retrieves the chain's lists concurrently: the aggregator list
// first (it wins merge conflicts), then the generic list. A failure of one
// source degrades to the other rather than failing the whole fetch.
func (f *Fetcher) FetchAll(ctx context.Context, chainID int64) ([][]types.Token, error) {
	var oneInch, gecko []types.Token

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		oneInch, err = f.OneInchList(gctx, chainID)
		if err != nil {
			f.logger.Warn("Aggregator list unavailable", zap.Int64("chainId", chainID), zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		var err error
		gecko, err = f.GeckoList(gctx, chainID)
		if err != nil {
			f.logger.Warn("Generic list unavailable", zap.Int64("chainId", chainID), zap.Error(err))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if oneInch == nil && gecko == nil {
		return nil, fmt.Errorf("no token list available for chain %d", chainID)
	}

	lists := make([][]types.Token, 0, 2)
	if oneInch != nil {
		lists = append(lists, oneInch)
	}
	if gecko != nil {
		lists = append(lists, gecko)
	}
	return lists, nil
}

// ingest normalizes addresses and native-asset sentinels at the boundary
// and stamps the chain id the list was fetched for.
func ingest(tokens []types.Token, chainID int64) []types.Token {
	out := make([]types.Token, 0, len(tokens))
	for _, t := range tokens {
		t.Address = normalizeListAddress(t.Address)
		if t.Address == "" {
			continue
		}
		t.ChainID = chainID
		out = append(out, t)
	}
	return out
}

// normalizeListAddress maps the list services' differing native-token
// conventions onto the canonical sentinel.
func normalizeListAddress(address string) string {
	switch types.NormalizeAddress(address) {
	case "0x0000000000000000000000000000000000000000", "0x0000000000000000000000000000000000001010":
		return types.NativeAddress
	default:
		if !types.IsValidAddress(address) {
			return ""
		}
		return types.NormalizeAddress(address)
	}
}
