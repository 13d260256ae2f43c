package swap

import (
	"context"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"enso-swap/pkg/types"
)

const (
	testAccount = "0x1111111111111111111111111111111111111111"
	testWETH    = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
	testDAI     = "0x6b175474e89094c44da98b954eedeac495271d0f"
)

var (
	mainnetUSDC = types.USDCAddresses[types.ChainMainnet]
	baseWETH    = "0x4200000000000000000000000000000000000006"
)

type fakeQuoteAPI struct {
	routeReq   *types.SwapRequest
	routeResp  *types.RouteData
	routeErr   error
	bundleReq  *types.Bundle
	bundleResp *types.BundleData
	bundleErr  error
	prices     map[string]decimal.Decimal
}

func (f *fakeQuoteAPI) GetRouteData(ctx context.Context, req *types.SwapRequest) (*types.RouteData, error) {
	f.routeReq = req
	return f.routeResp, f.routeErr
}

func (f *fakeQuoteAPI) GetBundleData(ctx context.Context, bundle *types.Bundle) (*types.BundleData, error) {
	f.bundleReq = bundle
	return f.bundleResp, f.bundleErr
}

func (f *fakeQuoteAPI) GetPriceData(ctx context.Context, chainID int64, address string) (*types.TokenPrice, error) {
	price, ok := f.prices[types.NormalizeAddress(address)]
	if !ok {
		return nil, assert.AnError
	}
	return &types.TokenPrice{Address: address, ChainID: chainID, Price: price}, nil
}

func usdcToken(chainID int64) types.Token {
	return types.Token{Address: types.USDCAddresses[chainID], ChainID: chainID, Symbol: "USDC", Decimals: 6}
}

func wethToken(chainID int64, address string) types.Token {
	return types.Token{Address: address, ChainID: chainID, Symbol: "WETH", Decimals: 18}
}

func newTestOrchestrator(api QuoteAPI, caps map[string]decimal.Decimal) *Orchestrator {
	return NewOrchestrator(api, caps, zap.NewNop())
}

func sameChainRequest(amount int64) QuoteRequest {
	return QuoteRequest{
		SourceChainID:      types.ChainMainnet,
		DestinationChainID: types.ChainMainnet,
		TokenIn:            usdcToken(types.ChainMainnet),
		TokenOut:           wethToken(types.ChainMainnet, testWETH),
		AmountIn:           big.NewInt(amount),
		FromAddress:        testAccount,
	}
}

func TestFetchSameChainUsesRoute(t *testing.T) {
	impact := int64(42)
	api := &fakeQuoteAPI{
		routeResp: &types.RouteData{
			AmountOut:      "500000000000000000",
			PriceImpactBps: &impact,
			Tx:             types.Transaction{To: testAccount, Data: "0x", Value: "0"},
		},
	}
	o := newTestOrchestrator(api, nil)

	quote, err := o.Fetch(context.Background(), sameChainRequest(100_000000))
	require.NoError(t, err)

	require.NotNil(t, api.routeReq)
	assert.Nil(t, api.bundleReq)
	assert.Equal(t, int64(types.DefaultSlippageBps), api.routeReq.SlippageBps)

	assert.False(t, quote.Bridge)
	assert.Equal(t, "500000000000000000", quote.AmountOut.String())
	require.NotNil(t, quote.PriceImpactBps)
	assert.Equal(t, int64(42), *quote.PriceImpactBps)
}

func TestFetchRejectsInvalidRequest(t *testing.T) {
	o := newTestOrchestrator(&fakeQuoteAPI{}, nil)

	req := sameChainRequest(0)
	_, err := o.Fetch(context.Background(), req)
	assert.Error(t, err)

	req = sameChainRequest(100)
	req.TokenOut = req.TokenIn
	_, err = o.Fetch(context.Background(), req)
	assert.Error(t, err)
}

func TestFetchCrossChainSameTokenAllowed(t *testing.T) {
	// USDC on two chains shares no identity; bridging it to itself is valid
	api := &fakeQuoteAPI{
		bundleResp: &types.BundleData{
			AmountsOut: map[string]string{types.USDCAddresses[types.ChainBase]: "99000000"},
			Tx:         types.Transaction{To: testAccount, Data: "0x", Value: "0"},
		},
	}
	o := newTestOrchestrator(api, nil)

	req := QuoteRequest{
		SourceChainID:      types.ChainMainnet,
		DestinationChainID: types.ChainBase,
		TokenIn:            usdcToken(types.ChainMainnet),
		TokenOut:           usdcToken(types.ChainBase),
		AmountIn:           big.NewInt(100_000000),
		FromAddress:        testAccount,
	}
	quote, err := o.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, quote.Bridge)
}

func TestComposeBundleMatchingBridgeAsset(t *testing.T) {
	// USDC in on mainnet, WETH out on Base: USDC is a bridge asset, so no
	// source conversion step is needed and the callback converts on arrival
	o := newTestOrchestrator(&fakeQuoteAPI{}, nil)

	req := QuoteRequest{
		SourceChainID:      types.ChainMainnet,
		DestinationChainID: types.ChainBase,
		TokenIn:            usdcToken(types.ChainMainnet),
		TokenOut:           wethToken(types.ChainBase, baseWETH),
		AmountIn:           big.NewInt(100_000000),
		SlippageBps:        50,
		FromAddress:        testAccount,
	}

	bundle, symbol, err := o.ComposeBundle(req)
	require.NoError(t, err)
	assert.Equal(t, "USDC", symbol)

	require.Len(t, bundle.Actions, 1)
	bridge, ok := bundle.Actions[0].Args.(types.BridgeArgs)
	require.True(t, ok)
	assert.Equal(t, types.ChainBase, bridge.DestinationChainID)
	assert.True(t, types.SameAddress(bridge.TokenIn, mainnetUSDC))
	assert.False(t, bridge.AmountIn.IsReference())

	require.Len(t, bridge.Callback, 2)
	balance, ok := bridge.Callback[0].Args.(types.BalanceArgs)
	require.True(t, ok)
	assert.True(t, types.SameAddress(balance.Token, types.USDCAddresses[types.ChainBase]))

	route, ok := bridge.Callback[1].Args.(types.RouteArgs)
	require.True(t, ok)
	assert.True(t, route.AmountIn.IsReference())
	assert.Equal(t, 0, route.AmountIn.OutputOfCallAt)
	assert.Equal(t, int64(50), route.SlippageBps)
	assert.True(t, types.SameAddress(route.TokenOut, baseWETH))
}

func TestComposeBundleWithSourceConversion(t *testing.T) {
	// DAI is not a bridge asset, so a source route step feeds the bridge
	o := newTestOrchestrator(&fakeQuoteAPI{}, nil)

	req := QuoteRequest{
		SourceChainID:      types.ChainMainnet,
		DestinationChainID: types.ChainBase,
		TokenIn:            types.Token{Address: testDAI, ChainID: types.ChainMainnet, Symbol: "DAI", Decimals: 18},
		TokenOut:           wethToken(types.ChainBase, baseWETH),
		AmountIn:           big.NewInt(1000),
		FromAddress:        testAccount,
	}

	bundle, symbol, err := o.ComposeBundle(req)
	require.NoError(t, err)
	assert.Equal(t, "ETH", symbol)

	require.Len(t, bundle.Actions, 2)
	route, ok := bundle.Actions[0].Args.(types.RouteArgs)
	require.True(t, ok)
	assert.True(t, types.SameAddress(route.TokenIn, testDAI))
	assert.False(t, route.AmountIn.IsReference())

	bridge, ok := bundle.Actions[1].Args.(types.BridgeArgs)
	require.True(t, ok)
	assert.True(t, bridge.AmountIn.IsReference())
	assert.Equal(t, 0, bridge.AmountIn.OutputOfCallAt)
}

func TestComposeBundleNoCallbackWhenBridgeAssetIsTarget(t *testing.T) {
	o := newTestOrchestrator(&fakeQuoteAPI{}, nil)

	req := QuoteRequest{
		SourceChainID:      types.ChainMainnet,
		DestinationChainID: types.ChainBase,
		TokenIn:            usdcToken(types.ChainMainnet),
		TokenOut:           usdcToken(types.ChainBase),
		AmountIn:           big.NewInt(100),
		FromAddress:        testAccount,
	}

	bundle, _, err := o.ComposeBundle(req)
	require.NoError(t, err)
	bridge := bundle.Actions[0].Args.(types.BridgeArgs)
	assert.Empty(t, bridge.Callback)
}

func TestFallbackPriceImpact(t *testing.T) {
	api := &fakeQuoteAPI{
		routeResp: &types.RouteData{
			AmountOut: "485000000000000000",
			Tx:        types.Transaction{To: testAccount, Data: "0x", Value: "0"},
		},
		prices: map[string]decimal.Decimal{
			mainnetUSDC: decimal.NewFromInt(1),
			testWETH:    decimal.NewFromInt(2000),
		},
	}
	o := newTestOrchestrator(api, nil)

	// $1000 in, 0.485 WETH out at $2000 = $970 out, 3% impact
	quote, err := o.Fetch(context.Background(), sameChainRequest(1000_000000))
	require.NoError(t, err)
	require.NotNil(t, quote.PriceImpactBps)
	assert.Equal(t, int64(300), *quote.PriceImpactBps)
}

func TestFallbackPriceImpactClampedAtZero(t *testing.T) {
	api := &fakeQuoteAPI{
		routeResp: &types.RouteData{
			AmountOut: "600000000000000000",
			Tx:        types.Transaction{To: testAccount, Data: "0x", Value: "0"},
		},
		prices: map[string]decimal.Decimal{
			mainnetUSDC: decimal.NewFromInt(1),
			testWETH:    decimal.NewFromInt(2000),
		},
	}
	o := newTestOrchestrator(api, nil)

	// Output worth more than input clamps to zero rather than negative
	quote, err := o.Fetch(context.Background(), sameChainRequest(1000_000000))
	require.NoError(t, err)
	require.NotNil(t, quote.PriceImpactBps)
	assert.Equal(t, int64(0), *quote.PriceImpactBps)
}

func TestFallbackPriceImpactMissingPrice(t *testing.T) {
	api := &fakeQuoteAPI{
		routeResp: &types.RouteData{
			AmountOut: "1",
			Tx:        types.Transaction{To: testAccount, Data: "0x", Value: "0"},
		},
	}
	o := newTestOrchestrator(api, nil)

	quote, err := o.Fetch(context.Background(), sameChainRequest(1000_000000))
	require.NoError(t, err)
	assert.Nil(t, quote.PriceImpactBps)
}
