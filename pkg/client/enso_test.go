package client

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"enso-swap/pkg/types"
)

func newTestClient(handler http.HandlerFunc) (*EnsoClient, *httptest.Server) {
	server := httptest.NewServer(handler)
	return NewEnsoClient(server.URL, "test-key", zap.NewNop()), server
}

func TestGetRouteData(t *testing.T) {
	var gotAuth, gotStrategy string
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotStrategy = r.URL.Query().Get("routingStrategy")
		w.Write([]byte(`{
			"amountOut": "2497500000",
			"priceImpact": 12,
			"route": [{"protocol": "uniswap-v3", "action": "swap",
				"tokenIn": ["0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"],
				"tokenOut": ["0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"]}],
			"tx": {"to": "0x80eba3855878739f4710233a8a19d89bdd2ffb8e", "data": "0xdead", "value": "0"}
		}`))
	})
	defer server.Close()

	route, err := client.GetRouteData(context.Background(), &types.SwapRequest{
		ChainID:     1,
		FromAddress: "0x1111111111111111111111111111111111111111",
		TokenIn:     "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
		TokenOut:    "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
		AmountIn:    big.NewInt(1000_000000),
		SlippageBps: 50,
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "router", gotStrategy)
	assert.Equal(t, "2497500000", route.AmountOut)
	require.NotNil(t, route.PriceImpactBps)
	assert.Equal(t, int64(12), *route.PriceImpactBps)
	require.Len(t, route.Route, 1)
	assert.Equal(t, "uniswap-v3", route.Route[0].Protocol)
}

func TestGetRouteDataRejectsInvalidRequest(t *testing.T) {
	client := NewEnsoClient("http://localhost:0", "", zap.NewNop())

	_, err := client.GetRouteData(context.Background(), &types.SwapRequest{
		ChainID:     1,
		FromAddress: "0x1111111111111111111111111111111111111111",
		TokenIn:     "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
		TokenOut:    "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
		AmountIn:    big.NewInt(1),
	})
	assert.Error(t, err)
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[]`))
	})
	defer server.Close()

	_, err := client.GetBalances(context.Background(), 1, "0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message": "tokenIn is not a valid address"}`))
	})
	defer server.Close()

	_, err := client.GetBalances(context.Background(), 1, "0x1111111111111111111111111111111111111111")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tokenIn is not a valid address")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetBalancesNormalizesNative(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"token": "0x0000000000000000000000000000000000000000", "amount": "1000000000000000000", "decimals": 18, "price": "2500"},
			{"token": "0xA0b86991C6218b36c1d19D4a2e9Eb0cE3606eB48", "amount": "5000000", "decimals": 6, "price": "1"}
		]`))
	})
	defer server.Close()

	balances, err := client.GetBalances(context.Background(), 1, "0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, types.NativeAddress, balances[0].Token)
	assert.Equal(t, int64(1), balances[0].ChainID)
	assert.Equal(t, "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", balances[1].Token)
}

func TestGetTokenDataCaches(t *testing.T) {
	var calls atomic.Int32
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"data": [{"address": "0xA0b86991C6218b36c1d19D4a2e9Eb0cE3606eB48",
			"chainId": 1, "name": "USD Coin", "symbol": "USDC", "decimals": 6,
			"protocolSlug": "circle", "logosUri": ["https://example.com/usdc.png"]}]}`))
	})
	defer server.Close()

	usdc := "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	token, err := client.GetTokenData(context.Background(), 1, usdc)
	require.NoError(t, err)
	assert.Equal(t, "USDC", token.Symbol)
	assert.Equal(t, int32(6), token.Decimals)
	assert.Equal(t, "circle", token.Project)
	assert.Equal(t, "https://example.com/usdc.png", token.LogoURI)

	_, err = client.GetTokenData(context.Background(), 1, "0xA0b86991C6218b36c1d19D4a2e9Eb0cE3606eB48")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAPIError(t *testing.T) {
	err := apiError(400, []byte(`{"message": "tokenIn is not a valid address"}`))
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "tokenIn is not a valid address")

	err = apiError(429, []byte(`{"error": "rate limited"}`))
	assert.Contains(t, err.Error(), "rate limited")

	err = apiError(502, []byte("bad gateway"))
	assert.Contains(t, err.Error(), "bad gateway")

	err = apiError(500, nil)
	assert.Contains(t, err.Error(), "500")
}

func TestNormalizeNative(t *testing.T) {
	assert.Equal(t, types.NativeAddress, normalizeNative(""))
	assert.Equal(t, types.NativeAddress, normalizeNative("0x0000000000000000000000000000000000000000"))
	assert.Equal(t, types.NativeAddress, normalizeNative("ETH"))
	assert.Equal(t, types.NativeAddress, normalizeNative("native"))

	usdc := "0xA0b86991C6218b36c1d19D4a2e9Eb0cE3606eB48"
	assert.Equal(t, types.NormalizeAddress(usdc), normalizeNative(usdc))
}
