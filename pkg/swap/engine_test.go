package swap

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"enso-swap/pkg/types"
)

// echoAPI answers every route request with amountOut equal to amountIn,
// so tests can tell which request produced a quote. The gate channel, when
// set, stalls the first call until released.
type echoAPI struct {
	mu    sync.Mutex
	calls int
	gate  chan struct{}
}

func (f *echoAPI) GetRouteData(ctx context.Context, req *types.SwapRequest) (*types.RouteData, error) {
	f.mu.Lock()
	f.calls++
	first := f.calls == 1
	gate := f.gate
	f.mu.Unlock()

	if first && gate != nil {
		<-gate
	}
	return &types.RouteData{
		AmountOut: req.AmountIn.String(),
		Tx:        types.Transaction{To: testAccount, Data: "0x", Value: "0"},
	}, nil
}

func (f *echoAPI) GetBundleData(ctx context.Context, bundle *types.Bundle) (*types.BundleData, error) {
	return nil, assert.AnError
}

func (f *echoAPI) GetPriceData(ctx context.Context, chainID int64, address string) (*types.TokenPrice, error) {
	return nil, assert.AnError
}

func (f *echoAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// failingQuoteAPI rejects every request, as an unreachable quote service
// would.
type failingQuoteAPI struct{}

func (failingQuoteAPI) GetRouteData(ctx context.Context, req *types.SwapRequest) (*types.RouteData, error) {
	return nil, assert.AnError
}

func (failingQuoteAPI) GetBundleData(ctx context.Context, bundle *types.Bundle) (*types.BundleData, error) {
	return nil, assert.AnError
}

func (failingQuoteAPI) GetPriceData(ctx context.Context, chainID int64, address string) (*types.TokenPrice, error) {
	return nil, assert.AnError
}

type updateLog struct {
	mu      sync.Mutex
	updates []Update
}

func (l *updateLog) record(u Update) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updates = append(l.updates, u)
}

func (l *updateLog) all() []Update {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Update(nil), l.updates...)
}

func TestEngineDebounceCoalesces(t *testing.T) {
	api := &echoAPI{}
	log := &updateLog{}
	e := NewEngine(newTestOrchestrator(api, nil), 50*time.Millisecond, log.record, zap.NewNop())
	defer e.Close()

	for _, amount := range []int64{1_000000, 2_000000, 3_000000} {
		e.Submit(sameChainRequest(amount))
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return e.Latest() != nil
	}, time.Second, 10*time.Millisecond)

	// Only the last request was fetched
	assert.Equal(t, 1, api.callCount())
	assert.Equal(t, "3000000", e.Latest().AmountOut.String())
}

func TestEngineDiscardsStaleResponse(t *testing.T) {
	gate := make(chan struct{})
	api := &echoAPI{gate: gate}
	log := &updateLog{}
	e := NewEngine(newTestOrchestrator(api, nil), time.Millisecond, log.record, zap.NewNop())
	defer e.Close()

	e.Submit(sameChainRequest(1_000000))
	require.Eventually(t, func() bool {
		return api.callCount() == 1
	}, time.Second, time.Millisecond)

	// A newer request arrives while the first is still in flight
	e.Submit(sameChainRequest(2_000000))
	require.Eventually(t, func() bool {
		return api.callCount() == 2
	}, time.Second, time.Millisecond)

	// Release the first response; it must be dropped, not surfaced
	close(gate)
	require.Eventually(t, func() bool {
		return e.Latest() != nil
	}, time.Second, time.Millisecond)

	assert.Equal(t, "2000000", e.Latest().AmountOut.String())
	for _, u := range log.all() {
		if u.Quote != nil && !u.Loading {
			assert.NotEqual(t, "1000000", u.Quote.AmountOut.String())
		}
	}
}

func TestEngineInvalidRequestClears(t *testing.T) {
	api := &echoAPI{}
	log := &updateLog{}
	e := NewEngine(newTestOrchestrator(api, nil), time.Millisecond, log.record, zap.NewNop())
	defer e.Close()

	e.Submit(sameChainRequest(1_000000))
	require.Eventually(t, func() bool {
		return e.Latest() != nil
	}, time.Second, time.Millisecond)

	// Amount wiped out mid-typing
	req := sameChainRequest(0)
	e.Submit(req)
	assert.Nil(t, e.Latest())
	assert.Equal(t, 1, api.callCount())
}

func TestEngineKeepsStaleQuoteWhileRefetching(t *testing.T) {
	api := &echoAPI{}
	log := &updateLog{}
	e := NewEngine(newTestOrchestrator(api, nil), time.Millisecond, log.record, zap.NewNop())
	defer e.Close()

	e.Submit(sameChainRequest(1_000000))
	require.Eventually(t, func() bool {
		return e.Latest() != nil
	}, time.Second, time.Millisecond)

	e.Submit(sameChainRequest(2_000000))

	// The loading update retains the previous quote, marked stale
	var found bool
	for _, u := range log.all() {
		if u.Loading && u.Stale {
			require.NotNil(t, u.Quote)
			assert.Equal(t, "1000000", u.Quote.AmountOut.String())
			found = true
		}
	}
	assert.True(t, found)
}

func TestEngineSurfacesFetchError(t *testing.T) {
	log := &updateLog{}
	e := NewEngine(newTestOrchestrator(failingQuoteAPI{}, nil), time.Millisecond, log.record, zap.NewNop())
	defer e.Close()

	e.Submit(sameChainRequest(1_000000))

	require.Eventually(t, func() bool {
		for _, u := range log.all() {
			if u.Err != nil {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
	assert.Nil(t, e.Latest())
}

func TestEngineFetchErrorClearsPreviousQuote(t *testing.T) {
	api := &echoAPI{}
	log := &updateLog{}
	orch := newTestOrchestrator(api, nil)
	e := NewEngine(orch, time.Millisecond, log.record, zap.NewNop())
	defer e.Close()

	e.Submit(sameChainRequest(1_000000))
	require.Eventually(t, func() bool {
		return e.Latest() != nil
	}, time.Second, time.Millisecond)

	// The service goes away; the stale quote must not stay displayed
	orch.api = failingQuoteAPI{}
	e.Submit(sameChainRequest(2_000000))
	require.Eventually(t, func() bool {
		for _, u := range log.all() {
			if u.Err != nil {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
	assert.Nil(t, e.Latest())
}

func TestQuoteRequestKey(t *testing.T) {
	a := sameChainRequest(1_000000)
	b := sameChainRequest(1_000000)
	assert.Equal(t, a.Key(), b.Key())

	c := sameChainRequest(2_000000)
	assert.NotEqual(t, a.Key(), c.Key())

	d := sameChainRequest(1_000000)
	d.DestinationChainID = types.ChainBase
	assert.NotEqual(t, a.Key(), d.Key())
}

func TestQuoteExchangeRate(t *testing.T) {
	q := &Quote{
		Request:   sameChainRequest(100_000000),
		AmountOut: func() *big.Int { v, _ := new(big.Int).SetString("50000000000000000", 10); return v }(),
	}
	// 100 USDC -> 0.05 WETH
	assert.Equal(t, "0.0005", q.ExchangeRate().String())
}
