package swap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"enso-swap/pkg/types"
)

// QuoteAPI is the slice of the quoting service the orchestrator drives.
type QuoteAPI interface {
	GetRouteData(ctx context.Context, req *types.SwapRequest) (*types.RouteData, error)
	GetBundleData(ctx context.Context, bundle *types.Bundle) (*types.BundleData, error)
	GetPriceData(ctx context.Context, chainID int64, address string) (*types.TokenPrice, error)
}

// QuoteRequest captures the current selections: tokens, chains, amount and
// slippage tolerance.
type QuoteRequest struct {
	SourceChainID      int64
	DestinationChainID int64
	TokenIn            types.Token
	TokenOut           types.Token
	AmountIn           *big.Int
	SlippageBps        int64
	FromAddress        string
	Receiver           string
	ReferralCode       string
}

// IsBridge reports whether the request crosses chains.
func (r *QuoteRequest) IsBridge() bool {
	return r.SourceChainID != r.DestinationChainID
}

// Validate applies the request gate. Requests failing it are suppressed
// without surfacing an error to the user.
func (r *QuoteRequest) Validate() error {
	if r.AmountIn == nil || r.AmountIn.Sign() <= 0 {
		return fmt.Errorf("amountIn must be greater than 0")
	}
	if !types.IsValidAddress(r.TokenIn.Address) {
		return fmt.Errorf("invalid tokenIn address: %s", r.TokenIn.Address)
	}
	if !types.IsValidAddress(r.TokenOut.Address) {
		return fmt.Errorf("invalid tokenOut address: %s", r.TokenOut.Address)
	}
	if !types.IsValidAddress(r.FromAddress) {
		return fmt.Errorf("invalid fromAddress: %s", r.FromAddress)
	}
	// The same address on another chain is a different token, so the
	// tokenIn != tokenOut invariant only binds within one chain.
	if !r.IsBridge() && types.SameAddress(r.TokenIn.Address, r.TokenOut.Address) {
		return fmt.Errorf("tokenIn and tokenOut must differ")
	}
	return nil
}

// Key identifies the request for stale-response discarding: two requests
// with equal keys would produce interchangeable quotes.
func (r *QuoteRequest) Key() string {
	amount := "0"
	if r.AmountIn != nil {
		amount = r.AmountIn.String()
	}
	return fmt.Sprintf("%d:%d:%s:%s:%s:%d:%s",
		r.SourceChainID, r.DestinationChainID,
		types.NormalizeAddress(r.TokenIn.Address), types.NormalizeAddress(r.TokenOut.Address),
		amount, r.SlippageBps, types.NormalizeAddress(r.FromAddress))
}

func (r *QuoteRequest) receiver() string {
	if r.Receiver != "" {
		return r.Receiver
	}
	return r.FromAddress
}

// Quote is a displayable, submittable result: the expected output, the
// route taken and the single transaction to sign.
type Quote struct {
	Request        QuoteRequest
	AmountOut      *big.Int
	Route          []types.RouteStep
	Tx             types.Transaction
	PriceImpactBps *int64
	Bridge         bool
	BridgeSymbol   string
	AmountInUSD    *decimal.Decimal
	AmountOutUSD   *decimal.Decimal
}

// ExchangeRate returns the normalized output per one unit of input.
func (q *Quote) ExchangeRate() decimal.Decimal {
	in := types.NormalizeAmount(q.Request.AmountIn, q.Request.TokenIn.Decimals)
	if in.IsZero() {
		return decimal.Zero
	}
	out := types.NormalizeAmount(q.AmountOut, q.Request.TokenOut.Decimals)
	return out.DivRound(in, 18)
}

// Orchestrator turns the user's selections into quotes and submittable
// transactions, choosing between a direct swap and a cross-chain bundle.
type Orchestrator struct {
	api    QuoteAPI
	caps   map[string]decimal.Decimal
	logger *zap.Logger
}

// NewOrchestrator creates an orchestrator. caps is the static policy table
// restricting USD notional per destination token address; it may be nil.
func NewOrchestrator(api QuoteAPI, caps map[string]decimal.Decimal, logger *zap.Logger) *Orchestrator {
	normalized := make(map[string]decimal.Decimal, len(caps))
	for addr, cap := range caps {
		normalized[types.NormalizeAddress(addr)] = cap
	}
	return &Orchestrator{
		api:    api,
		caps:   normalized,
		logger: logger.Named("Orchestrator"),
	}
}

// Fetch produces a quote for the request, via the direct route endpoint on
// a single chain and via a composed bridge bundle across chains.
func (o *Orchestrator) Fetch(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var quote *Quote
	var err error
	if req.IsBridge() {
		quote, err = o.fetchBridge(ctx, req)
	} else {
		quote, err = o.fetchSwap(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	o.attachUSDValues(ctx, quote)
	if quote.PriceImpactBps == nil {
		quote.PriceImpactBps = fallbackPriceImpact(quote.AmountInUSD, quote.AmountOutUSD)
	}
	return quote, nil
}

func (o *Orchestrator) fetchSwap(ctx context.Context, req QuoteRequest) (*Quote, error) {
	slippage := req.SlippageBps
	if slippage == 0 {
		slippage = types.DefaultSlippageBps
	}
	route, err := o.api.GetRouteData(ctx, &types.SwapRequest{
		ChainID:         req.SourceChainID,
		FromAddress:     req.FromAddress,
		Receiver:        req.Receiver,
		TokenIn:         req.TokenIn.Address,
		TokenOut:        req.TokenOut.Address,
		AmountIn:        req.AmountIn,
		SlippageBps:     slippage,
		RoutingStrategy: types.StrategyRouter,
		ReferralCode:    req.ReferralCode,
	})
	if err != nil {
		return nil, err
	}
	amountOut, err := route.AmountOutBase()
	if err != nil {
		return nil, fmt.Errorf("invalid amountOut in route response: %w", err)
	}
	return &Quote{
		Request:        req,
		AmountOut:      amountOut,
		Route:          route.Route,
		Tx:             route.Tx,
		PriceImpactBps: route.PriceImpactBps,
	}, nil
}

func (o *Orchestrator) fetchBridge(ctx context.Context, req QuoteRequest) (*Quote, error) {
	bundle, symbol, err := o.ComposeBundle(req)
	if err != nil {
		return nil, err
	}
	data, err := o.api.GetBundleData(ctx, bundle)
	if err != nil {
		return nil, err
	}
	amountOut, err := data.AmountOutFor(req.TokenOut.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid amountOut in bundle response: %w", err)
	}
	o.logger.Debug("Bridge bundle quoted",
		zap.String("bridgeAsset", symbol),
		zap.Int64("sourceChain", req.SourceChainID),
		zap.Int64("destChain", req.DestinationChainID),
		zap.String("amountOut", amountOut.String()))
	return &Quote{
		Request:      req,
		AmountOut:    amountOut,
		Tx:           data.Tx,
		Bridge:       true,
		BridgeSymbol: symbol,
	}, nil
}

// ComposeBundle builds the cross-chain bundle: an optional source-chain
// conversion into the bridge asset, the bridge step, and a destination
// callback converting the delivered asset into the desired tokenOut. The
// slippage tolerance applies to the destination leg only.
func (o *Orchestrator) ComposeBundle(req QuoteRequest) (*types.Bundle, string, error) {
	asset, src, dst, err := selectBridgeAsset(req.SourceChainID, req.DestinationChainID, req.TokenIn.Address)
	if err != nil {
		return nil, "", err
	}

	var actions []types.BundleAction

	bridgeAmount := types.LiteralAmount(req.AmountIn)
	if !types.SameAddress(req.TokenIn.Address, src.Token) {
		actions = append(actions, types.BundleAction{
			Protocol: types.ProtocolEnso,
			Action:   types.ActionRoute,
			Args: types.RouteArgs{
				TokenIn:  types.NormalizeAddress(req.TokenIn.Address),
				TokenOut: src.Token,
				AmountIn: types.LiteralAmount(req.AmountIn),
			},
		})
		bridgeAmount = types.OutputOfCall(len(actions) - 1)
	}

	var callback []types.BundleAction
	if !types.SameAddress(dst.Token, req.TokenOut.Address) {
		slippage := req.SlippageBps
		if slippage == 0 {
			slippage = types.DefaultSlippageBps
		}
		callback = []types.BundleAction{
			{
				Protocol: types.ProtocolEnso,
				Action:   types.ActionBalance,
				Args:     types.BalanceArgs{Token: dst.Token},
			},
			{
				Protocol: types.ProtocolEnso,
				Action:   types.ActionRoute,
				Args: types.RouteArgs{
					TokenIn:     dst.Token,
					TokenOut:    types.NormalizeAddress(req.TokenOut.Address),
					AmountIn:    types.OutputOfCall(0),
					SlippageBps: slippage,
					Receiver:    types.NormalizeAddress(req.receiver()),
				},
			},
		}
	}

	actions = append(actions, types.BundleAction{
		Protocol: types.ProtocolStargate,
		Action:   types.ActionBridge,
		Args: types.BridgeArgs{
			SourcePool:         src.Pool,
			DestinationChainID: req.DestinationChainID,
			TokenIn:            src.Token,
			AmountIn:           bridgeAmount,
			Receiver:           types.NormalizeAddress(req.receiver()),
			Callback:           callback,
		},
	})

	bundle := &types.Bundle{
		ChainID:     req.SourceChainID,
		FromAddress: types.NormalizeAddress(req.FromAddress),
		Actions:     actions,
	}
	if err := bundle.Validate(); err != nil {
		return nil, "", fmt.Errorf("composed bundle is invalid: %w", err)
	}
	return bundle, asset.Symbol, nil
}

// attachUSDValues annotates the quote with USD notionals. Price lookups
// are best effort: a missing price leaves the value nil.
func (o *Orchestrator) attachUSDValues(ctx context.Context, q *Quote) {
	if in, err := o.api.GetPriceData(ctx, q.Request.SourceChainID, q.Request.TokenIn.Address); err == nil {
		value := types.NormalizeAmount(q.Request.AmountIn, q.Request.TokenIn.Decimals).Mul(in.Price)
		q.AmountInUSD = &value
	} else {
		o.logger.Debug("No USD price for tokenIn", zap.String("token", q.Request.TokenIn.Address), zap.Error(err))
	}
	if out, err := o.api.GetPriceData(ctx, q.Request.DestinationChainID, q.Request.TokenOut.Address); err == nil {
		value := types.NormalizeAmount(q.AmountOut, q.Request.TokenOut.Decimals).Mul(out.Price)
		q.AmountOutUSD = &value
	} else {
		o.logger.Debug("No USD price for tokenOut", zap.String("token", q.Request.TokenOut.Address), zap.Error(err))
	}
}

// fallbackPriceImpact derives impact from independently fetched USD
// notionals when the response carries none. Clamped at zero: impact is
// only ever reported as a cost.
func fallbackPriceImpact(inUSD, outUSD *decimal.Decimal) *int64 {
	if inUSD == nil || outUSD == nil || inUSD.IsZero() {
		return nil
	}
	impact := inUSD.Sub(*outUSD).Div(*inUSD).Mul(decimal.NewFromInt(10000)).Round(0).IntPart()
	if impact < 0 {
		impact = 0
	}
	return &impact
}
