package types

import (
	"fmt"
	"math/big"
)

// Default and limit values for route requests, in basis points.
const (
	DefaultSlippageBps = 50
	MaxSlippageBps     = 10000

	// PriceImpactWarningBps is the threshold at or above which a quote
	// requires explicit user acknowledgment before submission.
	PriceImpactWarningBps = 300
)

// RoutingStrategy selects how the routing service composes the transaction.
type RoutingStrategy string

const (
	StrategyRouter   RoutingStrategy = "router"
	StrategyDelegate RoutingStrategy = "delegate"
)

// SwapRequest is a same-chain route request to the quoting service.
type SwapRequest struct {
	ChainID         int64           `json:"chainId"`
	FromAddress     string          `json:"fromAddress"`
	Receiver        string          `json:"receiver,omitempty"`
	Spender         string          `json:"spender,omitempty"`
	TokenIn         string          `json:"tokenIn"`
	TokenOut        string          `json:"tokenOut"`
	AmountIn        *big.Int        `json:"-"`
	SlippageBps     int64           `json:"slippage"`
	RoutingStrategy RoutingStrategy `json:"routingStrategy"`
	ReferralCode    string          `json:"referralCode,omitempty"`
}

// Validate checks the invariants that gate every quote request. A request
// that fails validation is silently suppressed, never sent.
func (r *SwapRequest) Validate() error {
	if r.AmountIn == nil || r.AmountIn.Sign() <= 0 {
		return fmt.Errorf("amountIn must be greater than 0")
	}
	if !IsValidAddress(r.TokenIn) {
		return fmt.Errorf("invalid tokenIn address: %s", r.TokenIn)
	}
	if !IsValidAddress(r.TokenOut) {
		return fmt.Errorf("invalid tokenOut address: %s", r.TokenOut)
	}
	if SameAddress(r.TokenIn, r.TokenOut) {
		return fmt.Errorf("tokenIn and tokenOut must differ")
	}
	if !IsValidAddress(r.FromAddress) {
		return fmt.Errorf("invalid fromAddress: %s", r.FromAddress)
	}
	if r.SlippageBps < 0 || r.SlippageBps > MaxSlippageBps {
		return fmt.Errorf("slippage out of range: %d bps", r.SlippageBps)
	}
	return nil
}

// Transaction is the ready-to-sign payload returned with a route. Value is
// a base-unit integer string, zero for pure ERC-20 operations.
type Transaction struct {
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
}

// ValueBase parses the native value attached to the transaction.
func (t *Transaction) ValueBase() (*big.Int, error) {
	return ParseBaseAmount(t.Value)
}

// RouteStep describes one hop of a route. Action "split" carries parallel
// sub-routes in InternalRoutes, each producing partial output, recursively
// of the same shape.
type RouteStep struct {
	Protocol       string        `json:"protocol"`
	Action         string        `json:"action"`
	TokenIn        []string      `json:"tokenIn"`
	TokenOut       []string      `json:"tokenOut"`
	InternalRoutes [][]RouteStep `json:"internalRoutes,omitempty"`
}

// RouteData is the quoting service's response: the expected output, the
// priced path and the transaction to sign.
type RouteData struct {
	AmountOut      string      `json:"amountOut"`
	PriceImpactBps *int64      `json:"priceImpact,omitempty"`
	Gas            string      `json:"gas,omitempty"`
	Route          []RouteStep `json:"route"`
	Tx             Transaction `json:"tx"`
}

// AmountOutBase parses the response output amount into base units.
func (r *RouteData) AmountOutBase() (*big.Int, error) {
	return ParseBaseAmount(r.AmountOut)
}

// ApprovalData is the approval lookup response: the spender the route
// transaction pulls funds through and the approval transaction itself.
type ApprovalData struct {
	Token   string      `json:"token"`
	Spender string      `json:"spender"`
	Amount  string      `json:"amount"`
	Tx      Transaction `json:"tx"`
}
