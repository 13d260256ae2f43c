package swap

import (
	"fmt"
	"math/big"

	"enso-swap/pkg/types"
)

// Reasons a quote cannot be submitted yet.
const (
	ReasonNoQuote             = "no_quote"
	ReasonNoRoute             = "no_route"
	ReasonInsufficientBalance = "insufficient_balance"
	ReasonWrongNetwork        = "wrong_network"
	ReasonApprovalPending     = "approval_pending"
	ReasonTradeCapExceeded    = "trade_cap_exceeded"
	ReasonAcknowledgeImpact   = "acknowledge_impact"
)

// AssessInput is everything the submit gate looks at: the latest quote,
// the wallet's state and whether the user has acknowledged a high-impact
// warning.
type AssessInput struct {
	Quote           *Quote
	Balance         *big.Int
	WalletChainID   int64
	ApprovalPending bool
	Acknowledged    bool
}

// Assessment is the submit gate's verdict: whether the primary action is
// enabled, and if not, why and what the button should say.
type Assessment struct {
	CanSubmit bool
	Reason    string
	Message   string

	// RequiresSwitch means the primary action becomes a network switch
	// to the quote's source chain instead of a submit.
	RequiresSwitch bool

	// RequiresAcknowledgment means the quote is submittable but the
	// first activation only records the user's acceptance of the price
	// impact; a second activation submits.
	RequiresAcknowledgment bool

	// WarnPriceImpact flags the displayed impact for emphasis.
	WarnPriceImpact bool
}

// Assess decides whether the current quote may be submitted. Checks run
// in a fixed order so the user always sees the most actionable problem:
// a missing route, then insufficient funds, then wallet state, then
// policy and risk gates.
func (o *Orchestrator) Assess(in AssessInput) Assessment {
	if in.Quote == nil {
		return Assessment{Reason: ReasonNoQuote, Message: "Enter an amount"}
	}
	q := in.Quote

	if q.AmountOut == nil || q.AmountOut.Sign() <= 0 {
		return Assessment{Reason: ReasonNoRoute, Message: "No route found"}
	}

	if in.Balance != nil && in.Balance.Cmp(q.Request.AmountIn) < 0 {
		return Assessment{
			Reason:  ReasonInsufficientBalance,
			Message: fmt.Sprintf("Insufficient %s balance", q.Request.TokenIn.Symbol),
		}
	}

	if in.WalletChainID != 0 && in.WalletChainID != q.Request.SourceChainID {
		name := types.ChainNames[q.Request.SourceChainID]
		if name == "" {
			name = fmt.Sprintf("chain %d", q.Request.SourceChainID)
		}
		return Assessment{
			Reason:         ReasonWrongNetwork,
			Message:        fmt.Sprintf("Switch to %s", name),
			RequiresSwitch: true,
		}
	}

	if in.ApprovalPending {
		return Assessment{Reason: ReasonApprovalPending, Message: "Approval pending"}
	}

	if cap, ok := o.caps[types.NormalizeAddress(q.Request.TokenOut.Address)]; ok {
		notional := q.AmountOutUSD
		if notional == nil {
			notional = q.AmountInUSD
		}
		if notional != nil && notional.GreaterThan(cap) {
			return Assessment{
				Reason:  ReasonTradeCapExceeded,
				Message: fmt.Sprintf("Trade sizes are restricted to $%s for this token", cap.StringFixed(0)),
			}
		}
	}

	highImpact := q.PriceImpactBps != nil && *q.PriceImpactBps >= types.PriceImpactWarningBps
	if highImpact && !in.Acknowledged {
		return Assessment{
			CanSubmit:              true,
			Reason:                 ReasonAcknowledgeImpact,
			Message:                fmt.Sprintf("Accept %.2f%% price impact", float64(*q.PriceImpactBps)/100),
			RequiresAcknowledgment: true,
			WarnPriceImpact:        true,
		}
	}

	return Assessment{CanSubmit: true, Message: "Swap", WarnPriceImpact: highImpact}
}
