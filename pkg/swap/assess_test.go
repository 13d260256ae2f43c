package swap

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"enso-swap/pkg/types"
)

func quoteWithImpact(impactBps int64) *Quote {
	return &Quote{
		Request:        sameChainRequest(100_000000),
		AmountOut:      big.NewInt(50_000000),
		PriceImpactBps: &impactBps,
	}
}

func TestAssessNoQuote(t *testing.T) {
	o := newTestOrchestrator(&fakeQuoteAPI{}, nil)

	a := o.Assess(AssessInput{})
	assert.False(t, a.CanSubmit)
	assert.Equal(t, ReasonNoQuote, a.Reason)
}

func TestAssessNoRoute(t *testing.T) {
	o := newTestOrchestrator(&fakeQuoteAPI{}, nil)

	q := quoteWithImpact(0)
	q.AmountOut = big.NewInt(0)
	a := o.Assess(AssessInput{Quote: q})
	assert.False(t, a.CanSubmit)
	assert.Equal(t, ReasonNoRoute, a.Reason)
}

func TestAssessInsufficientBalance(t *testing.T) {
	o := newTestOrchestrator(&fakeQuoteAPI{}, nil)

	a := o.Assess(AssessInput{
		Quote:   quoteWithImpact(0),
		Balance: big.NewInt(50_000000),
	})
	assert.False(t, a.CanSubmit)
	assert.Equal(t, ReasonInsufficientBalance, a.Reason)
	assert.Contains(t, a.Message, "USDC")
}

func TestAssessInsufficientBalanceBeatsImpact(t *testing.T) {
	o := newTestOrchestrator(&fakeQuoteAPI{}, nil)

	a := o.Assess(AssessInput{
		Quote:   quoteWithImpact(500),
		Balance: big.NewInt(1),
	})
	assert.Equal(t, ReasonInsufficientBalance, a.Reason)
}

func TestAssessWrongNetwork(t *testing.T) {
	o := newTestOrchestrator(&fakeQuoteAPI{}, nil)

	a := o.Assess(AssessInput{
		Quote:         quoteWithImpact(0),
		Balance:       big.NewInt(200_000000),
		WalletChainID: types.ChainBase,
	})
	assert.False(t, a.CanSubmit)
	assert.Equal(t, ReasonWrongNetwork, a.Reason)
	assert.True(t, a.RequiresSwitch)
	assert.Contains(t, a.Message, "Ethereum")
}

func TestAssessApprovalPending(t *testing.T) {
	o := newTestOrchestrator(&fakeQuoteAPI{}, nil)

	a := o.Assess(AssessInput{
		Quote:           quoteWithImpact(0),
		Balance:         big.NewInt(200_000000),
		ApprovalPending: true,
	})
	assert.False(t, a.CanSubmit)
	assert.Equal(t, ReasonApprovalPending, a.Reason)
}

func TestAssessTradeCap(t *testing.T) {
	caps := map[string]decimal.Decimal{
		testWETH: decimal.NewFromInt(500),
	}
	o := newTestOrchestrator(&fakeQuoteAPI{}, caps)

	q := quoteWithImpact(0)
	over := decimal.NewFromInt(1000)
	q.AmountOutUSD = &over

	a := o.Assess(AssessInput{Quote: q, Balance: big.NewInt(200_000000)})
	assert.False(t, a.CanSubmit)
	assert.Equal(t, ReasonTradeCapExceeded, a.Reason)
	assert.Contains(t, a.Message, "$500")

	under := decimal.NewFromInt(100)
	q.AmountOutUSD = &under
	a = o.Assess(AssessInput{Quote: q, Balance: big.NewInt(200_000000)})
	assert.True(t, a.CanSubmit)
}

func TestAssessHighImpactNeedsAcknowledgment(t *testing.T) {
	o := newTestOrchestrator(&fakeQuoteAPI{}, nil)

	a := o.Assess(AssessInput{
		Quote:   quoteWithImpact(500),
		Balance: big.NewInt(200_000000),
	})
	assert.True(t, a.CanSubmit)
	assert.True(t, a.RequiresAcknowledgment)
	assert.True(t, a.WarnPriceImpact)
	assert.Equal(t, ReasonAcknowledgeImpact, a.Reason)

	// Acknowledged once, the same quote submits normally
	a = o.Assess(AssessInput{
		Quote:        quoteWithImpact(500),
		Balance:      big.NewInt(200_000000),
		Acknowledged: true,
	})
	assert.True(t, a.CanSubmit)
	assert.False(t, a.RequiresAcknowledgment)
	assert.True(t, a.WarnPriceImpact)
}

func TestAssessLowImpactNoWarning(t *testing.T) {
	o := newTestOrchestrator(&fakeQuoteAPI{}, nil)

	a := o.Assess(AssessInput{
		Quote:   quoteWithImpact(200),
		Balance: big.NewInt(200_000000),
	})
	assert.True(t, a.CanSubmit)
	assert.False(t, a.RequiresAcknowledgment)
	assert.False(t, a.WarnPriceImpact)
}
