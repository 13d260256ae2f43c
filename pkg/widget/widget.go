// Package widget is the embeddable facade over the swap machinery: it
// owns the current selections, keeps the quote fresh while they change
// and runs the submit flow end to end.
package widget

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"enso-swap/pkg/notify"
	"enso-swap/pkg/swap"
	"enso-swap/pkg/tokenlist"
	"enso-swap/pkg/track"
	"enso-swap/pkg/types"
	"enso-swap/pkg/wallet"
)

// ChangeState is the externally visible selection, reported through
// OnChange whenever any of its fields moves.
type ChangeState struct {
	TokenIn    string `json:"tokenIn,omitempty"`
	TokenOut   string `json:"tokenOut,omitempty"`
	ChainID    int64  `json:"chainId,omitempty"`
	OutChainID int64  `json:"outChainId,omitempty"`
}

// Config is the host-provided configuration.
type Config struct {
	ReferralCode       string
	DefaultChainID     int64
	DefaultSlippageBps int64

	// Obligated selections are applied at startup. With ObligateSelection
	// set, the obligated side cannot be changed afterwards.
	ObligatedTokenOut string
	ObligatedChainOut int64
	ObligateSelection bool

	EnableShare   bool
	IndicateRoute bool
	Adaptive      bool

	TokenInFilter  tokenlist.Filter
	TokenOutFilter tokenlist.Filter
	TradeCapsUSD   map[string]decimal.Decimal

	OnChange  func(ChangeState)
	OnSuccess func(track.Result)
}

// Deps are the wired components the widget drives.
type Deps struct {
	Orchestrator *swap.Orchestrator
	Merger       *tokenlist.Merger
	Wallet       wallet.Provider
	Approvals    *wallet.ApprovalManager
	Tracker      *track.Tracker
	Notifier     *notify.Notifier
	Balances     BalanceAPI
	Metadata     TokenMetadataAPI
	Spender      func(chainID int64) string
	Logger       *zap.Logger
}

// BalanceAPI lists the account's holdings on a chain.
type BalanceAPI interface {
	GetBalances(ctx context.Context, chainID int64, account string) ([]types.Balance, error)
}

// TokenMetadataAPI resolves name, symbol and decimals for a token known
// only by address, as URL-seeded and obligated selections are.
type TokenMetadataAPI interface {
	GetTokenData(ctx context.Context, chainID int64, address string) (*types.Token, error)
}

// Widget holds the live selection state and the latest quote.
type Widget struct {
	cfg    Config
	deps   Deps
	engine *swap.Engine
	logger *zap.Logger

	mu           sync.Mutex
	chainID      int64
	outChainID   int64
	tokenIn      types.Token
	tokenOut     types.Token
	amountIn     string
	slippageBps  int64
	acknowledged bool
	latest       swap.Update
}

// New creates a widget and applies the configured defaults and obligated
// selections.
func New(cfg Config, deps Deps) *Widget {
	if cfg.DefaultChainID == 0 {
		cfg.DefaultChainID = types.ChainMainnet
	}
	if cfg.DefaultSlippageBps == 0 {
		cfg.DefaultSlippageBps = types.DefaultSlippageBps
	}

	w := &Widget{
		cfg:         cfg,
		deps:        deps,
		logger:      deps.Logger.Named("Widget"),
		chainID:     cfg.DefaultChainID,
		outChainID:  cfg.DefaultChainID,
		slippageBps: cfg.DefaultSlippageBps,
	}
	w.engine = swap.NewEngine(deps.Orchestrator, 0, w.onQuote, deps.Logger)

	if cfg.ObligatedChainOut != 0 {
		w.outChainID = cfg.ObligatedChainOut
	}
	if cfg.ObligatedTokenOut != "" {
		w.tokenOut = types.Token{
			Address: types.NormalizeAddress(cfg.ObligatedTokenOut),
			ChainID: w.outChainID,
		}
	}
	return w
}

// Close stops the quote engine.
func (w *Widget) Close() {
	w.engine.Close()
}

func (w *Widget) onQuote(u swap.Update) {
	w.mu.Lock()
	w.latest = u
	w.mu.Unlock()
}

// SeedFromQuery applies selections carried in a shared URL. Unknown or
// malformed parameters are skipped; the seed never clears an existing
// selection, it only fills in what the URL names.
func (w *Widget) SeedFromQuery(values url.Values) {
	w.mu.Lock()
	if v := values.Get("chainId"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			w.chainID = id
		}
	}
	if v := values.Get("outChainId"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			w.outChainID = id
		}
	} else if values.Get("chainId") != "" && w.cfg.ObligatedChainOut == 0 {
		w.outChainID = w.chainID
	}
	if v := values.Get("tokenIn"); types.IsValidAddress(v) {
		w.tokenIn = types.Token{Address: types.NormalizeAddress(v), ChainID: w.chainID}
	}
	obligated := values.Get("obligated") == "1"
	if v := values.Get("tokenOut"); types.IsValidAddress(v) && !w.outLocked() {
		w.tokenOut = types.Token{Address: types.NormalizeAddress(v), ChainID: w.outChainID}
		if v := values.Get("outProject"); v != "" {
			w.tokenOut.Project = v
		}
		if obligated {
			w.cfg.ObligateSelection = true
		}
	}
	w.mu.Unlock()
	w.changed()
}

// MergeQuery writes the current selection into an existing query string
// without disturbing unrelated parameters the host page carries.
func (w *Widget) MergeQuery(values url.Values) url.Values {
	w.mu.Lock()
	defer w.mu.Unlock()

	merged := url.Values{}
	for k, vs := range values {
		merged[k] = append([]string(nil), vs...)
	}
	merged.Set("chainId", strconv.FormatInt(w.chainID, 10))
	if w.outChainID != w.chainID {
		merged.Set("outChainId", strconv.FormatInt(w.outChainID, 10))
	} else {
		merged.Del("outChainId")
	}
	setOrDel := func(key, value string) {
		if value != "" {
			merged.Set(key, value)
		} else {
			merged.Del(key)
		}
	}
	setOrDel("tokenIn", w.tokenIn.Address)
	setOrDel("tokenOut", w.tokenOut.Address)
	setOrDel("outProject", w.tokenOut.Project)
	if w.cfg.ObligateSelection {
		merged.Set("obligated", "1")
	} else {
		merged.Del("obligated")
	}
	return merged
}

// ShareURL renders the current selection as a shareable link on the given
// base URL. Empty when sharing is disabled.
func (w *Widget) ShareURL(base string) (string, error) {
	if !w.cfg.EnableShare {
		return "", fmt.Errorf("sharing is disabled")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	u.RawQuery = w.MergeQuery(u.Query()).Encode()
	return u.String(), nil
}

func (w *Widget) outLocked() bool {
	return w.cfg.ObligateSelection && w.tokenOut.Address != ""
}

// SetChain selects the source network. The destination follows along
// unless it was set independently or is obligated.
func (w *Widget) SetChain(chainID int64) {
	w.mu.Lock()
	followOut := w.outChainID == w.chainID && w.cfg.ObligatedChainOut == 0
	w.chainID = chainID
	w.tokenIn = types.Token{}
	if followOut {
		w.outChainID = chainID
		if !w.outLocked() {
			w.tokenOut = types.Token{}
		}
	}
	w.acknowledged = false
	w.mu.Unlock()
	w.changed()
}

// SetOutChain selects the destination network.
func (w *Widget) SetOutChain(chainID int64) error {
	w.mu.Lock()
	if w.cfg.ObligatedChainOut != 0 && chainID != w.cfg.ObligatedChainOut {
		w.mu.Unlock()
		return fmt.Errorf("destination chain is fixed to %d", w.cfg.ObligatedChainOut)
	}
	w.outChainID = chainID
	if !w.outLocked() {
		w.tokenOut = types.Token{}
	}
	w.acknowledged = false
	w.mu.Unlock()
	w.changed()
	return nil
}

// SetTokenIn selects the input token.
func (w *Widget) SetTokenIn(t types.Token) {
	w.mu.Lock()
	w.tokenIn = t
	if t.ChainID != 0 {
		w.chainID = t.ChainID
	}
	w.acknowledged = false
	w.mu.Unlock()
	w.changed()
}

// SetTokenOut selects the output token. Rejected when the selection is
// obligated.
func (w *Widget) SetTokenOut(t types.Token) error {
	w.mu.Lock()
	if w.outLocked() && !types.SameAddress(t.Address, w.tokenOut.Address) {
		w.mu.Unlock()
		return fmt.Errorf("output token is fixed to %s", w.tokenOut.Address)
	}
	w.tokenOut = t
	if t.ChainID != 0 {
		w.outChainID = t.ChainID
	}
	w.acknowledged = false
	w.mu.Unlock()
	w.changed()
	return nil
}

// SetAmountIn records the typed amount in display units. Partial or
// unparsable input clears the quote rather than erroring.
func (w *Widget) SetAmountIn(amount string) {
	w.mu.Lock()
	w.amountIn = amount
	w.acknowledged = false
	w.mu.Unlock()
	w.changed()
}

// SetSlippage overrides the slippage tolerance.
func (w *Widget) SetSlippage(bps int64) error {
	if bps < 0 || bps > types.MaxSlippageBps {
		return fmt.Errorf("slippage must be between 0 and %d basis points", types.MaxSlippageBps)
	}
	w.mu.Lock()
	w.slippageBps = bps
	w.mu.Unlock()
	w.changed()
	return nil
}

// Flip swaps the input and output selections. Disabled while the output
// side is obligated.
func (w *Widget) Flip() error {
	w.mu.Lock()
	if w.outLocked() {
		w.mu.Unlock()
		return fmt.Errorf("cannot flip an obligated selection")
	}
	w.tokenIn, w.tokenOut = w.tokenOut, w.tokenIn
	w.chainID, w.outChainID = w.outChainID, w.chainID
	w.acknowledged = false
	w.mu.Unlock()
	w.changed()
	return nil
}

// resolveToken fills in metadata for a selection known only by address.
// Tokens picked from a list already carry their symbol and decimals and
// pass through untouched.
func (w *Widget) resolveToken(t types.Token) types.Token {
	if t.Address == "" || t.Symbol != "" {
		return t
	}
	if types.IsNative(t.Address) {
		t.Name = "Ether"
		t.Symbol = "ETH"
		t.Decimals = 18
		return t
	}
	if w.deps.Metadata == nil {
		return t
	}
	meta, err := w.deps.Metadata.GetTokenData(context.Background(), t.ChainID, t.Address)
	if err != nil {
		w.logger.Warn("Token metadata lookup failed",
			zap.Int64("chainId", t.ChainID), zap.String("address", t.Address), zap.Error(err))
		return t
	}
	resolved := *meta
	resolved.ChainID = t.ChainID
	if t.Project != "" {
		resolved.Project = t.Project
	}
	return resolved
}

// changed reports the new selection and requotes.
func (w *Widget) changed() {
	w.mu.Lock()
	in, out := w.tokenIn, w.tokenOut
	w.mu.Unlock()

	in = w.resolveToken(in)
	out = w.resolveToken(out)

	w.mu.Lock()
	// Apply the resolution only if the selection has not moved meanwhile.
	if types.SameAddress(w.tokenIn.Address, in.Address) {
		w.tokenIn = in
	}
	if types.SameAddress(w.tokenOut.Address, out.Address) {
		w.tokenOut = out
	}
	state := ChangeState{
		TokenIn:    w.tokenIn.Address,
		TokenOut:   w.tokenOut.Address,
		ChainID:    w.chainID,
		OutChainID: w.outChainID,
	}
	onChange := w.cfg.OnChange
	req, ok := w.buildRequestLocked()
	w.mu.Unlock()

	if onChange != nil {
		onChange(state)
	}
	if ok {
		w.engine.Submit(req)
	} else {
		w.engine.Submit(swap.QuoteRequest{})
	}
}

// buildRequestLocked assembles the quote request for the current
// selection. Returns false while the selection is incomplete.
func (w *Widget) buildRequestLocked() (swap.QuoteRequest, bool) {
	if w.tokenIn.Address == "" || w.tokenOut.Address == "" || w.amountIn == "" {
		return swap.QuoteRequest{}, false
	}
	// A selection whose metadata never resolved has no trustworthy
	// decimals; quoting it would scale the amount wrongly.
	if w.tokenIn.Symbol == "" || w.tokenOut.Symbol == "" {
		return swap.QuoteRequest{}, false
	}
	amount, err := types.DenormalizeAmount(w.amountIn, w.tokenIn.Decimals)
	if err != nil || amount.Sign() <= 0 {
		return swap.QuoteRequest{}, false
	}
	return swap.QuoteRequest{
		SourceChainID:      w.chainID,
		DestinationChainID: w.outChainID,
		TokenIn:            w.tokenIn,
		TokenOut:           w.tokenOut,
		AmountIn:           amount,
		SlippageBps:        w.slippageBps,
		FromAddress:        w.deps.Wallet.Account(),
		ReferralCode:       w.cfg.ReferralCode,
	}, true
}

// Quote returns the latest quote state.
func (w *Widget) Quote() swap.Update {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.latest
}

// RouteSteps returns the quoted route for display, or nil when route
// indication is disabled or no route is known.
func (w *Widget) RouteSteps() []types.RouteStep {
	if !w.cfg.IndicateRoute {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.latest.Quote == nil {
		return nil
	}
	return w.latest.Quote.Route
}

// TokenOptions returns the ranked candidate list for one side of the
// picker.
func (w *Widget) TokenOptions(ctx context.Context, out bool, search string) ([]tokenlist.Candidate, error) {
	w.mu.Lock()
	chainID := w.chainID
	selected := w.tokenIn.Address
	filter := w.cfg.TokenInFilter
	if out {
		chainID = w.outChainID
		selected = w.tokenOut.Address
		filter = w.cfg.TokenOutFilter
	}
	w.mu.Unlock()

	var balances []types.Balance
	if w.deps.Balances != nil {
		var err error
		balances, err = w.deps.Balances.GetBalances(ctx, chainID, w.deps.Wallet.Account())
		if err != nil {
			w.logger.Warn("Balance listing failed", zap.Int64("chainId", chainID), zap.Error(err))
		}
	}
	return w.deps.Merger.Candidates(ctx, chainID, selected, search, balances, filter)
}

// Assess evaluates whether the current quote may be submitted.
func (w *Widget) Assess(ctx context.Context) swap.Assessment {
	w.mu.Lock()
	quote := w.latest.Quote
	acknowledged := w.acknowledged
	w.mu.Unlock()

	in := swap.AssessInput{
		Quote:           quote,
		WalletChainID:   w.deps.Wallet.ChainID(),
		ApprovalPending: w.deps.Approvals != nil && w.deps.Approvals.Pending(),
		Acknowledged:    acknowledged,
	}
	if quote != nil {
		balance, err := w.deps.Wallet.BalanceOf(ctx, quote.Request.SourceChainID, quote.Request.TokenIn.Address)
		if err != nil {
			w.logger.Warn("Balance read failed", zap.Error(err))
		} else {
			in.Balance = balance
		}
	}
	return w.deps.Orchestrator.Assess(in)
}

// NeedsApproval reports whether the current quote requires a token
// approval before it can execute.
func (w *Widget) NeedsApproval(ctx context.Context) (bool, error) {
	w.mu.Lock()
	quote := w.latest.Quote
	w.mu.Unlock()
	if quote == nil || w.deps.Approvals == nil {
		return false, nil
	}
	spender := w.deps.Spender(quote.Request.SourceChainID)
	return w.deps.Approvals.NeedsApproval(ctx,
		quote.Request.SourceChainID, quote.Request.TokenIn.Address, spender, quote.Request.AmountIn)
}

// Approve grants the router an exact-amount allowance for the current
// quote's input token.
func (w *Widget) Approve(ctx context.Context) (string, error) {
	w.mu.Lock()
	quote := w.latest.Quote
	w.mu.Unlock()
	if quote == nil {
		return "", fmt.Errorf("no quote to approve for")
	}
	return w.deps.Approvals.Approve(ctx,
		quote.Request.SourceChainID, quote.Request.TokenIn.Address, quote.Request.AmountIn)
}

// Submit runs the submit flow for the current quote: the first activation
// of a high-impact quote only records acknowledgment; afterwards the
// transaction is sent and tracked to completion. On success the typed
// amount is cleared and a fresh quote is requested.
func (w *Widget) Submit(ctx context.Context) (track.Result, error) {
	assessment := w.Assess(ctx)
	if !assessment.CanSubmit {
		return track.Result{}, fmt.Errorf("cannot submit: %s", assessment.Message)
	}
	if assessment.RequiresAcknowledgment {
		w.mu.Lock()
		w.acknowledged = true
		w.mu.Unlock()
		return track.Result{State: track.StateIdle}, nil
	}

	w.mu.Lock()
	quote := w.latest.Quote
	w.mu.Unlock()
	if quote == nil {
		return track.Result{}, fmt.Errorf("no quote to submit")
	}

	result := w.deps.Tracker.Run(ctx, track.Submission{
		ChainID:            quote.Request.SourceChainID,
		DestinationChainID: quote.Request.DestinationChainID,
		Tx:                 quote.Tx,
		Bridge:             quote.Bridge,
		OnSuccess: func(r track.Result) {
			w.mu.Lock()
			w.amountIn = ""
			w.acknowledged = false
			w.mu.Unlock()
			if w.cfg.OnSuccess != nil {
				w.cfg.OnSuccess(r)
			}
			w.changed()
		},
	})
	if result.Err != nil {
		return result, result.Err
	}
	return result, nil
}
