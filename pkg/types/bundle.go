package types

import (
	"fmt"
	"math/big"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Protocols and actions understood by the bundle endpoint.
const (
	ProtocolEnso     = "enso"
	ProtocolStargate = "stargate"

	ActionRoute   = "route"
	ActionBridge  = "bridge"
	ActionBalance = "balance"
)

// AmountArg is either a literal base-unit amount or a reference to the
// output of an earlier bundle step. References form the dependency chain
// between steps and must always point backward.
type AmountArg struct {
	Literal *big.Int
	// OutputOfCallAt is the index of the step whose output feeds this
	// argument. Negative when Literal is set.
	OutputOfCallAt int
}

// LiteralAmount wraps a concrete base-unit amount.
func LiteralAmount(v *big.Int) AmountArg {
	return AmountArg{Literal: v, OutputOfCallAt: -1}
}

// OutputOfCall references the output slot of the bundle step at index.
func OutputOfCall(index int) AmountArg {
	return AmountArg{OutputOfCallAt: index}
}

// IsReference reports whether the argument references another step.
func (a AmountArg) IsReference() bool {
	return a.Literal == nil
}

// MarshalJSON encodes a literal as an integer string and a reference as
// the wire form {"useOutputOfCallAt": N}.
func (a AmountArg) MarshalJSON() ([]byte, error) {
	if a.Literal != nil {
		return json.Marshal(a.Literal.String())
	}
	return json.Marshal(map[string]int{"useOutputOfCallAt": a.OutputOfCallAt})
}

// UnmarshalJSON accepts both wire forms.
func (a *AmountArg) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, perr := ParseBaseAmount(s)
		if perr != nil {
			return perr
		}
		a.Literal = v
		a.OutputOfCallAt = -1
		return nil
	}
	var ref struct {
		UseOutputOfCallAt *int `json:"useOutputOfCallAt"`
	}
	if err := json.Unmarshal(data, &ref); err != nil {
		return fmt.Errorf("invalid amount argument: %w", err)
	}
	if ref.UseOutputOfCallAt == nil {
		return fmt.Errorf("amount argument is neither a literal nor a reference")
	}
	a.Literal = nil
	a.OutputOfCallAt = *ref.UseOutputOfCallAt
	return nil
}

// BundleArgs is implemented by the per-(protocol, action) argument shapes.
type BundleArgs interface {
	validate(step int) error
}

// RouteArgs are the arguments of a same-chain conversion step.
type RouteArgs struct {
	TokenIn     string    `json:"tokenIn"`
	TokenOut    string    `json:"tokenOut"`
	AmountIn    AmountArg `json:"amountIn"`
	SlippageBps int64     `json:"slippage,omitempty"`
	Receiver    string    `json:"receiver,omitempty"`
}

func (a RouteArgs) validate(step int) error {
	if !IsValidAddress(a.TokenIn) {
		return fmt.Errorf("step %d: invalid tokenIn %q", step, a.TokenIn)
	}
	if !IsValidAddress(a.TokenOut) {
		return fmt.Errorf("step %d: invalid tokenOut %q", step, a.TokenOut)
	}
	if SameAddress(a.TokenIn, a.TokenOut) {
		return fmt.Errorf("step %d: tokenIn equals tokenOut", step)
	}
	if err := validateAmountArg(a.AmountIn, step); err != nil {
		return err
	}
	return nil
}

// BalanceArgs read the executing account's current balance of a token,
// exposing it as the step's output slot. Used as the first callback step
// on the destination chain so later steps can consume whatever amount the
// bridge actually delivered.
type BalanceArgs struct {
	Token string `json:"token"`
}

func (a BalanceArgs) validate(step int) error {
	if !IsValidAddress(a.Token) {
		return fmt.Errorf("step %d: invalid balance token %q", step, a.Token)
	}
	return nil
}

// BridgeArgs are the arguments of the cross-chain leg. Callback steps run
// on the destination chain once funds arrive.
type BridgeArgs struct {
	SourcePool         string         `json:"primaryAddress"`
	DestinationChainID int64          `json:"destinationChainId"`
	TokenIn            string         `json:"tokenIn"`
	AmountIn           AmountArg      `json:"amountIn"`
	Receiver           string         `json:"receiver"`
	Callback           []BundleAction `json:"callback,omitempty"`
}

func (a BridgeArgs) validate(step int) error {
	if !IsValidAddress(a.SourcePool) {
		return fmt.Errorf("step %d: invalid bridge pool address %q", step, a.SourcePool)
	}
	if a.DestinationChainID <= 0 {
		return fmt.Errorf("step %d: invalid destination chain id %d", step, a.DestinationChainID)
	}
	if !IsValidAddress(a.TokenIn) {
		return fmt.Errorf("step %d: invalid tokenIn %q", step, a.TokenIn)
	}
	if !IsValidAddress(a.Receiver) {
		return fmt.Errorf("step %d: invalid receiver %q", step, a.Receiver)
	}
	if err := validateAmountArg(a.AmountIn, step); err != nil {
		return err
	}
	// Callback steps form their own sequence on the destination chain.
	for i, cb := range a.Callback {
		if err := cb.validate(i); err != nil {
			return fmt.Errorf("step %d callback: %w", step, err)
		}
		if err := checkBackwardReference(cb, i); err != nil {
			return fmt.Errorf("step %d callback: %w", step, err)
		}
	}
	return nil
}

func validateAmountArg(a AmountArg, step int) error {
	if a.IsReference() {
		if a.OutputOfCallAt < 0 {
			return fmt.Errorf("step %d: negative output reference", step)
		}
		return nil
	}
	if a.Literal.Sign() <= 0 {
		return fmt.Errorf("step %d: amount must be greater than 0", step)
	}
	return nil
}

// BundleAction is one step of a bridge bundle: a (protocol, action) tag
// plus that pair's strongly-typed arguments.
type BundleAction struct {
	Protocol string     `json:"protocol"`
	Action   string     `json:"action"`
	Args     BundleArgs `json:"args"`
}

func (b BundleAction) validate(step int) error {
	switch {
	case b.Protocol == ProtocolEnso && b.Action == ActionRoute:
		if _, ok := b.Args.(RouteArgs); !ok {
			return fmt.Errorf("step %d: route action requires RouteArgs", step)
		}
	case b.Protocol == ProtocolEnso && b.Action == ActionBalance:
		if _, ok := b.Args.(BalanceArgs); !ok {
			return fmt.Errorf("step %d: balance action requires BalanceArgs", step)
		}
	case b.Protocol == ProtocolStargate && b.Action == ActionBridge:
		if _, ok := b.Args.(BridgeArgs); !ok {
			return fmt.Errorf("step %d: bridge action requires BridgeArgs", step)
		}
	default:
		return fmt.Errorf("step %d: unsupported action %s.%s", step, b.Protocol, b.Action)
	}
	return b.Args.validate(step)
}

// UnmarshalJSON decodes the args shape selected by the (protocol, action)
// tag pair.
func (b *BundleAction) UnmarshalJSON(data []byte) error {
	var head struct {
		Protocol string              `json:"protocol"`
		Action   string              `json:"action"`
		Args     jsoniter.RawMessage `json:"args"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	b.Protocol = head.Protocol
	b.Action = head.Action
	switch {
	case head.Protocol == ProtocolEnso && head.Action == ActionRoute:
		var args RouteArgs
		if err := json.Unmarshal(head.Args, &args); err != nil {
			return err
		}
		b.Args = args
	case head.Protocol == ProtocolEnso && head.Action == ActionBalance:
		var args BalanceArgs
		if err := json.Unmarshal(head.Args, &args); err != nil {
			return err
		}
		b.Args = args
	case head.Protocol == ProtocolStargate && head.Action == ActionBridge:
		var args BridgeArgs
		if err := json.Unmarshal(head.Args, &args); err != nil {
			return err
		}
		b.Args = args
	default:
		return fmt.Errorf("unsupported action %s.%s", head.Protocol, head.Action)
	}
	return nil
}

func (b BundleAction) amountArg() (AmountArg, bool) {
	switch args := b.Args.(type) {
	case RouteArgs:
		return args.AmountIn, true
	case BridgeArgs:
		return args.AmountIn, true
	}
	return AmountArg{}, false
}

func checkBackwardReference(b BundleAction, step int) error {
	arg, ok := b.amountArg()
	if !ok || !arg.IsReference() {
		return nil
	}
	if arg.OutputOfCallAt >= step {
		return fmt.Errorf("step %d: output reference %d does not point to an earlier step",
			step, arg.OutputOfCallAt)
	}
	return nil
}

// Bundle is an ordered sequence of actions executed atomically within one
// transaction. Steps run strictly in order, so an output reference is only
// meaningful when it points to an earlier step.
type Bundle struct {
	ChainID     int64          `json:"chainId"`
	FromAddress string         `json:"fromAddress"`
	Actions     []BundleAction `json:"actions"`
}

// Validate checks every step's tag, arguments and dependency references.
func (b *Bundle) Validate() error {
	if len(b.Actions) == 0 {
		return fmt.Errorf("bundle has no steps")
	}
	if !IsValidAddress(b.FromAddress) {
		return fmt.Errorf("invalid fromAddress: %s", b.FromAddress)
	}
	for i, action := range b.Actions {
		if err := action.validate(i); err != nil {
			return err
		}
		if err := checkBackwardReference(action, i); err != nil {
			return err
		}
	}
	return nil
}

// BundleData is the bundle endpoint's response. AmountsOut maps output
// token address to base-unit amount; the caller matches the desired
// tokenOut case-insensitively.
type BundleData struct {
	AmountsOut map[string]string `json:"amountsOut"`
	Gas        string            `json:"gas,omitempty"`
	Tx         Transaction       `json:"tx"`
}

// AmountOutFor extracts the output amount for the given token address.
// Returns zero when the token is absent from the output map.
func (b *BundleData) AmountOutFor(token string) (*big.Int, error) {
	for addr, amount := range b.AmountsOut {
		if SameAddress(addr, token) {
			return ParseBaseAmount(amount)
		}
	}
	return big.NewInt(0), nil
}
