// Package track drives a submitted swap through its lifecycle: wallet
// confirmation, on-chain inclusion and, for cross-chain swaps, bridge
// delivery on the destination chain.
package track

import (
	"context"
	"fmt"
	"sync"
	"time"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"enso-swap/pkg/client"
	"enso-swap/pkg/notify"
	"enso-swap/pkg/types"
)

// State is a swap's position in its lifecycle. The bridge states only
// occur for cross-chain swaps, after the source transaction confirms.
type State string

const (
	StateIdle            State = "idle"
	StatePendingWallet   State = "pending_wallet"
	StatePendingChain    State = "pending_chain"
	StateSourceConfirmed State = "source_confirmed"
	StateInflight        State = "inflight"
	StateConfirming      State = "confirming"
	StateDelivered       State = "delivered"
	StateSuccess         State = "success"
	StateFailed          State = "failed"
)

// Terminal reports whether no further transitions can occur.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}

// Submitter is the wallet slice the tracker needs: send and wait.
type Submitter interface {
	SendTransaction(ctx context.Context, chainID int64, tx types.Transaction) (string, error)
	WaitForReceipt(ctx context.Context, chainID int64, hash string) (*gethtypes.Receipt, error)
}

// BridgeStatusAPI resolves the delivery state of a cross-chain message by
// its source transaction hash.
type BridgeStatusAPI interface {
	GetMessageByTx(ctx context.Context, txHash string) (*client.BridgeMessage, error)
}

// Submission is one transaction to shepherd to completion.
type Submission struct {
	ChainID            int64
	DestinationChainID int64
	Tx                 types.Transaction
	Bridge             bool
	Description        string

	// OnSuccess fires exactly once when the swap reaches StateSuccess,
	// even if state is observed multiple times afterwards.
	OnSuccess func(Result)
}

// Result is the final outcome of a tracked submission.
type Result struct {
	State             State
	TxHash            string
	DestinationTxHash string
	Err               error
}

// Tracker runs submissions through their lifecycle, keeping one
// notification updated in place as the state advances.
type Tracker struct {
	wallet     Submitter
	bridge     BridgeStatusAPI
	notifier   *notify.Notifier
	bridgePoll time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	state   State
	onState func(State)
}

// New creates a tracker. bridge may be nil when cross-chain swaps are not
// used; bridgePoll <= 0 selects the 2s default.
func New(wallet Submitter, bridge BridgeStatusAPI, notifier *notify.Notifier, bridgePoll time.Duration, logger *zap.Logger) *Tracker {
	if bridgePoll <= 0 {
		bridgePoll = 2 * time.Second
	}
	return &Tracker{
		wallet:     wallet,
		bridge:     bridge,
		notifier:   notifier,
		bridgePoll: bridgePoll,
		logger:     logger.Named("Tracker"),
		state:      StateIdle,
	}
}

// OnState registers a callback invoked on every state transition.
func (t *Tracker) OnState(fn func(State)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onState = fn
}

// State returns the current lifecycle state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) setState(s State) {
	t.mu.Lock()
	t.state = s
	fn := t.onState
	t.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// Run executes a submission to completion and returns its result. It
// blocks; callers that need a live form run it in a goroutine and watch
// OnState.
func (t *Tracker) Run(ctx context.Context, sub Submission) Result {
	var successOnce sync.Once
	finish := func(r Result) Result {
		t.setState(r.State)
		if r.State == StateSuccess && sub.OnSuccess != nil {
			successOnce.Do(func() { sub.OnSuccess(r) })
		}
		return r
	}

	t.setState(StatePendingWallet)
	noteID := t.notifier.Push(notify.VariantLoading, "Confirm in wallet", "")

	hash, err := t.wallet.SendTransaction(ctx, sub.ChainID, sub.Tx)
	if err != nil {
		t.notifier.Update(noteID, notify.VariantError, "Transaction rejected", "")
		return finish(Result{State: StateFailed, Err: err})
	}

	link := types.ExplorerTxURL(sub.ChainID, hash)
	t.setState(StatePendingChain)
	if sub.Bridge {
		t.notifier.Update(noteID, notify.VariantLoading, "Pending (1/4)", link)
	} else {
		t.notifier.Update(noteID, notify.VariantLoading, "Transaction pending", link)
	}

	receipt, err := t.wallet.WaitForReceipt(ctx, sub.ChainID, hash)
	if err != nil {
		t.notifier.Update(noteID, notify.VariantError, "Transaction not confirmed", link)
		return finish(Result{State: StateFailed, TxHash: hash, Err: err})
	}
	if receipt.Status == 0 {
		t.notifier.Update(noteID, notify.VariantError, "Transaction reverted", link)
		return finish(Result{State: StateFailed, TxHash: hash, Err: fmt.Errorf("transaction %s reverted", hash)})
	}

	if !sub.Bridge {
		message := sub.Description
		if message == "" {
			message = "Swap complete"
		}
		t.notifier.Update(noteID, notify.VariantSuccess, message, link)
		return finish(Result{State: StateSuccess, TxHash: hash})
	}

	t.setState(StateSourceConfirmed)
	t.notifier.Update(noteID, notify.VariantLoading, "Pending (2/4)", link)

	return finish(t.watchBridge(ctx, sub, hash, noteID, link))
}

// watchBridge polls the bridge-status service until the message is
// delivered or fails. A poll error means the state is simply unknown and
// the message is still treated as pending.
func (t *Tracker) watchBridge(ctx context.Context, sub Submission, hash, noteID, srcLink string) Result {
	if t.bridge == nil {
		return Result{State: StateFailed, TxHash: hash,
			Err: fmt.Errorf("no bridge status client configured")}
	}

	ticker := time.NewTicker(t.bridgePoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Result{State: StateFailed, TxHash: hash, Err: ctx.Err()}
		case <-ticker.C:
		}

		msg, err := t.bridge.GetMessageByTx(ctx, hash)
		if err != nil {
			t.logger.Debug("Bridge status poll failed", zap.String("hash", hash), zap.Error(err))
			continue
		}
		if msg == nil {
			continue
		}

		switch msg.Status.Name {
		case client.LayerZeroInflight:
			if t.State() != StateInflight {
				t.setState(StateInflight)
				t.notifier.Update(noteID, notify.VariantLoading, "Pending (3/4)", srcLink)
			}
		case client.LayerZeroConfirming:
			if t.State() != StateConfirming {
				t.setState(StateConfirming)
				t.notifier.Update(noteID, notify.VariantLoading, "Pending (4/4)", srcLink)
			}
		case client.LayerZeroDelivered, client.LayerZeroSucceeded:
			t.setState(StateDelivered)
			destLink := srcLink
			if msg.Destination.TxHash != "" {
				destLink = types.ExplorerTxURL(sub.DestinationChainID, msg.Destination.TxHash)
			}
			message := sub.Description
			if message == "" {
				message = "Bridge complete"
			}
			t.notifier.Update(noteID, notify.VariantSuccess, message, destLink)
			return Result{State: StateSuccess, TxHash: hash, DestinationTxHash: msg.Destination.TxHash}
		case client.LayerZeroFailed:
			t.notifier.Update(noteID, notify.VariantError, "Bridge failed", srcLink)
			return Result{State: StateFailed, TxHash: hash,
				Err: fmt.Errorf("bridge message for %s failed", hash)}
		}
	}
}
