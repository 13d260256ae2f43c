package track

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"enso-swap/pkg/client"
	"enso-swap/pkg/notify"
	"enso-swap/pkg/types"
)

const testHash = "0xabcabcabcabcabcabcabcabcabcabcabcabcabcabcabcabcabcabcabcabcabca"

type fakeSubmitter struct {
	sendErr       error
	receiptStatus uint64
	receiptErr    error
}

func (f *fakeSubmitter) SendTransaction(ctx context.Context, chainID int64, tx types.Transaction) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return testHash, nil
}

func (f *fakeSubmitter) WaitForReceipt(ctx context.Context, chainID int64, hash string) (*gethtypes.Receipt, error) {
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	return &gethtypes.Receipt{Status: f.receiptStatus}, nil
}

// fakeBridge serves a scripted sequence of poll answers, repeating the
// last one.
type fakeBridge struct {
	mu      sync.Mutex
	answers []pollAnswer
	polls   int
}

type pollAnswer struct {
	status string
	err    error
	empty  bool
}

func (f *fakeBridge) GetMessageByTx(ctx context.Context, txHash string) (*client.BridgeMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.polls
	if i >= len(f.answers) {
		i = len(f.answers) - 1
	}
	f.polls++

	a := f.answers[i]
	if a.err != nil {
		return nil, a.err
	}
	if a.empty {
		return nil, nil
	}
	msg := &client.BridgeMessage{}
	msg.Status.Name = a.status
	msg.Destination.TxHash = "0xdest"
	return msg, nil
}

func newTestTracker(w Submitter, bridge BridgeStatusAPI) (*Tracker, *notify.Notifier) {
	notifier := notify.New()
	return New(w, bridge, notifier, 5*time.Millisecond, zap.NewNop()), notifier
}

func swapSubmission() Submission {
	return Submission{
		ChainID: types.ChainMainnet,
		Tx:      types.Transaction{To: "0x1111111111111111111111111111111111111111", Data: "0x", Value: "0"},
	}
}

func TestRunSwapSuccess(t *testing.T) {
	tracker, notifier := newTestTracker(&fakeSubmitter{receiptStatus: 1}, nil)

	var successCount int
	sub := swapSubmission()
	sub.OnSuccess = func(Result) { successCount++ }

	result := tracker.Run(context.Background(), sub)
	assert.Equal(t, StateSuccess, result.State)
	assert.Equal(t, testHash, result.TxHash)
	assert.NoError(t, result.Err)
	assert.Equal(t, 1, successCount)

	current := notifier.Current()
	require.NotNil(t, current)
	assert.Equal(t, notify.VariantSuccess, current.Variant)
}

func TestRunWalletRejection(t *testing.T) {
	tracker, notifier := newTestTracker(&fakeSubmitter{sendErr: fmt.Errorf("user rejected")}, nil)

	var successCount int
	sub := swapSubmission()
	sub.OnSuccess = func(Result) { successCount++ }

	result := tracker.Run(context.Background(), sub)
	assert.Equal(t, StateFailed, result.State)
	assert.Error(t, result.Err)
	assert.Equal(t, 0, successCount)
	assert.Equal(t, notify.VariantError, notifier.Current().Variant)
}

func TestRunRevertedTransaction(t *testing.T) {
	tracker, notifier := newTestTracker(&fakeSubmitter{receiptStatus: 0}, nil)

	result := tracker.Run(context.Background(), swapSubmission())
	assert.Equal(t, StateFailed, result.State)
	assert.Error(t, result.Err)
	assert.Equal(t, "Transaction reverted", notifier.Current().Message)
}

func TestRunBridgeDelivered(t *testing.T) {
	bridge := &fakeBridge{answers: []pollAnswer{
		{empty: true},
		{status: client.LayerZeroInflight},
		{status: client.LayerZeroConfirming},
		{status: client.LayerZeroDelivered},
	}}
	tracker, notifier := newTestTracker(&fakeSubmitter{receiptStatus: 1}, bridge)

	var states []State
	var mu sync.Mutex
	tracker.OnState(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	sub := swapSubmission()
	sub.DestinationChainID = types.ChainBase
	sub.Bridge = true

	result := tracker.Run(context.Background(), sub)
	assert.Equal(t, StateSuccess, result.State)
	assert.Equal(t, "0xdest", result.DestinationTxHash)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{
		StatePendingWallet,
		StatePendingChain,
		StateSourceConfirmed,
		StateInflight,
		StateConfirming,
		StateDelivered,
		StateSuccess,
	}, states)

	assert.Equal(t, notify.VariantSuccess, notifier.Current().Variant)
}

func TestRunBridgePollErrorsTreatedAsPending(t *testing.T) {
	bridge := &fakeBridge{answers: []pollAnswer{
		{err: fmt.Errorf("scan service unavailable")},
		{err: fmt.Errorf("scan service unavailable")},
		{status: client.LayerZeroSucceeded},
	}}
	tracker, _ := newTestTracker(&fakeSubmitter{receiptStatus: 1}, bridge)

	sub := swapSubmission()
	sub.DestinationChainID = types.ChainBase
	sub.Bridge = true

	result := tracker.Run(context.Background(), sub)
	assert.Equal(t, StateSuccess, result.State)
	assert.GreaterOrEqual(t, bridge.polls, 3)
}

func TestRunBridgeFailed(t *testing.T) {
	bridge := &fakeBridge{answers: []pollAnswer{
		{status: client.LayerZeroFailed},
	}}
	tracker, notifier := newTestTracker(&fakeSubmitter{receiptStatus: 1}, bridge)

	sub := swapSubmission()
	sub.DestinationChainID = types.ChainBase
	sub.Bridge = true

	result := tracker.Run(context.Background(), sub)
	assert.Equal(t, StateFailed, result.State)
	assert.Error(t, result.Err)
	assert.Equal(t, "Bridge failed", notifier.Current().Message)
}

func TestRunBridgeCancelledContext(t *testing.T) {
	bridge := &fakeBridge{answers: []pollAnswer{{empty: true}}}
	tracker, _ := newTestTracker(&fakeSubmitter{receiptStatus: 1}, bridge)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	sub := swapSubmission()
	sub.DestinationChainID = types.ChainBase
	sub.Bridge = true

	result := tracker.Run(ctx, sub)
	assert.Equal(t, StateFailed, result.State)
	assert.ErrorIs(t, result.Err, context.DeadlineExceeded)
}

func TestStateTerminal(t *testing.T) {
	assert.True(t, StateSuccess.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateInflight.Terminal())
	assert.False(t, StateIdle.Terminal())
}
