package wallet

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"enso-swap/pkg/types"
)

// allowanceTTL bounds how stale a cached allowance may be. Reads past the
// TTL go back to the chain, which gives the periodic re-read behavior.
const allowanceTTL = 8 * time.Second

// ApprovalAPI is the slice of the quoting service used for approvals.
type ApprovalAPI interface {
	GetApprovalData(ctx context.Context, chainID int64, fromAddress, token, amount string) (*types.ApprovalData, error)
}

// ApprovalManager decides whether an ERC-20 allowance increase is required
// before a swap and performs the approval transaction. Approvals are for
// exactly the requested amount, never unlimited.
type ApprovalManager struct {
	wallet Provider
	api    ApprovalAPI
	logger *zap.Logger

	allowances *gocache.Cache

	mu      sync.Mutex
	pending bool
}

// NewApprovalManager creates an approval manager bound to a wallet.
func NewApprovalManager(w Provider, api ApprovalAPI, logger *zap.Logger) *ApprovalManager {
	return &ApprovalManager{
		wallet:     w,
		api:        api,
		logger:     logger.Named("ApprovalManager"),
		allowances: gocache.New(allowanceTTL, time.Minute),
	}
}

func allowanceKey(chainID int64, token, spender string) string {
	return fmt.Sprintf("%d:%s:%s", chainID, types.NormalizeAddress(token), types.NormalizeAddress(spender))
}

// Allowance returns the spender's current allowance, served from cache
// within the refresh window.
func (m *ApprovalManager) Allowance(ctx context.Context, chainID int64, token, spender string) (*big.Int, error) {
	key := allowanceKey(chainID, token, spender)
	if cached, found := m.allowances.Get(key); found {
		return cached.(*big.Int), nil
	}
	allowance, err := m.wallet.Allowance(ctx, chainID, token, spender)
	if err != nil {
		return nil, err
	}
	m.allowances.Set(key, allowance, allowanceTTL)
	return allowance, nil
}

// NeedsApproval reports whether the spender's allowance covers amountIn.
// The native asset never needs approval.
func (m *ApprovalManager) NeedsApproval(ctx context.Context, chainID int64, token, spender string, amountIn *big.Int) (bool, error) {
	if types.IsNative(token) {
		return false, nil
	}
	if spender == "" || amountIn == nil || amountIn.Sign() <= 0 {
		return false, nil
	}
	allowance, err := m.Allowance(ctx, chainID, token, spender)
	if err != nil {
		return false, err
	}
	return allowance.Cmp(amountIn) < 0, nil
}

// Pending reports whether an approval transaction is currently in flight.
// Swap submission stays disabled while this is true.
func (m *ApprovalManager) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// Invalidate drops the cached allowance so the next read hits the chain.
func (m *ApprovalManager) Invalidate(chainID int64, token, spender string) {
	m.allowances.Delete(allowanceKey(chainID, token, spender))
}

// Approve submits an approval for exactly amountIn to the spender returned
// by the approval-data lookup and waits for its confirmation.
func (m *ApprovalManager) Approve(ctx context.Context, chainID int64, token string, amountIn *big.Int) (string, error) {
	if types.IsNative(token) {
		return "", fmt.Errorf("native asset does not require approval")
	}

	m.mu.Lock()
	if m.pending {
		m.mu.Unlock()
		return "", fmt.Errorf("an approval transaction is already pending")
	}
	m.pending = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.pending = false
		m.mu.Unlock()
	}()

	data, err := m.api.GetApprovalData(ctx, chainID, m.wallet.Account(), token, amountIn.String())
	if err != nil {
		return "", fmt.Errorf("failed to look up approval data: %w", err)
	}

	hash, err := m.wallet.SendTransaction(ctx, chainID, data.Tx)
	if err != nil {
		return "", fmt.Errorf("failed to send approval: %w", err)
	}
	m.logger.Info("Approval submitted",
		zap.Int64("chainId", chainID), zap.String("token", token), zap.String("hash", hash))

	receipt, err := m.wallet.WaitForReceipt(ctx, chainID, hash)
	if err != nil {
		return hash, fmt.Errorf("approval not confirmed: %w", err)
	}
	if receipt.Status == 0 {
		return hash, fmt.Errorf("approval transaction %s reverted", hash)
	}

	// The chain state changed; the next allowance read must not be stale.
	m.Invalidate(chainID, token, data.Spender)
	return hash, nil
}
