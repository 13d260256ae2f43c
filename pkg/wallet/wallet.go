package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"enso-swap/pkg/types"
)

// Provider is the wallet surface the swap core depends on: account
// identity, read-only contract calls, transaction submission and network
// switching. *Wallet implements it against real RPC endpoints; tests
// substitute fakes.
type Provider interface {
	Account() string
	ChainID() int64
	SwitchChain(chainID int64) error
	BalanceOf(ctx context.Context, chainID int64, token string) (*big.Int, error)
	Allowance(ctx context.Context, chainID int64, token, spender string) (*big.Int, error)
	SendTransaction(ctx context.Context, chainID int64, tx types.Transaction) (string, error)
	WaitForReceipt(ctx context.Context, chainID int64, hash string) (*gethtypes.Receipt, error)
}

const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"_owner","type":"address"},{"name":"_spender","type":"address"}],"name":"allowance","outputs":[{"name":"remaining","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"_spender","type":"address"},{"name":"_value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"}
]`

var (
	parsedERC20ABI  abi.ABI
	parsedERC20Once sync.Once
)

func erc20() abi.ABI {
	parsedERC20Once.Do(func() {
		var err error
		parsedERC20ABI, err = abi.JSON(strings.NewReader(erc20ABI))
		if err != nil {
			panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
		}
	})
	return parsedERC20ABI
}

// ChainConfig describes one configured network.
type ChainConfig struct {
	RPCURL      string
	RateLimit   rate.Limit
	BurstLimit  int
	ReceiptPoll time.Duration
	WaitTimeout time.Duration
}

// Wallet signs and submits transactions for a single account across the
// configured chains. RPC clients are created lazily and cached per chain.
type Wallet struct {
	chains     map[int64]ChainConfig
	privateKey *ecdsa.PrivateKey
	account    common.Address

	mu          sync.Mutex
	clients     map[int64]*ethclient.Client
	limiters    map[int64]*rate.Limiter
	activeChain int64

	logger *zap.Logger
}

// New creates a wallet from a hex-encoded private key and per-chain RPC
// configuration. initialChain becomes the active network.
func New(privateKeyHex string, chains map[int64]ChainConfig, initialChain int64, logger *zap.Logger) (*Wallet, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	if _, ok := chains[initialChain]; !ok {
		return nil, fmt.Errorf("chain %d is not configured", initialChain)
	}

	return &Wallet{
		chains:      chains,
		privateKey:  privateKey,
		account:     crypto.PubkeyToAddress(privateKey.PublicKey),
		clients:     make(map[int64]*ethclient.Client),
		limiters:    make(map[int64]*rate.Limiter),
		activeChain: initialChain,
		logger:      logger.Named("Wallet"),
	}, nil
}

// Account returns the wallet's address, lower-cased.
func (w *Wallet) Account() string {
	return types.NormalizeAddress(w.account.Hex())
}

// ChainID returns the active network.
func (w *Wallet) ChainID() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.activeChain
}

// SwitchChain changes the active network. Fails when the chain has no RPC
// configuration, mirroring a wallet that doesn't know the network.
func (w *Wallet) SwitchChain(chainID int64) error {
	if _, ok := w.chains[chainID]; !ok {
		return fmt.Errorf("chain %d is not configured", chainID)
	}
	w.mu.Lock()
	w.activeChain = chainID
	w.mu.Unlock()
	w.logger.Info("Switched active chain", zap.Int64("chainId", chainID))
	return nil
}

// client returns the cached RPC client for a chain, dialing on first use.
func (w *Wallet) client(ctx context.Context, chainID int64) (*ethclient.Client, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if c, ok := w.clients[chainID]; ok {
		return c, nil
	}
	cfg, ok := w.chains[chainID]
	if !ok {
		return nil, fmt.Errorf("chain %d is not configured", chainID)
	}
	c, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC for chain %d: %w", chainID, err)
	}
	w.clients[chainID] = c
	return c, nil
}

func (w *Wallet) limiter(chainID int64) *rate.Limiter {
	w.mu.Lock()
	defer w.mu.Unlock()

	if l, ok := w.limiters[chainID]; ok {
		return l
	}
	cfg := w.chains[chainID]
	limit := cfg.RateLimit
	if limit == 0 {
		limit = rate.Limit(10)
	}
	burst := cfg.BurstLimit
	if burst == 0 {
		burst = 5
	}
	l := rate.NewLimiter(limit, burst)
	w.limiters[chainID] = l
	return l
}

func (w *Wallet) wait(ctx context.Context, chainID int64) error {
	return w.limiter(chainID).Wait(ctx)
}

// BalanceOf reads the account's balance of a token, taking the native
// balance path for the native sentinel.
func (w *Wallet) BalanceOf(ctx context.Context, chainID int64, token string) (*big.Int, error) {
	if err := w.wait(ctx, chainID); err != nil {
		return nil, err
	}
	c, err := w.client(ctx, chainID)
	if err != nil {
		return nil, err
	}

	if types.IsNative(token) {
		balance, err := c.BalanceAt(ctx, w.account, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to get native balance: %w", err)
		}
		return balance, nil
	}

	out, err := w.call(ctx, c, token, "balanceOf", w.account)
	if err != nil {
		return nil, fmt.Errorf("failed to read balanceOf: %w", err)
	}
	return out, nil
}

// Allowance reads the spender's remaining allowance for a token. Always
// zero for the native asset, which needs no approval.
func (w *Wallet) Allowance(ctx context.Context, chainID int64, token, spender string) (*big.Int, error) {
	if types.IsNative(token) {
		return big.NewInt(0), nil
	}
	if err := w.wait(ctx, chainID); err != nil {
		return nil, err
	}
	c, err := w.client(ctx, chainID)
	if err != nil {
		return nil, err
	}

	out, err := w.call(ctx, c, token, "allowance", w.account, common.HexToAddress(spender))
	if err != nil {
		return nil, fmt.Errorf("failed to read allowance: %w", err)
	}
	return out, nil
}

func (w *Wallet) call(ctx context.Context, c *ethclient.Client, contract, method string, args ...any) (*big.Int, error) {
	data, err := erc20().Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}
	to := common.HexToAddress(contract)
	result, err := c.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return big.NewInt(0), nil
	}
	unpacked, err := erc20().Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	value, ok := unpacked[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s result type %T", method, unpacked[0])
	}
	return value, nil
}

// SendTransaction signs and submits a prepared transaction payload on the
// given chain and returns its hash.
func (w *Wallet) SendTransaction(ctx context.Context, chainID int64, tx types.Transaction) (string, error) {
	if err := w.wait(ctx, chainID); err != nil {
		return "", err
	}
	c, err := w.client(ctx, chainID)
	if err != nil {
		return "", err
	}

	nonce, err := c.PendingNonceAt(ctx, w.account)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := c.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get gas price: %w", err)
	}

	to := common.HexToAddress(tx.To)
	value, err := tx.ValueBase()
	if err != nil {
		return "", fmt.Errorf("invalid transaction value: %w", err)
	}
	data, err := hexutil.Decode(tx.Data)
	if err != nil {
		return "", fmt.Errorf("invalid transaction data: %w", err)
	}

	gasLimit := uint64(500000)
	msg := ethereum.CallMsg{From: w.account, To: &to, Value: value, Data: data}
	if estimated, err := c.EstimateGas(ctx, msg); err == nil {
		gasLimit = estimated * 120 / 100 // 20% buffer
	}

	rawTx := gethtypes.NewTransaction(nonce, to, value, gasLimit, gasPrice, data)
	signedTx, err := gethtypes.SignTx(rawTx, gethtypes.NewEIP155Signer(big.NewInt(chainID)), w.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := c.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	hash := signedTx.Hash().Hex()
	w.logger.Info("Transaction submitted",
		zap.Int64("chainId", chainID), zap.String("hash", hash))
	return hash, nil
}

// WaitForReceipt polls until the transaction is mined or the wait timeout
// elapses.
func (w *Wallet) WaitForReceipt(ctx context.Context, chainID int64, hash string) (*gethtypes.Receipt, error) {
	c, err := w.client(ctx, chainID)
	if err != nil {
		return nil, err
	}

	cfg := w.chains[chainID]
	poll := cfg.ReceiptPoll
	if poll == 0 {
		poll = 2 * time.Second
	}
	timeout := cfg.WaitTimeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	txHash := common.HexToHash(hash)
	for {
		receipt, err := c.TransactionReceipt(waitCtx, txHash)
		if err == nil {
			return receipt, nil
		}
		select {
		case <-waitCtx.Done():
			return nil, fmt.Errorf("timed out waiting for receipt of %s: %w", hash, waitCtx.Err())
		case <-ticker.C:
		}
	}
}

// TokenMetadata reads symbol, name and decimals straight from the token
// contract, used when a pasted address is absent from every token list.
func (w *Wallet) TokenMetadata(ctx context.Context, chainID int64, token string) (*types.Token, error) {
	if err := w.wait(ctx, chainID); err != nil {
		return nil, err
	}
	c, err := w.client(ctx, chainID)
	if err != nil {
		return nil, err
	}

	to := common.HexToAddress(token)
	readString := func(method string) (string, error) {
		data, err := erc20().Pack(method)
		if err != nil {
			return "", err
		}
		result, err := c.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
		if err != nil {
			return "", err
		}
		unpacked, err := erc20().Unpack(method, result)
		if err != nil {
			return "", err
		}
		s, _ := unpacked[0].(string)
		return s, nil
	}

	symbol, err := readString("symbol")
	if err != nil {
		return nil, fmt.Errorf("failed to read symbol of %s: %w", token, err)
	}
	name, err := readString("name")
	if err != nil {
		return nil, fmt.Errorf("failed to read name of %s: %w", token, err)
	}

	data, err := erc20().Pack("decimals")
	if err != nil {
		return nil, err
	}
	result, err := c.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read decimals of %s: %w", token, err)
	}
	unpacked, err := erc20().Unpack("decimals", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack decimals of %s: %w", token, err)
	}
	decimals, _ := unpacked[0].(uint8)

	return &types.Token{
		Address:  types.NormalizeAddress(token),
		ChainID:  chainID,
		Name:     name,
		Symbol:   symbol,
		Decimals: int32(decimals),
	}, nil
}
