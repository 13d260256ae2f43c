package cmd

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"enso-swap/config"
	"enso-swap/pkg/client"
	"enso-swap/pkg/notify"
	"enso-swap/pkg/swap"
	"enso-swap/pkg/tokenlist"
	"enso-swap/pkg/track"
	"enso-swap/pkg/wallet"
)

// app bundles the wired components the commands share.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	enso     *client.EnsoClient
	lz       *client.LayerZeroClient
	merger   *tokenlist.Merger
	orch     *swap.Orchestrator
	notifier *notify.Notifier
}

// newApp loads configuration and builds the read-only components. The
// wallet is built separately because only submitting commands need a key.
func newApp(verbose bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(verbose || cfg.Debug)
	if err != nil {
		return nil, err
	}

	enso := client.NewEnsoClient(cfg.BaseURL, cfg.APIKey, logger)
	lz := client.NewLayerZeroClient(cfg.LayerZeroScanURL, logger)
	fetcher := tokenlist.NewFetcher(logger)

	caps := make(map[string]decimal.Decimal, len(cfg.TradeCapsUSD))
	for addr, cap := range cfg.TradeCapsUSD {
		caps[addr] = decimal.NewFromFloat(cap)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		enso:     enso,
		lz:       lz,
		merger:   tokenlist.NewMerger(fetcher, nil, logger),
		orch:     swap.NewOrchestrator(enso, caps, logger),
		notifier: notify.New(),
	}, nil
}

// newWallet builds the signing wallet and the components that depend on
// it.
func (a *app) newWallet(initialChain int64) (*wallet.Wallet, *wallet.ApprovalManager, *track.Tracker, error) {
	if a.cfg.PrivateKey == "" {
		return nil, nil, nil, fmt.Errorf("private key not found. Please set ENSO_SWAP_PRIVATE_KEY environment variable or add private_key to .enso-swap.yaml")
	}
	if len(a.cfg.RPCURLs) == 0 {
		return nil, nil, nil, fmt.Errorf("no RPC endpoints configured. Please add rpc_urls to .enso-swap.yaml")
	}

	chains := make(map[int64]wallet.ChainConfig, len(a.cfg.RPCURLs))
	for chainID, url := range a.cfg.RPCURLs {
		chains[chainID] = wallet.ChainConfig{RPCURL: url}
	}

	w, err := wallet.New(a.cfg.PrivateKey, chains, initialChain, a.logger)
	if err != nil {
		return nil, nil, nil, err
	}

	approvals := wallet.NewApprovalManager(w, a.enso, a.logger)
	tracker := track.New(w, a.lz, a.notifier, 0, a.logger)

	// Pasted-address metadata lookups go through the wallet's RPC access.
	a.merger = tokenlist.NewMerger(tokenlist.NewFetcher(a.logger), w, a.logger)

	return w, approvals, tracker, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}
