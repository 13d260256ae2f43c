package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	APIKey           string
	BaseURL          string
	LayerZeroScanURL string
	PrivateKey       string
	DefaultChainID   int64
	SlippageBps      int64
	ReferralCode     string
	RPCURLs          map[int64]string
	TradeCapsUSD     map[string]float64
	Debug            bool
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".enso-swap")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	viper.SetDefault("base_url", "https://api.enso.finance/api/v1")
	viper.SetDefault("layerzero_scan_url", "https://scan.layerzero-api.com/v1")
	viper.SetDefault("default_chain_id", 1)
	viper.SetDefault("slippage_bps", 50)

	// Read from environment variables
	viper.SetEnvPrefix("ENSO_SWAP")
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		APIKey:           viper.GetString("api_key"),
		BaseURL:          viper.GetString("base_url"),
		LayerZeroScanURL: viper.GetString("layerzero_scan_url"),
		PrivateKey:       viper.GetString("private_key"),
		DefaultChainID:   viper.GetInt64("default_chain_id"),
		SlippageBps:      viper.GetInt64("slippage_bps"),
		ReferralCode:     viper.GetString("referral_code"),
		RPCURLs:          make(map[int64]string),
		TradeCapsUSD:     make(map[string]float64),
		Debug:            viper.GetBool("debug"),
	}

	// rpc_urls maps chain id to endpoint, e.g. rpc_urls: {"1": "https://..."}
	for key, url := range viper.GetStringMapString("rpc_urls") {
		chainID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id %q in rpc_urls", key)
		}
		cfg.RPCURLs[chainID] = url
	}

	// trade_caps_usd maps token address to a maximum USD notional
	for addr, cap := range viper.GetStringMapString("trade_caps_usd") {
		value, err := strconv.ParseFloat(cap, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid trade cap %q for token %s", cap, addr)
		}
		cfg.TradeCapsUSD[addr] = value
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key not found. Please set ENSO_SWAP_API_KEY environment variable or create a .enso-swap.yaml config file")
	}

	globalConfig = cfg
	return cfg, nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
