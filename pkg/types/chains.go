package types

// Supported chain ids.
const (
	ChainMainnet  int64 = 1
	ChainOptimism int64 = 10
	ChainBSC      int64 = 56
	ChainPolygon  int64 = 137
	ChainBoba     int64 = 288
	ChainBase     int64 = 8453
	ChainArbitrum int64 = 42161
	ChainBlast    int64 = 81457
	ChainScroll   int64 = 534352
	ChainLinea    int64 = 59144
)

// ChainNames maps chain ids to display names.
var ChainNames = map[int64]string{
	ChainMainnet:  "Ethereum",
	ChainOptimism: "Optimism",
	ChainBSC:      "BNB Chain",
	ChainPolygon:  "Polygon",
	ChainBoba:     "Boba",
	ChainBase:     "Base",
	ChainArbitrum: "Arbitrum One",
	ChainBlast:    "Blast",
	ChainScroll:   "Scroll",
	ChainLinea:    "Linea",
}

// GeckoChainNames maps chain ids to the CoinGecko token-list slugs.
var GeckoChainNames = map[int64]string{
	ChainMainnet:  "ethereum",
	ChainOptimism: "optimistic-ethereum",
	ChainBSC:      "binance-smart-chain",
	ChainPolygon:  "polygon-pos",
	ChainBoba:     "boba",
	ChainBase:     "base",
	ChainArbitrum: "arbitrum-one",
	ChainBlast:    "blast",
	ChainScroll:   "scroll",
	ChainLinea:    "linea",
}

// ChainExplorers maps chain ids to Etherscan-family explorer base URLs.
var ChainExplorers = map[int64]string{
	ChainMainnet:  "https://etherscan.io",
	ChainOptimism: "https://optimistic.etherscan.io",
	ChainBSC:      "https://bscscan.com",
	ChainPolygon:  "https://polygonscan.com",
	ChainBoba:     "https://bobascan.com",
	ChainBase:     "https://basescan.org",
	ChainArbitrum: "https://arbiscan.io",
	ChainBlast:    "https://blastscan.io",
	ChainScroll:   "https://scrollscan.com",
	ChainLinea:    "https://lineascan.build",
}

// USDCAddresses maps chain ids to the canonical USDC deployment, used as
// the default input token.
var USDCAddresses = map[int64]string{
	ChainMainnet:  "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
	ChainOptimism: "0x0b2c639c533813f4aa9d7837caf62653d097ff85",
	ChainBSC:      "0x8ac76a51cc950d9822d68b83fe1ad97b32cd580d",
	ChainPolygon:  "0x3c499c542cef5e3811e1192ce70d8cc03d5c3359",
	ChainBase:     "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913",
	ChainArbitrum: "0xaf88d065e77c8cc2239327c5edb3a432268e5831",
}

// RouterAddress is the routing contract that executes swaps. The same
// address is deployed on every supported chain, and it is the spender
// ERC-20 allowances are granted to.
const RouterAddress = "0x80eba3855878739f4710233a8a19d89bdd2ffb8e"

// ExplorerTxURL returns the explorer link for a transaction hash, or an
// empty string when the chain has no configured explorer.
func ExplorerTxURL(chainID int64, hash string) string {
	base, ok := ChainExplorers[chainID]
	if !ok || hash == "" {
		return ""
	}
	return base + "/tx/" + hash
}

// ExplorerAddressURL returns the explorer link for an address.
func ExplorerAddressURL(chainID int64, address string) string {
	base, ok := ChainExplorers[chainID]
	if !ok || address == "" {
		return ""
	}
	return base + "/address/" + address
}
