package swap

import (
	"fmt"

	"enso-swap/pkg/types"
)

// bridgeDeployment is one bridge asset's presence on a chain: the token
// the bridge moves and the liquidity pool it moves it through.
type bridgeDeployment struct {
	Token string
	Pool  string
}

// bridgeAsset is an asset the bridging protocol can carry across chains.
type bridgeAsset struct {
	Symbol      string
	Deployments map[int64]bridgeDeployment
}

// bridgeAssets lists the supported intermediate assets in priority order:
// ETH is preferred when both chains carry it natively, then USDC, then
// USDT.
var bridgeAssets = []bridgeAsset{
	{
		Symbol: "ETH",
		Deployments: map[int64]bridgeDeployment{
			types.ChainMainnet:  {Token: types.NativeAddress, Pool: "0x77b2043768d28e9c9ab44e1abfc95944bce57931"},
			types.ChainOptimism: {Token: types.NativeAddress, Pool: "0xe8cdf27acd73a434d661c84887215f7598e7d0d3"},
			types.ChainBase:     {Token: types.NativeAddress, Pool: "0xdc181bd607330aeebef6ea62e03e5e1fb4b6f7c7"},
			types.ChainArbitrum: {Token: types.NativeAddress, Pool: "0xa45b5130f36cdca45667738e2a258ab09f4a5f7f"},
			types.ChainLinea:    {Token: types.NativeAddress, Pool: "0x81f6138153d473e8c5ecebd3dc8cd4903506b075"},
			types.ChainScroll:   {Token: types.NativeAddress, Pool: "0xc2b638cb5042c1b3c5d5c969361fb50569840583"},
		},
	},
	{
		Symbol: "USDC",
		Deployments: map[int64]bridgeDeployment{
			types.ChainMainnet:  {Token: types.USDCAddresses[types.ChainMainnet], Pool: "0xc026395860db2d07ee33e05fe50ed7bd583189c7"},
			types.ChainOptimism: {Token: types.USDCAddresses[types.ChainOptimism], Pool: "0xce8cca271ebc0533920c83d39f417ed6a0abb7d0"},
			types.ChainBSC:      {Token: "0x8ac76a51cc950d9822d68b83fe1ad97b32cd580d", Pool: "0x962bd449e630b0d928f308ce63f1a21f02576057"},
			types.ChainPolygon:  {Token: types.USDCAddresses[types.ChainPolygon], Pool: "0x9aa02d4fae7f58b8e8f34c66e756cc734dac7fe4"},
			types.ChainBase:     {Token: types.USDCAddresses[types.ChainBase], Pool: "0x27a16dc786820b16e5c9028b75b99f6f604b5d26"},
			types.ChainArbitrum: {Token: types.USDCAddresses[types.ChainArbitrum], Pool: "0xe8cdf27acd73a434d661c84887215f7598e7d0d3"},
		},
	},
	{
		Symbol: "USDT",
		Deployments: map[int64]bridgeDeployment{
			types.ChainMainnet:  {Token: "0xdac17f958d2ee523a2206206994597c13d831ec7", Pool: "0x933597a323eb81cae705c5bc29985172fd5a3973"},
			types.ChainBSC:      {Token: "0x55d398326f99059ff775485246999027b3197955", Pool: "0x138eb30f73bc423c6455c53df6d89cb01d9ebc63"},
			types.ChainPolygon:  {Token: "0xc2132d05d31c914a87c6611c10748aeb04b58e8f", Pool: "0xd47b03ee6d86cf251ee7860fb2acf9f91b9fd4d7"},
			types.ChainArbitrum: {Token: "0xfd086bc7cd5c481dcc9c85ebe478a1c0b69fcbb9", Pool: "0xce8cca271ebc0533920c83d39f417ed6a0abb7d0"},
		},
	},
}

// selectBridgeAsset picks the intermediate asset for a source/destination
// chain pair. An asset already matching tokenIn on the source chain wins,
// which avoids a pre-conversion step; otherwise the first asset in
// priority order with pools on both chains is used.
func selectBridgeAsset(sourceChain, destChain int64, tokenIn string) (bridgeAsset, bridgeDeployment, bridgeDeployment, error) {
	for _, asset := range bridgeAssets {
		src, srcOK := asset.Deployments[sourceChain]
		dst, dstOK := asset.Deployments[destChain]
		if srcOK && dstOK && types.SameAddress(src.Token, tokenIn) {
			return asset, src, dst, nil
		}
	}
	for _, asset := range bridgeAssets {
		src, srcOK := asset.Deployments[sourceChain]
		dst, dstOK := asset.Deployments[destChain]
		if srcOK && dstOK {
			return asset, src, dst, nil
		}
	}
	return bridgeAsset{}, bridgeDeployment{}, bridgeDeployment{},
		fmt.Errorf("no bridge asset with liquidity on both chain %d and chain %d", sourceChain, destChain)
}
