package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "enso-swap",
	Short: "A CLI for same-chain and cross-chain token swaps via the Enso routing API",
	Long: `enso-swap is a command-line tool for swapping tokens on and across EVM
chains. Same-chain swaps are routed through the Enso aggregation API;
cross-chain swaps are bundled with a Stargate bridge leg and tracked to
delivery on the destination chain.

Examples:
  enso-swap swap 100 USDC to WETH --chain 1
  enso-swap swap 50 USDC to WETH --chain 1 --to-chain 8453
  enso-swap tokens --chain 8453 --search usd
  enso-swap status <tx-hash> --watch`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
