package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"enso-swap/pkg/tokenlist"
	"enso-swap/pkg/types"
)

var (
	tokensChain   int64
	tokensSearch  string
	tokensAccount string
	tokensLimit   int
)

var tokensCmd = &cobra.Command{
	Use:     "tokens",
	Aliases: []string{"list-tokens", "ls"},
	Short:   "List selectable tokens on a chain",
	Long: `List the tokens known on a chain, merged from the chain's public token
lists. With --account, holdings are fetched and the list is ranked by USD
value so held tokens come first.

Examples:
  enso-swap tokens --chain 1
  enso-swap tokens --chain 8453 --search usd
  enso-swap tokens --chain 1 --account 0x1234...abcd`,
	Run: runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().Int64Var(&tokensChain, "chain", 0, "Chain id (defaults to configured default)")
	tokensCmd.Flags().StringVar(&tokensSearch, "search", "", "Filter by symbol, name or address substring")
	tokensCmd.Flags().StringVar(&tokensAccount, "account", "", "Rank by this account's holdings")
	tokensCmd.Flags().IntVar(&tokensLimit, "limit", 50, "Maximum number of tokens to show")
}

func runListTokens(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp(verbose)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	chainID := tokensChain
	if chainID == 0 {
		chainID = a.cfg.DefaultChainID
	}

	ctx := context.Background()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching token lists..."
		s.Start()
	}

	var balances []types.Balance
	if tokensAccount != "" {
		if !types.IsValidAddress(tokensAccount) {
			s.Stop()
			printError(fmt.Errorf("invalid account address: %s", tokensAccount))
			os.Exit(1)
		}
		balances, err = a.enso.GetBalances(ctx, chainID, tokensAccount)
		if err != nil {
			s.Stop()
			printError(err)
			os.Exit(1)
		}
	}

	candidates, err := a.merger.Candidates(ctx, chainID, "", tokensSearch, balances, tokenlist.Filter{})
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if len(candidates) > tokensLimit {
		candidates = candidates[:tokensLimit]
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(candidates, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayTokens(candidates, chainID)
	}
}

func displayTokens(candidates []tokenlist.Candidate, chainID int64) {
	if len(candidates) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                      TOKENS ON %s", strings.ToUpper(chainName(chainID)))
	fmt.Println(strings.Repeat("=", 90))
	fmt.Println()

	for _, c := range candidates {
		address := c.Address
		if len(address) > 42 {
			address = address[:39] + "..."
		}

		line := fmt.Sprintf("  %-10s  %2d decimals  %s",
			color.YellowString(c.Symbol),
			c.Decimals,
			color.HiBlackString(address))

		if c.USDValue != nil {
			line += fmt.Sprintf("  $%s", color.GreenString(c.USDValue.StringFixed(2)))
		} else if c.Balance != nil && c.Balance.Sign() > 0 {
			line += fmt.Sprintf("  %s", types.NormalizeAmount(c.Balance, c.Decimals).StringFixed(4))
		}

		fmt.Println(line)
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens\n\n", len(candidates))
}
