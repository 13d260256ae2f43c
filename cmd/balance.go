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
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"enso-swap/pkg/types"
)

var (
	balanceChain   int64
	balanceAccount string
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show an account's token balances",
	Long: `Show the token holdings of an account on a chain, with USD values where
a price is known. Without --account, the configured wallet's address is
used.

Examples:
  enso-swap balance --chain 1
  enso-swap balance --chain 8453 --account 0x1234...abcd`,
	Run: runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)

	balanceCmd.Flags().Int64Var(&balanceChain, "chain", 0, "Chain id (defaults to configured default)")
	balanceCmd.Flags().StringVar(&balanceAccount, "account", "", "Account address (defaults to the wallet account)")
}

func runBalance(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp(verbose)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	chainID := balanceChain
	if chainID == 0 {
		chainID = a.cfg.DefaultChainID
	}

	account := balanceAccount
	if account == "" {
		w, _, _, err := a.newWallet(chainID)
		if err != nil {
			printError(fmt.Errorf("no account given and no wallet configured: %w", err))
			os.Exit(1)
		}
		account = w.Account()
	}
	if !types.IsValidAddress(account) {
		printError(fmt.Errorf("invalid account address: %s", account))
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching balances..."
		s.Start()
	}

	balances, err := a.enso.GetBalances(context.Background(), chainID, account)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(balances, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	displayBalances(balances, chainID, account)
}

func displayBalances(balances []types.Balance, chainID int64, account string) {
	fmt.Println("\n" + strings.Repeat("=", 80))
	color.Green("                          BALANCES")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("\n  Account: %s\n", color.CyanString(account))
	fmt.Printf("  Chain:   %s\n\n", chainName(chainID))

	if len(balances) == 0 {
		fmt.Println("  No holdings found.")
		fmt.Println("\n" + strings.Repeat("=", 80) + "\n")
		return
	}

	total := decimal.Zero
	for _, b := range balances {
		amount, err := types.ParseBaseAmount(b.Amount)
		if err != nil {
			continue
		}
		normalized := types.NormalizeAmount(amount, b.Decimals)

		line := fmt.Sprintf("  %-44s  %s", color.HiBlackString(b.Token), normalized.StringFixed(6))
		if price, err := decimal.NewFromString(b.Price); err == nil && !price.IsZero() {
			value := normalized.Mul(price)
			total = total.Add(value)
			line += fmt.Sprintf("  $%s", color.GreenString(value.StringFixed(2)))
		}
		fmt.Println(line)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Printf("\nTotal value: $%s\n\n", total.StringFixed(2))
}
