package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"enso-swap/pkg/history"
	"enso-swap/pkg/types"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past swaps",
	Long: `Show swaps previously submitted from this machine, newest first.

Examples:
  enso-swap history
  enso-swap history --limit 5`,
	Run: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of records to show")
}

func runHistory(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	store, err := history.NewStore("")
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	records := store.Recent(historyLimit)

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(records, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	if len(records) == 0 {
		fmt.Println("\nNo swaps recorded yet.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                              SWAP HISTORY")
	fmt.Println(strings.Repeat("=", 90))
	fmt.Println()

	for _, r := range records {
		route := fmt.Sprintf("%s -> %s", r.SymbolIn, r.SymbolOut)
		if r.Bridge {
			route += fmt.Sprintf("  (%s -> %s)", chainName(r.ChainID), chainName(r.OutChainID))
		}

		fmt.Printf("  %s  %-30s %s\n",
			r.Timestamp.Format("2006-01-02 15:04:05"),
			route,
			coloredHistoryStatus(r.Status))
		if r.TxHash != "" {
			fmt.Printf("    %s\n", color.HiBlackString(types.ExplorerTxURL(r.ChainID, r.TxHash)))
		}
		if r.ErrorMessage != "" {
			fmt.Printf("    %s\n", color.RedString(r.ErrorMessage))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d swaps recorded in %s\n\n", store.Count(), store.GetFilePath())
}

func coloredHistoryStatus(status string) string {
	switch status {
	case "success":
		return color.GreenString(strings.ToUpper(status))
	case "failed":
		return color.RedString(strings.ToUpper(status))
	default:
		return color.YellowString(strings.ToUpper(status))
	}
}
