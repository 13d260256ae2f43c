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

	"enso-swap/pkg/client"
)

var (
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <tx-hash>",
	Short: "Check the delivery status of a cross-chain swap",
	Long: `Check the bridge delivery status of a cross-chain swap by its source
transaction hash. With --watch, polling continues until the message is
delivered or fails.

Examples:
  enso-swap status 0x1234...abcd
  enso-swap status 0x1234...abcd --watch
  enso-swap status 0x1234...abcd --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates continuously")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

func runStatus(cmd *cobra.Command, args []string) {
	txHash := args[0]
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp(verbose)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if watchStatus {
		watchBridgeStatus(a, txHash, jsonOutput)
	} else {
		checkBridgeStatus(a, txHash, jsonOutput)
	}
}

func checkBridgeStatus(a *app, txHash string, jsonOutput bool) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking bridge status..."
		s.Start()
	}

	msg, err := a.lz.GetMessageByTx(context.Background(), txHash)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		if msg == nil {
			fmt.Println(`{"status": "NOT_INDEXED"}`)
			return
		}
		jsonData, _ := json.MarshalIndent(msg, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayBridgeStatus(msg, txHash)
	}
}

func watchBridgeStatus(a *app, txHash string, jsonOutput bool) {
	if jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}

	fmt.Printf("\nWatching bridge status (Tx: %s)\n", color.CyanString(txHash))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	// Check immediately first
	if checkAndDisplayStatus(a, txHash) {
		return
	}

	// Then check periodically until the message settles
	for range ticker.C {
		if checkAndDisplayStatus(a, txHash) {
			return
		}
	}
}

// checkAndDisplayStatus prints the current status and reports whether the
// message has reached a terminal state.
func checkAndDisplayStatus(a *app, txHash string) bool {
	msg, err := a.lz.GetMessageByTx(context.Background(), txHash)
	if err != nil {
		color.Red("Error: %v", err)
		return false
	}

	displayBridgeStatus(msg, txHash)

	if msg == nil {
		return false
	}
	switch msg.Status.Name {
	case client.LayerZeroDelivered, client.LayerZeroSucceeded, client.LayerZeroFailed:
		return true
	}
	return false
}

func displayBridgeStatus(msg *client.BridgeMessage, txHash string) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                       BRIDGE STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Source Tx:       %s\n", color.CyanString(txHash))

	if msg == nil {
		fmt.Printf("  Status:          %s\n", color.YellowString("NOT_INDEXED (check again shortly)"))
		fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
		return
	}

	fmt.Printf("  Status:          %s\n", getColoredStatus(msg.Status.Name))
	if msg.Source.Status != "" {
		fmt.Printf("  Source Leg:      %s\n", getColoredStatus(msg.Source.Status))
	}
	if msg.Destination.Status != "" {
		fmt.Printf("  Dest Leg:        %s\n", getColoredStatus(msg.Destination.Status))
	}
	if msg.Destination.TxHash != "" {
		fmt.Printf("  Dest Tx:         %s\n", color.HiBlackString(msg.Destination.TxHash))
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func getColoredStatus(status string) string {
	status = strings.ToUpper(status)

	switch status {
	case client.LayerZeroDelivered, client.LayerZeroSucceeded:
		return color.GreenString(status)
	case client.LayerZeroPending, client.LayerZeroInflight, client.LayerZeroConfirming:
		return color.YellowString(status)
	case client.LayerZeroFailed:
		return color.RedString(status)
	default:
		return status
	}
}
