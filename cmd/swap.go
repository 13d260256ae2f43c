package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"enso-swap/pkg/history"
	"enso-swap/pkg/notify"
	"enso-swap/pkg/parser"
	"enso-swap/pkg/swap"
	"enso-swap/pkg/tokenlist"
	"enso-swap/pkg/track"
	"enso-swap/pkg/types"
	"enso-swap/pkg/wallet"
)

var (
	swapChain    int64
	swapToChain  int64
	swapReceiver string
	swapSlippage int64
	noConfirm    bool
	showRoute    bool
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <source-token> to <dest-token>",
	Short: "Swap tokens on one chain or across chains",
	Long: `Swap tokens using the Enso routing API. When --to-chain differs from
--chain, the swap is executed as a bridge bundle: an optional conversion
into a bridge asset, a Stargate bridge leg, and a conversion into the
destination token on arrival.

Examples:
  # Same-chain swap on Ethereum
  enso-swap swap 100 USDC to WETH --chain 1

  # Cross-chain swap from Ethereum to Base
  enso-swap swap 100 USDC to WETH --chain 1 --to-chain 8453

  # Tighter slippage tolerance (in basis points)
  enso-swap swap 1.5 ETH to USDC --chain 1 --slippage 25

  # Skip the confirmation prompt
  enso-swap swap 100 USDC to WETH --chain 1 --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().Int64Var(&swapChain, "chain", 0, "Source chain id (defaults to configured default)")
	swapCmd.Flags().Int64Var(&swapToChain, "to-chain", 0, "Destination chain id (defaults to --chain)")
	swapCmd.Flags().StringVar(&swapReceiver, "receiver", "", "Receiver address (defaults to the wallet account)")
	swapCmd.Flags().Int64Var(&swapSlippage, "slippage", 0, "Slippage tolerance in basis points (defaults to configured value)")
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	swapCmd.Flags().BoolVar(&showRoute, "route", false, "Show the route the swap takes")
}

func runSwap(cmd *cobra.Command, args []string) {
	commandStr := strings.Join(args, " ")
	parsed, err := parser.ParseSwapCommand(commandStr)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if err := parser.ValidateParsedSwap(parsed); err != nil {
		printError(err)
		os.Exit(1)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp(verbose)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	chainID := swapChain
	if chainID == 0 {
		chainID = a.cfg.DefaultChainID
	}
	toChainID := swapToChain
	if toChainID == 0 {
		toChainID = chainID
	}
	slippage := swapSlippage
	if slippage == 0 {
		slippage = a.cfg.SlippageBps
	}

	w, approvals, tracker, err := a.newWallet(chainID)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Resolve token symbols against the chain's token lists.
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Resolving tokens..."
		s.Start()
	}
	tokenIn, err := resolveToken(ctx, a, chainID, parsed.TokenIn)
	if err != nil {
		s.Stop()
		printError(err)
		os.Exit(1)
	}
	tokenOut, err := resolveToken(ctx, a, toChainID, parsed.TokenOut)
	if err != nil {
		s.Stop()
		printError(err)
		os.Exit(1)
	}

	err = doSwap(ctx, a, w, approvals, tracker, swapParams{
		chainID:   chainID,
		toChainID: toChainID,
		tokenIn:   tokenIn,
		tokenOut:  tokenOut,
		amount:    parsed.Amount,
		slippage:  slippage,
		receiver:  swapReceiver,
		spinner:   s,
		json:      jsonOutput,
		verbose:   verbose,
	})
	s.Stop()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
}

type swapParams struct {
	chainID   int64
	toChainID int64
	tokenIn   types.Token
	tokenOut  types.Token
	amount    string
	slippage  int64
	receiver  string
	spinner   *spinner.Spinner
	json      bool
	verbose   bool
}

func doSwap(ctx context.Context, a *app, w *wallet.Wallet, approvals *wallet.ApprovalManager, tracker *track.Tracker, p swapParams) error {
	amountIn, err := types.DenormalizeAmount(p.amount, p.tokenIn.Decimals)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", p.amount, err)
	}

	req := swap.QuoteRequest{
		SourceChainID:      p.chainID,
		DestinationChainID: p.toChainID,
		TokenIn:            p.tokenIn,
		TokenOut:           p.tokenOut,
		AmountIn:           amountIn,
		SlippageBps:        p.slippage,
		FromAddress:        w.Account(),
		Receiver:           p.receiver,
		ReferralCode:       a.cfg.ReferralCode,
	}

	if !p.json {
		p.spinner.Suffix = " Fetching quote..."
	}
	quote, err := a.orch.Fetch(ctx, req)
	if err != nil {
		return err
	}
	if !p.json {
		p.spinner.Stop()
	}

	balance, err := w.BalanceOf(ctx, p.chainID, p.tokenIn.Address)
	if err != nil {
		a.logger.Warn("Balance read failed; proceeding without the check")
		balance = nil
	}

	assessment := a.orch.Assess(swap.AssessInput{
		Quote:        quote,
		Balance:      balance,
		Acknowledged: noConfirm,
	})

	if p.json {
		output := map[string]interface{}{
			"chain_id":     p.chainID,
			"out_chain_id": p.toChainID,
			"token_in":     p.tokenIn.Address,
			"token_out":    p.tokenOut.Address,
			"amount_in":    amountIn.String(),
			"amount_out":   quote.AmountOut.String(),
			"bridge":       quote.Bridge,
			"can_submit":   assessment.CanSubmit,
			"message":      assessment.Message,
		}
		if quote.PriceImpactBps != nil {
			output["price_impact_bps"] = *quote.PriceImpactBps
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayQuote(quote, p)
	}

	if !assessment.CanSubmit {
		return fmt.Errorf("%s", assessment.Message)
	}
	if assessment.RequiresAcknowledgment && !noConfirm {
		color.Yellow("\nThis trade has a price impact of %.2f%%.", float64(*quote.PriceImpactBps)/100)
		if !confirm("Accept the price impact and continue?") {
			fmt.Println("\nSwap cancelled.")
			return nil
		}
	}
	if !noConfirm && !p.json {
		if !confirm("Proceed with swap?") {
			fmt.Println("\nSwap cancelled.")
			return nil
		}
	}

	// Grant the router an allowance when the current one does not cover
	// the input amount.
	needed, err := approvals.NeedsApproval(ctx, p.chainID, p.tokenIn.Address, types.RouterAddress, amountIn)
	if err != nil {
		return fmt.Errorf("allowance check failed: %w", err)
	}
	if needed {
		if !p.json {
			p.spinner.Suffix = fmt.Sprintf(" Approving %s...", p.tokenIn.Symbol)
			p.spinner.Restart()
		}
		hash, err := approvals.Approve(ctx, p.chainID, p.tokenIn.Address, amountIn)
		if !p.json {
			p.spinner.Stop()
		}
		if err != nil {
			return fmt.Errorf("approval failed: %w", err)
		}
		if !p.json {
			color.Green("\n✓ Approval confirmed")
			fmt.Printf("  Transaction: %s\n", color.CyanString(types.ExplorerTxURL(p.chainID, hash)))
		}
	}

	// Keep the terminal in sync with the tracker's notification.
	if !p.json {
		a.notifier.Subscribe(func(n *notify.Notification) {
			if n == nil {
				return
			}
			printNotification(n)
		})
	}

	store, err := history.NewStore("")
	if err != nil {
		a.logger.Warn("History storage unavailable")
		store = nil
	}

	result := tracker.Run(ctx, track.Submission{
		ChainID:            p.chainID,
		DestinationChainID: p.toChainID,
		Tx:                 quote.Tx,
		Bridge:             quote.Bridge,
		Description:        fmt.Sprintf("Swapped %s %s for %s", p.amount, p.tokenIn.Symbol, p.tokenOut.Symbol),
	})

	if store != nil {
		_, _ = store.Append(history.Record{
			ChainID:           p.chainID,
			OutChainID:        p.toChainID,
			TokenIn:           p.tokenIn.Address,
			TokenOut:          p.tokenOut.Address,
			SymbolIn:          p.tokenIn.Symbol,
			SymbolOut:         p.tokenOut.Symbol,
			AmountIn:          amountIn.String(),
			AmountOut:         quote.AmountOut.String(),
			Bridge:            quote.Bridge,
			TxHash:            result.TxHash,
			DestinationTxHash: result.DestinationTxHash,
			Status:            string(result.State),
			ErrorMessage:      errorMessage(result.Err),
		})
	}

	if result.Err != nil {
		return result.Err
	}

	if p.json {
		output := map[string]interface{}{
			"status":  string(result.State),
			"tx_hash": result.TxHash,
		}
		if result.DestinationTxHash != "" {
			output["destination_tx_hash"] = result.DestinationTxHash
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		printSuccess(fmt.Sprintf("Swap complete. Received ~%s %s",
			types.NormalizeAmount(quote.AmountOut, p.tokenOut.Decimals).StringFixed(6), p.tokenOut.Symbol))
		if quote.Bridge && result.TxHash != "" {
			fmt.Println("You can re-check the bridge delivery using:")
			color.Cyan("  enso-swap status %s\n", result.TxHash)
		}
	}
	return nil
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func printNotification(n *notify.Notification) {
	switch n.Variant {
	case notify.VariantSuccess:
		color.Green("  %s", n.Message)
	case notify.VariantError:
		color.Red("  %s", n.Message)
	case notify.VariantWarning, notify.VariantBlocked:
		color.Yellow("  %s", n.Message)
	default:
		fmt.Printf("  %s\n", n.Message)
	}
	if n.Link != "" {
		fmt.Printf("    %s\n", color.HiBlackString(n.Link))
	}
}

// resolveToken finds a token by symbol in the chain's merged lists. The
// chain's gas asset resolves to the native sentinel.
func resolveToken(ctx context.Context, a *app, chainID int64, symbol string) (types.Token, error) {
	symbol = parser.NormalizeTokenSymbol(symbol)
	if symbol == "ETH" {
		return types.Token{
			Address:  types.NativeAddress,
			ChainID:  chainID,
			Name:     "Ether",
			Symbol:   "ETH",
			Decimals: 18,
		}, nil
	}

	candidates, err := a.merger.Candidates(ctx, chainID, "", symbol, nil, tokenlist.Filter{})
	if err != nil {
		return types.Token{}, fmt.Errorf("token lookup failed: %w", err)
	}
	for _, c := range candidates {
		if strings.EqualFold(c.Symbol, symbol) {
			return c.Token, nil
		}
	}
	return types.Token{}, fmt.Errorf("token %q not found on chain %d (try: enso-swap tokens --chain %d --search %s)",
		symbol, chainID, chainID, strings.ToLower(symbol))
}

func displayQuote(quote *swap.Quote, p swapParams) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	amountOut := types.NormalizeAmount(quote.AmountOut, p.tokenOut.Decimals)
	fmt.Printf("\n  From:            %s %s\n", p.amount, color.YellowString(p.tokenIn.Symbol))
	fmt.Printf("  To:              ~%s %s\n", amountOut.StringFixed(6), color.YellowString(p.tokenOut.Symbol))
	fmt.Printf("  Rate:            1 %s = %s %s\n", p.tokenIn.Symbol, quote.ExchangeRate().StringFixed(6), p.tokenOut.Symbol)

	if quote.PriceImpactBps != nil {
		impact := float64(*quote.PriceImpactBps) / 100
		line := fmt.Sprintf("%.2f%%", impact)
		if *quote.PriceImpactBps >= types.PriceImpactWarningBps {
			line = color.RedString(line)
		}
		fmt.Printf("  Price Impact:    %s\n", line)
	}
	if quote.AmountInUSD != nil {
		fmt.Printf("  Value:           $%s\n", quote.AmountInUSD.StringFixed(2))
	}

	fmt.Printf("  Source Chain:    %s\n", chainName(p.chainID))
	if quote.Bridge {
		fmt.Printf("  Dest Chain:      %s\n", chainName(p.toChainID))
		fmt.Printf("  Bridge Asset:    %s\n", quote.BridgeSymbol)
	}

	if showRoute && len(quote.Route) > 0 {
		fmt.Printf("\n  Route:\n")
		for _, step := range quote.Route {
			fmt.Printf("    %s\n", color.HiBlackString(formatRouteStep(step)))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
}

func formatRouteStep(step types.RouteStep) string {
	return fmt.Sprintf("%s.%s  %s -> %s",
		step.Protocol, step.Action,
		strings.Join(step.TokenIn, ","), strings.Join(step.TokenOut, ","))
}

func chainName(chainID int64) string {
	if name, ok := types.ChainNames[chainID]; ok {
		return fmt.Sprintf("%s (%d)", name, chainID)
	}
	return fmt.Sprintf("chain %d", chainID)
}

func confirm(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n%s (y/N): ", prompt)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
