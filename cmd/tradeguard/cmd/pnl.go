package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pnlCmd = &cobra.Command{
	Use:   "pnl",
	Short: "Compute today's trailing realized P&L ratio",
	Long: `Match fills FIFO over the lookback window, compute the realized P&L as a
fraction of tradeable capital and store the day's snapshot. Later calls on
the same day return the stored value.

Example:
  tradeguard pnl --lookback 7 --history 3`,
	Args: cobra.NoArgs,
	RunE: runPnL,
}

var (
	pnlLookback int
	pnlHistory  int
)

func init() {
	rootCmd.AddCommand(pnlCmd)

	pnlCmd.Flags().IntVar(&pnlLookback, "lookback", 0, "lookback days (default risk.lookback_days)")
	pnlCmd.Flags().IntVar(&pnlHistory, "history", 0, "history multiplier (default risk.history_multiplier)")
}

func runPnL(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if err := a.withGate(ctx); err != nil {
		return err
	}

	p := a.gate.Policy()
	lookback, history := p.LookbackDays, p.HistoryMultiplier
	if pnlLookback > 0 {
		lookback = pnlLookback
	}
	if pnlHistory > 0 {
		history = pnlHistory
	}

	ratio, err := a.gate.ComputeDailyPnLWith(ctx, lookback, history)
	if err != nil {
		return fmt.Errorf("compute pnl: %w", err)
	}

	snap, ok, err := a.gate.Today(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Date: %s\n", a.gate.Date())
	fmt.Printf("  Realized P&L: %.4f%%\n", 100*ratio)
	if ok {
		fmt.Printf("  Trades: %d (%dW/%dL)\n", snap.TotalTrades, snap.WinningTrades, snap.LosingTrades)
		fmt.Printf("  Win rate: %.2f  Profit factor: %s\n", snap.WinRate, snap.ProfitFactor)
		fmt.Printf("  Max drawdown: %.2f (%.2f)\n", snap.MaxDrawdown, snap.MaxDrawdownRatio)
		fmt.Printf("  Tradeable capital: $%.2f\n", snap.TradeableCapital)
		if snap.Degraded {
			fmt.Println("  (degraded: account unavailable, fallback capital used)")
		}
	}
	return nil
}
