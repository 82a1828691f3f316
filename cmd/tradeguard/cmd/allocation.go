package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var allocationCmd = &cobra.Command{
	Use:   "allocation",
	Short: "Show the trend-driven capital allocation",
	Long: `Classify the market trend from the index's daily closes and split the
portfolio across the strategies.

Subcommands:
  summary           - Trend and every strategy's share
  target <strategy> - Dollar amount one strategy may deploy

Examples:
  tradeguard allocation summary
  tradeguard allocation target reversion_stock --value 250000`,
}

var allocationSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Trend and every strategy's share",
	Args:  cobra.NoArgs,
	RunE:  runAllocationSummary,
}

var allocationTargetCmd = &cobra.Command{
	Use:   "target <strategy>",
	Short: "Dollar amount one strategy may deploy",
	Args:  cobra.ExactArgs(1),
	RunE:  runAllocationTarget,
}

var allocationValue float64

func init() {
	rootCmd.AddCommand(allocationCmd)
	allocationCmd.AddCommand(allocationSummaryCmd)
	allocationCmd.AddCommand(allocationTargetCmd)

	allocationTargetCmd.Flags().Float64Var(&allocationValue, "value", 0, "portfolio value (default: account value)")
}

func runAllocationSummary(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.withBroker(); err != nil {
		return err
	}

	s, err := a.alloc.Summary(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Portfolio value: $%.2f\n", s.PortfolioValue)
	fmt.Printf("Market trend: %s\n\n", s.Trend)
	for _, sh := range s.Allocations {
		fmt.Printf("  %-18s %5.1f%%  $%12.2f\n", sh.Strategy, 100*sh.Ratio, sh.Amount)
	}
	return nil
}

func runAllocationTarget(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.withBroker(); err != nil {
		return err
	}

	v, err := a.alloc.TargetValue(cmd.Context(), args[0], allocationValue)
	if err != nil {
		return err
	}
	fmt.Printf("%s: $%.2f\n", args[0], v)
	return nil
}
