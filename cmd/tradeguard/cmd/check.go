package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// ErrDenied makes the process exit non-zero when new trading is halted.
var ErrDenied = errors.New("new trading halted")

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Decide whether new orders are admitted today",
	Long: `Compute (or read today's cached) trailing realized P&L ratio and compare
it with the floor. The command exits non-zero when trading is halted, so it
can gate a strategy from a shell script or cron job.

Examples:
  tradeguard check
  tradeguard check --floor -0.03 --lookback 14
  tradeguard check --json`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

var (
	checkLookback int
	checkFloor    float64
	checkJSON     bool
)

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().IntVar(&checkLookback, "lookback", 0, "lookback days (default risk.lookback_days)")
	checkCmd.Flags().Float64Var(&checkFloor, "floor", 0, "P&L floor as a fraction (default risk.pnl_floor)")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print the decision as JSON")
}

func runCheck(cmd *cobra.Command, args []string) error {
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
	lookback, floor := p.LookbackDays, p.PnLFloor
	if cmd.Flags().Changed("lookback") {
		lookback = checkLookback
	}
	if cmd.Flags().Changed("floor") {
		floor = checkFloor
	}

	d, err := a.gate.AdmitWith(ctx, lookback, floor)
	if checkJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(d); encErr != nil {
			return encErr
		}
	} else {
		fmt.Printf("%s: %s\n", d.Date, d)
	}
	if err != nil {
		return err
	}
	if !d.Allowed {
		return ErrDenied
	}
	return nil
}
