package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradeguard/health"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report the health of the external APIs",
	Long: `Build a health report from the circuit breakers: overall status, per
endpoint state and recommendations. With --probe the broker account is
fetched first so the alpaca breaker reflects a real call.

Examples:
  tradeguard health
  tradeguard health --probe --save
  tradeguard health --save --output report.json`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

var (
	healthProbe  bool
	healthSave   bool
	healthOutput string
)

func init() {
	rootCmd.AddCommand(healthCmd)

	healthCmd.Flags().BoolVar(&healthProbe, "probe", false, "call the broker once before reporting")
	healthCmd.Flags().BoolVar(&healthSave, "save", false, "write the report as JSON")
	healthCmd.Flags().StringVarP(&healthOutput, "output", "o", "", "report path (default api_health_report_<time>.json)")
}

func runHealth(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if healthProbe {
		if err := a.withBroker(); err != nil {
			return err
		}
		if _, err := a.broker.Account(cmd.Context()); err != nil {
			a.log.Warn().Err(err).Msg("broker probe failed")
		}
	}

	r := health.NewReporter(a.breakers, a.log)
	rep := r.Report()
	r.Log(rep)

	fmt.Printf("Overall: %s (%d/%d healthy)\n", rep.Overall, rep.Summary.Healthy, rep.Summary.Total)
	for _, s := range rep.Breakers {
		fmt.Printf("  %-8s %-9s failures %d/%d\n", s.Name, s.State, s.FailureCount, s.FailureThreshold)
	}
	for _, rec := range rep.Recommendations {
		fmt.Printf("  [%s] %s\n", rec.Level, rec.Message)
	}

	if healthSave {
		path, err := r.Save(healthOutput)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Saved report: %s\n", path)
	}
	if !r.CriticalAvailable() {
		return fmt.Errorf("critical APIs unavailable")
	}
	return nil
}
