package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tradeguard",
	Short: "Circuit breakers and a daily P&L risk gate for automated trading",
	Long: `Tradeguard protects an automated trading system from two failure modes:
flaky upstream APIs and a bad trading streak.

It provides tools for:
  - Circuit breakers around every external API
  - A daily realized P&L check that halts new trading below a floor
  - A market-trend capital allocation across strategies
  - API health reports
  - An HTTP service exposing all of the above plus Prometheus metrics`,
	SilenceUsage: true,
}

var (
	cfgFile  string
	logLevel string
	envFiles []string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON); defaults when empty")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level from the config")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env", []string{".env"}, ".env files holding API credentials")
}
