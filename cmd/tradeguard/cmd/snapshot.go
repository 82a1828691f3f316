package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradeguard/journal"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Query stored daily risk snapshots",
	Long: `Query the daily risk snapshots and matched trades stored in a SQLite
risk log.

Subcommands:
  show   - Show the snapshot of one day
  list   - List snapshots in a date range
  trades - List the matched trades behind one day

Examples:
  tradeguard snapshot show 2024-08-27
  tradeguard snapshot list --from 2024-08-01 --org
  tradeguard snapshot trades 2024-08-27`,
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show <YYYY-MM-DD>",
	Short: "Show the snapshot of one day",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotShow,
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots in a date range",
	Args:  cobra.NoArgs,
	RunE:  runSnapshotList,
}

var snapshotTradesCmd = &cobra.Command{
	Use:   "trades <YYYY-MM-DD>",
	Short: "List the matched trades behind one day",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotTrades,
}

var (
	snapshotDBPath string
	snapshotFrom   string
	snapshotTo     string
	snapshotOrg    bool
)

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotShowCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotTradesCmd)

	snapshotCmd.PersistentFlags().StringVarP(&snapshotDBPath, "db", "d", "", "path to SQLite risk log (default journal.db_path)")
	snapshotCmd.PersistentFlags().BoolVar(&snapshotOrg, "org", false, "print Org-mode entries instead of JSON")
	snapshotListCmd.Flags().StringVar(&snapshotFrom, "from", "", "first date (inclusive)")
	snapshotListCmd.Flags().StringVar(&snapshotTo, "to", "", "last date (inclusive)")
}

func openSnapshotDB() (*journal.SQLite, error) {
	path := snapshotDBPath
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Journal.DBPath
	}
	if path == "" {
		return nil, fmt.Errorf("no SQLite risk log: pass --db or set journal.db_path")
	}
	j, err := journal.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runSnapshotShow(cmd *cobra.Command, args []string) error {
	j, err := openSnapshotDB()
	if err != nil {
		return err
	}
	defer j.Close()

	s, err := j.GetSnapshot(args[0])
	if err != nil {
		return fmt.Errorf("get snapshot: %w", err)
	}
	if snapshotOrg {
		fmt.Println(journal.FormatSnapshotOrg(args[0], s))
		return nil
	}
	return printJSON(s)
}

func runSnapshotList(cmd *cobra.Command, args []string) error {
	j, err := openSnapshotDB()
	if err != nil {
		return err
	}
	defer j.Close()

	snaps, err := j.ListSnapshotsBetween(snapshotFrom, snapshotTo)
	if err != nil {
		return fmt.Errorf("query snapshots: %w", err)
	}
	if snapshotOrg {
		fmt.Println(journal.FormatSnapshotsOrg(snaps))
		return nil
	}
	for _, s := range snaps {
		fmt.Printf("%s  pnl %8.4f%%  trades %3d  win %.2f  pf %s\n",
			s.Date, 100*s.RealizedPnL, s.TotalTrades, s.WinRate, s.ProfitFactor)
	}
	return nil
}

func runSnapshotTrades(cmd *cobra.Command, args []string) error {
	j, err := openSnapshotDB()
	if err != nil {
		return err
	}
	defer j.Close()

	recs, err := j.ListTrades(args[0])
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	for _, r := range recs {
		fmt.Printf("%3d  %-6s %6d  %10s  %s\n", r.Seq, r.Symbol, r.Qty, r.PnL.StringFixed(2), r.Time.Format("2006-01-02 15:04"))
	}
	return nil
}
