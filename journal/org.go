package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/tradeguard/risk"
)

// FormatSnapshotOrg renders one daily snapshot as an Org-mode entry. The
// metrics go into a PROPERTIES drawer so they are searchable; the Notes
// heading is left for the trader.
func FormatSnapshotOrg(date string, s risk.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** Risk: %s (%s)\n", date, verdict(s))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":DATE: %s\n", date)
	if s.RunID != "" {
		fmt.Fprintf(&b, ":ID: %s\n", s.RunID)
	}
	fmt.Fprintf(&b, ":REALIZED_PNL: %.4f\n", s.RealizedPnL)
	fmt.Fprintf(&b, ":WIN_RATE: %.2f\n", s.WinRate)
	fmt.Fprintf(&b, ":PROFIT_FACTOR: %s\n", s.ProfitFactor)
	fmt.Fprintf(&b, ":TRADES: %d (%dW/%dL)\n", s.TotalTrades, s.WinningTrades, s.LosingTrades)
	fmt.Fprintf(&b, ":MAX_DRAWDOWN: %.2f\n", s.MaxDrawdown)
	fmt.Fprintf(&b, ":MAX_DRAWDOWN_RATIO: %.2f\n", s.MaxDrawdownRatio)
	fmt.Fprintf(&b, ":EXPECTED_VALUE: %.2f\n", s.ExpectedValue)
	fmt.Fprintf(&b, ":CALMAR: %s\n", s.CalmarRatio)
	fmt.Fprintf(&b, ":PARETO: %.2f\n", s.ParetoRatio)
	if s.TradeableCapital > 0 {
		fmt.Fprintf(&b, ":CAPITAL: %.2f\n", s.TradeableCapital)
	}
	if s.Degraded {
		b.WriteString(":DEGRADED: t\n")
	}
	if s.FillsIncomplete {
		b.WriteString(":FILLS_INCOMPLETE: t\n")
	}
	if !s.ComputedAt.IsZero() {
		fmt.Fprintf(&b, ":COMPUTED_AT: %s\n", s.ComputedAt.UTC().Format(time.RFC3339))
	}
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Notes\n- \n")

	return b.String()
}

// FormatSnapshotsOrg renders multiple snapshots separated by blank lines.
func FormatSnapshotsOrg(snaps []DatedSnapshot) string {
	var b strings.Builder
	for i, s := range snaps {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatSnapshotOrg(s.Date, s.Snapshot))
	}
	return b.String()
}

func verdict(s risk.Snapshot) string {
	switch {
	case s.TotalTrades == 0:
		return "flat"
	case s.RealizedPnL > 0:
		return "up"
	case s.RealizedPnL < 0:
		return "down"
	}
	return "even"
}
