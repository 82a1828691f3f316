package risk

import (
	"time"
)

// DateLayout formats the key of a daily snapshot.
const DateLayout = "2006-01-02"

// Snapshot is the persisted result of the first risk check of a day.
//
// RealizedPnL is the P&L ratio (fraction of tradeable capital) at full
// precision so a cached read returns exactly what the first computation
// returned. The remaining metrics are rounded to two places for display.
type Snapshot struct {
	RealizedPnL      float64 `json:"realized_pnl"`
	WinRate          float64 `json:"win_rate"`
	ProfitFactor     Ratio   `json:"profit_factor"`
	WinningTrades    int     `json:"winning_trades"`
	LosingTrades     int     `json:"losing_trades"`
	TotalTrades      int     `json:"total_trades"`
	AvgPnLRatio      float64 `json:"avg_pnl_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	MaxDrawdownRatio float64 `json:"max_drawdown_ratio"`
	ExpectedValue    float64 `json:"expected_value"`
	CalmarRatio      Ratio   `json:"calmar_ratio"`
	ParetoRatio      float64 `json:"pareto_ratio"`

	TradeableCapital float64   `json:"tradeable_capital,omitempty"`
	Degraded         bool      `json:"degraded,omitempty"`
	FillsIncomplete  bool      `json:"fills_incomplete,omitempty"`
	RunID            string    `json:"run_id,omitempty"`
	ComputedAt       time.Time `json:"computed_at,omitzero"`
}

// NewSnapshot converts stats to their persisted form.
func NewSnapshot(s Stats) Snapshot {
	return Snapshot{
		RealizedPnL:      s.PnLRatio,
		WinRate:          round2(s.WinRate),
		ProfitFactor:     Ratio(round2(s.ProfitFactor)),
		WinningTrades:    s.WinningTrades,
		LosingTrades:     s.LosingTrades,
		TotalTrades:      s.TotalTrades,
		AvgPnLRatio:      round2(s.AvgPnLRatio),
		MaxDrawdown:      round2(s.MaxDrawdown),
		MaxDrawdownRatio: round2(s.MaxDrawdownRatio),
		ExpectedValue:    round2(s.ExpectedValue),
		CalmarRatio:      Ratio(round2(s.CalmarRatio)),
		ParetoRatio:      round2(s.ParetoRatio),
		TradeableCapital: round2(s.TradeableCapital),
	}
}

// SnapshotLog is the whole date → snapshot log.
type SnapshotLog map[string]Snapshot
