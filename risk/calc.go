package risk

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
)

// Ratio is a float64 whose JSON form can carry ±Inf as "Infinity" and
// "-Infinity". Profit factor and Calmar ratio are infinite when there is no
// loss or drawdown to divide by.
type Ratio float64

func (r Ratio) MarshalJSON() ([]byte, error) {
	f := float64(r)
	switch {
	case math.IsInf(f, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Infinity"`), nil
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	}
	return []byte(strconv.FormatFloat(f, 'f', -1, 64)), nil
}

func (r Ratio) String() string {
	f := float64(r)
	switch {
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func (r *Ratio) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		switch s {
		case "Infinity", "+Inf", "inf":
			*r = Ratio(math.Inf(1))
		case "-Infinity", "-Inf", "-inf":
			*r = Ratio(math.Inf(-1))
		case "NaN":
			*r = Ratio(math.NaN())
		default:
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return err
			}
			*r = Ratio(f)
		}
		return nil
	}

	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*r = Ratio(f)
	return nil
}

// StatsOptions tunes the derived metrics.
type StatsOptions struct {
	// TradeValueMultiplier scales the average trade value used to turn
	// average win/loss into percentages. 2 by default.
	TradeValueMultiplier float64

	// ParetoFraction is the share of top winners summed for the Pareto ratio.
	// 0.2 by default.
	ParetoFraction float64
}

func (o StatsOptions) withDefaults() StatsOptions {
	if o.TradeValueMultiplier <= 0 {
		o.TradeValueMultiplier = 2
	}
	if o.ParetoFraction <= 0 || o.ParetoFraction > 1 {
		o.ParetoFraction = 0.2
	}
	return o
}

// Stats are the metrics derived from one window of trade results.
type Stats struct {
	RealizedPnL      float64
	PnLRatio         float64
	TradeableCapital float64

	WinningTrades int
	LosingTrades  int
	TotalTrades   int

	TotalProfit float64
	TotalLoss   float64

	WinRate       float64
	ProfitFactor  float64
	AvgWin        float64
	AvgLoss       float64
	ExpectedValue float64
	AvgPnLRatio   float64

	MaxDrawdown      float64
	MaxDrawdownRatio float64
	CalmarRatio      float64
	ParetoRatio      float64
}

// Summarize derives win rate, profit factor, drawdown and friends from
// trades, in the order given. A trade with zero P&L counts as a loss.
func Summarize(trades []TradeResult, tradeableCapital float64, opts StatsOptions) Stats {
	opts = opts.withDefaults()
	s := Stats{TradeableCapital: tradeableCapital}

	var (
		wins       []float64
		cumulative float64
		peak       float64
	)
	for _, t := range trades {
		pnl := t.PnL.InexactFloat64()
		s.RealizedPnL += pnl

		if pnl > 0 {
			s.WinningTrades++
			s.TotalProfit += pnl
			wins = append(wins, pnl)
		} else {
			s.LosingTrades++
			s.TotalLoss += math.Abs(pnl)
		}

		cumulative += pnl
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > s.MaxDrawdown {
			s.MaxDrawdown = dd
		}
	}
	s.TotalTrades = s.WinningTrades + s.LosingTrades

	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades)
	}

	if s.TotalLoss > 0 {
		s.ProfitFactor = s.TotalProfit / s.TotalLoss
	} else {
		s.ProfitFactor = math.Inf(1)
	}

	if s.WinningTrades > 0 {
		s.AvgWin = s.TotalProfit / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AvgLoss = s.TotalLoss / float64(s.LosingTrades)
	}
	s.ExpectedValue = s.WinRate*s.AvgWin - (1-s.WinRate)*s.AvgLoss

	var avgTradeValue float64
	if s.TotalTrades > 0 {
		avgTradeValue = tradeableCapital / float64(s.TotalTrades)
	}
	var avgWinPct, avgLossPct float64
	if denom := avgTradeValue * opts.TradeValueMultiplier; denom > 0 {
		avgWinPct = s.AvgWin / denom
		avgLossPct = s.AvgLoss / denom
	}
	s.AvgPnLRatio = s.WinRate*avgWinPct - (1-s.WinRate)*avgLossPct

	if tradeableCapital > 0 {
		s.MaxDrawdownRatio = s.MaxDrawdown / tradeableCapital
		s.PnLRatio = s.RealizedPnL / tradeableCapital
	}

	if s.MaxDrawdown > 0 {
		s.CalmarRatio = s.RealizedPnL / s.MaxDrawdown
	} else {
		s.CalmarRatio = math.Inf(1)
	}

	s.ParetoRatio = paretoRatio(wins, s.TotalProfit, opts.ParetoFraction)
	return s
}

// paretoRatio is the share of total profit earned by the top fraction of
// winning trades (at least one trade).
func paretoRatio(wins []float64, totalProfit, fraction float64) float64 {
	if totalProfit <= 0 || len(wins) == 0 {
		return 0
	}
	sorted := append([]float64(nil), wins...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	n := max(1, int(float64(len(sorted))*fraction))
	var top float64
	for _, w := range sorted[:n] {
		top += w
	}
	return top / totalProfit
}

// round2 rounds to two decimal places, leaving ±Inf and NaN alone.
func round2(x float64) float64 {
	if math.IsInf(x, 0) || math.IsNaN(x) {
		return x
	}
	return math.Round(x*100) / 100
}
