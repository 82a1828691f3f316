package risk

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// lotQueue is the FIFO queue of open buy lots for one symbol.
type lotQueue struct {
	lots []Lot
}

func (q *lotQueue) push(l Lot) {
	q.lots = append(q.lots, l)
}

// consume takes up to qty shares off the front of the queue and calls fn for
// every (partial) lot it matched. It returns the quantity left unmatched.
func (q *lotQueue) consume(qty int64, fn func(matched int64, lot Lot)) int64 {
	for qty > 0 && len(q.lots) > 0 {
		front := &q.lots[0]
		matched := min(qty, front.Qty)
		if fn != nil {
			fn(matched, *front)
		}
		qty -= matched
		front.Qty -= matched
		if front.Qty == 0 {
			q.lots = q.lots[1:]
		}
	}
	return qty
}

// MatchResult is the output of FIFO matching.
type MatchResult struct {
	// Trades holds in-window matches in the order they were made.
	Trades      []TradeResult
	RealizedPnL decimal.Decimal
	Orphans     []Orphan

	// OpenLots is what remains unmatched per symbol after all fills.
	OpenLots map[string][]Lot

	Skipped int
}

// Match pairs sells with the oldest open buys of the same symbol.
//
// Fills are grouped by symbol in order of first appearance and stable-sorted
// by transaction time. Sells at or after windowStart realize P&L; earlier
// sells only deplete lots so later sells do not match shares that were
// already closed. Sell quantity beyond the open lots is reported as an Orphan
// and otherwise ignored.
func Match(fills []Fill, windowStart time.Time, log zerolog.Logger) MatchResult {
	res := MatchResult{
		RealizedPnL: decimal.Zero,
		OpenLots:    make(map[string][]Lot),
	}

	var order []string
	bySymbol := make(map[string][]Fill)
	for _, f := range fills {
		if err := f.Validate(); err != nil {
			log.Warn().Err(err).Msg("skipping malformed fill")
			res.Skipped++
			continue
		}
		if _, ok := bySymbol[f.Symbol]; !ok {
			order = append(order, f.Symbol)
		}
		bySymbol[f.Symbol] = append(bySymbol[f.Symbol], f)
	}

	for _, sym := range order {
		fs := bySymbol[sym]
		sort.SliceStable(fs, func(i, j int) bool {
			return fs[i].TransactionTime.Before(fs[j].TransactionTime)
		})

		q := &lotQueue{}
		for _, f := range fs {
			switch f.Side {
			case Buy:
				q.push(Lot{Qty: f.Qty, Price: f.Price, Time: f.TransactionTime})

			case Sell:
				if f.TransactionTime.Before(windowStart) {
					left := q.consume(f.Qty, nil)
					if left > 0 {
						log.Debug().Str("symbol", sym).Int64("unmatched", left).
							Msg("pre-window sell exceeds open lots")
					}
					continue
				}

				left := q.consume(f.Qty, func(matched int64, lot Lot) {
					pnl := f.Price.Sub(lot.Price).Mul(decimal.NewFromInt(matched))
					res.RealizedPnL = res.RealizedPnL.Add(pnl)
					res.Trades = append(res.Trades, TradeResult{
						Symbol: sym,
						Qty:    matched,
						PnL:    pnl,
						Time:   f.TransactionTime,
					})
				})
				if left > 0 {
					log.Warn().
						Str("symbol", sym).
						Str("fill_id", f.ID).
						Int64("sell_qty", f.Qty).
						Int64("unmatched", left).
						Msg("sold more shares than were bought; remainder ignored")
					res.Orphans = append(res.Orphans, Orphan{
						Symbol: sym,
						FillID: f.ID,
						Qty:    left,
						Time:   f.TransactionTime,
					})
				}
			}
		}
		if len(q.lots) > 0 {
			res.OpenLots[sym] = q.lots
		}
	}
	return res
}
