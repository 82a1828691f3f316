package risk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TradeSink receives the matched trades of every fresh computation.
type TradeSink interface {
	RecordTrades(date string, trades []TradeResult) error
}

// Observer is told about every snapshot and decision, e.g. to export metrics.
type Observer interface {
	ObserveSnapshot(date string, s Snapshot)
	ObserveDecision(d Decision)
}

// Gate decides, once per calendar day, whether strategies may open new
// positions given their trailing realized P&L.
type Gate struct {
	policy  Policy
	fills   FillSource
	account AccountSource
	store   SnapshotStore

	log      zerolog.Logger
	now      func() time.Time
	newID    func() string
	observer Observer
	sink     TradeSink

	// serialises compute-and-store so concurrent first-of-day callers
	// fetch fills once
	mu sync.Mutex
}

type GateOption func(*Gate)

func WithLogger(l zerolog.Logger) GateOption { return func(g *Gate) { g.log = l } }

func WithClock(now func() time.Time) GateOption { return func(g *Gate) { g.now = now } }

func WithIDs(newID func() string) GateOption { return func(g *Gate) { g.newID = newID } }

func WithObserver(o Observer) GateOption { return func(g *Gate) { g.observer = o } }

func WithTradeSink(s TradeSink) GateOption { return func(g *Gate) { g.sink = s } }

var ErrNoFillSource = errors.New("risk: fill source is required")

func NewGate(p Policy, fills FillSource, account AccountSource, store SnapshotStore, opts ...GateOption) (*Gate, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("risk policy: %w", err)
	}
	if fills == nil {
		return nil, ErrNoFillSource
	}
	if store == nil {
		return nil, errors.New("risk: snapshot store is required")
	}

	g := &Gate{
		policy:  p,
		fills:   fills,
		account: account,
		store:   store,
		log:     zerolog.Nop(),
		now:     time.Now,
		newID:   func() string { return "" },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *Gate) Policy() Policy { return g.policy }

// Date is today's snapshot key.
func (g *Gate) Date() string {
	return g.now().In(g.policy.location()).Format(DateLayout)
}

// ComputeDailyPnL returns the trailing realized P&L as a fraction of
// tradeable capital using the policy's lookback and history multiplier.
func (g *Gate) ComputeDailyPnL(ctx context.Context) (float64, error) {
	return g.ComputeDailyPnLWith(ctx, g.policy.LookbackDays, g.policy.HistoryMultiplier)
}

// ComputeDailyPnLWith is ComputeDailyPnL with an explicit window. The first
// result of a day is stored and returned for the rest of that day whatever
// the window arguments.
//
// Broker failures degrade the result rather than fail it. Only an
// unreadable snapshot log is an error.
func (g *Gate) ComputeDailyPnLWith(ctx context.Context, lookbackDays, historyMultiplier int) (float64, error) {
	snap, err := g.daily(ctx, lookbackDays, historyMultiplier)
	if err != nil {
		return 0, err
	}
	return snap.RealizedPnL, nil
}

// daily returns today's snapshot, computing and storing it on first use.
func (g *Gate) daily(ctx context.Context, lookbackDays, historyMultiplier int) (Snapshot, error) {
	if err := validateWindow(lookbackDays, historyMultiplier); err != nil {
		return Snapshot{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().In(g.policy.location())
	date := now.Format(DateLayout)
	log := g.log.With().Str("date", date).Logger()

	entries, err := g.store.ReadAll(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read risk log: %w", err)
	}
	if entries == nil {
		entries = make(SnapshotLog)
	}
	if snap, ok := entries[date]; ok {
		log.Info().Float64("realized_pnl", snap.RealizedPnL).Msg("using cached risk snapshot")
		return snap, nil
	}

	tradeable, degraded := g.tradeableCapital(ctx, log)

	end := now
	windowStart := end.Add(-days(lookbackDays))
	fetchStart := end.Add(-days(lookbackDays * historyMultiplier))

	pages := Paginate(ctx, g.fills, fetchStart, end, g.policy.PageSize, log)
	degraded = degraded || pages.Degraded
	log.Debug().Int("fills", len(pages.Fills)).Int("pages", pages.Pages).Msg("fetched fills")

	m := Match(pages.Fills, windowStart, log)
	stats := Summarize(m.Trades, tradeable, StatsOptions{
		TradeValueMultiplier: g.policy.TradeValueMultiplier,
		ParetoFraction:       g.policy.ParetoFraction,
	})

	snap := NewSnapshot(stats)
	snap.Degraded = degraded
	snap.FillsIncomplete = pages.Degraded
	snap.RunID = g.newID()
	snap.ComputedAt = now

	entries[date] = snap
	if err := g.store.WriteAll(ctx, entries); err != nil {
		log.Error().Err(err).Msg("failed to persist risk snapshot")
	}
	if g.sink != nil && len(m.Trades) > 0 {
		if err := g.sink.RecordTrades(date, m.Trades); err != nil {
			log.Error().Err(err).Msg("failed to record matched trades")
		}
	}
	if g.observer != nil {
		g.observer.ObserveSnapshot(date, snap)
	}

	log.Info().
		Float64("pnl_ratio", stats.PnLRatio).
		Float64("win_rate", stats.WinRate).
		Float64("profit_factor", stats.ProfitFactor).
		Int("total_trades", stats.TotalTrades).
		Float64("avg_pnl_ratio", stats.AvgPnLRatio).
		Float64("max_drawdown_ratio", stats.MaxDrawdownRatio).
		Float64("expected_value", stats.ExpectedValue).
		Float64("calmar_ratio", stats.CalmarRatio).
		Float64("pareto_ratio", stats.ParetoRatio).
		Int("orphan_sells", len(m.Orphans)).
		Bool("degraded", degraded).
		Bool("fills_incomplete", pages.Degraded).
		Msg("computed daily risk snapshot")

	return snap, nil
}

func (g *Gate) tradeableCapital(ctx context.Context, log zerolog.Logger) (float64, bool) {
	fallback := g.policy.FallbackCapital
	if g.account == nil {
		log.Warn().Float64("fallback_capital", fallback).Msg("no account source, using fallback capital")
		return fallback, true
	}

	c, err := g.account.Capital(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to get account information")
		log.Warn().Float64("fallback_capital", fallback).Msg("using fallback capital due to account access failure")
		return fallback, true
	}

	tradeable := c.Tradeable()
	if tradeable <= 0 {
		log.Warn().
			Float64("account_value", c.AccountValue).
			Float64("reserved_fraction", c.ReservedFraction).
			Float64("fallback_capital", fallback).
			Msg("tradeable capital is not positive, using fallback capital")
		return fallback, true
	}

	log.Info().
		Float64("account_value", c.AccountValue).
		Float64("reserved_fraction", c.ReservedFraction).
		Float64("tradeable_capital", tradeable).
		Msg("calculated tradeable capital")
	return tradeable, false
}

// Admit evaluates the policy floor against today's P&L ratio.
func (g *Gate) Admit(ctx context.Context) (Decision, error) {
	return g.AdmitWith(ctx, g.policy.LookbackDays, g.policy.PnLFloor)
}

// AdmitWith fails closed: if the P&L cannot be computed the decision is a
// denial and the error is returned alongside it.
func (g *Gate) AdmitWith(ctx context.Context, lookbackDays int, floor float64) (Decision, error) {
	date := g.Date()
	if err := validateFloor(floor); err != nil {
		d := Decision{Date: date, PnLFloor: floor}
		d.add("BAD_FLOOR", err.Error())
		return d, err
	}

	snap, err := g.daily(ctx, lookbackDays, g.policy.HistoryMultiplier)
	if err != nil {
		d := Decision{Date: date, PnLFloor: floor}
		d.add("PNL_UNAVAILABLE", err.Error())
		g.log.Error().Err(err).Str("date", date).Msg("risk check failed, new trading halted")
		g.observe(d)
		return d, err
	}

	pnl := snap.RealizedPnL
	d := Evaluate(pnl, floor)
	d.Date = date
	if snap.FillsIncomplete && !g.policy.AdmitIncompleteFills {
		d.add("FILLS_INCOMPLETE", "fill history could not be fetched in full, P&L may be understated")
	}
	if d.Allowed {
		g.log.Info().Str("date", date).Float64("pnl_ratio", pnl).Float64("pnl_floor", floor).
			Msg("risk check passed")
	} else {
		g.log.Warn().Str("date", date).Float64("pnl_ratio", pnl).Float64("pnl_floor", floor).
			Str("code", d.Violations[0].Code).
			Msg("new trading halted for the day")
	}
	g.observe(d)
	return d, nil
}

// IsAdmitted is the boolean form of AdmitWith.
func (g *Gate) IsAdmitted(ctx context.Context, lookbackDays int, floor float64) bool {
	d, _ := g.AdmitWith(ctx, lookbackDays, floor)
	return d.Allowed
}

// Today returns today's stored snapshot, if any.
func (g *Gate) Today(ctx context.Context) (Snapshot, bool, error) {
	entries, err := g.store.ReadAll(ctx)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("read risk log: %w", err)
	}
	s, ok := entries[g.Date()]
	return s, ok, nil
}

func (g *Gate) observe(d Decision) {
	if g.observer != nil {
		g.observer.ObserveDecision(d)
	}
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
