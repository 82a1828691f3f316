package allocation

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/tradeguard/broker"
	"github.com/rustyeddy/tradeguard/indicators"
	"github.com/rustyeddy/tradeguard/risk"
)

const (
	DefaultIndexSymbol  = "SPY"
	DefaultLookbackDays = 200

	MinPortfolioValue = 1000.0
	MaxPortfolioValue = 1e12
)

// Provider derives the trend and the capital split from a broker. Route the
// broker through a breaker (broker.WithBreaker) to protect the calls.
type Provider struct {
	broker   broker.Broker
	symbol   string
	lookback int
	opts     ClassifierOptions
	log      zerolog.Logger
}

type ProviderOption func(*Provider)

// WithIndexSymbol and WithLookbackDays ignore zero values.
func WithIndexSymbol(s string) ProviderOption {
	return func(p *Provider) {
		if s != "" {
			p.symbol = s
		}
	}
}

func WithLookbackDays(n int) ProviderOption {
	return func(p *Provider) {
		if n > 0 {
			p.lookback = n
		}
	}
}

func WithClassifierOptions(o ClassifierOptions) ProviderOption {
	return func(p *Provider) { p.opts = o }
}

func WithLogger(l zerolog.Logger) ProviderOption { return func(p *Provider) { p.log = l } }

func NewProvider(b broker.Broker, opts ...ProviderOption) *Provider {
	p := &Provider{
		broker:   b,
		symbol:   DefaultIndexSymbol,
		lookback: DefaultLookbackDays,
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Trend classifies the index from its recent daily closes.
func (p *Provider) Trend(ctx context.Context) (Trend, error) {
	bars, err := p.broker.DailyCloses(ctx, p.symbol, p.lookback)
	if err != nil {
		return "", fmt.Errorf("market data %s: %w", p.symbol, err)
	}
	closes := broker.Closes(bars)
	trend := Classify(closes, p.opts, p.log)

	ev := p.log.Info().Str("symbol", p.symbol).Int("bars", len(bars)).Str("trend", string(trend))
	if ma, err := indicators.MA(closes, p.opts.withDefaults().MAPeriod); err == nil {
		ev = ev.Float64("ma", ma)
	}
	if s := indicators.Last(SmoothedSlope(closes, p.opts)); !math.IsNaN(s) {
		ev = ev.Float64("slope", s)
	}
	ev.Msg("market trend")
	return trend, nil
}

// Capital implements risk.AccountSource.
func (p *Provider) Capital(ctx context.Context) (risk.Capital, error) {
	acct, err := p.broker.Account(ctx)
	if err != nil {
		return risk.Capital{}, fmt.Errorf("account: %w", err)
	}
	trend, err := p.Trend(ctx)
	if err != nil {
		return risk.Capital{}, err
	}
	reserved, err := ReservedFraction(trend)
	if err != nil {
		return risk.Capital{}, err
	}

	value := acct.PortfolioValue.InexactFloat64()
	return risk.Capital{AccountValue: value, ReservedFraction: reserved}, nil
}

type StrategyShare struct {
	Strategy Strategy `json:"strategy"`
	Ratio    float64  `json:"ratio"`
	Amount   float64  `json:"amount"`
}

type Summary struct {
	PortfolioValue float64         `json:"portfolio_value"`
	Trend          Trend           `json:"market_trend"`
	Allocations    []StrategyShare `json:"allocations"`
}

// Summary returns the portfolio value, the trend and every strategy's
// share and dollar target.
func (p *Provider) Summary(ctx context.Context) (Summary, error) {
	acct, err := p.broker.Account(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("account: %w", err)
	}
	value := acct.PortfolioValue.InexactFloat64()
	if err := ValidatePortfolioValue(value); err != nil {
		return Summary{}, err
	}

	trend, err := p.Trend(ctx)
	if err != nil {
		return Summary{}, err
	}
	alloc, err := For(trend)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{PortfolioValue: value, Trend: trend}
	for _, st := range alloc.Sorted() {
		s.Allocations = append(s.Allocations, StrategyShare{
			Strategy: st,
			Ratio:    alloc[st],
			Amount:   value * alloc[st],
		})
	}
	return s, nil
}

// TargetValue is the dollar amount strategy may deploy. A positive
// portfolioValue overrides the account value.
func (p *Provider) TargetValue(ctx context.Context, strategy string, portfolioValue float64) (float64, error) {
	st, err := ParseStrategy(strategy)
	if err != nil {
		return 0, err
	}

	if portfolioValue <= 0 {
		acct, err := p.broker.Account(ctx)
		if err != nil {
			return 0, fmt.Errorf("account: %w", err)
		}
		portfolioValue = acct.PortfolioValue.InexactFloat64()
	}
	if err := ValidatePortfolioValue(portfolioValue); err != nil {
		return 0, err
	}

	trend, err := p.Trend(ctx)
	if err != nil {
		return 0, err
	}
	alloc, err := For(trend)
	if err != nil {
		return 0, err
	}

	target := portfolioValue * alloc[st]
	p.log.Info().Str("strategy", string(st)).Float64("ratio", alloc[st]).Float64("target", target).
		Msg("strategy target value")
	return target, nil
}

func ValidatePortfolioValue(v float64) error {
	if v < MinPortfolioValue || v > MaxPortfolioValue {
		return fmt.Errorf("portfolio value must be between %.2f and %.2f, got %.2f",
			MinPortfolioValue, MaxPortfolioValue, v)
	}
	return nil
}

var _ risk.AccountSource = (*Provider)(nil)
