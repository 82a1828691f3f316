// Package broker is the capability interface the risk gate and the trend
// classifier need from a brokerage: account value, the fill activity feed
// and daily closes.
package broker

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradeguard/risk"
)

type Broker interface {
	Account(ctx context.Context) (Account, error)

	// Fills returns one page of executions in [q.Start, q.End], oldest
	// first. It satisfies risk.FillSource.
	Fills(ctx context.Context, q risk.FillQuery) ([]risk.Fill, error)

	// DailyCloses returns the closing prices of symbol for the calendar
	// days ending today, oldest first.
	DailyCloses(ctx context.Context, symbol string, days int) ([]Bar, error)
}

type Account struct {
	ID             string
	Currency       string
	Status         string
	Cash           decimal.Decimal
	Equity         decimal.Decimal
	PortfolioValue decimal.Decimal
}

type Bar struct {
	Time  time.Time
	Close float64
}

// Closes extracts the close prices of bars.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

var ErrNotConfigured = errors.New("broker not configured")
