package broker

import (
	"context"

	"github.com/rustyeddy/tradeguard/breaker"
	"github.com/rustyeddy/tradeguard/risk"
)

// Guarded routes every call of a Broker through one circuit breaker.
type Guarded struct {
	next Broker
	cb   *breaker.Breaker
}

func WithBreaker(next Broker, cb *breaker.Breaker) *Guarded {
	return &Guarded{next: next, cb: cb}
}

func (g *Guarded) Breaker() *breaker.Breaker { return g.cb }

func (g *Guarded) Account(ctx context.Context) (Account, error) {
	return breaker.Call(g.cb, func() (Account, error) {
		return g.next.Account(ctx)
	})
}

func (g *Guarded) Fills(ctx context.Context, q risk.FillQuery) ([]risk.Fill, error) {
	return breaker.Call(g.cb, func() ([]risk.Fill, error) {
		return g.next.Fills(ctx, q)
	})
}

func (g *Guarded) DailyCloses(ctx context.Context, symbol string, days int) ([]Bar, error) {
	return breaker.Call(g.cb, func() ([]Bar, error) {
		return g.next.DailyCloses(ctx, symbol, days)
	})
}

var _ Broker = (*Guarded)(nil)
