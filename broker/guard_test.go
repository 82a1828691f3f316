package broker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradeguard/breaker"
	"github.com/rustyeddy/tradeguard/broker"
	"github.com/rustyeddy/tradeguard/broker/sim"
	"github.com/rustyeddy/tradeguard/risk"
)

func TestGuardedOpensAfterFailures(t *testing.T) {
	t.Parallel()

	e := sim.NewEngine(broker.Account{})
	cb := breaker.New(breaker.Settings{Name: "alpaca", FailureThreshold: 2, RecoveryTimeout: time.Minute})
	g := broker.WithBreaker(e, cb)
	ctx := context.Background()

	e.FailNext(sim.MethodFills, -1)
	for i := 0; i < 2; i++ {
		_, err := g.Fills(ctx, risk.FillQuery{})
		assert.ErrorIs(t, err, sim.ErrInjected)
	}
	assert.Equal(t, breaker.StateOpen, cb.State())

	_, err := g.Account(ctx)
	var open *breaker.OpenError
	require.True(t, errors.As(err, &open))
	assert.Equal(t, "alpaca", open.Name)
	assert.Equal(t, 0, e.Calls(sim.MethodAccount))

	_, err = g.DailyCloses(ctx, "SPY", 10)
	assert.ErrorIs(t, err, breaker.ErrOpen)
	assert.Same(t, cb, g.Breaker())
}

func TestGuardedPassesThrough(t *testing.T) {
	t.Parallel()

	e := sim.NewEngine(broker.Account{ID: "sim"})
	g := broker.WithBreaker(e, breaker.New(breaker.Settings{Name: "sim"}))

	a, err := g.Account(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sim", a.ID)
	assert.Equal(t, 1, e.Calls(sim.MethodAccount))
}
