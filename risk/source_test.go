package risk

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stuckSource struct{ calls int }

func (s *stuckSource) Fills(_ context.Context, q FillQuery) ([]Fill, error) {
	s.calls++
	page := make([]Fill, q.PageSize)
	for i := range page {
		page[i] = fill("same", "A", Buy, 1, 1, at(i))
	}
	return page, nil
}

func TestPaginateStopsOnStuckCursor(t *testing.T) {
	t.Parallel()

	src := &stuckSource{}
	res := Paginate(context.Background(), src, t0, at(10), 2, zerolog.Nop())
	assert.Equal(t, 2, src.calls)
	assert.Len(t, res.Fills, 4)
	assert.False(t, res.Degraded)
}

func TestPaginateEmpty(t *testing.T) {
	t.Parallel()

	res := Paginate(context.Background(), &fakeFills{}, t0, at(10), 100, zerolog.Nop())
	assert.Equal(t, 1, res.Pages)
	assert.Empty(t, res.Fills)
	assert.NoError(t, res.Err)
}

func TestPaginateCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &fakeFills{}
	res := Paginate(ctx, src, t0, at(10), 100, zerolog.Nop())
	require.ErrorIs(t, res.Err, context.Canceled)
	assert.True(t, res.Degraded)
	assert.Equal(t, 0, src.Calls())
}

func TestCapitalTradeable(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 15000.0, Capital{AccountValue: 100000, ReservedFraction: 0.85}.Tradeable(), 1e-9)
	assert.Equal(t, 100000.0, Capital{AccountValue: 100000}.Tradeable())
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	d := Evaluate(-0.05, -0.06)
	assert.True(t, d.Allowed)
	assert.Contains(t, d.String(), "admitted")

	d = Evaluate(-0.07, -0.06)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.String(), "PNL_FLOOR")
}

func TestPolicyValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultPolicy().Validate())

	tests := []struct {
		name string
		mut  func(*Policy)
	}{
		{"lookback zero", func(p *Policy) { p.LookbackDays = 0 }},
		{"lookback too long", func(p *Policy) { p.LookbackDays = 400 }},
		{"multiplier", func(p *Policy) { p.HistoryMultiplier = 0 }},
		{"floor", func(p *Policy) { p.PnLFloor = -1.5 }},
		{"page size", func(p *Policy) { p.PageSize = 0 }},
		{"fallback", func(p *Policy) { p.FallbackCapital = 0 }},
		{"trade value", func(p *Policy) { p.TradeValueMultiplier = -1 }},
		{"pareto", func(p *Policy) { p.ParetoFraction = 2 }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := DefaultPolicy()
			tt.mut(&p)
			assert.Error(t, p.Validate())
		})
	}
}
