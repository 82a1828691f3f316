package journal

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradeguard/risk"
)

func sampleSnapshot() risk.Snapshot {
	return risk.Snapshot{
		RealizedPnL:      0.0125,
		WinRate:          0.5,
		ProfitFactor:     risk.Ratio(2.5),
		WinningTrades:    2,
		LosingTrades:     2,
		TotalTrades:      4,
		AvgPnLRatio:      0.06,
		MaxDrawdown:      200,
		MaxDrawdownRatio: 0.2,
		ExpectedValue:    312.5,
		CalmarRatio:      risk.Ratio(math.Inf(1)),
		ParetoRatio:      0.33,
		TradeableCapital: 100000,
		RunID:            "01J6ABCDEF",
		ComputedAt:       time.Date(2024, 8, 27, 15, 0, 0, 0, time.UTC),
	}
}

func sampleTrades() []risk.TradeResult {
	return []risk.TradeResult{
		{Symbol: "AAPL", Qty: 10, PnL: decimal.RequireFromString("150.25"), Time: time.Date(2024, 8, 26, 14, 0, 0, 0, time.UTC)},
		{Symbol: "MSFT", Qty: 5, PnL: decimal.RequireFromString("-20"), Time: time.Date(2024, 8, 26, 15, 0, 0, 0, time.UTC)},
	}
}

func TestRecordsNumbersInMatchOrder(t *testing.T) {
	t.Parallel()

	recs := Records("2024-08-27", sampleTrades())
	require.Len(t, recs, 2)
	assert.Equal(t, 1, recs[0].Seq)
	assert.Equal(t, "AAPL", recs[0].Symbol)
	assert.Equal(t, 2, recs[1].Seq)
	assert.Equal(t, "2024-08-27", recs[1].Date)
	assert.True(t, recs[1].PnL.Equal(decimal.NewFromInt(-20)))
}

func TestOpenSelectsBackend(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	j, err := Open(ctx, Config{Path: filepath.Join(dir, "log.json")})
	require.NoError(t, err)
	assert.IsType(t, &JSONFile{}, j)
	assert.NoError(t, j.Close())

	s, err := Open(ctx, Config{Type: "sqlite", DBPath: filepath.Join(dir, "log.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	assert.NoError(t, s.Close())

	_, err = Open(ctx, Config{Type: "sqlite"})
	assert.Error(t, err)
	_, err = Open(ctx, Config{Type: "redis"})
	assert.Error(t, err)
	_, err = Open(ctx, Config{Type: "mongo"})
	assert.ErrorContains(t, err, "unknown journal type")
}
