package journal

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradeguard/risk"
)

func TestJSONFileMissingIsEmpty(t *testing.T) {
	t.Parallel()

	j := NewJSONFile(filepath.Join(t.TempDir(), "pnl_log.json"))
	log, err := j.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, log)
}

func TestJSONFileRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pnl_log.json")
	j := NewJSONFile(path)
	ctx := context.Background()

	in := risk.SnapshotLog{
		"2024-08-26": {RealizedPnL: -0.01, ProfitFactor: 0.5, CalmarRatio: 1.2, TotalTrades: 3},
		"2024-08-27": sampleSnapshot(),
	}
	require.NoError(t, j.WriteAll(ctx, in))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"calmar_ratio": "Infinity"`)
	assert.True(t, strings.HasPrefix(string(data), "{\n    \""))

	out, err := j.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	got := out["2024-08-27"]
	assert.Equal(t, 0.0125, got.RealizedPnL)
	assert.True(t, math.IsInf(float64(got.CalmarRatio), 1))
	assert.True(t, got.ComputedAt.Equal(in["2024-08-27"].ComputedAt))
	assert.Equal(t, in["2024-08-26"], out["2024-08-26"])
}

func TestJSONFileNoTempLeftBehind(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	j := NewJSONFile(filepath.Join(dir, "pnl_log.json"))
	require.NoError(t, j.WriteAll(context.Background(), risk.SnapshotLog{"2024-08-27": sampleSnapshot()}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "pnl_log.json", entries[0].Name())
}

func TestJSONFileCorrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pnl_log.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewJSONFile(path).ReadAll(context.Background())
	assert.ErrorContains(t, err, "parse")
}

func TestJSONFileEmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pnl_log.json")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	log, err := NewJSONFile(path).ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, log)
}
