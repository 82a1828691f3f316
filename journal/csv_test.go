package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestTradeCSVHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")
	j, err := NewTradeCSV(path)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	rows := readCSV(t, path)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"date", "seq", "symbol", "qty", "pnl", "time"}, rows[0])
}

func TestTradeCSVRecordTrades(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")
	j, err := NewTradeCSV(path)
	require.NoError(t, err)
	require.NoError(t, j.RecordTrades("2024-08-27", sampleTrades()))
	require.NoError(t, j.Close())

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"2024-08-27", "1", "AAPL", "10", "150.25", "2024-08-26T14:00:00Z"}, rows[1])
	assert.Equal(t, []string{"2024-08-27", "2", "MSFT", "5", "-20.00", "2024-08-26T15:00:00Z"}, rows[2])
}

func TestTradeCSVAppendKeepsSingleHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")
	for i := 0; i < 2; i++ {
		j, err := NewTradeCSV(path)
		require.NoError(t, err)
		require.NoError(t, j.RecordTrades("2024-08-27", sampleTrades()[:1]))
		require.NoError(t, j.Close())
	}

	rows := readCSV(t, path)
	assert.Len(t, rows, 3)
	assert.Equal(t, "date", rows[0][0])
	assert.Equal(t, "AAPL", rows[2][2])
}
