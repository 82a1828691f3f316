package cmd

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradeguard/breaker"
	"github.com/rustyeddy/tradeguard/config"
	"github.com/rustyeddy/tradeguard/journal"
	"github.com/rustyeddy/tradeguard/risk"
	"github.com/rustyeddy/tradeguard/server"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func TestConfigInitThenValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tradeguard.yaml")

	require.NoError(t, execute(t, "config", "init", "-o", path))

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Risk.PnLFloor, cfg.Risk.PnLFloor)

	require.NoError(t, execute(t, "config", "validate", "-f", path))
}

func TestBreakerCommandsDriveServer(t *testing.T) {
	reg := breaker.NewRegistry(breaker.Settings{})
	reg.RegisterAll(nil, nil)
	srv := httptest.NewServer(server.New(server.DefaultConfig(), reg, nil, nil, zerolog.Nop()).Handler())
	defer srv.Close()

	require.NoError(t, execute(t, "breaker", "open", "alpaca", "--server", srv.URL))
	assert.Equal(t, breaker.StateOpen, reg.Get("alpaca").State())

	require.NoError(t, execute(t, "breaker", "status", "--server", srv.URL))
	require.NoError(t, execute(t, "breaker", "status", "alpaca", "--server", srv.URL))

	require.NoError(t, execute(t, "breaker", "reset", "--server", srv.URL))
	assert.Equal(t, breaker.StateClosed, reg.Get("alpaca").State())

	err := execute(t, "breaker", "close", "nope", "--server", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown breaker")
}

func TestSnapshotCommandsReadSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk.db")
	j, err := journal.NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, j.WriteAll(context.Background(), risk.SnapshotLog{
		"2024-08-27": {RealizedPnL: -0.012, TotalTrades: 2, LosingTrades: 2, ComputedAt: time.Now()},
	}))
	require.NoError(t, j.Close())

	require.NoError(t, execute(t, "snapshot", "show", "2024-08-27", "--db", path))
	require.NoError(t, execute(t, "snapshot", "show", "2024-08-27", "--db", path, "--org"))
	require.NoError(t, execute(t, "snapshot", "list", "--db", path))
	require.NoError(t, execute(t, "snapshot", "trades", "2024-08-27", "--db", path))

	err = execute(t, "snapshot", "show", "2024-08-28", "--db", path)
	require.ErrorIs(t, err, journal.ErrNotFound)
}

func TestVersion(t *testing.T) {
	require.NoError(t, execute(t, "version"))
}
