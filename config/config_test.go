package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	p, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, 30, p.LookbackDays)
	assert.Equal(t, 3, p.HistoryMultiplier)
	assert.Equal(t, -0.06, p.PnLFloor)
	assert.Equal(t, time.UTC, p.Location)
	assert.False(t, p.AdmitIncompleteFills)

	st := cfg.BreakerDefaults()
	assert.Equal(t, 5, st.FailureThreshold)
	assert.Equal(t, 60*time.Second, st.RecoveryTimeout)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tradeguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
breakers:
  failure_threshold: 4
  recovery_timeout: 90s
  endpoints:
    alpaca: {failure_threshold: 3, recovery_timeout: 30s}
risk:
  lookback_days: 20
  pnl_floor: -0.05
  timezone: America/New_York
  admit_incomplete_fills: true
journal:
  type: sqlite
  db_path: /tmp/tradeguard.sqlite
log:
  level: debug
  format: json
`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Breakers.FailureThreshold)
	assert.Equal(t, 90*time.Second, cfg.Breakers.RecoveryTimeout.Duration)
	eps := cfg.Endpoints()
	require.Len(t, eps, 1)
	assert.Equal(t, "alpaca", eps[0].Name)
	assert.Equal(t, 3, eps[0].FailureThreshold)
	assert.Equal(t, 30*time.Second, eps[0].RecoveryTimeout)

	// untouched fields keep defaults
	assert.Equal(t, 3, cfg.Risk.HistoryMultiplier)
	assert.Equal(t, 100, cfg.Risk.PageSize)

	p, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, 20, p.LookbackDays)
	assert.Equal(t, "America/New_York", p.Location.String())
	assert.True(t, p.AdmitIncompleteFills)

	jc := cfg.JournalConfig()
	assert.Equal(t, "sqlite", jc.Type)
	assert.Equal(t, "/tmp/tradeguard.sqlite", jc.DBPath)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tradeguard.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "breakers": {"failure_threshold": 2, "recovery_timeout": 15},
  "journal": {"type": "redis", "redis_addr": "localhost:6379"}
}`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Breakers.FailureThreshold)
	assert.Equal(t, 15*time.Second, cfg.Breakers.RecoveryTimeout.Duration)
	assert.Equal(t, "redis", cfg.Journal.Type)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Breakers.Endpoints = map[string]EndpointConfig{
		"fmp": {FailureThreshold: 8, RecoveryTimeout: Duration{2 * time.Minute}},
	}

	for _, name := range []string{"out.yaml", "out.json"} {
		path := filepath.Join(dir, name)
		require.NoError(t, cfg.SaveToFile(path))

		got, err := LoadFromFile(path)
		require.NoError(t, err, name)
		assert.Equal(t, cfg, got, name)
	}

	data, err := os.ReadFile(filepath.Join(dir, "out.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "recovery_timeout: 1m0s")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"threshold", func(c *Config) { c.Breakers.FailureThreshold = 0 }, "failure_threshold"},
		{"timeout", func(c *Config) { c.Breakers.RecoveryTimeout = Duration{} }, "recovery_timeout"},
		{"negative endpoint", func(c *Config) {
			c.Breakers.Endpoints = map[string]EndpointConfig{"alpaca": {FailureThreshold: -1}}
		}, "alpaca"},
		{"lookback", func(c *Config) { c.Risk.LookbackDays = 0 }, "risk"},
		{"floor", func(c *Config) { c.Risk.PnLFloor = -2 }, "risk"},
		{"timezone", func(c *Config) { c.Risk.Timezone = "Mars/Olympus" }, "timezone"},
		{"allocation lookback", func(c *Config) { c.Allocation.LookbackDays = 10 }, "allocation.lookback_days"},
		{"allocation threshold", func(c *Config) { c.Allocation.Threshold = 0 }, "allocation.threshold"},
		{"journal type", func(c *Config) { c.Journal.Type = "csv" }, "journal.type"},
		{"json path", func(c *Config) { c.Journal.Path = "" }, "journal path"},
		{"sqlite path", func(c *Config) { c.Journal.Type = "sqlite" }, "db_path"},
		{"redis addr", func(c *Config) { c.Journal.Type = "redis" }, "redis_addr"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("breakers: [unclosed"), 0644))
	_, err = LoadFromFile(path)
	assert.ErrorContains(t, err, "parse config")

	path = filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("journal:\n  type: mongo\n"), 0644))
	_, err = LoadFromFile(path)
	assert.ErrorContains(t, err, "invalid config")
}

func TestAlpacaCredentialsFromEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("TG_TEST_KEY=abc\nTG_TEST_SECRET=xyz\n"), 0644))
	t.Cleanup(func() {
		os.Unsetenv("TG_TEST_KEY")
		os.Unsetenv("TG_TEST_SECRET")
	})

	require.NoError(t, LoadEnv(envFile, filepath.Join(dir, "missing.env")))

	cfg := Default()
	cfg.Alpaca.KeyEnv = "TG_TEST_KEY"
	cfg.Alpaca.SecretEnv = "TG_TEST_SECRET"
	creds := cfg.AlpacaCredentials()
	assert.Equal(t, "abc", creds.APIKey)
	assert.Equal(t, "xyz", creds.APISecret)
	assert.NoError(t, creds.Validate())
}

func TestDurationParse(t *testing.T) {
	var d Duration
	require.NoError(t, d.parse("45"))
	assert.Equal(t, 45*time.Second, d.Duration)
	require.NoError(t, d.parse("1m30s"))
	assert.Equal(t, 90*time.Second, d.Duration)
	assert.Error(t, d.parse("soon"))
}
