// Package config loads the tradeguard YAML (or JSON) configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/tradeguard/allocation"
	"github.com/rustyeddy/tradeguard/breaker"
	"github.com/rustyeddy/tradeguard/broker/alpaca"
	"github.com/rustyeddy/tradeguard/journal"
	"github.com/rustyeddy/tradeguard/risk"
)

type Config struct {
	Breakers   BreakerConfig    `json:"breakers" yaml:"breakers"`
	Risk       RiskConfig       `json:"risk" yaml:"risk"`
	Allocation AllocationConfig `json:"allocation" yaml:"allocation"`
	Journal    JournalConfig    `json:"journal" yaml:"journal"`
	Alpaca     AlpacaConfig     `json:"alpaca" yaml:"alpaca"`
	Server     ServerConfig     `json:"server" yaml:"server"`
	Log        LogConfig        `json:"log" yaml:"log"`
}

type BreakerConfig struct {
	FailureThreshold int                       `json:"failure_threshold" yaml:"failure_threshold"`
	RecoveryTimeout  Duration                  `json:"recovery_timeout" yaml:"recovery_timeout"`
	Endpoints        map[string]EndpointConfig `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
}

// EndpointConfig overrides the breaker defaults for one endpoint. Zero
// fields inherit.
type EndpointConfig struct {
	FailureThreshold int      `json:"failure_threshold,omitempty" yaml:"failure_threshold,omitempty"`
	RecoveryTimeout  Duration `json:"recovery_timeout,omitempty" yaml:"recovery_timeout,omitempty"`
}

type RiskConfig struct {
	LookbackDays         int     `json:"lookback_days" yaml:"lookback_days"`
	HistoryMultiplier    int     `json:"history_multiplier" yaml:"history_multiplier"`
	PnLFloor             float64 `json:"pnl_floor" yaml:"pnl_floor"`
	PageSize             int     `json:"page_size" yaml:"page_size"`
	FallbackCapital      float64 `json:"fallback_capital" yaml:"fallback_capital"`
	TradeValueMultiplier float64 `json:"trade_value_multiplier" yaml:"trade_value_multiplier"`
	ParetoFraction       float64 `json:"pareto_fraction" yaml:"pareto_fraction"`
	AdmitIncompleteFills bool    `json:"admit_incomplete_fills,omitempty" yaml:"admit_incomplete_fills,omitempty"`
	Timezone             string  `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	TradesCSV            string  `json:"trades_csv,omitempty" yaml:"trades_csv,omitempty"`
}

type AllocationConfig struct {
	IndexSymbol  string  `json:"index_symbol" yaml:"index_symbol"`
	LookbackDays int     `json:"lookback_days" yaml:"lookback_days"`
	Threshold    float64 `json:"threshold" yaml:"threshold"`
}

type JournalConfig struct {
	Type      string `json:"type" yaml:"type"` // "json", "sqlite" or "redis"
	Path      string `json:"path,omitempty" yaml:"path,omitempty"`
	DBPath    string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	RedisAddr string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	RedisKey  string `json:"redis_key,omitempty" yaml:"redis_key,omitempty"`
}

// AlpacaConfig names the environment variables holding the credentials;
// secrets never live in the config file.
type AlpacaConfig struct {
	BaseURL   string `json:"base_url" yaml:"base_url"`
	KeyEnv    string `json:"key_env" yaml:"key_env"`
	SecretEnv string `json:"secret_env" yaml:"secret_env"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "console" or "json"
}

// LoadFromFile loads configuration from a file (YAML, falling back to JSON).
// Missing fields keep their Default values.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration as YAML for .yaml/.yml paths, JSON
// otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Breakers.FailureThreshold <= 0 {
		return fmt.Errorf("breakers.failure_threshold must be positive")
	}
	if c.Breakers.RecoveryTimeout.Duration <= 0 {
		return fmt.Errorf("breakers.recovery_timeout must be positive")
	}
	for name, ep := range c.Breakers.Endpoints {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("breakers.endpoints: empty endpoint name")
		}
		if ep.FailureThreshold < 0 || ep.RecoveryTimeout.Duration < 0 {
			return fmt.Errorf("breakers.endpoints.%s: values must not be negative", name)
		}
	}

	p, err := c.Policy()
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}

	if c.Allocation.LookbackDays < allocation.DefaultMAPeriod {
		return fmt.Errorf("allocation.lookback_days must be at least %d", allocation.DefaultMAPeriod)
	}
	if c.Allocation.Threshold <= 0 {
		return fmt.Errorf("allocation.threshold must be positive")
	}

	switch c.Journal.Type {
	case "json":
		if c.Journal.Path == "" {
			return fmt.Errorf("journal path required for json type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for sqlite type")
		}
	case "redis":
		if c.Journal.RedisAddr == "" {
			return fmt.Errorf("journal redis_addr required for redis type")
		}
	default:
		return fmt.Errorf("journal.type must be 'json', 'sqlite' or 'redis'")
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be 'console' or 'json'")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	p := risk.DefaultPolicy()
	return &Config{
		Breakers: BreakerConfig{
			FailureThreshold: breaker.DefaultFailureThreshold,
			RecoveryTimeout:  Duration{breaker.DefaultRecoveryTimeout},
		},
		Risk: RiskConfig{
			LookbackDays:         p.LookbackDays,
			HistoryMultiplier:    p.HistoryMultiplier,
			PnLFloor:             p.PnLFloor,
			PageSize:             p.PageSize,
			FallbackCapital:      p.FallbackCapital,
			TradeValueMultiplier: p.TradeValueMultiplier,
			ParetoFraction:       p.ParetoFraction,
			Timezone:             "UTC",
		},
		Allocation: AllocationConfig{
			IndexSymbol:  allocation.DefaultIndexSymbol,
			LookbackDays: allocation.DefaultLookbackDays,
			Threshold:    allocation.DefaultThreshold,
		},
		Journal: JournalConfig{
			Type: "json",
			Path: journal.DefaultJSONPath,
		},
		Alpaca: AlpacaConfig{
			BaseURL:   alpaca.PaperURL,
			KeyEnv:    "ALPACA_API_KEY",
			SecretEnv: "ALPACA_SECRET_KEY",
		},
		Server: ServerConfig{Addr: "127.0.0.1:8090"},
		Log:    LogConfig{Level: "info", Format: "console"},
	}
}

// Policy converts the risk section.
func (c *Config) Policy() (risk.Policy, error) {
	loc := time.UTC
	if tz := c.Risk.Timezone; tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return risk.Policy{}, fmt.Errorf("risk.timezone: %w", err)
		}
		loc = l
	}
	return risk.Policy{
		LookbackDays:         c.Risk.LookbackDays,
		HistoryMultiplier:    c.Risk.HistoryMultiplier,
		PnLFloor:             c.Risk.PnLFloor,
		PageSize:             c.Risk.PageSize,
		FallbackCapital:      c.Risk.FallbackCapital,
		TradeValueMultiplier: c.Risk.TradeValueMultiplier,
		ParetoFraction:       c.Risk.ParetoFraction,
		AdmitIncompleteFills: c.Risk.AdmitIncompleteFills,
		Location:             loc,
	}, nil
}

// BreakerDefaults are the registry-wide settings.
func (c *Config) BreakerDefaults() breaker.Settings {
	return breaker.Settings{
		FailureThreshold: c.Breakers.FailureThreshold,
		RecoveryTimeout:  c.Breakers.RecoveryTimeout.Duration,
	}
}

// Endpoints lists the per-endpoint overrides.
func (c *Config) Endpoints() []breaker.Endpoint {
	out := make([]breaker.Endpoint, 0, len(c.Breakers.Endpoints))
	for name, ep := range c.Breakers.Endpoints {
		out = append(out, breaker.Endpoint{
			Name:             name,
			FailureThreshold: ep.FailureThreshold,
			RecoveryTimeout:  ep.RecoveryTimeout.Duration,
		})
	}
	return out
}

func (c *Config) JournalConfig() journal.Config {
	return journal.Config{
		Type:      c.Journal.Type,
		Path:      c.Journal.Path,
		DBPath:    c.Journal.DBPath,
		RedisAddr: c.Journal.RedisAddr,
		RedisKey:  c.Journal.RedisKey,
	}
}

func (c *Config) ClassifierOptions() allocation.ClassifierOptions {
	return allocation.ClassifierOptions{Threshold: c.Allocation.Threshold}
}

// AlpacaCredentials reads the key and secret from the environment named by
// the alpaca section.
func (c *Config) AlpacaCredentials() alpaca.Config {
	return alpaca.Config{
		BaseURL:   c.Alpaca.BaseURL,
		APIKey:    os.Getenv(c.Alpaca.KeyEnv),
		APISecret: os.Getenv(c.Alpaca.SecretEnv),
	}
}

// LoadEnv loads .env style files into the process environment without
// overriding variables already set. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}
