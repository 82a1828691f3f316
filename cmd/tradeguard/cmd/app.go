package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/tradeguard/allocation"
	"github.com/rustyeddy/tradeguard/breaker"
	"github.com/rustyeddy/tradeguard/broker"
	"github.com/rustyeddy/tradeguard/broker/alpaca"
	"github.com/rustyeddy/tradeguard/config"
	"github.com/rustyeddy/tradeguard/journal"
	"github.com/rustyeddy/tradeguard/logging"
	"github.com/rustyeddy/tradeguard/metrics"
	"github.com/rustyeddy/tradeguard/pkg/id"
	"github.com/rustyeddy/tradeguard/risk"
)

// app holds everything a command may need. Parts are built on demand so
// offline commands never need broker credentials.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	prom     *prometheus.Registry
	metrics  *metrics.Collectors
	breakers *breaker.Registry

	broker broker.Broker
	alloc  *allocation.Provider
	store  journal.RiskLog
	sink   risk.TradeSink
	gate   *risk.Gate

	closers []io.Closer
}

func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadFromFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newApp loads the environment and config and builds the logger, metrics
// and breaker registry.
func newApp() (*app, error) {
	if err := config.LoadEnv(envFiles...); err != nil {
		return nil, err
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	log, err := logging.New(os.Stderr, level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, prom: prometheus.NewRegistry()}
	a.metrics = metrics.New(a.prom)

	defaults := a.metrics.Hook(cfg.BreakerDefaults())
	defaults.Logger = &a.log
	a.breakers = breaker.NewRegistry(defaults)
	a.breakers.RegisterAll(cfg.Endpoints(), &a.log)
	a.metrics.Sync(a.breakers)
	return a, nil
}

// withBroker connects to Alpaca behind the "alpaca" breaker.
func (a *app) withBroker() error {
	if a.broker != nil {
		return nil
	}
	client, err := alpaca.New(a.cfg.AlpacaCredentials(), a.log.With().Str("component", "alpaca").Logger())
	if err != nil {
		return fmt.Errorf("alpaca: %w", err)
	}
	a.broker = broker.WithBreaker(client, a.breakers.Get("alpaca"))
	a.alloc = allocation.NewProvider(a.broker,
		allocation.WithIndexSymbol(a.cfg.Allocation.IndexSymbol),
		allocation.WithLookbackDays(a.cfg.Allocation.LookbackDays),
		allocation.WithClassifierOptions(a.cfg.ClassifierOptions()),
		allocation.WithLogger(a.log.With().Str("component", "allocation").Logger()),
	)
	return nil
}

// withGate opens the risk log and builds the gate on top of the broker.
func (a *app) withGate(ctx context.Context) error {
	if a.gate != nil {
		return nil
	}
	if err := a.withBroker(); err != nil {
		return err
	}
	policy, err := a.cfg.Policy()
	if err != nil {
		return err
	}

	store, err := journal.Open(ctx, a.cfg.JournalConfig())
	if err != nil {
		return fmt.Errorf("open risk log: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store)

	opts := []risk.GateOption{
		risk.WithLogger(a.log.With().Str("component", "risk").Logger()),
		risk.WithObserver(a.metrics),
		risk.WithIDs(id.New),
	}
	if path := a.cfg.Risk.TradesCSV; path != "" {
		csv, err := journal.NewTradeCSV(path)
		if err != nil {
			return fmt.Errorf("open trades csv: %w", err)
		}
		a.closers = append(a.closers, csv)
		a.sink = csv
	} else if db, ok := store.(*journal.SQLite); ok {
		a.sink = db
	}
	if a.sink != nil {
		opts = append(opts, risk.WithTradeSink(a.sink))
	}

	a.gate, err = risk.NewGate(policy, a.broker, a.alloc, store, opts...)
	return err
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.Warn().Err(err).Msg("close")
		}
	}
}
