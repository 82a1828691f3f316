// Package journal persists the daily risk log and the matched trades behind
// it. Backends: a JSON file, SQLite and Redis.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradeguard/risk"
)

// RiskLog is the date → snapshot store the risk gate reads and replaces.
type RiskLog interface {
	risk.SnapshotStore
	Close() error
}

// TradeRecord is one matched sell-against-buy row in the audit trail.
type TradeRecord struct {
	Date   string
	Seq    int
	Symbol string
	Qty    int64
	PnL    decimal.Decimal
	Time   time.Time
}

// Records numbers the trades of one day in match order.
func Records(date string, trades []risk.TradeResult) []TradeRecord {
	out := make([]TradeRecord, len(trades))
	for i, t := range trades {
		out[i] = TradeRecord{
			Date:   date,
			Seq:    i + 1,
			Symbol: t.Symbol,
			Qty:    t.Qty,
			PnL:    t.PnL,
			Time:   t.Time,
		}
	}
	return out
}

// Config selects and configures a backend.
type Config struct {
	Type      string // "json", "sqlite" or "redis"
	Path      string // json
	DBPath    string // sqlite
	RedisAddr string // redis
	RedisKey  string // redis, DefaultRedisKey when empty
}

// Open returns the RiskLog for cfg.Type.
func Open(ctx context.Context, cfg Config) (RiskLog, error) {
	switch cfg.Type {
	case "", "json":
		path := cfg.Path
		if path == "" {
			path = DefaultJSONPath
		}
		return NewJSONFile(path), nil
	case "sqlite":
		if cfg.DBPath == "" {
			return nil, fmt.Errorf("journal db_path required for sqlite")
		}
		return NewSQLite(cfg.DBPath)
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("journal redis_addr required for redis")
		}
		return DialRedis(ctx, cfg.RedisAddr, cfg.RedisKey)
	}
	return nil, fmt.Errorf("unknown journal type %q", cfg.Type)
}
