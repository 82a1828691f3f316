package journal

const Schema = `
CREATE TABLE IF NOT EXISTS risk_snapshots (
	date TEXT PRIMARY KEY,
	realized_pnl REAL NOT NULL,
	win_rate REAL NOT NULL,
	profit_factor REAL NOT NULL,
	winning_trades INTEGER NOT NULL,
	losing_trades INTEGER NOT NULL,
	total_trades INTEGER NOT NULL,
	avg_pnl_ratio REAL NOT NULL,
	max_drawdown REAL NOT NULL,
	max_drawdown_ratio REAL NOT NULL,
	expected_value REAL NOT NULL,
	calmar_ratio REAL NOT NULL,
	pareto_ratio REAL NOT NULL,
	tradeable_capital REAL NOT NULL DEFAULT 0,
	degraded INTEGER NOT NULL DEFAULT 0,
	fills_incomplete INTEGER NOT NULL DEFAULT 0,
	run_id TEXT NOT NULL DEFAULT '',
	computed_at DATETIME
);

CREATE TABLE IF NOT EXISTS matched_trades (
	date TEXT NOT NULL,
	seq INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	qty INTEGER NOT NULL,
	pnl TEXT NOT NULL,
	time DATETIME NOT NULL,
	PRIMARY KEY (date, seq)
);

CREATE INDEX IF NOT EXISTS idx_matched_trades_symbol ON matched_trades(symbol);
`
