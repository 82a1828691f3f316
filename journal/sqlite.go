package journal

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/tradeguard/risk"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

const snapshotColumns = `date, realized_pnl, win_rate, profit_factor, winning_trades, losing_trades,
	total_trades, avg_pnl_ratio, max_drawdown, max_drawdown_ratio, expected_value,
	calmar_ratio, pareto_ratio, tradeable_capital, degraded, fills_incomplete, run_id, computed_at`

func (j *SQLite) ReadAll(ctx context.Context) (risk.SnapshotLog, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT `+snapshotColumns+` FROM risk_snapshots`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := risk.SnapshotLog{}
	for rows.Next() {
		date, s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out[date] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// WriteAll replaces the table contents with log in one transaction.
func (j *SQLite) WriteAll(ctx context.Context, log risk.SnapshotLog) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM risk_snapshots`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO risk_snapshots (`+snapshotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for date, s := range log {
		_, err := stmt.ExecContext(ctx,
			date, s.RealizedPnL, s.WinRate, float64(s.ProfitFactor),
			s.WinningTrades, s.LosingTrades, s.TotalTrades,
			s.AvgPnLRatio, s.MaxDrawdown, s.MaxDrawdownRatio, s.ExpectedValue,
			float64(s.CalmarRatio), s.ParetoRatio, s.TradeableCapital,
			s.Degraded, s.FillsIncomplete, s.RunID, s.ComputedAt,
		)
		if err != nil {
			return fmt.Errorf("insert snapshot %s: %w", date, err)
		}
	}
	return tx.Commit()
}

// RecordTrades replaces the audit rows of date.
func (j *SQLite) RecordTrades(date string, trades []risk.TradeResult) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM matched_trades WHERE date = ?`, date); err != nil {
		return err
	}
	for _, r := range Records(date, trades) {
		_, err := tx.Exec(`
			INSERT INTO matched_trades (date, seq, symbol, qty, pnl, time)
			VALUES (?, ?, ?, ?, ?, ?)`,
			r.Date, r.Seq, r.Symbol, r.Qty, r.PnL.String(), r.Time,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (string, risk.Snapshot, error) {
	var (
		date         string
		s            risk.Snapshot
		profitFactor float64
		calmar       float64
		computedAt   sql.NullTime
	)
	err := row.Scan(
		&date, &s.RealizedPnL, &s.WinRate, &profitFactor,
		&s.WinningTrades, &s.LosingTrades, &s.TotalTrades,
		&s.AvgPnLRatio, &s.MaxDrawdown, &s.MaxDrawdownRatio, &s.ExpectedValue,
		&calmar, &s.ParetoRatio, &s.TradeableCapital,
		&s.Degraded, &s.FillsIncomplete, &s.RunID, &computedAt,
	)
	if err != nil {
		return "", risk.Snapshot{}, err
	}
	s.ProfitFactor = risk.Ratio(profitFactor)
	s.CalmarRatio = risk.Ratio(calmar)
	if computedAt.Valid {
		s.ComputedAt = computedAt.Time
	}
	return date, s, nil
}
