package journal

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradeguard/risk"
)

var ErrNotFound = errors.New("not found")

// GetSnapshot returns the snapshot stored for date (YYYY-MM-DD).
func (j *SQLite) GetSnapshot(date string) (risk.Snapshot, error) {
	row := j.db.QueryRow(`SELECT `+snapshotColumns+` FROM risk_snapshots WHERE date = ?`, date)

	_, s, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return risk.Snapshot{}, fmt.Errorf("snapshot %q: %w", date, ErrNotFound)
		}
		return risk.Snapshot{}, err
	}
	return s, nil
}

// DatedSnapshot pairs a snapshot with its key.
type DatedSnapshot struct {
	Date string
	risk.Snapshot
}

// ListSnapshotsBetween returns snapshots with from <= date <= to, oldest first.
// Empty bounds are open.
func (j *SQLite) ListSnapshotsBetween(from, to string) ([]DatedSnapshot, error) {
	if to == "" {
		to = "9999-12-31"
	}
	rows, err := j.db.Query(`
		SELECT `+snapshotColumns+`
		FROM risk_snapshots
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DatedSnapshot
	for rows.Next() {
		date, s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, DatedSnapshot{Date: date, Snapshot: s})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTrades returns the matched trades recorded for date in match order.
func (j *SQLite) ListTrades(date string) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT date, seq, symbol, qty, pnl, time
		FROM matched_trades
		WHERE date = ?
		ORDER BY seq ASC`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var (
			rec TradeRecord
			pnl string
		)
		if err := rows.Scan(&rec.Date, &rec.Seq, &rec.Symbol, &rec.Qty, &pnl, &rec.Time); err != nil {
			return nil, err
		}
		if rec.PnL, err = decimal.NewFromString(pnl); err != nil {
			return nil, fmt.Errorf("trade %s/%d: %w", rec.Date, rec.Seq, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
