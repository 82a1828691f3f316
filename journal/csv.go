package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rustyeddy/tradeguard/risk"
)

var tradeHeader = []string{"date", "seq", "symbol", "qty", "pnl", "time"}

// TradeCSV appends matched trades to a CSV file for offline review.
type TradeCSV struct {
	mu sync.Mutex
	w  *csv.Writer
	f  *os.File
}

// NewTradeCSV opens path for appending and writes the header when the file
// is new.
func NewTradeCSV(path string) (*TradeCSV, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(tradeHeader); err != nil {
			f.Close()
			return nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return &TradeCSV{w: w, f: f}, nil
}

func (j *TradeCSV) RecordTrades(date string, trades []risk.TradeResult) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, r := range Records(date, trades) {
		err := j.w.Write([]string{
			r.Date,
			strconv.Itoa(r.Seq),
			r.Symbol,
			strconv.FormatInt(r.Qty, 10),
			r.PnL.StringFixed(2),
			r.Time.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
	}
	j.w.Flush()
	return j.w.Error()
}

func (j *TradeCSV) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.w.Flush()
	if err := j.w.Error(); err != nil {
		return err
	}
	return j.f.Close()
}
