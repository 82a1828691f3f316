package risk

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// ParseSide accepts "buy"/"sell" in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

// Fill is one execution reported by the broker's activity feed.
type Fill struct {
	ID              string
	Symbol          string
	Side            Side
	Qty             int64
	Price           decimal.Decimal
	TransactionTime time.Time
}

// Validate rejects fills that cannot be matched.
func (f Fill) Validate() error {
	if f.Symbol == "" {
		return fmt.Errorf("fill %s: empty symbol", f.ID)
	}
	if f.Side != Buy && f.Side != Sell {
		return fmt.Errorf("fill %s: bad side %q", f.ID, f.Side)
	}
	if f.Qty <= 0 {
		return fmt.Errorf("fill %s: quantity must be positive, got %d", f.ID, f.Qty)
	}
	if !f.Price.IsPositive() {
		return fmt.Errorf("fill %s: price must be positive, got %s", f.ID, f.Price)
	}
	if f.TransactionTime.IsZero() {
		return fmt.Errorf("fill %s: missing transaction time", f.ID)
	}
	return nil
}

// Lot is the unmatched remainder of a buy.
type Lot struct {
	Qty   int64
	Price decimal.Decimal
	Time  time.Time
}

// TradeResult is one sell matched against one buy lot.
type TradeResult struct {
	Symbol string
	Qty    int64
	PnL    decimal.Decimal
	Time   time.Time
}

// Orphan records sell quantity that found no open lot to close.
type Orphan struct {
	Symbol string
	FillID string
	Qty    int64
	Time   time.Time
}
