// Package sim is an in-memory broker for tests and offline demos. Failures
// can be injected per method and every call is counted.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradeguard/broker"
	"github.com/rustyeddy/tradeguard/pkg/id"
	"github.com/rustyeddy/tradeguard/risk"
)

const (
	MethodAccount = "account"
	MethodFills   = "fills"
	MethodCloses  = "closes"
)

var ErrInjected = errors.New("sim: injected failure")

type Engine struct {
	mu    sync.Mutex
	acct  broker.Account
	fills []risk.Fill
	bars  map[string][]broker.Bar

	failures map[string]int // method → remaining failures, -1 forever
	calls    map[string]int
}

func NewEngine(acct broker.Account) *Engine {
	return &Engine{
		acct:     acct,
		bars:     make(map[string][]broker.Bar),
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
}

func (e *Engine) SetAccount(a broker.Account) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.acct = a
}

// AddFill records an execution. An empty ID gets a ULID at the fill time.
func (e *Engine) AddFill(f risk.Fill) risk.Fill {
	e.mu.Lock()
	defer e.mu.Unlock()

	if f.ID == "" {
		f.ID = id.NewAt(f.TransactionTime)
	}
	e.fills = append(e.fills, f)
	sort.SliceStable(e.fills, func(i, j int) bool {
		return e.fills[i].TransactionTime.Before(e.fills[j].TransactionTime)
	})
	return f
}

// Trade is shorthand for AddFill.
func (e *Engine) Trade(symbol string, side risk.Side, qty int64, price float64, at time.Time) risk.Fill {
	return e.AddFill(risk.Fill{
		Symbol:          symbol,
		Side:            side,
		Qty:             qty,
		Price:           decimal.NewFromFloat(price),
		TransactionTime: at,
	})
}

func (e *Engine) SetBars(symbol string, bars []broker.Bar) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bars[strings.ToUpper(symbol)] = bars
}

// FailNext makes the next n calls of method fail. n < 0 fails until
// Recover.
func (e *Engine) FailNext(method string, n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[method] = n
}

func (e *Engine) Recover(method string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.failures, method)
}

func (e *Engine) Calls(method string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[method]
}

// enter counts the call and reports an injected failure. Callers hold mu.
func (e *Engine) enter(ctx context.Context, method string) error {
	e.calls[method]++
	if err := ctx.Err(); err != nil {
		return err
	}
	n, ok := e.failures[method]
	if !ok || n == 0 {
		return nil
	}
	if n > 0 {
		e.failures[method] = n - 1
	}
	return fmt.Errorf("%s: %w", method, ErrInjected)
}

func (e *Engine) Account(ctx context.Context) (broker.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.enter(ctx, MethodAccount); err != nil {
		return broker.Account{}, err
	}
	return e.acct, nil
}

func (e *Engine) Fills(ctx context.Context, q risk.FillQuery) ([]risk.Fill, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.enter(ctx, MethodFills); err != nil {
		return nil, err
	}

	start := 0
	if q.PageToken != "" {
		start = len(e.fills)
		for i, f := range e.fills {
			if f.ID == q.PageToken {
				start = i + 1
				break
			}
		}
	}

	var out []risk.Fill
	for _, f := range e.fills[start:] {
		if q.PageSize > 0 && len(out) == q.PageSize {
			break
		}
		if f.TransactionTime.Before(q.Start) || (!q.End.IsZero() && f.TransactionTime.After(q.End)) {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (e *Engine) DailyCloses(ctx context.Context, symbol string, days int) ([]broker.Bar, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.enter(ctx, MethodCloses); err != nil {
		return nil, err
	}
	bars := e.bars[strings.ToUpper(symbol)]
	if days > 0 && len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	return append([]broker.Bar(nil), bars...), nil
}

var _ broker.Broker = (*Engine)(nil)
