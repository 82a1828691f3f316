package allocation

import (
	"fmt"
	"sort"
	"strings"
)

type Strategy string

const (
	EarningsLong     Strategy = "earnings_long"
	ReversionStock   Strategy = "reversion_stock"
	ReversionETF     Strategy = "reversion_etf"
	ReversionInverse Strategy = "reversion_inverse"
	Dividend         Strategy = "dividend"
	EarningsShort    Strategy = "earnings_short"
)

var Strategies = []Strategy{
	EarningsLong, ReversionStock, ReversionETF, ReversionInverse, Dividend, EarningsShort,
}

// legacy numbered names used by older strategy hosts
var numbered = map[string]Strategy{
	"strategy1": EarningsLong,
	"strategy2": ReversionStock,
	"strategy3": ReversionETF,
	"strategy4": ReversionInverse,
	"strategy5": Dividend,
	"strategy6": EarningsShort,
}

// ParseStrategy accepts a strategy name or its numbered alias, in any case.
func ParseStrategy(s string) (Strategy, error) {
	k := strings.ToLower(strings.TrimSpace(s))
	if k == "" {
		return "", fmt.Errorf("strategy name cannot be empty")
	}
	if st, ok := numbered[k]; ok {
		return st, nil
	}
	for _, st := range Strategies {
		if string(st) == k {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid strategy name %q", s)
}

// Allocation is the share of the portfolio each strategy may deploy. Shares
// are independent caps and need not sum to one.
type Allocation map[Strategy]float64

var table = map[Trend]Allocation{
	Bull: {
		EarningsLong:     0.50,
		ReversionStock:   0.10,
		ReversionETF:     0.10,
		ReversionInverse: 0.20,
		Dividend:         0.85,
		EarningsShort:    0.40,
	},
	Bear: {
		EarningsLong:     0.40,
		ReversionStock:   0.10,
		ReversionETF:     0.10,
		ReversionInverse: 0.20,
		Dividend:         0.60,
		EarningsShort:    0.60,
	},
	Neutral: {
		EarningsLong:     0.50,
		ReversionStock:   0.10,
		ReversionETF:     0.10,
		ReversionInverse: 0.20,
		Dividend:         0.50,
		EarningsShort:    0.50,
	},
}

// For returns a copy of the allocation for trend.
func For(trend Trend) (Allocation, error) {
	a, ok := table[trend]
	if !ok {
		return nil, fmt.Errorf("unknown market trend %q", trend)
	}
	out := make(Allocation, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out, nil
}

// ReservedFraction is the dividend sleeve share, which the risk gate
// excludes from tradeable capital.
func ReservedFraction(trend Trend) (float64, error) {
	a, err := For(trend)
	if err != nil {
		return 0, err
	}
	return a[Dividend], nil
}

// Sorted lists the strategies of a in the canonical order.
func (a Allocation) Sorted() []Strategy {
	out := make([]Strategy, 0, len(a))
	for s := range a {
		out = append(out, s)
	}
	rank := make(map[Strategy]int, len(Strategies))
	for i, s := range Strategies {
		rank[s] = i
	}
	sort.Slice(out, func(i, j int) bool { return rank[out[i]] < rank[out[j]] })
	return out
}
