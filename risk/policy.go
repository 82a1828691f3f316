package risk

import (
	"fmt"
	"time"
)

// Policy holds the tunables of the P&L gate.
type Policy struct {
	LookbackDays      int     // 30
	HistoryMultiplier int     // 3
	PnLFloor          float64 // -0.06
	PageSize          int     // 100

	// FallbackCapital stands in for tradeable capital when the account
	// cannot be read.
	FallbackCapital float64 // 100000

	TradeValueMultiplier float64 // 2
	ParetoFraction       float64 // 0.2

	// AdmitIncompleteFills lets a day whose fill history was only partly
	// fetched pass on its P&L alone. Such days are denied otherwise.
	AdmitIncompleteFills bool

	// Location decides where a calendar day starts. UTC when nil.
	Location *time.Location
}

const (
	MaxLookbackDays = 365
	MaxPageSize     = 100
)

func DefaultPolicy() Policy {
	return Policy{
		LookbackDays:         30,
		HistoryMultiplier:    3,
		PnLFloor:             -0.06,
		PageSize:             100,
		FallbackCapital:      100000,
		TradeValueMultiplier: 2,
		ParetoFraction:       0.2,
		Location:             time.UTC,
	}
}

func (p Policy) Validate() error {
	if err := validateWindow(p.LookbackDays, p.HistoryMultiplier); err != nil {
		return err
	}
	if err := validateFloor(p.PnLFloor); err != nil {
		return err
	}
	if p.PageSize < 1 || p.PageSize > MaxPageSize {
		return fmt.Errorf("page_size must be between 1 and %d, got %d", MaxPageSize, p.PageSize)
	}
	if p.FallbackCapital <= 0 {
		return fmt.Errorf("fallback_capital must be positive")
	}
	if p.TradeValueMultiplier <= 0 {
		return fmt.Errorf("trade_value_multiplier must be positive")
	}
	if p.ParetoFraction <= 0 || p.ParetoFraction > 1 {
		return fmt.Errorf("pareto_fraction must be in (0, 1]")
	}
	return nil
}

func validateWindow(lookbackDays, multiplier int) error {
	if lookbackDays < 1 || lookbackDays > MaxLookbackDays {
		return fmt.Errorf("lookback_days must be between 1 and %d, got %d", MaxLookbackDays, lookbackDays)
	}
	if multiplier < 1 {
		return fmt.Errorf("history_multiplier must be at least 1, got %d", multiplier)
	}
	return nil
}

func validateFloor(floor float64) error {
	if floor < -1 || floor > 1 {
		return fmt.Errorf("pnl_floor must be between -1 and 1, got %g", floor)
	}
	return nil
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}
