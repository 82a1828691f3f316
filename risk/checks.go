package risk

import "fmt"

type Violation struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// Decision is the admission verdict for one day.
type Decision struct {
	Allowed    bool        `json:"allowed"`
	Violations []Violation `json:"violations,omitempty"`

	Date     string  `json:"date"`
	PnLRatio float64 `json:"pnl_ratio"`
	PnLFloor float64 `json:"pnl_floor"`
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Evaluate admits new orders iff the trailing P&L ratio is strictly above
// the floor.
func Evaluate(pnlRatio, floor float64) Decision {
	d := Decision{Allowed: true, PnLRatio: pnlRatio, PnLFloor: floor}
	if !(pnlRatio > floor) {
		d.add("PNL_FLOOR",
			fmt.Sprintf("trailing realized P&L %.2f%% is not above floor %.2f%%",
				100*pnlRatio, 100*floor))
	}
	return d
}

func (d Decision) String() string {
	if d.Allowed {
		return fmt.Sprintf("admitted (pnl %.2f%% > floor %.2f%%)", 100*d.PnLRatio, 100*d.PnLFloor)
	}
	if len(d.Violations) == 0 {
		return "denied"
	}
	return fmt.Sprintf("denied: %s: %s", d.Violations[0].Code, d.Violations[0].Msg)
}
