// Package metrics exports breaker and risk gate state to Prometheus.
package metrics

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rustyeddy/tradeguard/breaker"
	"github.com/rustyeddy/tradeguard/risk"
)

const namespace = "tradeguard"

// Collectors holds every tradeguard metric.
type Collectors struct {
	BreakerState       *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec
	BreakerRejections  *prometheus.CounterVec

	PnLRatio       prometheus.Gauge
	ProfitFactor   prometheus.Gauge
	WinRate        prometheus.Gauge
	TotalTrades    prometheus.Gauge
	SnapshotsTotal *prometheus.CounterVec
	Admitted       prometheus.Gauge
	Decisions      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "breaker_state",
				Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open)",
			},
			[]string{"breaker"},
		),
		BreakerTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "breaker_transitions_total",
				Help:      "Circuit breaker state transitions",
			},
			[]string{"breaker", "from", "to"},
		),
		BreakerRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "breaker_rejections_total",
				Help:      "Calls short-circuited by an open breaker",
			},
			[]string{"breaker"},
		),
		PnLRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "risk_pnl_ratio",
			Help:      "Trailing realized P&L as a fraction of tradeable capital",
		}),
		ProfitFactor: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "risk_profit_factor",
			Help:      "Gross profit over gross loss of the attribution window",
		}),
		WinRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "risk_win_rate",
			Help:      "Winning matched trades over all matched trades",
		}),
		TotalTrades: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "risk_trades",
			Help:      "Matched trades in the attribution window",
		}),
		SnapshotsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "risk_snapshots_total",
				Help:      "Daily snapshots computed",
			},
			[]string{"degraded"},
		),
		Admitted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "risk_admitted",
			Help:      "1 when new positions are admitted, 0 otherwise",
		}),
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "risk_decisions_total",
				Help:      "Admission decisions by result",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		c.BreakerState, c.BreakerTransitions, c.BreakerRejections,
		c.PnLRatio, c.ProfitFactor, c.WinRate, c.TotalTrades, c.SnapshotsTotal,
		c.Admitted, c.Decisions,
	)
	return c
}

// StateChange is a breaker.Settings.OnStateChange hook.
func (c *Collectors) StateChange(name string, from, to breaker.State) {
	c.BreakerState.WithLabelValues(name).Set(float64(to))
	c.BreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
}

// Reject is a breaker.Settings.OnReject hook.
func (c *Collectors) Reject(name string) {
	c.BreakerRejections.WithLabelValues(name).Inc()
}

// Hook wires c into breaker settings, usually the registry defaults.
func (c *Collectors) Hook(st breaker.Settings) breaker.Settings {
	st.OnStateChange = c.StateChange
	st.OnReject = c.Reject
	return st
}

// Sync sets the state gauge of every registered breaker.
func (c *Collectors) Sync(reg *breaker.Registry) {
	for _, s := range reg.Statuses() {
		c.BreakerState.WithLabelValues(s.Name).Set(float64(s.State))
	}
}

func (c *Collectors) ObserveSnapshot(_ string, s risk.Snapshot) {
	c.PnLRatio.Set(s.RealizedPnL)
	c.ProfitFactor.Set(finite(float64(s.ProfitFactor)))
	c.WinRate.Set(s.WinRate)
	c.TotalTrades.Set(float64(s.TotalTrades))
	degraded := "false"
	if s.Degraded {
		degraded = "true"
	}
	c.SnapshotsTotal.WithLabelValues(degraded).Inc()
}

func (c *Collectors) ObserveDecision(d risk.Decision) {
	if d.Allowed {
		c.Admitted.Set(1)
		c.Decisions.WithLabelValues("admitted").Inc()
		return
	}
	c.Admitted.Set(0)
	result := "denied"
	if len(d.Violations) > 0 {
		result = d.Violations[0].Code
	}
	c.Decisions.WithLabelValues(result).Inc()
}

// finite caps ±Inf so dashboards don't break on a loss-free window.
func finite(f float64) float64 {
	switch {
	case math.IsInf(f, 1):
		return math.MaxFloat64
	case math.IsInf(f, -1):
		return -math.MaxFloat64
	}
	return f
}

var _ risk.Observer = (*Collectors)(nil)
