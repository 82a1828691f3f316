// Package health turns the breaker registry into an API health report.
package health

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/tradeguard/breaker"
)

type Status string

const (
	Healthy  Status = "HEALTHY"
	Degraded Status = "DEGRADED"
	Critical Status = "CRITICAL"
)

// ExcessiveFailures is the failure count above which an open endpoint gets
// a credentials/network warning.
const ExcessiveFailures = 10

type Level string

const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
)

type Recommendation struct {
	Level    Level  `json:"level"`
	Endpoint string `json:"endpoint,omitempty"`
	Message  string `json:"message"`
}

type Summary struct {
	Total    int `json:"total_apis"`
	Healthy  int `json:"healthy"`
	Degraded int `json:"degraded"`
	Failed   int `json:"failed"`
}

type Report struct {
	Timestamp       time.Time        `json:"timestamp"`
	Overall         Status           `json:"overall_status"`
	Summary         Summary          `json:"summary"`
	Breakers        []breaker.Status `json:"circuit_breakers"`
	Recommendations []Recommendation `json:"recommendations"`
}

type Reporter struct {
	reg *breaker.Registry
	now func() time.Time
	log zerolog.Logger
}

func NewReporter(reg *breaker.Registry, log zerolog.Logger) *Reporter {
	return &Reporter{reg: reg, now: time.Now, log: log}
}

// Report snapshots every registered breaker.
func (r *Reporter) Report() Report {
	return Build(r.reg.Statuses(), r.now())
}

// Build derives a report from breaker statuses.
func Build(statuses []breaker.Status, at time.Time) Report {
	rep := Report{
		Timestamp: at,
		Overall:   Healthy,
		Breakers:  statuses,
	}
	rep.Summary.Total = len(statuses)
	for _, s := range statuses {
		switch s.State {
		case breaker.StateClosed:
			rep.Summary.Healthy++
		case breaker.StateHalfOpen:
			rep.Summary.Degraded++
		case breaker.StateOpen:
			rep.Summary.Failed++
		}
	}
	switch {
	case rep.Summary.Failed > 0:
		rep.Overall = Critical
	case rep.Summary.Degraded > 0:
		rep.Overall = Degraded
	}
	rep.Recommendations = recommend(statuses)
	return rep
}

func recommend(statuses []breaker.Status) []Recommendation {
	var out []Recommendation
	allClosed := true
	for _, s := range statuses {
		switch s.State {
		case breaker.StateOpen:
			allClosed = false
			var retry time.Duration
			if s.RetryIn != nil {
				retry = *s.RetryIn
			}
			out = append(out, Recommendation{
				Level:    LevelError,
				Endpoint: s.Name,
				Message:  fmt.Sprintf("%s: API calls are failing, next recovery attempt in %.1fs", s.Name, retry.Seconds()),
			})
			if s.FailureCount >= ExcessiveFailures {
				out = append(out, Recommendation{
					Level:    LevelWarn,
					Endpoint: s.Name,
					Message:  fmt.Sprintf("%s: %d failures, check API keys and network settings", s.Name, s.FailureCount),
				})
			}
		case breaker.StateHalfOpen:
			allClosed = false
			out = append(out, Recommendation{
				Level:    LevelWarn,
				Endpoint: s.Name,
				Message:  fmt.Sprintf("%s: recovery trial in progress, the next request decides", s.Name),
			})
		default:
			if s.FailureCount > 0 {
				out = append(out, Recommendation{
					Level:    LevelInfo,
					Endpoint: s.Name,
					Message:  fmt.Sprintf("%s: healthy, %d recent failures", s.Name, s.FailureCount),
				})
			}
		}
	}
	if allClosed {
		out = append(out, Recommendation{Level: LevelInfo, Message: "all APIs are operating normally"})
	}
	return out
}

// Log writes the report at levels matching each recommendation.
func (r *Reporter) Log(rep Report) {
	r.log.Info().
		Str("overall_status", string(rep.Overall)).
		Int("healthy", rep.Summary.Healthy).
		Int("total", rep.Summary.Total).
		Msg("API health report")

	for _, rec := range rep.Recommendations {
		ev := r.log.Info()
		switch rec.Level {
		case LevelError:
			ev = r.log.Error()
		case LevelWarn:
			ev = r.log.Warn()
		}
		ev.Str("endpoint", rec.Endpoint).Msg(rec.Message)
	}
}

// Save writes a fresh report to path as indented JSON. An empty path uses
// api_health_report_<timestamp>.json in the working directory.
func (r *Reporter) Save(path string) (string, error) {
	rep := r.Report()
	if path == "" {
		path = fmt.Sprintf("api_health_report_%s.json", rep.Timestamp.Format("20060102_150405"))
	}

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal health report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write health report: %w", err)
	}
	r.log.Info().Str("path", path).Msg("API health report saved")
	return path, nil
}

// CriticalAvailable is false when any breaker is open. Half-open breakers
// only log a warning.
func (r *Reporter) CriticalAvailable() bool {
	rep := r.Report()
	if rep.Summary.Failed > 0 {
		r.log.Error().Int("failed", rep.Summary.Failed).Msg("critical APIs are unavailable")
		return false
	}
	if rep.Summary.Degraded > 0 {
		r.log.Warn().Int("degraded", rep.Summary.Degraded).Msg("some APIs are in degraded state")
	}
	return true
}
