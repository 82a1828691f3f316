// Package allocation classifies the market trend from the daily closes of
// an index and maps it to per-strategy capital shares.
package allocation

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/tradeguard/indicators"
)

type Trend string

const (
	Bull    Trend = "bull"
	Bear    Trend = "bear"
	Neutral Trend = "neutral"
)

func ParseTrend(s string) (Trend, error) {
	switch t := Trend(s); t {
	case Bull, Bear, Neutral:
		return t, nil
	}
	return "", fmt.Errorf("unknown market trend %q", s)
}

const (
	DefaultMAPeriod     = 50
	DefaultSlopeWindow  = 10
	DefaultSmoothWindow = 3
	DefaultThreshold    = 0.1
)

// ClassifierOptions tunes Classify. Zero fields take the defaults.
type ClassifierOptions struct {
	MAPeriod     int
	SlopeWindow  int
	SmoothWindow int
	Threshold    float64
}

func (o ClassifierOptions) withDefaults() ClassifierOptions {
	if o.MAPeriod <= 0 {
		o.MAPeriod = DefaultMAPeriod
	}
	if o.SlopeWindow < 2 {
		o.SlopeWindow = DefaultSlopeWindow
	}
	if o.SmoothWindow <= 0 {
		o.SmoothWindow = DefaultSmoothWindow
	}
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	return o
}

// SmoothedSlope is the rolling regression slope of the moving average of
// closes, smoothed by a short rolling mean. Undefined points are NaN.
func SmoothedSlope(closes []float64, opts ClassifierOptions) []float64 {
	opts = opts.withDefaults()
	ma := indicators.SMA(closes, opts.MAPeriod)
	slope := indicators.Slope(ma, opts.SlopeWindow)
	return indicators.RollingMean(slope, opts.SmoothWindow)
}

// TrendSeries runs the hysteresis state machine over the smoothed slope.
// The machine starts Neutral; an undefined slope counts as zero.
//
//	neutral → bull  slope >  0.8t
//	neutral → bear  slope < -0.7t
//	bull    → bear  slope < -t
//	bear    → bull  slope >  1.3t
func TrendSeries(closes []float64, opts ClassifierOptions, log zerolog.Logger) []Trend {
	opts = opts.withDefaults()
	slopes := SmoothedSlope(closes, opts)
	t := opts.Threshold

	out := make([]Trend, len(closes))
	current := Neutral
	for i := range out {
		if i == 0 {
			out[i] = current
			continue
		}
		s := slopes[i]
		if math.IsNaN(s) {
			s = 0
		}

		next := current
		switch current {
		case Bull:
			if s < -t {
				next = Bear
			}
		case Bear:
			if s > t*1.3 {
				next = Bull
			}
		default:
			if s > t*0.8 {
				next = Bull
			} else if s < -t*0.7 {
				next = Bear
			}
		}
		if next != current {
			log.Info().Str("from", string(current)).Str("to", string(next)).
				Float64("slope", s).Int("index", i).Msg("trend change")
			current = next
		}
		out[i] = current
	}
	return out
}

// Classify returns the trend at the last close. Fewer than two closes is
// Neutral.
func Classify(closes []float64, opts ClassifierOptions, log zerolog.Logger) Trend {
	series := TrendSeries(closes, opts, log)
	if len(series) == 0 {
		return Neutral
	}
	return series[len(series)-1]
}
