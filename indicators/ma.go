package indicators

import (
	"fmt"
	"math"
)

// MA calculates the Simple Moving Average of the last period values.
func MA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(values) < period {
		return 0, fmt.Errorf("not enough values: need %d, got %d", period, len(values))
	}

	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period), nil
}

// SMA returns the moving-average series of values. The first period-1
// entries are NaN.
func SMA(values []float64, period int) []float64 {
	return RollingMean(values, period)
}

// RollingMean returns out[i] = mean(values[i-window+1 : i+1]). Entries with
// fewer than window values behind them, or with a NaN inside the window,
// are NaN.
func RollingMean(values []float64, window int) []float64 {
	out := nanSeries(len(values))
	if window <= 0 {
		return out
	}

	sum := 0.0
	nans := 0
	for i, v := range values {
		if math.IsNaN(v) {
			nans++
		} else {
			sum += v
		}
		if i >= window {
			old := values[i-window]
			if math.IsNaN(old) {
				nans--
			} else {
				sum -= old
			}
		}
		if i >= window-1 && nans == 0 {
			out[i] = sum / float64(window)
		}
	}
	return out
}
