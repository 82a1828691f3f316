// Package indicators provides the series math behind the market trend
// classifier: moving averages and rolling regression slopes over daily
// closes.
package indicators

import "math"

// Last returns the final element of s, or NaN when s is empty.
func Last(s []float64) float64 {
	if len(s) == 0 {
		return math.NaN()
	}
	return s[len(s)-1]
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
