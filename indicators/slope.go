package indicators

import "math"

// Slope returns the rolling least-squares slope of values against
// x = 0..window-1. out[i] is fitted on the window values *before* i
// (values[i-window : i]), so the first window entries are NaN. A NaN in
// the window makes that slope NaN.
func Slope(values []float64, window int) []float64 {
	out := nanSeries(len(values))
	if window < 2 {
		return out
	}
	for i := window; i < len(values); i++ {
		out[i] = linregSlope(values[i-window : i])
	}
	return out
}

// linregSlope fits y against 0..len(y)-1.
func linregSlope(y []float64) float64 {
	n := float64(len(y))
	meanX := (n - 1) / 2

	meanY := 0.0
	for _, v := range y {
		if math.IsNaN(v) {
			return math.NaN()
		}
		meanY += v
	}
	meanY /= n

	var sxy, sxx float64
	for i, v := range y {
		dx := float64(i) - meanX
		sxy += dx * (v - meanY)
		sxx += dx * dx
	}
	return sxy / sxx
}
