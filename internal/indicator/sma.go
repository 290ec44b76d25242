package indicator

import "math"

// SMA calculates a trailing Simple Moving Average.
// The result has the same length as values; positions whose window is not
// full, or whose window contains NaN, are NaN.
func SMA(values []float64, period int) []float64 {
	result := nanSlice(len(values))
	if period <= 0 {
		return result
	}

	for i := period - 1; i < len(values); i++ {
		var sum float64
		for _, v := range values[i-period+1 : i+1] {
			sum += v
		}
		// NaN propagates through the sum
		result[i] = sum / float64(period)
	}

	return result
}

// EMA calculates an Exponential Moving Average with smoothing 2/(span+1),
// seeded with the first defined value (no bias adjustment). Leading NaN
// values stay NaN; the average starts at the first defined value.
func EMA(values []float64, span int) []float64 {
	result := nanSlice(len(values))
	if span <= 0 {
		return result
	}

	alpha := 2.0 / float64(span+1)
	started := false
	var ema float64

	for i, v := range values {
		if math.IsNaN(v) {
			if started {
				result[i] = ema
			}
			continue
		}
		if !started {
			ema = v
			started = true
		} else {
			ema = alpha*v + (1-alpha)*ema
		}
		result[i] = ema
	}

	return result
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
