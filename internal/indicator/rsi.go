package indicator

import "math"

// NeutralRSI is reported when a window has neither gains nor losses.
const NeutralRSI = 50.0

// RSI computes the Relative Strength Index with simple (not Wilder) averaging
// of gains and losses over period deltas. The first period values are NaN.
//
// A window with losses but no gains is 0, gains but no losses is 100, and a
// window with neither is NeutralRSI.
func RSI(closes []float64, period int) []float64 {
	n := len(closes)
	gains := nanSlice(n)
	losses := nanSlice(n)

	for i := 1; i < n; i++ {
		delta := closes[i] - closes[i-1]
		gains[i] = math.Max(delta, 0)
		losses[i] = math.Max(-delta, 0)
	}

	avgGain := SMA(gains, period)
	avgLoss := SMA(losses, period)

	result := nanSlice(n)
	for i := range result {
		g, l := avgGain[i], avgLoss[i]
		if math.IsNaN(g) || math.IsNaN(l) {
			continue
		}
		result[i] = rsiFromAverages(g, l)
	}

	return result
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return NeutralRSI
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
