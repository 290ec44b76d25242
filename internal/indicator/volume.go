package indicator

import "math"

// VolumeRatio returns the trailing volume SMA over window and the ratio of
// each volume to it. Both are NaN while the window is unfilled. A window
// with zero average volume yields a ratio of 0 so it never confirms.
func VolumeRatio(volumes []float64, window int) (sma, ratio []float64) {
	sma = SMA(volumes, window)
	ratio = nanSlice(len(volumes))

	for i, avg := range sma {
		switch {
		case math.IsNaN(avg):
		case avg == 0:
			ratio[i] = 0
		default:
			ratio[i] = volumes[i] / avg
		}
	}

	return sma, ratio
}
