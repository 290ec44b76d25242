package indicator

import (
	"math"

	"github.com/newthinker/momentum/internal/core"
)

// Settings holds the window and span lengths of every indicator.
type Settings struct {
	RSIPeriod    int
	MACDFast     int
	MACDSlow     int
	MACDSignal   int
	VolumeWindow int
}

// Warmup is the number of leading rows treated as history only. A trailing
// window of n is defined from index n-1, so the last warmup row may already
// be Ready; callers gate signals on the row index instead.
func (s Settings) Warmup() int {
	return max(s.RSIPeriod, s.VolumeWindow)
}

// Row is a candle augmented with its derived indicator values.
type Row struct {
	core.Candle
	RSI         float64 `json:"rsi"`
	MACD        float64 `json:"macd"`
	SignalLine  float64 `json:"signal_line"`
	VolumeSMA   float64 `json:"volume_sma"`
	VolumeRatio float64 `json:"volume_ratio"`
}

// Ready reports whether every derived field is defined.
func (r Row) Ready() bool {
	return !math.IsNaN(r.RSI) &&
		!math.IsNaN(r.MACD) &&
		!math.IsNaN(r.SignalLine) &&
		!math.IsNaN(r.VolumeRatio)
}

// Compute derives indicator rows for candles. The output has the same
// length and order as the input.
func Compute(candles []core.Candle, s Settings) []Row {
	closes := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	rsi := RSI(closes, s.RSIPeriod)
	macd, signal := MACD(closes, s.MACDFast, s.MACDSlow, s.MACDSignal)
	volSMA, volRatio := VolumeRatio(volumes, s.VolumeWindow)

	rows := make([]Row, len(candles))
	for i, c := range candles {
		rows[i] = Row{
			Candle:      c,
			RSI:         rsi[i],
			MACD:        macd[i],
			SignalLine:  signal[i],
			VolumeSMA:   volSMA[i],
			VolumeRatio: volRatio[i],
		}
	}

	return rows
}
