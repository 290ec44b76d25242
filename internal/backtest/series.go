package backtest

import (
	"fmt"
	"math"

	"github.com/newthinker/momentum/internal/core"
)

// ValidateSeries checks that candles can drive a run whose indicators need
// warmup leading rows: non-empty, long enough to produce at least one fully
// defined row, strictly ascending in time, and with usable prices.
func ValidateSeries(candles []core.Candle, warmup int) error {
	if len(candles) == 0 {
		return core.ErrNoData
	}
	if len(candles) <= warmup {
		return core.WrapError(core.ErrInsufficientData,
			fmt.Errorf("have %d candles, need more than %d", len(candles), warmup))
	}

	for i, c := range candles {
		if math.IsNaN(c.Close) || math.IsInf(c.Close, 0) || c.Close <= 0 {
			return core.WrapError(core.ErrInvalidCandle,
				fmt.Errorf("candle %d close %v", i, c.Close))
		}
		if math.IsNaN(c.Volume) || math.IsInf(c.Volume, 0) || c.Volume < 0 {
			return core.WrapError(core.ErrInvalidCandle,
				fmt.Errorf("candle %d volume %v", i, c.Volume))
		}
		if i > 0 && !c.Time.After(candles[i-1].Time) {
			return core.WrapError(core.ErrUnorderedData,
				fmt.Errorf("candle %d at %s does not follow %s", i, c.Time, candles[i-1].Time))
		}
	}
	return nil
}
