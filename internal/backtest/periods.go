package backtest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/momentum/internal/core"
)

// DaysPerYear is the calendar used for annualization; crypto markets trade
// every day.
const DaysPerYear = 365

// PeriodDuration returns the length of one candle for timeframes like
// "15m", "1h", "4h", "1d" or "1w".
func PeriodDuration(timeframe string) (time.Duration, error) {
	tf := strings.TrimSpace(timeframe)
	if len(tf) < 2 {
		return 0, invalidTimeframe(timeframe)
	}

	n, err := strconv.Atoi(tf[:len(tf)-1])
	if err != nil || n <= 0 {
		return 0, invalidTimeframe(timeframe)
	}

	var unit time.Duration
	switch tf[len(tf)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, invalidTimeframe(timeframe)
	}
	return time.Duration(n) * unit, nil
}

// PeriodsPerYear returns how many candles of timeframe fit in a year.
func PeriodsPerYear(timeframe string) (float64, error) {
	period, err := PeriodDuration(timeframe)
	if err != nil {
		return 0, err
	}
	return float64(DaysPerYear*24*time.Hour) / float64(period), nil
}

func invalidTimeframe(tf string) error {
	return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unsupported timeframe %q", tf))
}
