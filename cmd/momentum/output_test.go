package main

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/newthinker/momentum/internal/app"
	"github.com/newthinker/momentum/internal/backtest"
	"github.com/newthinker/momentum/internal/optimizer"
	"github.com/newthinker/momentum/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyOverrides(t *testing.T) {
	base := strategy.DefaultParams()

	p, err := applyOverrides(base, []string{"rsi_period=14", " position_size = 0.05", "volume_confirmation=false"})
	require.NoError(t, err)
	assert.Equal(t, 14, p.RSIPeriod)
	assert.Equal(t, 0.05, p.PositionSize)
	assert.False(t, p.VolumeConfirmation)
	assert.Equal(t, 10, base.RSIPeriod, "base untouched")

	for _, bad := range []string{"rsi_period", "rsi_period=abc", "nope=1", "rsi_period=1.5", "rsi_oversold=90"} {
		_, err := applyOverrides(base, []string{bad})
		assert.Error(t, err, bad)
	}
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), d)

	_, err = parseDate("01/03/2024")
	assert.Error(t, err)
}

func TestFormatMetric(t *testing.T) {
	assert.Equal(t, "1.5000", formatMetric(1.5))
	assert.Equal(t, "n/a", formatMetric(math.NaN()))
	assert.Equal(t, "n/a", formatMetric(math.Inf(1)))
}

func TestPrintBacktest(t *testing.T) {
	res := &backtest.Result{
		Trades: []backtest.Trade{
			{Time: time.Unix(0, 0), Type: backtest.TradeBuy, Reason: backtest.ReasonSignal, Price: 100, Amount: 2, Balance: 9800},
			{Time: time.Unix(3600, 0), Type: backtest.TradeSell, Reason: backtest.ReasonStop, Price: 110, Amount: 2, Profit: 20, Balance: 10020},
		},
		Metrics:    backtest.Metrics{InitialBalance: 10000, FinalBalance: 10020, NumTrades: 2, SharpeRatio: math.NaN()},
		NextParams: strategy.DefaultParams(),
	}

	var buf bytes.Buffer
	printBacktest(&buf, res)
	out := buf.String()

	assert.Contains(t, out, "=== Backtest Results ===")
	assert.Contains(t, out, backtest.MetricSharpeRatio)
	assert.Contains(t, out, "n/a")
	assert.Contains(t, out, "Trades (2):")
	assert.Contains(t, out, "20.00")
	assert.Contains(t, out, "Suggested next parameters")
}

func TestPrintOptimization_NoBest(t *testing.T) {
	res := &optimizer.Result{
		Metric:     backtest.MetricSharpeRatio,
		Parameters: []string{"rsi_period"},
		Evaluations: []optimizer.Evaluation{
			{Index: 0, Values: map[string]float64{"rsi_period": 10}, Score: math.NaN()},
		},
	}

	var buf bytes.Buffer
	printOptimization(&buf, res)
	assert.Contains(t, buf.String(), "No combination produced a defined sharpe_ratio")
}

func TestPrintSeries(t *testing.T) {
	var buf bytes.Buffer
	printSeries(&buf, app.DataRequest{Source: "binance", Symbol: "eth-usdt", Timeframe: "4h"}, 120)
	assert.Equal(t, "ETH/USDT 4h from binance: 120 candles\n\n", buf.String())
}
