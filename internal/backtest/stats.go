package backtest

import (
	"encoding/json"
	"math"
)

// Metric keys, in export order.
const (
	MetricInitialBalance    = "initial_balance"
	MetricFinalBalance      = "final_balance"
	MetricTotalReturnPct    = "total_return_pct"
	MetricNumTrades         = "num_trades"
	MetricWinRatePct        = "win_rate_pct"
	MetricAvgProfitPerTrade = "avg_profit_per_trade"
	MetricMaxDrawdownPct    = "max_drawdown_pct"
	MetricSharpeRatio       = "sharpe_ratio"
	MetricVolatilityPct     = "volatility_pct"
)

// MetricKeys lists every metric in export order.
var MetricKeys = []string{
	MetricInitialBalance,
	MetricFinalBalance,
	MetricTotalReturnPct,
	MetricNumTrades,
	MetricWinRatePct,
	MetricAvgProfitPerTrade,
	MetricMaxDrawdownPct,
	MetricSharpeRatio,
	MetricVolatilityPct,
}

// DefaultRiskFreeRate is the annual risk-free rate used by the Sharpe ratio.
const DefaultRiskFreeRate = 0.01

// EvalOptions control annualization of the return-based metrics.
type EvalOptions struct {
	PeriodsPerYear float64
	RiskFreeRate   float64 // annual
}

// Metrics holds performance statistics of a run. SharpeRatio and
// VolatilityPct are NaN when there are too few returns to estimate them.
type Metrics struct {
	InitialBalance    float64
	FinalBalance      float64
	TotalReturnPct    float64
	NumTrades         int
	WinRatePct        float64
	AvgProfitPerTrade float64
	MaxDrawdownPct    float64
	SharpeRatio       float64
	VolatilityPct     float64
}

// Value returns a metric by key.
func (m Metrics) Value(key string) (float64, bool) {
	switch key {
	case MetricInitialBalance:
		return m.InitialBalance, true
	case MetricFinalBalance:
		return m.FinalBalance, true
	case MetricTotalReturnPct:
		return m.TotalReturnPct, true
	case MetricNumTrades:
		return float64(m.NumTrades), true
	case MetricWinRatePct:
		return m.WinRatePct, true
	case MetricAvgProfitPerTrade:
		return m.AvgProfitPerTrade, true
	case MetricMaxDrawdownPct:
		return m.MaxDrawdownPct, true
	case MetricSharpeRatio:
		return m.SharpeRatio, true
	case MetricVolatilityPct:
		return m.VolatilityPct, true
	}
	return 0, false
}

// Map returns the metrics keyed by name.
func (m Metrics) Map() map[string]float64 {
	out := make(map[string]float64, len(MetricKeys))
	for _, k := range MetricKeys {
		out[k], _ = m.Value(k)
	}
	return out
}

// MarshalJSON encodes undefined metrics as null.
func (m Metrics) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(MetricKeys))
	for k, v := range m.Map() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[k] = nil
			continue
		}
		out[k] = v
	}
	return json.Marshal(out)
}

// Evaluate computes performance statistics from a finished run.
func Evaluate(rows []ResultRow, trades []Trade, initial float64, opts EvalOptions) Metrics {
	balances := make([]float64, len(rows))
	for i, r := range rows {
		balances[i] = r.Balance
	}

	final := initial
	if len(balances) > 0 {
		final = balances[len(balances)-1]
	}

	var totalReturn float64
	if initial != 0 {
		totalReturn = (final - initial) / initial * 100
	}

	var closed, winning int
	var profitSum float64
	for _, t := range trades {
		if !t.HasProfit() {
			continue
		}
		closed++
		profitSum += t.Profit
		if t.IsWin() {
			winning++
		}
	}

	var winRate, avgProfit float64
	if closed > 0 {
		winRate = float64(winning) / float64(closed) * 100
		avgProfit = profitSum / float64(closed)
	}

	returns := periodReturns(balances)

	return Metrics{
		InitialBalance:    initial,
		FinalBalance:      final,
		TotalReturnPct:    totalReturn,
		NumTrades:         len(trades),
		WinRatePct:        winRate,
		AvgProfitPerTrade: avgProfit,
		MaxDrawdownPct:    calculateMaxDrawdown(balances) * 100,
		SharpeRatio:       calculateSharpeRatio(returns, opts.RiskFreeRate, opts.PeriodsPerYear),
		VolatilityPct:     annualizedStdDev(returns, opts.PeriodsPerYear) * 100,
	}
}

// AnnualizedVolatility returns the annualized standard deviation of
// period-over-period changes in balances, NaN with fewer than two returns.
func AnnualizedVolatility(balances []float64, periodsPerYear float64) float64 {
	return annualizedStdDev(periodReturns(balances), periodsPerYear)
}

// periodReturns returns the fractional change between consecutive balances,
// skipping steps that start from a zero balance.
func periodReturns(balances []float64) []float64 {
	if len(balances) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(balances)-1)
	for i := 1; i < len(balances); i++ {
		prev := balances[i-1]
		if prev == 0 {
			continue
		}
		returns = append(returns, balances[i]/prev-1)
	}
	return returns
}

// calculateMaxDrawdown finds the largest peak-to-trough decline as a
// fraction of the running peak.
func calculateMaxDrawdown(balances []float64) float64 {
	var maxDD float64
	peak := math.Inf(-1)

	for _, b := range balances {
		if b > peak {
			peak = b
		}
		if peak > 0 {
			dd := (peak - b) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	return maxDD
}

// calculateSharpeRatio computes the annualized mean excess return over the
// standard deviation of returns. NaN when the deviation is zero or cannot be
// estimated.
func calculateSharpeRatio(returns []float64, annualRiskFree, periodsPerYear float64) float64 {
	std := stdDev(returns)
	if math.IsNaN(std) || std == 0 || periodsPerYear <= 0 {
		return math.NaN()
	}

	perPeriod := annualRiskFree / periodsPerYear
	var excess float64
	for _, r := range returns {
		excess += r - perPeriod
	}
	excess /= float64(len(returns))

	return excess / std * math.Sqrt(periodsPerYear)
}

func annualizedStdDev(returns []float64, periodsPerYear float64) float64 {
	if periodsPerYear <= 0 {
		return math.NaN()
	}
	return stdDev(returns) * math.Sqrt(periodsPerYear)
}

// stdDev is the sample standard deviation, NaN below two observations.
func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(values)-1))
}
