package backtest

import (
	"context"
	"fmt"

	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/indicator"
	"github.com/newthinker/momentum/internal/strategy"
	"go.uber.org/zap"
)

// DefaultInitialBalance is the starting cash of a run.
const DefaultInitialBalance = 10000.0

// Options configure the simulation independent of the strategy parameters.
type Options struct {
	InitialBalance float64
	PeriodsPerYear float64
	RiskFreeRate   float64
	// StopExecution closes positions whose trailing stop is breached.
	StopExecution bool
	ClosePolicy   ClosePolicy
	Volatility    strategy.VolatilityPolicy
}

// DefaultOptions returns options for hourly candles.
func DefaultOptions() Options {
	return Options{
		InitialBalance: DefaultInitialBalance,
		PeriodsPerYear: DaysPerYear * 24,
		RiskFreeRate:   DefaultRiskFreeRate,
		StopExecution:  true,
		ClosePolicy:    CloseLIFO,
		Volatility:     strategy.DefaultVolatilityPolicy(),
	}
}

// Validate checks the options are usable.
func (o Options) Validate() error {
	if o.InitialBalance <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("initial_balance must be positive, got %g", o.InitialBalance))
	}
	if o.PeriodsPerYear <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("periods_per_year must be positive, got %g", o.PeriodsPerYear))
	}
	switch o.ClosePolicy {
	case CloseLIFO, CloseFIFO, "":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown close policy %q", o.ClosePolicy))
	}
	return nil
}

// Backtester replays a candle series through the momentum strategy.
// A Backtester holds no per-run state and may be shared by goroutines.
type Backtester struct {
	opts Options
	log  *zap.Logger
}

// New creates a new Backtester
func New(opts Options, log *zap.Logger) *Backtester {
	if log == nil {
		log = zap.NewNop()
	}
	return &Backtester{
		opts: opts,
		log:  log,
	}
}

// Options returns the simulation options.
func (b *Backtester) Options() Options {
	return b.opts
}

// Run executes one backtest of params over candles. It fails with a config
// error for invalid params and a data error for an unusable series.
func (b *Backtester) Run(ctx context.Context, candles []core.Candle, params strategy.Params) (*Result, error) {
	if err := b.opts.Validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateSeries(candles, params.Warmup()); err != nil {
		return nil, err
	}

	return b.simulate(ctx, candles, params)
}

// simulate runs a validated series and params.
func (b *Backtester) simulate(ctx context.Context, candles []core.Candle, params strategy.Params) (*Result, error) {
	rows := indicator.Compute(candles, params.Indicators())
	account := NewAccount(b.opts.InitialBalance, b.opts.ClosePolicy, b.log)
	results := make([]ResultRow, 0, len(rows))

	for i, row := range rows {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if b.opts.StopExecution {
			account.TriggerStops(row.Close, row.Time)
		}

		signal := strategy.GenerateAt(i, row, params)
		switch signal {
		case core.ActionBuy:
			if err := account.ApplyBuy(row.Close, row.Time, params.PositionSize); err != nil {
				return nil, err
			}
		case core.ActionSell:
			account.ApplySell(row.Close, row.Time, ReasonSignal)
		}

		account.UpdateTrailingStop(row.Close, params.TrailingStopPct)

		results = append(results, ResultRow{
			Time:    row.Time,
			Close:   row.Close,
			Balance: account.Cash(),
			Equity:  account.Equity(row.Close),
			Signal:  signal,
		})
	}

	trades := account.Trades()
	metrics := Evaluate(results, trades, b.opts.InitialBalance, EvalOptions{
		PeriodsPerYear: b.opts.PeriodsPerYear,
		RiskFreeRate:   b.opts.RiskFreeRate,
	})

	balances := make([]float64, len(results))
	for i, r := range results {
		balances[i] = r.Balance
	}
	volatility := AnnualizedVolatility(balances, b.opts.PeriodsPerYear)

	b.log.Debug("backtest complete",
		zap.Int("candles", len(candles)),
		zap.Int("trades", len(trades)),
		zap.Float64("total_return_pct", metrics.TotalReturnPct),
		zap.Float64("volatility", volatility),
	)

	return &Result{
		Params:        params,
		Rows:          results,
		Trades:        trades,
		OpenPositions: account.Positions(),
		Metrics:       metrics,
		NextParams:    params.AdjustForVolatility(volatility, b.opts.Volatility),
	}, nil
}
