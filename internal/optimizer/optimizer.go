package optimizer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/newthinker/momentum/internal/backtest"
	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/strategy"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// minimized lists metrics where a lower value ranks higher.
var minimized = map[string]bool{
	backtest.MetricMaxDrawdownPct: true,
	backtest.MetricVolatilityPct:  true,
}

// Options configure a grid search.
type Options struct {
	// Workers bounds concurrent backtests; 1 runs combinations sequentially.
	Workers int `mapstructure:"workers" json:"workers"`
	// Metric ranks combinations.
	Metric string `mapstructure:"metric" json:"metric"`
	// ProgressEvery logs progress after this many completed combinations.
	ProgressEvery int `mapstructure:"progress_every" json:"progress_every"`
}

// DefaultOptions ranks by total return on a single worker.
func DefaultOptions() Options {
	return Options{
		Workers:       1,
		Metric:        backtest.MetricTotalReturnPct,
		ProgressEvery: 10,
	}
}

// Validate checks the options are usable.
func (o Options) Validate() error {
	if o.Workers < 1 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("workers must be at least 1, got %d", o.Workers))
	}
	if !lo.Contains(backtest.MetricKeys, o.Metric) {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown ranking metric %q", o.Metric))
	}
	return nil
}

// Recorder receives one event per evaluated combination.
type Recorder interface {
	RecordCombination(status string)
}

// ProgressFunc is called after each completed combination. It may be
// called from several goroutines at once.
type ProgressFunc func(done, total int)

// Evaluation is the outcome of one combination.
type Evaluation struct {
	Index   int                `json:"index"`
	Values  map[string]float64 `json:"values"`
	Params  strategy.Params    `json:"params"`
	Metrics backtest.Metrics   `json:"metrics"`
	Score   float64            `json:"-"`
}

// Result is the full table of evaluated combinations in enumeration order
// and the best one. Best is nil when no combination has a defined score.
type Result struct {
	Metric      string        `json:"metric"`
	Parameters  []string      `json:"parameters"`
	Evaluations []Evaluation  `json:"evaluations"`
	Best        *Evaluation   `json:"best,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// BestParams returns the winning configuration.
func (r *Result) BestParams() (strategy.Params, bool) {
	if r.Best == nil {
		return strategy.Params{}, false
	}
	return r.Best.Params, true
}

// Ranked returns a copy of the evaluations ordered best first. Equal scores
// keep enumeration order and undefined scores sort last.
func (r *Result) Ranked() []Evaluation {
	ranked := make([]Evaluation, len(r.Evaluations))
	copy(ranked, r.Evaluations)
	sort.SliceStable(ranked, func(i, j int) bool {
		return outranks(r.Metric, ranked[i].Score, ranked[j].Score)
	})
	return ranked
}

// Optimizer runs every combination of a grid through a backtester.
type Optimizer struct {
	runner   *backtest.Backtester
	opts     Options
	log      *zap.Logger
	recorder Recorder
	progress ProgressFunc
}

// New creates an optimizer.
func New(runner *backtest.Backtester, opts Options, log *zap.Logger) *Optimizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Optimizer{
		runner: runner,
		opts:   opts,
		log:    log,
	}
}

// WithRecorder attaches a metrics recorder.
func (o *Optimizer) WithRecorder(r Recorder) *Optimizer {
	o.recorder = r
	return o
}

// WithProgress attaches a progress callback.
func (o *Optimizer) WithProgress(fn ProgressFunc) *Optimizer {
	o.progress = fn
	return o
}

// Optimize evaluates every combination of grid applied to base. Config and
// data errors are reported once, before any combination runs.
func (o *Optimizer) Optimize(ctx context.Context, candles []core.Candle, base strategy.Params, grid Grid) (*Result, error) {
	start := time.Now()

	if err := o.opts.Validate(); err != nil {
		return nil, err
	}
	combos, err := grid.Combinations(base)
	if err != nil {
		return nil, err
	}

	warmup := lo.Max(lo.Map(combos, func(c Combination, _ int) int { return c.Params.Warmup() }))
	if err := backtest.ValidateSeries(candles, warmup); err != nil {
		return nil, err
	}

	workers := min(o.opts.Workers, len(combos))
	o.log.Info("starting grid search",
		zap.Strings("parameters", grid.Names()),
		zap.Int("combinations", len(combos)),
		zap.Int("workers", workers),
		zap.String("metric", o.opts.Metric),
	)

	results, err := o.evaluate(ctx, candles, combos, workers)
	if err != nil {
		return nil, err
	}

	result := o.aggregate(grid, combos, results)
	result.Duration = time.Since(start)

	if result.Best != nil {
		o.log.Info("grid search complete",
			zap.Int("combinations", len(combos)),
			zap.Int("best_index", result.Best.Index),
			zap.Any("best_values", result.Best.Values),
			zap.Float64(o.opts.Metric, result.Best.Score),
			zap.Duration("duration", result.Duration),
		)
	} else {
		o.log.Warn("grid search found no combination with a defined score",
			zap.Int("combinations", len(combos)),
			zap.String("metric", o.opts.Metric),
		)
	}
	return result, nil
}

// evaluate runs combos on a fixed pool of workers pulling indices from a
// queue. Outputs are stored by index so scheduling never affects the result.
func (o *Optimizer) evaluate(ctx context.Context, candles []core.Candle, combos []Combination, workers int) ([]*backtest.Result, error) {
	results := make([]*backtest.Result, len(combos))
	errs := make([]error, len(combos))

	queue := make(chan int)
	var completed atomic.Int64
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range queue {
				res, err := o.runner.Run(ctx, candles, combos[idx].Params)
				results[idx], errs[idx] = res, err
				o.record(err)

				done := completed.Add(1)
				if o.progress != nil {
					o.progress(int(done), len(combos))
				}
				if o.opts.ProgressEvery > 0 && (done%int64(o.opts.ProgressEvery) == 0 || int(done) == len(combos)) {
					o.log.Info("grid search progress",
						zap.Int64("completed", done),
						zap.Int("total", len(combos)),
					)
				}
			}
		}()
	}

dispatch:
	for i := range combos {
		select {
		case <-ctx.Done():
			break dispatch
		case queue <- i:
		}
	}
	close(queue)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("combination %d: %w", i, err)
		}
	}
	return results, nil
}

// aggregate is the single accumulation point: combinations are compared in
// enumeration order so the first of equal scores wins.
func (o *Optimizer) aggregate(grid Grid, combos []Combination, results []*backtest.Result) *Result {
	names := grid.Names()
	out := &Result{
		Metric:      o.opts.Metric,
		Parameters:  names,
		Evaluations: make([]Evaluation, len(combos)),
	}

	bestIdx := -1
	for i, c := range combos {
		score, _ := results[i].Metrics.Value(o.opts.Metric)
		values := make(map[string]float64, len(names))
		for j, n := range names {
			values[n] = c.Values[j]
		}
		out.Evaluations[i] = Evaluation{
			Index:   c.Index,
			Values:  values,
			Params:  c.Params,
			Metrics: results[i].Metrics,
			Score:   score,
		}

		if !math.IsNaN(score) && (bestIdx < 0 || o.better(score, out.Evaluations[bestIdx].Score)) {
			bestIdx = i
		}
	}

	if bestIdx >= 0 {
		best := out.Evaluations[bestIdx]
		out.Best = &best
	}
	return out
}

// better reports whether candidate strictly beats best. NaN never wins.
func (o *Optimizer) better(candidate, best float64) bool {
	return outranks(o.opts.Metric, candidate, best)
}

func outranks(metric string, candidate, best float64) bool {
	if math.IsNaN(candidate) {
		return false
	}
	if math.IsNaN(best) {
		return true
	}
	if minimized[metric] {
		return candidate < best
	}
	return candidate > best
}

func (o *Optimizer) record(err error) {
	if o.recorder == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	o.recorder.RecordCombination(status)
}
