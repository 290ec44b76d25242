package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/newthinker/momentum/internal/backtest"
	"github.com/newthinker/momentum/internal/collector"
	"github.com/newthinker/momentum/internal/collector/binance"
	"github.com/newthinker/momentum/internal/collector/cache"
	"github.com/newthinker/momentum/internal/collector/csvfile"
	"github.com/newthinker/momentum/internal/collector/okx"
	"github.com/newthinker/momentum/internal/config"
	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/metrics"
	"github.com/newthinker/momentum/internal/notifier"
	"github.com/newthinker/momentum/internal/optimizer"
	"github.com/newthinker/momentum/internal/report"
	"github.com/newthinker/momentum/internal/storage/archive"
	"github.com/newthinker/momentum/internal/strategy"
	"go.uber.org/zap"
)

// DataRequest selects a candle series. Empty fields fall back to the
// configured data section.
type DataRequest struct {
	Source    string    `json:"source,omitempty"`
	Symbol    string    `json:"symbol,omitempty"`
	Timeframe string    `json:"timeframe,omitempty"`
	Since     time.Time `json:"since,omitempty"`
	Limit     int       `json:"limit,omitempty"`
}

// Option customizes App construction.
type Option func(*App)

// WithCacheStore replaces the Redis candle cache backend.
func WithCacheStore(store cache.Store) Option {
	return func(a *App) { a.cacheStore = store }
}

// WithStorage replaces the report storage backend.
func WithStorage(store archive.Storage) Option {
	return func(a *App) { a.storage = store }
}

// WithFetcher registers an additional candle source.
func WithFetcher(f collector.Fetcher) Option {
	return func(a *App) { a.extra = append(a.extra, f) }
}

// WithNotifier registers an additional completion notifier.
func WithNotifier(n notifier.Notifier) Option {
	return func(a *App) { a.extraNotifiers = append(a.extraNotifiers, n) }
}

// App wires configuration to the data sources, the simulation engine and
// report storage.
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Registry
	sources *collector.Registry

	cacheStore cache.Store
	redis      *cache.RedisStore
	storage    archive.Storage
	exporter   *report.Exporter
	extra      []collector.Fetcher

	notifiers      *notifier.Registry
	extraNotifiers []notifier.Notifier

	now func() time.Time
}

// New creates a new App instance
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.Defaults()
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewRegistry(),
		sources: collector.NewRegistry(),
		now:     time.Now,

		notifiers: notifier.NewRegistry(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.registerSources()
	if err := a.registerNotifiers(); err != nil {
		return nil, err
	}

	if cfg.Cache.Enabled && a.cacheStore == nil {
		a.redis = cache.NewRedisStore(cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB, cfg.Cache.Prefix)
		a.cacheStore = a.redis
	}

	if a.storage == nil {
		store, err := archive.New(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("creating report storage: %w", err)
		}
		a.storage = store
	}
	a.exporter = report.NewExporter(a.storage, logger)

	return a, nil
}

func (a *App) registerSources() {
	d := a.cfg.Data

	bn := binance.New()
	ox := okx.New()
	switch d.Source {
	case "binance":
		if d.BaseURL != "" {
			bn = binance.NewWithBaseURL(d.BaseURL)
		}
		if d.RateLimit > 0 {
			bn.WithRateLimit(d.RateLimit)
		}
	case "okx":
		if d.BaseURL != "" {
			ox = okx.NewWithBaseURL(d.BaseURL)
		}
		if d.RateLimit > 0 {
			ox.WithRateLimit(d.RateLimit)
		}
	}
	a.sources.Register(bn)
	a.sources.Register(ox)
	if d.CSVPath != "" {
		a.sources.Register(csvfile.New(d.CSVPath))
	}
	for _, f := range a.extra {
		a.sources.Register(f)
	}
}

// Config returns the loaded configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Metrics returns the Prometheus registry.
func (a *App) Metrics() *metrics.Registry {
	return a.metrics
}

// Exporter returns the report exporter.
func (a *App) Exporter() *report.Exporter {
	return a.exporter
}

// Sources lists the registered candle sources.
func (a *App) Sources() []string {
	return a.sources.Names()
}

// Source returns the named fetcher, wrapped in the candle cache when
// caching is enabled. Local files are never cached.
func (a *App) Source(name string) (collector.Fetcher, error) {
	f, err := a.sources.Get(name)
	if err != nil {
		return nil, err
	}
	if a.cacheStore == nil || name == "csv" {
		return f, nil
	}
	return cache.New(f, a.cacheStore, a.cfg.Cache.TTL, a.logger).WithRecorder(a.metrics), nil
}

// Resolve fills empty request fields from configuration.
func (a *App) Resolve(req DataRequest) DataRequest {
	d := a.cfg.Data
	if req.Source == "" {
		req.Source = d.Source
	}
	if req.Symbol == "" {
		req.Symbol = d.Symbol
	}
	if req.Timeframe == "" {
		req.Timeframe = d.Timeframe
	}
	if req.Since.IsZero() && req.Limit == 0 {
		req.Since = d.Since(a.now(), req.Timeframe)
		req.Limit = d.Limit
	}
	return req
}

// LoadCandles fetches the series for req, retrying transient failures.
func (a *App) LoadCandles(ctx context.Context, req DataRequest) ([]core.Candle, error) {
	req = a.Resolve(req)
	f, err := a.Source(req.Source)
	if err != nil {
		return nil, err
	}
	return collector.Fetch(ctx, f, req.Symbol, req.Timeframe, req.Since, req.Limit,
		a.cfg.Data.Retry, a.metrics, a.logger)
}

// Backtester builds a simulator for candles of timeframe.
func (a *App) Backtester(timeframe string) (*backtest.Backtester, error) {
	cfg := *a.cfg
	if timeframe != "" {
		cfg.Data.Timeframe = timeframe
	}
	opts, err := cfg.BacktestOptions()
	if err != nil {
		return nil, err
	}
	return backtest.New(opts, a.logger), nil
}

// Backtest runs one simulation and records its outcome.
func (a *App) Backtest(ctx context.Context, timeframe string, candles []core.Candle, params strategy.Params) (*backtest.Result, error) {
	bt, err := a.Backtester(timeframe)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := bt.Run(ctx, candles, params)
	a.metrics.RecordBacktest(outcome(err), time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	for _, t := range res.Trades {
		a.metrics.RecordTrade(string(t.Type), t.Reason)
	}
	return res, nil
}

// Optimize runs a grid search and records its outcome. progress may be nil.
func (a *App) Optimize(ctx context.Context, timeframe string, candles []core.Candle, base strategy.Params,
	grid optimizer.Grid, opts optimizer.Options, progress optimizer.ProgressFunc) (*optimizer.Result, error) {
	bt, err := a.Backtester(timeframe)
	if err != nil {
		return nil, err
	}

	opt := optimizer.New(bt, opts, a.logger).WithRecorder(a.metrics)
	if progress != nil {
		opt.WithProgress(progress)
	}

	start := time.Now()
	res, err := opt.Optimize(ctx, candles, base, grid)
	a.metrics.RecordOptimization(outcome(err), time.Since(start).Seconds())
	return res, err
}

// Close releases external connections.
func (a *App) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return string(core.KindOf(err)) + "_error"
	}
}
