package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/newthinker/momentum/internal/backtest"
	"github.com/newthinker/momentum/internal/collector"
	"github.com/newthinker/momentum/internal/collector/cache"
	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/logger"
	"github.com/newthinker/momentum/internal/notifier"
	"github.com/newthinker/momentum/internal/optimizer"
	"github.com/newthinker/momentum/internal/storage/archive"
	"github.com/newthinker/momentum/internal/strategy"
	"github.com/spf13/viper"
)

type Config struct {
	Strategy   strategy.Params           `mapstructure:"strategy"`
	Volatility strategy.VolatilityPolicy `mapstructure:"volatility"`
	Backtest   BacktestConfig            `mapstructure:"backtest"`
	Optimizer  OptimizerConfig           `mapstructure:"optimizer"`
	Data       DataConfig                `mapstructure:"data"`
	Cache      CacheConfig               `mapstructure:"cache"`
	Storage    archive.Config            `mapstructure:"storage"`
	Server     ServerConfig              `mapstructure:"server"`
	Metrics    MetricsConfig             `mapstructure:"metrics"`
	Notify     notifier.Config           `mapstructure:"notify"`
	Log        logger.Options            `mapstructure:"log"`
}

// BacktestConfig holds simulation settings that are not strategy parameters.
type BacktestConfig struct {
	InitialBalance float64 `mapstructure:"initial_balance"`
	RiskFreeRate   float64 `mapstructure:"risk_free_rate"`
	// PeriodsPerYear overrides the value derived from data.timeframe when positive.
	PeriodsPerYear float64 `mapstructure:"periods_per_year"`
	StopExecution  bool    `mapstructure:"stop_execution"`
	ClosePolicy    string  `mapstructure:"close_policy"` // "lifo" or "fifo"
	Export         bool    `mapstructure:"export"`
}

// OptimizerConfig holds grid search settings.
type OptimizerConfig struct {
	Workers       int         `mapstructure:"workers"`
	Metric        string      `mapstructure:"metric"`
	ProgressEvery int         `mapstructure:"progress_every"`
	Grid          []GridEntry `mapstructure:"grid"`
	Export        bool        `mapstructure:"export"`
}

// GridEntry declares one optimizer dimension, either as explicit values or
// as an inclusive start/stop/step range.
type GridEntry struct {
	Name   string    `mapstructure:"name" json:"name"`
	Values []float64 `mapstructure:"values" json:"values,omitempty"`
	Start  float64   `mapstructure:"start" json:"start,omitempty"`
	Stop   float64   `mapstructure:"stop" json:"stop,omitempty"`
	Step   float64   `mapstructure:"step" json:"step,omitempty"`
}

// DataConfig selects where candles come from.
type DataConfig struct {
	Source    string                `mapstructure:"source"` // "binance", "okx" or "csv"
	Symbol    string                `mapstructure:"symbol"`
	Timeframe string                `mapstructure:"timeframe"`
	Days      int                   `mapstructure:"days"`
	Limit     int                   `mapstructure:"limit"` // 0 fetches everything since Days ago
	CSVPath   string                `mapstructure:"csv_path"`
	BaseURL   string                `mapstructure:"base_url"`
	RateLimit float64               `mapstructure:"rate_limit"` // requests per second, 0 keeps the source default
	Retry     collector.RetryPolicy `mapstructure:"retry"`
}

// CacheConfig holds the Redis candle cache settings.
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	APIKey      string `mapstructure:"api_key"`
	JobTTLHours int    `mapstructure:"job_ttl_hours"`
	MaxJobs     int    `mapstructure:"max_jobs"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file on top of Defaults. A .env file next
// to the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	// A configured grid replaces the default one instead of merging into it.
	if v.IsSet("optimizer.grid") {
		cfg.Optimizer.Grid = nil
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Strategy:   strategy.DefaultParams(),
		Volatility: strategy.DefaultVolatilityPolicy(),
		Backtest: BacktestConfig{
			InitialBalance: backtest.DefaultInitialBalance,
			RiskFreeRate:   backtest.DefaultRiskFreeRate,
			StopExecution:  true,
			ClosePolicy:    string(backtest.CloseLIFO),
		},
		Optimizer: OptimizerConfig{
			Workers:       1,
			Metric:        backtest.MetricTotalReturnPct,
			ProgressEvery: 10,
			Grid:          DefaultGrid(),
		},
		Data: DataConfig{
			Source:    "binance",
			Symbol:    "BTC/USDT",
			Timeframe: "1h",
			Days:      30,
			Retry:     collector.DefaultRetryPolicy(),
		},
		Cache: CacheConfig{
			Addr:   "localhost:6379",
			Prefix: "momentum:",
			TTL:    cache.DefaultTTL,
		},
		Storage: archive.Config{
			Type: "local",
			Path: "reports",
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			JobTTLHours: 1,
			MaxJobs:     100,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// DefaultGrid is the production optimization grid.
func DefaultGrid() []GridEntry {
	return []GridEntry{
		{Name: strategy.ParamRSIPeriod, Start: 10, Stop: 20, Step: 2},
		{Name: strategy.ParamRSIOverbought, Start: 65, Stop: 80, Step: 5},
		{Name: strategy.ParamRSIOversold, Start: 20, Stop: 35, Step: 5},
		{Name: strategy.ParamPositionSize, Values: []float64{0.01, 0.02, 0.03}},
		{Name: strategy.ParamVolumeThreshold, Values: []float64{1.1, 1.2, 1.3}},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Strategy.Validate(); err != nil {
		return err
	}
	if _, err := c.BacktestOptions(); err != nil {
		return err
	}
	if err := c.OptimizerOptions().Validate(); err != nil {
		return err
	}
	if _, err := c.Grid(); err != nil {
		return err
	}

	switch c.Data.Source {
	case "binance", "okx":
	case "csv":
		if c.Data.CSVPath == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("data.csv_path required when source is csv"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown data source %q", c.Data.Source))
	}
	if c.Data.Symbol == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("data.symbol required"))
	}
	if c.Data.Days < 0 || c.Data.Limit < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("data.days and data.limit cannot be negative"))
	}

	if c.Cache.Enabled && c.Cache.Addr == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("cache.addr required when cache is enabled"))
	}

	switch c.Storage.Type {
	case "", "local":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage.s3.bucket required when storage type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown storage type %q", c.Storage.Type))
	}

	if tg := c.Notify.Telegram; (tg.BotToken == "") != (tg.ChatID == "") {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("notify.telegram needs both bot_token and chat_id"))
	}

	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	return nil
}

// BacktestOptions builds simulation options, deriving periods per year from
// the data timeframe unless overridden.
func (c *Config) BacktestOptions() (backtest.Options, error) {
	periods := c.Backtest.PeriodsPerYear
	if periods <= 0 {
		var err error
		if periods, err = backtest.PeriodsPerYear(c.Data.Timeframe); err != nil {
			return backtest.Options{}, err
		}
	}

	opts := backtest.Options{
		InitialBalance: c.Backtest.InitialBalance,
		PeriodsPerYear: periods,
		RiskFreeRate:   c.Backtest.RiskFreeRate,
		StopExecution:  c.Backtest.StopExecution,
		ClosePolicy:    backtest.ClosePolicy(strings.ToLower(c.Backtest.ClosePolicy)),
		Volatility:     c.Volatility,
	}
	return opts, opts.Validate()
}

// OptimizerOptions returns the grid search options.
func (c *Config) OptimizerOptions() optimizer.Options {
	return optimizer.Options{
		Workers:       c.Optimizer.Workers,
		Metric:        c.Optimizer.Metric,
		ProgressEvery: c.Optimizer.ProgressEvery,
	}
}

// Grid builds the optimizer grid in declaration order.
func (c *Config) Grid() (optimizer.Grid, error) {
	grid, err := BuildGrid(c.Optimizer.Grid)
	if err != nil {
		return nil, err
	}
	return grid, grid.Validate()
}

// BuildGrid converts declared entries into dimensions.
func BuildGrid(entries []GridEntry) (optimizer.Grid, error) {
	grid := make(optimizer.Grid, 0, len(entries))
	for _, e := range entries {
		if len(e.Values) > 0 {
			grid = append(grid, optimizer.NewDimension(e.Name, e.Values...))
			continue
		}
		dim, err := optimizer.Range(e.Name, e.Start, e.Stop, e.Step)
		if err != nil {
			return nil, err
		}
		grid = append(grid, dim)
	}
	return grid, nil
}

// Since returns the start of the configured lookback window for candles of
// timeframe (data.timeframe when empty). now is first truncated to a candle
// boundary so repeated requests inside one period share a window and a
// cache key.
func (d DataConfig) Since(now time.Time, timeframe string) time.Time {
	if d.Days <= 0 {
		return time.Time{}
	}
	if timeframe == "" {
		timeframe = d.Timeframe
	}
	if period, err := backtest.PeriodDuration(timeframe); err == nil {
		now = now.Truncate(period)
	}
	return now.Add(-time.Duration(d.Days) * 24 * time.Hour)
}

// JobTTL returns how long finished API jobs are kept.
func (s ServerConfig) JobTTL() time.Duration {
	return time.Duration(max(s.JobTTLHours, 1)) * time.Hour
}
