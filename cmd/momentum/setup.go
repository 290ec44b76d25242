package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/newthinker/momentum/internal/app"
	"github.com/newthinker/momentum/internal/config"
	"github.com/newthinker/momentum/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// dataFlags are shared by commands that load candles.
type dataFlags struct {
	source    string
	symbol    string
	timeframe string
	since     string
	limit     int
	export    bool
}

func (f *dataFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.source, "source", "", "candle source: binance, okx or csv (default from config)")
	cmd.Flags().StringVar(&f.symbol, "symbol", "", "trading pair, e.g. BTC/USDT (default from config)")
	cmd.Flags().StringVar(&f.timeframe, "timeframe", "", "candle timeframe, e.g. 1h (default from config)")
	cmd.Flags().StringVar(&f.since, "since", "", "start date YYYY-MM-DD (default: data.days ago)")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "maximum number of candles")
	cmd.Flags().BoolVar(&f.export, "export", false, "write CSV reports to the configured storage")
}

func (f *dataFlags) request() (app.DataRequest, error) {
	req := app.DataRequest{
		Source:    f.source,
		Symbol:    f.symbol,
		Timeframe: f.timeframe,
		Limit:     f.limit,
	}
	if f.since != "" {
		since, err := parseDate(f.since)
		if err != nil {
			return req, err
		}
		req.Since = since
	}
	return req, nil
}

// loadConfig reads the config file, or the defaults when none is given.
func loadConfig(log *zap.Logger) (*config.Config, error) {
	var cfg *config.Config
	if cfgFile != "" {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
		log.Debug("no config file specified, using defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// withApp builds the logger, config and app, and runs fn with a context
// cancelled on SIGINT or SIGTERM.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	bootstrap := logger.Must(logger.Options{Development: debug})
	cfg, err := loadConfig(bootstrap)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Options{
		Development: debug || cfg.Log.Development,
		Level:       cfg.Log.Level,
	})
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return fn(ctx, a)
}
