package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/newthinker/momentum/internal/app"
	"github.com/newthinker/momentum/internal/report"
	"github.com/newthinker/momentum/internal/strategy"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	backtestData dataFlags
	backtestSet  []string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run the momentum strategy over historical candles",
	Long: `Fetch candles for a symbol, replay them through the momentum strategy and
print performance statistics, the trade log and the volatility-adjusted
parameters suggested for the next run.`,
	Args: cobra.NoArgs,
	RunE: runBacktest,
}

func init() {
	backtestData.register(backtestCmd)
	backtestCmd.Flags().StringArrayVar(&backtestSet, "set", nil, "override a strategy parameter, e.g. --set rsi_period=14")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	req, err := backtestData.request()
	if err != nil {
		return err
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		cfg := a.Config()
		params, err := applyOverrides(cfg.Strategy, backtestSet)
		if err != nil {
			return err
		}

		candles, err := a.LoadCandles(ctx, req)
		if err != nil {
			return err
		}
		printSeries(cmd.OutOrStdout(), a.Resolve(req), len(candles))
		a.Logger().Info("candles loaded", zap.Int("count", len(candles)))

		res, err := a.Backtest(ctx, req.Timeframe, candles, params)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		printBacktest(out, res)

		if backtestData.export || cfg.Backtest.Export {
			runID := report.NewRunID()
			files, err := a.Exporter().ExportBacktest(ctx, runID, res)
			if err != nil {
				return fmt.Errorf("exporting reports: %w", err)
			}
			fmt.Fprintln(out)
			for _, f := range files {
				fmt.Fprintf(out, "Wrote %s\n", a.Exporter().URI(f))
			}
		}
		return nil
	})
}

// applyOverrides sets name=value pairs on base and validates the result.
func applyOverrides(base strategy.Params, pairs []string) (strategy.Params, error) {
	p := base
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return p, fmt.Errorf("invalid override %q (expected name=value)", pair)
		}
		name = strings.TrimSpace(name)
		if name == "volume_confirmation" {
			b, err := strconv.ParseBool(strings.TrimSpace(raw))
			if err != nil {
				return p, fmt.Errorf("invalid value for %s: %w", name, err)
			}
			p.VolumeConfirmation = b
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return p, fmt.Errorf("invalid value for %s: %w", name, err)
		}
		if p, err = p.With(name, v); err != nil {
			return p, err
		}
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

