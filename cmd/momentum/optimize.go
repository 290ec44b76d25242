package main

import (
	"context"
	"fmt"

	"github.com/newthinker/momentum/internal/app"
	"github.com/newthinker/momentum/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	optimizeData    dataFlags
	optimizeSet     []string
	optimizeWorkers int
	optimizeMetric  string
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Search the configured parameter grid for the best combination",
	Long: `Fetch candles once, backtest every combination of the optimizer grid from the
config file and report the combination that ranks best on the chosen metric.`,
	Args: cobra.NoArgs,
	RunE: runOptimize,
}

func init() {
	optimizeData.register(optimizeCmd)
	optimizeCmd.Flags().StringArrayVar(&optimizeSet, "set", nil, "override a base strategy parameter, e.g. --set macd_fast=8")
	optimizeCmd.Flags().IntVar(&optimizeWorkers, "workers", 0, "concurrent backtests (default from config)")
	optimizeCmd.Flags().StringVar(&optimizeMetric, "metric", "", "ranking metric (default from config)")

	rootCmd.AddCommand(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	req, err := optimizeData.request()
	if err != nil {
		return err
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		cfg := a.Config()
		base, err := applyOverrides(cfg.Strategy, optimizeSet)
		if err != nil {
			return err
		}
		grid, err := cfg.Grid()
		if err != nil {
			return err
		}

		opts := cfg.OptimizerOptions()
		if optimizeWorkers > 0 {
			opts.Workers = optimizeWorkers
		}
		if optimizeMetric != "" {
			opts.Metric = optimizeMetric
		}
		if err := opts.Validate(); err != nil {
			return err
		}

		candles, err := a.LoadCandles(ctx, req)
		if err != nil {
			return err
		}
		printSeries(cmd.OutOrStdout(), a.Resolve(req), len(candles))
		a.Logger().Info("starting optimization",
			zap.Int("candles", len(candles)),
			zap.Int("combinations", grid.Size()),
			zap.Int("workers", opts.Workers),
			zap.String("metric", opts.Metric),
		)

		runID := report.NewRunID()
		res, err := a.Optimize(ctx, req.Timeframe, candles, base, grid, opts, nil)
		a.NotifyOptimization(ctx, runID, req, res, err)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		printOptimization(out, res)

		if optimizeData.export || cfg.Optimizer.Export {
			p, err := a.Exporter().ExportOptimization(ctx, runID, res)
			if err != nil {
				return fmt.Errorf("exporting reports: %w", err)
			}
			fmt.Fprintf(out, "\nWrote %s\n", a.Exporter().URI(p))
		}
		return nil
	})
}
