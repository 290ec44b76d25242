package main

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/newthinker/momentum/internal/app"
	"github.com/newthinker/momentum/internal/backtest"
	"github.com/newthinker/momentum/internal/collector"
	"github.com/newthinker/momentum/internal/optimizer"
	"github.com/newthinker/momentum/internal/strategy"
)

// maxTableRows bounds how many trades or combinations are printed.
const maxTableRows = 20

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format (expected YYYY-MM-DD): %w", err)
	}
	return t, nil
}

func printSeries(out io.Writer, req app.DataRequest, candles int) {
	symbol := collector.FormatDisplay(collector.NormalizeSymbol(req.Symbol, ""))
	fmt.Fprintf(out, "%s %s from %s: %d candles\n\n", symbol, req.Timeframe, req.Source, candles)
}

func formatMetric(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", v)
}

func printParams(out io.Writer, title string, p strategy.Params) {
	fmt.Fprintf(out, "%s:\n", title)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  RSI\tperiod %d\toverbought %g\toversold %g\n", p.RSIPeriod, p.RSIOverbought, p.RSIOversold)
	fmt.Fprintf(w, "  MACD\tfast %d\tslow %d\tsignal %d\n", p.MACDFast, p.MACDSlow, p.MACDSignal)
	fmt.Fprintf(w, "  Volume\twindow %d\tthreshold %g\tconfirmation %t\n", p.VolumeWindow, p.VolumeThreshold, p.VolumeConfirmation)
	fmt.Fprintf(w, "  Risk\tposition %g\ttrailing stop %g\tvolatility threshold %g\n", p.PositionSize, p.TrailingStopPct, p.VolatilityThreshold)
	w.Flush()
}

func printMetrics(out io.Writer, m backtest.Metrics) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tVALUE")
	fmt.Fprintln(w, "------\t-----")
	for _, key := range backtest.MetricKeys {
		v, _ := m.Value(key)
		fmt.Fprintf(w, "%s\t%s\n", key, formatMetric(v))
	}
	w.Flush()
}

func printBacktest(out io.Writer, res *backtest.Result) {
	fmt.Fprintln(out, "=== Backtest Results ===")
	printMetrics(out, res.Metrics)
	fmt.Fprintln(out)

	if len(res.Trades) == 0 {
		fmt.Fprintln(out, "No trades executed")
	} else {
		fmt.Fprintf(out, "Trades (%d):\n", len(res.Trades))
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tTYPE\tREASON\tPRICE\tAMOUNT\tPROFIT\tBALANCE")
		fmt.Fprintln(w, "----\t----\t------\t-----\t------\t------\t-------")
		for i, t := range res.Trades {
			if i == maxTableRows {
				fmt.Fprintf(w, "... %d more\t\t\t\t\t\t\n", len(res.Trades)-maxTableRows)
				break
			}
			profit := "-"
			if t.HasProfit() {
				profit = fmt.Sprintf("%.2f", t.Profit)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\t%.6f\t%s\t%.2f\n",
				t.Time.UTC().Format("2006-01-02 15:04"), t.Type, t.Reason, t.Price, t.Amount, profit, t.Balance)
		}
		w.Flush()
	}

	if len(res.OpenPositions) > 0 {
		fmt.Fprintf(out, "\nOpen positions: %d\n", len(res.OpenPositions))
	}
	fmt.Fprintln(out)
	printParams(out, "Suggested next parameters", res.NextParams)
}

func printOptimization(out io.Writer, res *optimizer.Result) {
	fmt.Fprintln(out, "=== Optimization Results ===")
	fmt.Fprintf(out, "Combinations: %d  Metric: %s  Duration: %s\n\n",
		len(res.Evaluations), res.Metric, res.Duration.Round(time.Millisecond))

	ranked := res.Ranked()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	header := append([]string{"#"}, res.Parameters...)
	header = append(header, "RETURN%", "TRADES", "WIN%", "MAX_DD%", "SHARPE")
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for i, ev := range ranked {
		if i == maxTableRows {
			break
		}
		cols := []string{fmt.Sprint(ev.Index)}
		for _, name := range res.Parameters {
			cols = append(cols, fmt.Sprintf("%g", ev.Values[name]))
		}
		cols = append(cols,
			formatMetric(ev.Metrics.TotalReturnPct),
			fmt.Sprint(ev.Metrics.NumTrades),
			formatMetric(ev.Metrics.WinRatePct),
			formatMetric(ev.Metrics.MaxDrawdownPct),
			formatMetric(ev.Metrics.SharpeRatio),
		)
		fmt.Fprintln(w, strings.Join(cols, "\t"))
	}
	w.Flush()
	fmt.Fprintln(out)

	if res.Best == nil {
		fmt.Fprintf(out, "No combination produced a defined %s\n", res.Metric)
		return
	}
	fmt.Fprintf(out, "Best combination #%d (%s = %s)\n", res.Best.Index, res.Metric, formatMetric(res.Best.Score))
	printParams(out, "Best parameters", res.Best.Params)
}
