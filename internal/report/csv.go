package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/newthinker/momentum/internal/backtest"
	"github.com/newthinker/momentum/internal/optimizer"
	"github.com/samber/lo"
)

var (
	resultsHeader = []string{"timestamp", "time", "close", "balance", "equity", "signal"}
	tradesHeader  = []string{"timestamp", "time", "type", "reason", "price", "amount", "cost", "profit", "balance"}
	metricsHeader = []string{"metric", "value"}
)

// WriteResults encodes the per-candle results table.
func WriteResults(w io.Writer, rows []backtest.ResultRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(resultsHeader); err != nil {
		return err
	}
	for _, r := range rows {
		err := cw.Write([]string{
			formatMillis(r.Time), formatTime(r.Time),
			formatF(r.Close), formatF(r.Balance), formatF(r.Equity),
			r.Signal.String(),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTrades encodes the trade log.
func WriteTrades(w io.Writer, trades []backtest.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradesHeader); err != nil {
		return err
	}
	for _, t := range trades {
		err := cw.Write([]string{
			formatMillis(t.Time), formatTime(t.Time),
			string(t.Type), t.Reason,
			formatF(t.Price), formatF(t.Amount), formatF(t.Cost), formatF(t.Profit), formatF(t.Balance),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMetrics encodes metrics as key/value rows in export order.
func WriteMetrics(w io.Writer, m backtest.Metrics) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(metricsHeader); err != nil {
		return err
	}
	for _, key := range backtest.MetricKeys {
		v, _ := m.Value(key)
		if err := cw.Write([]string{key, formatF(v)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteOptimization encodes one row per evaluated combination: the grid
// parameters in declaration order followed by every metric.
func WriteOptimization(w io.Writer, res *optimizer.Result) error {
	if res == nil {
		return fmt.Errorf("nil optimization result")
	}
	cw := csv.NewWriter(w)
	header := append(append([]string{"index"}, res.Parameters...), backtest.MetricKeys...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, ev := range res.Evaluations {
		record := make([]string, 0, len(header))
		record = append(record, strconv.Itoa(ev.Index))
		record = append(record, lo.Map(res.Parameters, func(name string, _ int) string {
			return formatF(ev.Values[name])
		})...)
		for _, key := range backtest.MetricKeys {
			v, _ := ev.Metrics.Value(key)
			record = append(record, formatF(v))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// formatF renders floats in shortest round-trip form; undefined values
// become "NaN".
func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func formatMillis(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }
