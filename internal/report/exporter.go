package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"
	"github.com/newthinker/momentum/internal/backtest"
	"github.com/newthinker/momentum/internal/optimizer"
	"github.com/newthinker/momentum/internal/storage/archive"
	"go.uber.org/zap"
)

// Export file names.
const (
	ResultsFile      = "backtest_results.csv"
	TradesFile       = "backtest_trades.csv"
	MetricsFile      = "backtest_metrics.csv"
	OptimizationFile = "optimization_results.csv"
)

// Exporter writes run reports into a storage backend, one directory per run.
type Exporter struct {
	store archive.Storage
	log   *zap.Logger
}

// NewExporter creates an exporter over store.
func NewExporter(store archive.Storage, log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{store: store, log: log}
}

// NewRunID returns a fresh run directory name.
func NewRunID() string {
	return uuid.NewString()
}

// ExportBacktest writes the results table, trade log and metrics of one
// backtest under runID and returns the written paths.
func (e *Exporter) ExportBacktest(ctx context.Context, runID string, res *backtest.Result) ([]string, error) {
	if res == nil {
		return nil, fmt.Errorf("nil backtest result")
	}
	files := []struct {
		name   string
		encode func(io.Writer) error
	}{
		{ResultsFile, func(w io.Writer) error { return WriteResults(w, res.Rows) }},
		{TradesFile, func(w io.Writer) error { return WriteTrades(w, res.Trades) }},
		{MetricsFile, func(w io.Writer) error { return WriteMetrics(w, res.Metrics) }},
	}

	written := make([]string, 0, len(files))
	for _, f := range files {
		p, err := e.write(ctx, runID, f.name, f.encode)
		if err != nil {
			return written, err
		}
		written = append(written, p)
	}
	return written, nil
}

// ExportOptimization writes the optimization table under runID.
func (e *Exporter) ExportOptimization(ctx context.Context, runID string, res *optimizer.Result) (string, error) {
	return e.write(ctx, runID, OptimizationFile, func(w io.Writer) error {
		return WriteOptimization(w, res)
	})
}

// Files lists the reports of a run.
func (e *Exporter) Files(ctx context.Context, runID string) ([]string, error) {
	return e.store.List(ctx, runID)
}

// Read returns one report file of a run.
func (e *Exporter) Read(ctx context.Context, runID, name string) ([]byte, error) {
	return e.store.Read(ctx, path.Join(runID, name))
}

// URI describes where a written path lives.
func (e *Exporter) URI(p string) string {
	return e.store.URI(p)
}

func (e *Exporter) write(ctx context.Context, runID, name string, encode func(io.Writer) error) (string, error) {
	var buf bytes.Buffer
	if err := encode(&buf); err != nil {
		return "", fmt.Errorf("encoding %s: %w", name, err)
	}
	p := path.Join(runID, name)
	if err := e.store.Write(ctx, p, buf.Bytes()); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	e.log.Debug("report written", zap.String("path", e.store.URI(p)), zap.Int("bytes", buf.Len()))
	return p, nil
}
