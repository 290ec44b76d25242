package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/momentum/internal/collector"
	"github.com/newthinker/momentum/internal/core"
)

// Columns required in every candle file.
var requiredColumns = []string{"timestamp", "open", "high", "low", "close", "volume"}

// columnAliases maps alternative header names onto required columns.
var columnAliases = map[string]string{
	"time":      "timestamp",
	"date":      "timestamp",
	"open_time": "timestamp",
	"vol":       "volume",
}

// Source serves candles from local CSV files. The path is either a single
// file or a directory holding one <SYMBOL>_<timeframe>.csv per series.
type Source struct {
	path string
}

// New creates a CSV source rooted at path.
func New(path string) *Source {
	return &Source{path: path}
}

func (s *Source) Name() string {
	return "csv"
}

// FetchCandles reads the file for symbol and timeframe and returns the
// candles at or after since, capped at limit.
func (s *Source) FetchCandles(ctx context.Context, symbol, timeframe string, since time.Time, limit int) collector.FetchResult {
	path, err := s.resolve(symbol, timeframe)
	if err != nil {
		return collector.Permanent(err)
	}

	f, err := os.Open(path)
	if err != nil {
		return collector.Permanent(fmt.Errorf("opening %s: %w", path, err))
	}
	defer f.Close()

	candles, err := Read(f)
	if err != nil {
		return collector.Permanent(fmt.Errorf("%s: %w", path, err))
	}

	out := candles[:0]
	for _, c := range candles {
		if !since.IsZero() && c.Time.Before(since) {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return collector.OK(out)
}

func (s *Source) resolve(symbol, timeframe string) (string, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return "", fmt.Errorf("data path: %w", err)
	}
	if !info.IsDir() {
		return s.path, nil
	}
	if err := collector.ValidateSymbol(symbol); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%s.csv", collector.NormalizeSymbol(symbol, ""), timeframe)
	return filepath.Join(s.path, name), nil
}

// Read parses OHLCV rows with a header line. Timestamps may be epoch
// milliseconds or RFC 3339. Row order is preserved.
func Read(r io.Reader) ([]core.Candle, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, core.ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var candles []core.Candle
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, core.WrapError(core.ErrInvalidCandle, fmt.Errorf("line %d: %w", line, err))
		}

		c, err := parseRecord(record, index)
		if err != nil {
			return nil, core.WrapError(core.ErrInvalidCandle, fmt.Errorf("line %d: %w", line, err))
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if alias, ok := columnAliases[name]; ok {
			name = alias
		}
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, core.WrapError(core.ErrMissingColumn, fmt.Errorf("missing %s", strings.Join(missing, ", ")))
	}
	return index, nil
}

func parseRecord(record []string, index map[string]int) (core.Candle, error) {
	field := func(col string) (string, error) {
		i := index[col]
		if i >= len(record) {
			return "", fmt.Errorf("missing %s value", col)
		}
		return strings.TrimSpace(record[i]), nil
	}

	raw, err := field("timestamp")
	if err != nil {
		return core.Candle{}, err
	}
	ts, err := parseTime(raw)
	if err != nil {
		return core.Candle{}, err
	}

	c := core.Candle{Time: ts}
	targets := []struct {
		col string
		dst *float64
	}{
		{"open", &c.Open},
		{"high", &c.High},
		{"low", &c.Low},
		{"close", &c.Close},
		{"volume", &c.Volume},
	}
	for _, t := range targets {
		s, err := field(t.col)
		if err != nil {
			return core.Candle{}, err
		}
		if *t.dst, err = strconv.ParseFloat(s, 64); err != nil {
			return core.Candle{}, fmt.Errorf("%s: %w", t.col, err)
		}
	}
	return c, nil
}

func parseTime(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: want epoch milliseconds or RFC 3339", s)
	}
	return t.UTC(), nil
}
