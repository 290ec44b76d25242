package okx

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/newthinker/momentum/internal/collector"
	"github.com/newthinker/momentum/internal/core"
)

const (
	baseURL = "https://www.okx.com"

	// pageSize is the largest page the history-candles endpoint serves.
	pageSize = 100

	defaultRequestsPerSecond = 10

	// codeRateLimited is returned in the body when requests are too frequent.
	codeRateLimited = "50011"
)

// bars maps timeframes onto OKX bar names.
var bars = map[string]string{
	"1m": "1m", "3m": "3m", "5m": "5m", "15m": "15m", "30m": "30m",
	"1h": "1H", "2h": "2H", "4h": "4H", "6h": "6H", "12h": "12H",
	"1d": "1D", "1w": "1W",
}

// OKX fetches spot candles from the OKX REST API.
type OKX struct {
	src   *collector.HTTPSource
	quote string
	now   func() time.Time
}

// New creates a new OKX fetcher
func New() *OKX {
	return &OKX{
		src:   collector.NewHTTPSource(baseURL, defaultRequestsPerSecond),
		quote: "USDT",
		now:   time.Now,
	}
}

// NewWithBaseURL creates an OKX fetcher with custom base URL (for testing)
func NewWithBaseURL(url string) *OKX {
	o := New()
	o.src.SetBaseURL(url)
	return o
}

// WithRateLimit caps outgoing requests per second.
func (o *OKX) WithRateLimit(perSecond float64) *OKX {
	o.src.SetRateLimit(perSecond)
	return o
}

func (o *OKX) Name() string {
	return "okx"
}

// toInstID converts a symbol to an OKX instrument ID: BTCUSDT -> BTC-USDT.
func (o *OKX) toInstID(symbol string) string {
	base, quote := collector.ParseSymbol(collector.NormalizeSymbol(symbol, o.quote))
	return base + "-" + quote
}

// FetchCandles walks history backwards from now, since OKX serves candles
// newest first, and returns the oldest limit candles at or after since.
// With a zero since the most recent limit candles are returned.
func (o *OKX) FetchCandles(ctx context.Context, symbol, timeframe string, since time.Time, limit int) collector.FetchResult {
	bar, ok := bars[timeframe]
	if !ok {
		return collector.Permanent(core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("okx does not support timeframe %q", timeframe)))
	}
	if err := collector.ValidateSymbol(symbol); err != nil {
		return collector.Permanent(err)
	}
	instID := o.toInstID(symbol)
	sinceMs := since.UnixMilli()

	var candles []core.Candle
	cursor := o.now().UnixMilli()
	for {
		page := o.fetchPage(ctx, instID, bar, cursor)
		if page.Status == collector.StatusEmpty {
			break
		}
		if page.Status != collector.StatusOK {
			return page
		}

		for _, c := range page.Candles {
			if since.IsZero() || c.Time.UnixMilli() >= sinceMs {
				candles = append(candles, c)
			}
		}

		oldest := page.Candles[len(page.Candles)-1].Time.UnixMilli()
		if !since.IsZero() && oldest <= sinceMs {
			break
		}
		if since.IsZero() && limit > 0 && len(candles) >= limit {
			break
		}
		cursor = oldest
	}

	sort.Slice(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
	if limit > 0 && len(candles) > limit {
		if since.IsZero() {
			candles = candles[len(candles)-limit:]
		} else {
			candles = candles[:limit]
		}
	}
	return collector.OK(candles)
}

// fetchPage returns up to pageSize candles older than cursor, newest first.
func (o *OKX) fetchPage(ctx context.Context, instID, bar string, cursor int64) collector.FetchResult {
	query := url.Values{}
	query.Set("instId", instID)
	query.Set("bar", bar)
	query.Set("after", strconv.FormatInt(cursor, 10))
	query.Set("limit", strconv.Itoa(pageSize))

	var result okxCandleResponse
	if res, ok := o.src.GetJSON(ctx, "/api/v5/market/history-candles", query, &result); !ok {
		return res
	}

	if result.Code != "0" {
		err := fmt.Errorf("okx error %s: %s", result.Code, result.Msg)
		if result.Code == codeRateLimited {
			return collector.Transient(err)
		}
		return collector.Permanent(err)
	}

	data := make([]core.Candle, 0, len(result.Data))
	for i, row := range result.Data {
		c, err := parseCandle(row)
		if err != nil {
			return collector.Permanent(fmt.Errorf("candle %d: %w", i, err))
		}
		data = append(data, c)
	}
	return collector.OK(data)
}

// parseCandle decodes ["ts", "o", "h", "l", "c", "vol", ...].
func parseCandle(row []string) (core.Candle, error) {
	if len(row) < 6 {
		return core.Candle{}, fmt.Errorf("expected at least 6 fields, got %d", len(row))
	}
	ts, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return core.Candle{}, fmt.Errorf("timestamp: %w", err)
	}

	var values [5]float64
	for i := range values {
		v, err := strconv.ParseFloat(row[i+1], 64)
		if err != nil {
			return core.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		values[i] = v
	}

	return core.Candle{
		Time:   time.UnixMilli(ts).UTC(),
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}

// OKX API response types
type okxCandleResponse struct {
	Code string     `json:"code"`
	Msg  string     `json:"msg"`
	Data [][]string `json:"data"`
}
