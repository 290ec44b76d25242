package binance

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/newthinker/momentum/internal/collector"
	"github.com/newthinker/momentum/internal/core"
)

const (
	baseURL = "https://api.binance.com"

	// maxKlines is the largest page the klines endpoint serves.
	maxKlines = 1000

	defaultRequestsPerSecond = 10
)

// intervals lists the timeframes the klines endpoint accepts.
var intervals = map[string]bool{
	"1m": true, "3m": true, "5m": true, "15m": true, "30m": true,
	"1h": true, "2h": true, "4h": true, "6h": true, "8h": true, "12h": true,
	"1d": true, "3d": true, "1w": true,
}

// Binance fetches spot klines from the Binance REST API.
type Binance struct {
	src   *collector.HTTPSource
	quote string
}

// New creates a new Binance fetcher
func New() *Binance {
	return &Binance{
		src:   collector.NewHTTPSource(baseURL, defaultRequestsPerSecond),
		quote: "USDT",
	}
}

// NewWithBaseURL creates a Binance fetcher with custom base URL (for testing)
func NewWithBaseURL(url string) *Binance {
	b := New()
	b.src.SetBaseURL(url)
	return b
}

// WithRateLimit caps outgoing requests per second.
func (b *Binance) WithRateLimit(perSecond float64) *Binance {
	b.src.SetRateLimit(perSecond)
	return b
}

func (b *Binance) Name() string {
	return "binance"
}

// FetchCandles pages through klines from since until limit candles have
// been collected or the exchange has no more.
func (b *Binance) FetchCandles(ctx context.Context, symbol, timeframe string, since time.Time, limit int) collector.FetchResult {
	if !intervals[timeframe] {
		return collector.Permanent(core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("binance does not support timeframe %q", timeframe)))
	}
	if err := collector.ValidateSymbol(symbol); err != nil {
		return collector.Permanent(err)
	}
	pair := collector.NormalizeSymbol(symbol, b.quote)

	var candles []core.Candle
	start := since.UnixMilli()
	for {
		pageSize := maxKlines
		if limit > 0 {
			pageSize = min(pageSize, limit-len(candles))
		}

		page := b.fetchPage(ctx, pair, timeframe, start, pageSize)
		if page.Status == collector.StatusEmpty {
			break
		}
		if page.Status != collector.StatusOK {
			return page
		}

		candles = append(candles, page.Candles...)
		if len(page.Candles) < pageSize || (limit > 0 && len(candles) >= limit) {
			break
		}
		start = page.Candles[len(page.Candles)-1].Time.UnixMilli() + 1
	}

	return collector.OK(candles)
}

func (b *Binance) fetchPage(ctx context.Context, pair, interval string, startMs int64, size int) collector.FetchResult {
	query := url.Values{}
	query.Set("symbol", pair)
	query.Set("interval", interval)
	query.Set("startTime", strconv.FormatInt(startMs, 10))
	query.Set("limit", strconv.Itoa(size))

	var klines [][]any
	if res, ok := b.src.GetJSON(ctx, "/api/v3/klines", query, &klines); !ok {
		return res
	}

	data := make([]core.Candle, 0, len(klines))
	for i, k := range klines {
		c, err := parseKline(k)
		if err != nil {
			return collector.Permanent(fmt.Errorf("kline %d: %w", i, err))
		}
		data = append(data, c)
	}
	return collector.OK(data)
}

// parseKline decodes [openTime, "open", "high", "low", "close", "volume", ...].
func parseKline(k []any) (core.Candle, error) {
	if len(k) < 6 {
		return core.Candle{}, fmt.Errorf("expected at least 6 fields, got %d", len(k))
	}
	openTime, ok := k[0].(float64)
	if !ok {
		return core.Candle{}, fmt.Errorf("open time is %T", k[0])
	}

	var values [5]float64
	for i := range values {
		s, ok := k[i+1].(string)
		if !ok {
			return core.Candle{}, fmt.Errorf("field %d is %T", i+1, k[i+1])
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return core.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		values[i] = v
	}

	return core.Candle{
		Time:   time.UnixMilli(int64(openTime)).UTC(),
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}
