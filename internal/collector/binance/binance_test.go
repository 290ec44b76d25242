package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/newthinker/momentum/internal/collector"
)

// klineServer serves total hourly klines starting at epoch ms 0, honoring
// startTime and limit like the real endpoint.
func klineServer(t *testing.T, total int, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path != "/api/v3/klines" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("symbol") != "BTCUSDT" {
			t.Errorf("unexpected symbol %q", q.Get("symbol"))
		}
		start, _ := strconv.ParseInt(q.Get("startTime"), 10, 64)
		limit, _ := strconv.Atoi(q.Get("limit"))

		hour := int64(time.Hour / time.Millisecond)
		first := int((start + hour - 1) / hour)
		if start < 0 {
			first = 0
		}

		var rows []string
		for i := first; i < total && len(rows) < limit; i++ {
			price := 100 + float64(i)
			rows = append(rows, fmt.Sprintf(`[%d,"%.2f","%.2f","%.2f","%.2f","%.1f",%d]`,
				int64(i)*hour, price, price+1, price-1, price, 10.0, int64(i+1)*hour-1))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, "[%s]", strings.Join(rows, ","))
	}))
}

func TestBinance_Name(t *testing.T) {
	b := New()
	if b.Name() != "binance" {
		t.Errorf("expected 'binance', got '%s'", b.Name())
	}
}

func TestBinance_FetchCandles(t *testing.T) {
	var requests atomic.Int32
	srv := klineServer(t, 25, &requests)
	defer srv.Close()

	b := NewWithBaseURL(srv.URL).WithRateLimit(1000)
	res := b.FetchCandles(context.Background(), "BTC/USDT", "1h", time.UnixMilli(0), 10)

	if res.Status != collector.StatusOK {
		t.Fatalf("expected ok, got %s: %v", res.Status, res.Cause)
	}
	if len(res.Candles) != 10 {
		t.Fatalf("expected 10 candles, got %d", len(res.Candles))
	}
	c := res.Candles[3]
	if c.Close != 103 || c.High != 104 || c.Low != 102 || c.Volume != 10 {
		t.Errorf("unexpected candle %+v", c)
	}
	if !c.Time.Equal(time.UnixMilli(3 * int64(time.Hour/time.Millisecond))) {
		t.Errorf("unexpected time %s", c.Time)
	}
}

func TestBinance_FetchCandles_Paginates(t *testing.T) {
	var requests atomic.Int32
	srv := klineServer(t, 2500, &requests)
	defer srv.Close()

	b := NewWithBaseURL(srv.URL).WithRateLimit(1000)
	res := b.FetchCandles(context.Background(), "BTCUSDT", "1h", time.UnixMilli(0), 0)

	if res.Status != collector.StatusOK {
		t.Fatalf("expected ok, got %s: %v", res.Status, res.Cause)
	}
	if len(res.Candles) != 2500 {
		t.Fatalf("expected 2500 candles, got %d", len(res.Candles))
	}
	if requests.Load() != 3 {
		t.Errorf("expected 3 requests, got %d", requests.Load())
	}
	for i := 1; i < len(res.Candles); i++ {
		if !res.Candles[i].Time.After(res.Candles[i-1].Time) {
			t.Fatalf("candles out of order at %d", i)
		}
	}
}

func TestBinance_FetchCandles_Empty(t *testing.T) {
	var requests atomic.Int32
	srv := klineServer(t, 0, &requests)
	defer srv.Close()

	res := NewWithBaseURL(srv.URL).FetchCandles(context.Background(), "BTCUSDT", "1h", time.UnixMilli(0), 0)
	if res.Status != collector.StatusEmpty {
		t.Errorf("expected empty, got %s", res.Status)
	}
}

func TestBinance_FetchCandles_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   collector.Status
	}{
		{"rate limited", http.StatusTooManyRequests, `{"code":-1003}`, collector.StatusTransient},
		{"server error", http.StatusInternalServerError, `oops`, collector.StatusTransient},
		{"bad symbol", http.StatusBadRequest, `{"code":-1121,"msg":"Invalid symbol."}`, collector.StatusPermanent},
		{"bad payload", http.StatusOK, `[[1,"x","1","1","1","1"]]`, collector.StatusPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			res := NewWithBaseURL(srv.URL).FetchCandles(context.Background(), "BTCUSDT", "1h", time.UnixMilli(0), 0)
			if res.Status != tt.want {
				t.Errorf("expected %s, got %s (%v)", tt.want, res.Status, res.Cause)
			}
		})
	}
}

func TestBinance_UnsupportedTimeframe(t *testing.T) {
	res := New().FetchCandles(context.Background(), "BTCUSDT", "7m", time.Now(), 0)
	if res.Status != collector.StatusPermanent {
		t.Errorf("expected permanent, got %s", res.Status)
	}
}

// Integration test - skip in CI
func TestBinance_FetchCandles_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	res := New().FetchCandles(context.Background(), "BTCUSDT", "1h", time.Now().Add(-48*time.Hour), 24)
	if res.Status == collector.StatusTransient {
		t.Skipf("exchange unavailable: %v", res.Cause)
	}
	if res.Status != collector.StatusOK {
		t.Fatalf("FetchCandles failed: %s %v", res.Status, res.Cause)
	}
	if len(res.Candles) == 0 {
		t.Error("expected some candles")
	}
}
