package backtest

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/strategy"
)

// spikeSeries declines for 40 candles, then climbs slowly with one volume
// spike at index 44.
func spikeSeries() []core.Candle {
	closes := make([]float64, 0, 70)
	for i := 0; i < 40; i++ {
		closes = append(closes, 1000-10*float64(i))
	}
	last := closes[len(closes)-1]
	for k := 0; k < 30; k++ {
		closes = append(closes, last+float64(k+1))
	}
	volumes := make([]float64, len(closes))
	for i := range volumes {
		volumes[i] = 1000
	}
	volumes[44] = 5000
	return makeCandles(closes, volumes)
}

// reboundSeries declines, recovers and then dips hard enough to hit the
// trailing stops of every position opened during the recovery.
func reboundSeries() []core.Candle {
	closes := make([]float64, 0, 81)
	for i := 0; i < 40; i++ {
		closes = append(closes, 1000-10*float64(i))
	}
	for k := 0; k < 15; k++ {
		closes = append(closes, closes[len(closes)-1]+1)
	}
	for k := 0; k < 20; k++ {
		closes = append(closes, closes[len(closes)-1]+20)
	}
	for k := 0; k < 6; k++ {
		closes = append(closes, closes[len(closes)-1]-15)
	}
	return makeCandles(closes, nil)
}

func TestBacktester_FlatSeries(t *testing.T) {
	bt := New(DefaultOptions(), nil)

	result, err := bt.Run(context.Background(), makeCandles(flatCloses(50, 100), nil), strategy.DefaultParams())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Rows) != 50 {
		t.Errorf("expected 50 rows, got %d", len(result.Rows))
	}
	if len(result.Trades) != 0 {
		t.Errorf("expected no trades, got %d", len(result.Trades))
	}
	m := result.Metrics
	if m.TotalReturnPct != 0 || m.MaxDrawdownPct != 0 || m.FinalBalance != DefaultInitialBalance {
		t.Errorf("unexpected metrics %+v", m)
	}
	if !math.IsNaN(m.SharpeRatio) {
		t.Errorf("SharpeRatio = %f, want NaN", m.SharpeRatio)
	}
	if m.VolatilityPct != 0 {
		t.Errorf("VolatilityPct = %f, want 0", m.VolatilityPct)
	}
	// zero volatility never exceeds the threshold
	if result.NextParams.RSIPeriod != 14 || result.NextParams.PositionSize != result.Params.PositionSize {
		t.Errorf("unexpected next params %+v", result.NextParams)
	}
}

func TestBacktester_VolumeConfirmedBuy(t *testing.T) {
	params := strategy.DefaultParams()
	params.RSIPeriod = 14
	params.PositionSize = 0.5

	candles := spikeSeries()
	result, err := New(DefaultOptions(), nil).Run(context.Background(), candles, params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Trades) != 1 {
		t.Fatalf("expected exactly one trade, got %d: %+v", len(result.Trades), result.Trades)
	}
	buy := result.Trades[0]
	if buy.Type != TradeBuy || !buy.Time.Equal(candles[44].Time) || buy.Price != 615 {
		t.Errorf("unexpected buy %+v", buy)
	}
	if buy.Cost != 5000 {
		t.Errorf("buy cost = %f, want 5000", buy.Cost)
	}
	if result.Rows[44].Signal != core.ActionBuy {
		t.Errorf("row 44 signal = %s, want buy", result.Rows[44].Signal)
	}
	if len(result.OpenPositions) != 1 {
		t.Errorf("expected one open position, got %d", len(result.OpenPositions))
	}

	last := result.Rows[len(result.Rows)-1]
	if last.Balance != 5000 {
		t.Errorf("final cash = %f, want 5000", last.Balance)
	}
	wantEquity := 5000 + 5000.0/615*640
	if math.Abs(last.Equity-wantEquity) > 1e-6 {
		t.Errorf("final equity = %f, want %f", last.Equity, wantEquity)
	}
	if result.Metrics.NumTrades != 1 || result.Metrics.WinRatePct != 0 {
		t.Errorf("unexpected metrics %+v", result.Metrics)
	}
}

func TestBacktester_StopExecution(t *testing.T) {
	params := strategy.DefaultParams()
	params.RSIPeriod = 14
	params.VolumeConfirmation = false
	params.PositionSize = 0.1

	candles := reboundSeries()

	t.Run("stops on", func(t *testing.T) {
		result, err := New(DefaultOptions(), nil).Run(context.Background(), candles, params)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}

		var buys, stops int
		for _, tr := range result.Trades {
			switch {
			case tr.Type == TradeBuy:
				buys++
			case tr.Reason == ReasonStop:
				stops++
				if !tr.Time.Equal(candles[76].Time) {
					t.Errorf("stop at %s, want %s", tr.Time, candles[76].Time)
				}
			}
		}
		if buys != 8 || stops != 8 {
			t.Errorf("buys=%d stops=%d, want 8/8", buys, stops)
		}
		if len(result.OpenPositions) != 0 {
			t.Errorf("expected all positions closed, got %d", len(result.OpenPositions))
		}
		if math.Abs(result.Metrics.TotalReturnPct-35.0492467811) > 1e-6 {
			t.Errorf("TotalReturnPct = %.10f, want 35.0492467811", result.Metrics.TotalReturnPct)
		}
		if result.Metrics.WinRatePct != 100 {
			t.Errorf("WinRatePct = %f, want 100", result.Metrics.WinRatePct)
		}
	})

	t.Run("stops off", func(t *testing.T) {
		opts := DefaultOptions()
		opts.StopExecution = false
		result, err := New(opts, nil).Run(context.Background(), candles, params)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		for _, tr := range result.Trades {
			if tr.Type == TradeSell {
				t.Fatalf("unexpected sell %+v", tr)
			}
		}
		if len(result.OpenPositions) != 8 {
			t.Errorf("expected 8 open positions, got %d", len(result.OpenPositions))
		}
	})
}

func TestBacktester_Deterministic(t *testing.T) {
	params := strategy.DefaultParams()
	params.RSIPeriod = 14
	params.VolumeConfirmation = false
	bt := New(DefaultOptions(), nil)
	candles := reboundSeries()

	first, err := bt.Run(context.Background(), candles, params)
	if err != nil {
		t.Fatal(err)
	}
	second, err := bt.Run(context.Background(), candles, params)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first.Trades, second.Trades) || !reflect.DeepEqual(first.Rows, second.Rows) {
		t.Error("identical inputs produced different results")
	}
	if first.Metrics.TotalReturnPct != second.Metrics.TotalReturnPct {
		t.Error("identical inputs produced different metrics")
	}
}

func TestBacktester_Errors(t *testing.T) {
	valid := makeCandles(flatCloses(50, 100), nil)
	badParams := strategy.DefaultParams()
	badParams.RSIOversold = 80

	badOpts := DefaultOptions()
	badOpts.InitialBalance = 0

	tests := []struct {
		name     string
		opts     Options
		candles  []core.Candle
		params   strategy.Params
		wantErr  error
		wantKind core.Kind
	}{
		{"empty series", DefaultOptions(), nil, strategy.DefaultParams(), core.ErrNoData, core.KindData},
		{"short series", DefaultOptions(), valid[:20], strategy.DefaultParams(), core.ErrInsufficientData, core.KindData},
		{"bad params", DefaultOptions(), valid, badParams, core.ErrConfigInvalid, core.KindConfig},
		{"bad options", badOpts, valid, strategy.DefaultParams(), core.ErrConfigInvalid, core.KindConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts, nil).Run(context.Background(), tt.candles, tt.params)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if core.KindOf(err) != tt.wantKind {
				t.Errorf("KindOf = %s, want %s", core.KindOf(err), tt.wantKind)
			}
		})
	}
}

func TestBacktester_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(DefaultOptions(), nil).Run(ctx, makeCandles(flatCloses(50, 100), nil), strategy.DefaultParams())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
