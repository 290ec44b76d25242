// internal/api/handler/api/backtest_test.go
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/strategy"
)

func TestDataSpec_Request(t *testing.T) {
	tests := []struct {
		name      string
		spec      DataSpec
		wantSince time.Time
		wantErr   bool
	}{
		{"empty", DataSpec{}, time.Time{}, false},
		{"date", DataSpec{Since: "2024-02-01"}, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), false},
		{"rfc3339", DataSpec{Since: "2024-02-01T12:00:00Z"}, time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC), false},
		{"bad since", DataSpec{Since: "last week"}, time.Time{}, true},
		{"negative limit", DataSpec{Limit: -1}, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := tt.spec.request()
			if tt.wantErr {
				if !errors.Is(err, core.ErrConfigInvalid) {
					t.Errorf("expected ErrConfigInvalid, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !req.Since.Equal(tt.wantSince) {
				t.Errorf("since = %s, want %s", req.Since, tt.wantSince)
			}
		})
	}
}

func TestOverrides_Apply(t *testing.T) {
	base := strategy.DefaultParams()
	off := false

	p, err := Overrides{
		Params:             map[string]float64{"rsi_period": 14, "position_size_fraction": 0.5},
		VolumeConfirmation: &off,
	}.apply(base)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if p.RSIPeriod != 14 || p.PositionSize != 0.5 || p.VolumeConfirmation {
		t.Errorf("overrides not applied: %+v", p)
	}
	if base.RSIPeriod != 10 {
		t.Error("base params must not change")
	}

	if _, err := (Overrides{Params: map[string]float64{"rsi_period": 14.5}}).apply(base); !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid for fractional period, got %v", err)
	}
	if _, err := (Overrides{Params: map[string]float64{"rsi_oversold": 90}}).apply(base); !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid for crossed thresholds, got %v", err)
	}
}

func TestDecode(t *testing.T) {
	var req BacktestRequest
	r := httptest.NewRequest("POST", "/api/backtest", strings.NewReader(`{"data":{"symbol":"ETH/USDT"},"params":{"rsi_period":12},"include_rows":true}`))
	if err := decode(r, &req); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.Data.Symbol != "ETH/USDT" || req.Params["rsi_period"] != 12 || !req.IncludeRows {
		t.Errorf("unexpected request %+v", req)
	}

	// an empty body means all defaults
	r = httptest.NewRequest("POST", "/api/backtest", strings.NewReader(""))
	if err := decode(r, &req); err != nil {
		t.Errorf("empty body should decode, got %v", err)
	}
}

func TestAsCoreError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("combination 2: %w", core.WrapError(core.ErrInsufficientData, nil)), "INSUFFICIENT_DATA"},
		{context.DeadlineExceeded, "CANCELLED"},
		{errors.New("boom"), "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		if got := asCoreError(tt.err); got.Code != tt.want {
			t.Errorf("asCoreError(%v) = %s, want %s", tt.err, got.Code, tt.want)
		}
	}
}
