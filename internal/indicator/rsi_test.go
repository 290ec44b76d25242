package indicator

import (
	"math"
	"testing"
)

func TestRSI_KnownValues(t *testing.T) {
	closes := []float64{10, 12, 11, 14}
	rsi := RSI(closes, 2)

	// i=2: gains (2,0) -> 1, losses (0,1) -> 0.5, rs=2
	// i=3: gains (0,3) -> 1.5, losses (1,0) -> 0.5, rs=3
	if !almostEqual(rsi[2], 100-100.0/3, 1e-9) {
		t.Errorf("rsi[2] = %f, want %f", rsi[2], 100-100.0/3)
	}
	if !almostEqual(rsi[3], 75, 1e-9) {
		t.Errorf("rsi[3] = %f, want 75", rsi[3])
	}
}

func TestRSI_LeadingRowsUndefined(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i%5)
	}

	period := 14
	rsi := RSI(closes, period)

	for i := 0; i < period; i++ {
		if !math.IsNaN(rsi[i]) {
			t.Errorf("rsi[%d] = %f, want NaN", i, rsi[i])
		}
	}
	for i := period; i < len(rsi); i++ {
		if math.IsNaN(rsi[i]) {
			t.Errorf("rsi[%d] should be defined", i)
		}
	}
}

func TestRSI_ZeroLossPolicy(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		want   float64
	}{
		{"only gains", []float64{1, 2, 3, 4, 5}, 100},
		{"only losses", []float64{5, 4, 3, 2, 1}, 0},
		{"flat", []float64{3, 3, 3, 3, 3}, NeutralRSI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsi := RSI(tt.closes, 3)
			for i := 3; i < len(rsi); i++ {
				if rsi[i] != tt.want {
					t.Errorf("rsi[%d] = %f, want %f", i, rsi[i], tt.want)
				}
			}
		})
	}
}

func TestRSI_Bounded(t *testing.T) {
	// Deterministic pseudo-random walk
	seed := uint64(42)
	closes := make([]float64, 500)
	price := 100.0
	for i := range closes {
		seed = seed*6364136223846793005 + 1442695040888963407
		step := float64(seed>>33)/float64(1<<31) - 0.5
		price = math.Max(1, price+step*4)
		closes[i] = price
	}

	for _, period := range []int{2, 10, 14, 20} {
		for i, v := range RSI(closes, period) {
			if math.IsNaN(v) {
				continue
			}
			if v < 0 || v > 100 {
				t.Fatalf("period %d: rsi[%d] = %f out of [0,100]", period, i, v)
			}
		}
	}
}
