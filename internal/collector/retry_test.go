package collector

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/newthinker/momentum/internal/core"
)

type statusLog []string

func (s *statusLog) RecordFetch(source, status string) {
	*s = append(*s, source+":"+status)
}

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{Attempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestFetch_RetriesTransient(t *testing.T) {
	candles := []core.Candle{{Close: 100}}
	f := &mockFetcher{name: "mock", results: []FetchResult{
		Transient(fmt.Errorf("timeout")),
		Transient(fmt.Errorf("timeout")),
		OK(candles),
	}}
	var rec statusLog

	got, err := Fetch(context.Background(), f, "BTCUSDT", "1h", time.Time{}, 0, fastPolicy(3), &rec, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || f.calls != 3 {
		t.Errorf("got %d candles after %d calls", len(got), f.calls)
	}
	want := []string{"mock:transient", "mock:transient", "mock:ok"}
	for i := range want {
		if rec[i] != want[i] {
			t.Errorf("rec[%d] = %s, want %s", i, rec[i], want[i])
		}
	}
}

func TestFetch_GivesUp(t *testing.T) {
	f := &mockFetcher{name: "mock", results: []FetchResult{Transient(fmt.Errorf("503"))}}

	_, err := Fetch(context.Background(), f, "BTCUSDT", "1h", time.Time{}, 0, fastPolicy(2), nil, nil)
	if !errors.Is(err, core.ErrFetchTransient) {
		t.Errorf("expected ErrFetchTransient, got %v", err)
	}
	if f.calls != 2 {
		t.Errorf("expected 2 calls, got %d", f.calls)
	}
}

func TestFetch_NoRetryOnPermanentOrEmpty(t *testing.T) {
	tests := []struct {
		name   string
		result FetchResult
		want   error
	}{
		{"permanent", Permanent(fmt.Errorf("bad symbol")), core.ErrFetchFailed},
		{"empty", OK(nil), core.ErrNoData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &mockFetcher{name: "mock", results: []FetchResult{tt.result}}
			_, err := Fetch(context.Background(), f, "BTCUSDT", "1h", time.Time{}, 0, fastPolicy(5), nil, nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if f.calls != 1 {
				t.Errorf("expected a single call, got %d", f.calls)
			}
		})
	}
}

func TestFetch_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &mockFetcher{name: "mock", results: []FetchResult{Transient(fmt.Errorf("timeout"))}}

	_, err := Fetch(ctx, f, "BTCUSDT", "1h", time.Time{}, 0, RetryPolicy{Attempts: 3, InitialBackoff: time.Hour}, nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
