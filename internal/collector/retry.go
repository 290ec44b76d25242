package collector

import (
	"context"
	"time"

	"github.com/newthinker/momentum/internal/core"
	"go.uber.org/zap"
)

// RetryPolicy controls how transient fetch failures are retried.
type RetryPolicy struct {
	Attempts       int           `mapstructure:"attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// DefaultRetryPolicy tries three times with a doubling backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:       3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// StatusRecorder receives one event per fetch attempt.
type StatusRecorder interface {
	RecordFetch(source, status string)
}

// Fetch pulls candles from f, retrying transient failures. Empty results
// and permanent failures are returned immediately.
func Fetch(ctx context.Context, f Fetcher, symbol, timeframe string, since time.Time, limit int,
	policy RetryPolicy, rec StatusRecorder, log *zap.Logger) ([]core.Candle, error) {
	if log == nil {
		log = zap.NewNop()
	}
	attempts := max(policy.Attempts, 1)
	backoff := policy.InitialBackoff

	var result FetchResult
	for attempt := 1; attempt <= attempts; attempt++ {
		result = f.FetchCandles(ctx, symbol, timeframe, since, limit)
		if rec != nil {
			rec.RecordFetch(f.Name(), string(result.Status))
		}
		if result.Status != StatusTransient || attempt == attempts {
			break
		}

		log.Warn("transient fetch failure, retrying",
			zap.String("source", f.Name()),
			zap.String("symbol", symbol),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(result.Cause),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if policy.MaxBackoff > 0 {
			backoff = min(backoff, policy.MaxBackoff)
		}
	}

	if err := result.Err(); err != nil {
		return nil, err
	}
	log.Info("fetched candles",
		zap.String("source", f.Name()),
		zap.String("symbol", symbol),
		zap.String("timeframe", timeframe),
		zap.Int("count", len(result.Candles)),
	)
	return result.Candles, nil
}
