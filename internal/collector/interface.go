package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/newthinker/momentum/internal/core"
)

// Fetcher is a pull source of historical candles.
type Fetcher interface {
	Name() string
	// FetchCandles returns up to limit candles of timeframe starting at
	// since, oldest first. A limit of 0 fetches everything available.
	FetchCandles(ctx context.Context, symbol, timeframe string, since time.Time, limit int) FetchResult
}

// Status classifies a fetch outcome so callers can choose a retry policy.
type Status string

const (
	StatusOK        Status = "ok"
	StatusEmpty     Status = "empty"
	StatusTransient Status = "transient"
	StatusPermanent Status = "permanent"
)

// FetchResult is the outcome of one fetch.
type FetchResult struct {
	Status  Status
	Candles []core.Candle
	Cause   error
}

// OK wraps fetched candles, reporting StatusEmpty when there are none.
func OK(candles []core.Candle) FetchResult {
	if len(candles) == 0 {
		return FetchResult{Status: StatusEmpty}
	}
	return FetchResult{Status: StatusOK, Candles: candles}
}

// Transient reports a failure worth retrying.
func Transient(err error) FetchResult {
	return FetchResult{Status: StatusTransient, Cause: err}
}

// Permanent reports a failure that will not go away on retry.
func Permanent(err error) FetchResult {
	return FetchResult{Status: StatusPermanent, Cause: err}
}

// Err converts the result into a typed error, nil on success.
func (r FetchResult) Err() error {
	switch r.Status {
	case StatusOK:
		return nil
	case StatusEmpty:
		return core.ErrNoData
	case StatusTransient:
		return core.WrapError(core.ErrFetchTransient, r.Cause)
	default:
		if errors.Is(r.Cause, core.ErrConfigInvalid) || core.KindOf(r.Cause) == core.KindData {
			return r.Cause
		}
		return core.WrapError(core.ErrFetchFailed, r.Cause)
	}
}

// FromHTTPStatus classifies a non-200 response. Rate limiting and server
// errors are transient; other client errors are permanent.
func FromHTTPStatus(code int, body string) FetchResult {
	err := fmt.Errorf("unexpected status: %d %s", code, body)
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusTeapot, code >= 500:
		return Transient(err)
	default:
		return Permanent(err)
	}
}

// FromRequestError classifies an error from http.Client.Do. Cancellation is
// permanent; timeouts and other network failures are transient.
func FromRequestError(err error) FetchResult {
	if errors.Is(err, context.Canceled) {
		return Permanent(err)
	}
	return Transient(err)
}
