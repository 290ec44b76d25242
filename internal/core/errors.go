// internal/core/errors.go
package core

import (
	"encoding/json"
	"fmt"
)

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// MarshalJSON encodes the error as code, message and cause text.
func (e *Error) MarshalJSON() ([]byte, error) {
	out := struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Cause   string `json:"cause,omitempty"`
	}{Code: e.Code, Message: e.Message}
	if e.Cause != nil {
		out.Cause = e.Cause.Error()
	}
	return json.Marshal(out)
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Kind groups error codes into the failure families a run can produce.
type Kind string

const (
	KindData       Kind = "data"
	KindConfig     Kind = "config"
	KindSimulation Kind = "simulation"
	KindFetch      Kind = "fetch"
	KindUnknown    Kind = "unknown"
)

// Predefined errors
var (
	// Data errors
	ErrNoData           = &Error{Code: "NO_DATA", Message: "no data available"}
	ErrInsufficientData = &Error{Code: "INSUFFICIENT_DATA", Message: "series too short to fill indicator windows"}
	ErrUnorderedData    = &Error{Code: "UNORDERED_DATA", Message: "timestamps out of order or duplicated"}
	ErrMissingColumn    = &Error{Code: "MISSING_COLUMN", Message: "required column missing"}
	ErrInvalidCandle    = &Error{Code: "INVALID_CANDLE", Message: "candle has non-finite or non-positive price"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// Simulation errors
	ErrSimulationInvariant = &Error{Code: "SIMULATION_INVARIANT", Message: "simulation invariant violated"}

	// Fetch errors
	ErrFetchFailed    = &Error{Code: "FETCH_FAILED", Message: "market data fetch failed"}
	ErrFetchTransient = &Error{Code: "FETCH_TRANSIENT", Message: "transient market data fetch failure"}

	// Job errors
	ErrJobNotFound = &Error{Code: "JOB_NOT_FOUND", Message: "job not found"}
	ErrJobsFull    = &Error{Code: "JOBS_FULL", Message: "too many jobs in progress"}
)

var kinds = map[string]Kind{
	ErrNoData.Code:              KindData,
	ErrInsufficientData.Code:    KindData,
	ErrUnorderedData.Code:       KindData,
	ErrMissingColumn.Code:       KindData,
	ErrInvalidCandle.Code:       KindData,
	ErrConfigInvalid.Code:       KindConfig,
	ErrConfigMissing.Code:       KindConfig,
	ErrSimulationInvariant.Code: KindSimulation,
	ErrFetchFailed.Code:         KindFetch,
	ErrFetchTransient.Code:      KindFetch,
}

// KindOf reports the family of a *Error anywhere in err's chain.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if k, found := kinds[e.Code]; found {
				return k
			}
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return KindUnknown
}
