// internal/api/response/response.go
package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/newthinker/momentum/internal/core"
)

// Meta contains response metadata.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
}

// SuccessResponse is the standard success response format.
type SuccessResponse struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// JSON writes a success response with data.
func JSON(w http.ResponseWriter, status int, data any) {
	resp := SuccessResponse{
		Data: data,
		Meta: Meta{Timestamp: time.Now().UTC()},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// Error writes an error response.
func Error(w http.ResponseWriter, status int, err error) {
	resp := ErrorResponse{Error: Detail(err)}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// Failure writes an error response with the status implied by err.
func Failure(w http.ResponseWriter, err error) {
	Error(w, StatusFor(err), err)
}

// Detail describes err for clients. Errors outside the core taxonomy are
// reported without their text.
func Detail(err error) ErrorDetail {
	detail := ErrorDetail{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
	}

	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		detail.Code = coreErr.Code
		detail.Message = coreErr.Message
		if kind := core.KindOf(coreErr); kind != core.KindUnknown {
			detail.Kind = string(kind)
		}
		if coreErr.Cause != nil {
			detail.Cause = coreErr.Cause.Error()
		}
	}
	return detail
}

// StatusFor maps an error family to an HTTP status.
func StatusFor(err error) int {
	if errors.Is(err, core.ErrJobNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, core.ErrJobsFull) {
		return http.StatusServiceUnavailable
	}
	switch core.KindOf(err) {
	case core.KindConfig:
		return http.StatusBadRequest
	case core.KindData:
		return http.StatusUnprocessableEntity
	case core.KindFetch:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
