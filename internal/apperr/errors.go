// Package apperr defines the error taxonomy shared by services and the HTTP
// layer. Every known failure maps to a stable code and status; anything else
// is surfaced as INTERNAL_ERROR with no detail.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type Error struct {
	Code    string `json:"code"`
	Status  int    `json:"-"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func Unauthorized(msg string) *Error {
	return &Error{Code: "UNAUTHORIZED", Status: http.StatusUnauthorized, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Code: "FORBIDDEN", Status: http.StatusForbidden, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Code: "CONFLICT", Status: http.StatusConflict, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Code: "NOT_FOUND", Status: http.StatusNotFound, Message: msg}
}

// Validation carries field-level details, e.g. map[string]string{"password": "too short"}.
func Validation(msg string, details any) *Error {
	return &Error{Code: "VALIDATION_ERROR", Status: http.StatusBadRequest, Message: msg, Details: details}
}

func RateLimited(retryAfterSeconds int) *Error {
	return &Error{
		Code:    "RATE_LIMIT_EXCEEDED",
		Status:  http.StatusTooManyRequests,
		Message: "too many attempts, try again later",
		Details: map[string]int{"retry_after": retryAfterSeconds},
	}
}

func Internal() *Error {
	return &Error{Code: "INTERNAL_ERROR", Status: http.StatusInternalServerError, Message: "internal error"}
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Err     *Error `json:"error"`
}

// WriteError renders err as the failure envelope. Unknown error values are
// collapsed to INTERNAL_ERROR; callers log the original before handing it over.
func WriteError(w http.ResponseWriter, err error) {
	var ae *Error
	if !errors.As(err, &ae) {
		ae = Internal()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ae.Status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Success: false, Err: ae})
}
