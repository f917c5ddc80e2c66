package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrAuthExpired       = errors.New("credential rejected and refresh failed")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrConflict          = errors.New("active deal already exists for chat")
	ErrDealNotFound      = errors.New("deal not found")
	ErrForbidden         = errors.New("actor not allowed to perform transition")
)

// ValidationError reports input rejected locally, before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// APIError carries a non-success response from the server. Detail is the
// server-supplied message when present, otherwise derived from the status.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return http.StatusText(e.StatusCode)
}

// IsServerError reports whether the response was a 5xx.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// NetworkError wraps a transport-level failure (no HTTP response received).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network error: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }
