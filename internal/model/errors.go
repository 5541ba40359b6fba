package model

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for common cases.
// Use errors.Is() to check against these.
var (
	ErrNetwork         = errors.New("network error")
	ErrServer          = errors.New("server error")
	ErrShape           = errors.New("unexpected response shape")
	ErrNotFound        = errors.New("not found")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrUnauthenticated = errors.New("not authenticated")
	ErrRateLimited     = errors.New("rate limited")
	ErrPlaceholder     = errors.New("placeholder entity")
)

// APIError represents a structured error surfaced to the engine's callers.
// Implements error interface and supports unwrapping.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"` // HTTP status, not serialized
	Err        error  `json:"-"` // Wrapped error, not serialized
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewNetworkError is returned when a request never produced a response.
func NewNetworkError(service string, err error) *APIError {
	return &APIError{
		Code:       "NETWORK_ERROR",
		Message:    fmt.Sprintf("%s is unreachable", service),
		StatusCode: http.StatusBadGateway,
		Err:        fmt.Errorf("%w: %v", ErrNetwork, err),
	}
}

// NewServerError maps a non-success upstream status to an APIError.
// The status itself is not branched on by the engine; the wrapped sentinel
// lets callers distinguish auth and rate-limit failures if they care to.
func NewServerError(service string, status int, detail string) *APIError {
	cause := ErrServer
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		cause = fmt.Errorf("%w: %w", ErrServer, ErrUnauthorized)
	case http.StatusNotFound:
		cause = fmt.Errorf("%w: %w", ErrServer, ErrNotFound)
	case http.StatusTooManyRequests:
		cause = fmt.Errorf("%w: %w", ErrServer, ErrRateLimited)
	}

	msg := fmt.Sprintf("%s returned status %d", service, status)
	if detail != "" {
		msg += ": " + detail
	}
	return &APIError{
		Code:       "SERVER_ERROR",
		Message:    msg,
		StatusCode: http.StatusBadGateway,
		Err:        cause,
	}
}

// NewShapeError creates an error for a success response whose body
// does not satisfy the minimal structural contract.
func NewShapeError(reason string) *APIError {
	return &APIError{
		Code:       "SHAPE_ERROR",
		Message:    reason,
		StatusCode: http.StatusBadGateway,
		Err:        ErrShape,
	}
}

// NewValidationError creates a 400 error for invalid input.
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:       "VALIDATION_ERROR",
		Message:    fmt.Sprintf("invalid %s: %s", field, reason),
		StatusCode: http.StatusBadRequest,
		Err:        ErrInvalidRequest,
	}
}

// NewUnauthenticatedError creates a 401 error for callers without credentials.
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:       "UNAUTHENTICATED",
		Message:    "sign in to modify your cart",
		StatusCode: http.StatusUnauthorized,
		Err:        ErrUnauthenticated,
	}
}

// NewNotFoundError creates a 404 error for missing resources.
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
		Err:        ErrNotFound,
	}
}

// NewPlaceholderError refuses an action on a favorite that has no product data yet.
func NewPlaceholderError(productRef string) *APIError {
	return &APIError{
		Code:       "PLACEHOLDER",
		Message:    fmt.Sprintf("product %s is still loading", productRef),
		StatusCode: http.StatusConflict,
		Err:        ErrPlaceholder,
	}
}

// NewInternalError creates a 500 error for unexpected failures.
func NewInternalError(err error) *APIError {
	return &APIError{
		Code:       "INTERNAL_ERROR",
		Message:    "an internal error occurred",
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}
