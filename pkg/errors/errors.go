package errors

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// Error kinds shared by the sync pipeline, the webhook path and the HTTP layer.
var (
	// ErrNotFound indicates a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates invalid input data
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates missing or invalid authentication
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict indicates a concurrent create collided upstream
	ErrConflict = errors.New("conflict")

	// ErrConfiguration marks missing credentials or settings. Never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrUpstream wraps any non-success response from Webflow or Notion
	ErrUpstream = errors.New("upstream error")

	// ErrRateLimited is an upstream 429
	ErrRateLimited = errors.New("rate limited")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")
)

// APIError carries the upstream status and code of a failed call.
type APIError struct {
	Service string
	Status  int
	Code    string
	Message string
	// RetryAfter is the upstream's requested wait on a 429, zero when absent
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s api: status %d (%s): %s", e.Service, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%s api: status %d: %s", e.Service, e.Status, e.Message)
}

// Unwrap lets errors.Is classify the failure.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == 409 || e.Code == "conflict_error":
		return ErrConflict
	case e.Status == 429 || e.Code == "rate_limited":
		return ErrRateLimited
	case e.Status == 404 || e.Code == "object_not_found":
		return ErrNotFound
	case e.Status == 401 || e.Code == "unauthorized":
		return ErrUnauthorized
	case e.Status == 400 || e.Code == "validation_error":
		return ErrInvalidInput
	default:
		return ErrUpstream
	}
}

// UpstreamError builds an APIError for a failed external call
func UpstreamError(service string, status int, code, message string) error {
	return &APIError{Service: service, Status: status, Code: code, Message: message}
}

// RetryAfter returns the wait an upstream asked for, if any.
func RetryAfter(err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}

// NotFoundError creates a not found error with context
func NotFoundError(resource string) error {
	return fmt.Errorf("%s %w", resource, ErrNotFound)
}

// InvalidInputError creates an invalid input error with context
func InvalidInputError(field, reason string) error {
	return fmt.Errorf("%s: %s: %w", field, reason, ErrInvalidInput)
}

// ConfigurationError reports a missing credential or required setting
func ConfigurationError(what string) error {
	return fmt.Errorf("%s: %w", what, ErrConfiguration)
}

// InternalError creates an internal error with context
func InternalError(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrInternal)
}

// IsConflict reports whether err is an upstream create collision
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsTransient reports whether an upstream failure is worth retrying with backoff
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrConfiguration) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == 429 || apiErr.Status >= 500
	}
	// dropped connections and dial timeouts
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Is checks if an error matches a target error (works with wrapped errors)
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As re-exported so callers need a single errors import
func As(err error, target any) bool {
	return errors.As(err, target)
}
