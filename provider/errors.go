package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/spetersoncode/stepflow"
)

// ErrorCategory classifies backend errors by how they should be handled.
type ErrorCategory string

const (
	// ErrorTransient indicates the error is temporary and the call may succeed later.
	// Examples: rate limits, server overload.
	ErrorTransient ErrorCategory = "transient"

	// ErrorPermanent indicates the error is not recoverable by calling again.
	// Examples: invalid API key, insufficient permissions.
	ErrorPermanent ErrorCategory = "permanent"

	// ErrorUserInput indicates the request itself must be corrected.
	// Examples: malformed request, unknown model.
	ErrorUserInput ErrorCategory = "user_input"
)

// APIError is a backend HTTP failure.
type APIError struct {
	Provider   Name
	Code       int
	Category   ErrorCategory
	RetryAfter time.Duration
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error (status %d, %s): %v", e.Provider, e.Code, e.Category, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// CategorizeStatus determines the error category from an HTTP status code.
func CategorizeStatus(code int) ErrorCategory {
	switch {
	case code == 429:
		return ErrorTransient // Rate limited
	case code >= 500 && code < 600:
		return ErrorTransient
	case code == 401 || code == 403:
		return ErrorPermanent
	case code == 400 || code == 404 || code == 422:
		return ErrorUserInput
	default:
		return ErrorPermanent
	}
}

// WrapStatus converts a backend failure with an HTTP status into an execution error.
func WrapStatus(name Name, code int, retryAfter time.Duration, err error) error {
	return stepflow.NewExecutionError(string(name)+" request failed", &APIError{
		Provider:   name,
		Code:       code,
		Category:   CategorizeStatus(code),
		RetryAfter: retryAfter,
		Err:        err,
	})
}

// Wrap converts a backend failure without a status into an execution error.
func Wrap(name Name, err error) error {
	return stepflow.NewExecutionError(string(name)+" request failed", err)
}

// IsTransient reports whether err wraps a transient API error.
func IsTransient(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Category == ErrorTransient
}

// StatusCode returns the HTTP status of a wrapped API error, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

// ParseRetryAfter extracts the Retry-After duration from an HTTP response.
// Returns 0 if the header is not present or cannot be parsed.
func ParseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}

	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}

	// HTTP-date form (RFC 7231)
	if t, err := http.ParseTime(header); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}

	return 0
}
