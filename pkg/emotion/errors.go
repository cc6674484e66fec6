package emotion

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrEmptyImage is returned for an empty face crop.
	ErrEmptyImage = errors.New("emotion: empty image")

	// ErrNoAPIKey is returned when an API key is required but missing.
	ErrNoAPIKey = errors.New("emotion: API key required")

	// ErrNoFace is returned when the backend found no face to analyze.
	ErrNoFace = errors.New("emotion: no face in analysis")

	// ErrNoScores is returned when an analysis carries no emotion scores.
	ErrNoScores = errors.New("emotion: emotion data not found in analysis")

	// ErrClassifierUnavailable is returned when no classifier is configured.
	ErrClassifierUnavailable = errors.New("emotion: classifier unavailable")

	// ErrWorkerExited is returned when the worker process is gone.
	ErrWorkerExited = errors.New("emotion: worker exited")
)

// APIError represents an error response from an analysis API.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the error message from the API.
	Message string

	// Provider identifies which backend returned the error.
	Provider string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("emotion [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRateLimited returns true if this is a rate limit error (HTTP 429).
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsUnauthorized returns true if this is an authentication error (HTTP 401).
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401
}

// IsServerError returns true if this is a server-side error (HTTP 5xx).
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsRetryable returns true if a later request could succeed.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.IsServerError()
}

// ProviderError wraps an error with backend context.
type ProviderError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("emotion [%s]: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with backend context.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}

// ChainError aggregates errors from all classifiers in a chain.
type ChainError struct {
	Errors []error
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	if len(e.Errors) == 0 {
		return "emotion chain: no errors recorded"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("emotion chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("emotion chain: all %d classifiers failed, last error: %v",
		len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap returns the last error in the chain.
func (e *ChainError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}
