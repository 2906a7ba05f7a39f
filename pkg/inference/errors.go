package inference

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoAPIKey            = errors.New("inference: API key required")
	ErrNoModel             = errors.New("inference: model required")
	ErrProviderUnavailable = errors.New("inference: provider unavailable")

	// ErrAllProvidersFailed matches any *ChainError via errors.Is.
	ErrAllProvidersFailed = errors.New("inference: all providers failed")
)

// APIError is a non-2xx response from a backend.
type APIError struct {
	StatusCode int
	Message    string
	Code       string // provider error code, may be empty
	Provider   string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("inference [%s]: API error %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("inference [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

func (e *APIError) IsRateLimited() bool  { return e.StatusCode == http.StatusTooManyRequests }
func (e *APIError) IsUnauthorized() bool { return e.StatusCode == http.StatusUnauthorized }
func (e *APIError) IsServerError() bool  { return e.StatusCode >= 500 && e.StatusCode < 600 }

// IsRetryable reports 429 and 5xx. Nothing retries unless a client is
// built WithRetry.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.IsServerError()
}

// ProviderError tags a transport or decoding failure with its backend.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("inference [%s]: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// WrapError returns nil for a nil err.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}

// ChainError collects one error per backend a Chain tried, in order.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	switch n := len(e.Errors); n {
	case 0:
		return "inference chain: no errors recorded"
	case 1:
		return fmt.Sprintf("inference chain: %v", e.Errors[0])
	default:
		return fmt.Sprintf("inference chain: %d providers failed, last: %v", n, e.Errors[n-1])
	}
}

// Unwrap exposes the last backend's error.
func (e *ChainError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}

func (e *ChainError) Is(target error) bool {
	return target == ErrAllProvidersFailed
}
