package stt

import (
	"errors"
	"fmt"
)

// Sentinel errors for configuration problems.
var (
	// ErrNoAPIKey is returned when the API key is missing.
	ErrNoAPIKey = errors.New("stt: API key required")

	// ErrNoModel is returned when no model is configured.
	ErrNoModel = errors.New("stt: model required")
)

// TranscriptionError reports a failed transcription: unreadable audio,
// transport failure, or a non-200 response.
type TranscriptionError struct {
	// Provider identifies which provider failed.
	Provider string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	Err error
}

// Error implements the error interface.
func (e *TranscriptionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("stt [%s]: HTTP %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("stt [%s]: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *TranscriptionError) Unwrap() error {
	return e.Err
}

// IsRateLimited returns true if this is a rate limit error (HTTP 429).
func (e *TranscriptionError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsUnauthorized returns true if this is an authentication error (HTTP 401).
func (e *TranscriptionError) IsUnauthorized() bool {
	return e.StatusCode == 401
}
