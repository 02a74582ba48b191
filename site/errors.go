package site

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrAuthExpired indicates the session cookie is no longer accepted.
	ErrAuthExpired = errors.New("site session expired")

	// ErrUnreachable indicates the site could not be reached.
	ErrUnreachable = errors.New("site unreachable")

	// ErrLoginFailed indicates credentials were rejected.
	ErrLoginFailed = errors.New("site login failed")
)

// APIError represents an unexpected site response
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("site error: status %d: %s", e.StatusCode, e.Message)
}
