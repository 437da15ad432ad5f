package lms

import (
	"errors"
	"fmt"
)

// CodeAttemptClosed is the platform's error code for operations against an
// attempt that has already been submitted or graded.
const CodeAttemptClosed = "attempt_closed"

// APIError is a platform call failure. A zero StatusCode means the request
// never produced an HTTP response (network failure, timeout).
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("platform unreachable: %s", e.Message)
	}
	if e.Code != "" {
		return fmt.Sprintf("platform error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("platform error %d: %s", e.StatusCode, e.Message)
}

// Transient reports whether retrying the same call may succeed.
func (e *APIError) Transient() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// IsTransient reports whether err is a retryable platform failure.
func IsTransient(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Transient()
}

// IsAttemptClosed reports whether err means the attempt was already
// submitted or graded upstream.
func IsAttemptClosed(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == CodeAttemptClosed
}
