package pihole

import (
	"errors"
	"fmt"
)

// errUnauthorized marks a 401 from an instance. It triggers the
// invalidate-and-retry-once path in FetchStatus and SetBlocking.
var errUnauthorized = errors.New("unauthorized (401)")

// AuthError reports a rejected or malformed login. It carries the upstream
// response for diagnostics.
type AuthError struct {
	Instance   string
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed for %s: %v", e.Instance, e.Err)
	}
	return fmt.Sprintf("authentication failed for %s (status %d): %s", e.Instance, e.StatusCode, e.Body)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// SetBlockingError reports a non-200 response to a blocking-state write
// after the retry budget is exhausted.
type SetBlockingError struct {
	Instance   string
	StatusCode int
	Body       string
}

func (e *SetBlockingError) Error() string {
	return fmt.Sprintf("failed to set blocking on %s (status %d): %s", e.Instance, e.StatusCode, e.Body)
}
