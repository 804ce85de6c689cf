package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// FatalError marks a condition the remote service cannot recover from within
// this run (daily quota exhausted, invalid credentials). It is never retried
// and aborts the collection that raised it.
type FatalError struct {
	Err  error
	Code string
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// NewFatalError wraps err as fatal, with an optional service error code.
func NewFatalError(err error, code string) *FatalError {
	return &FatalError{Err: err, Code: code}
}

// RetryableError marks a transient condition (rate-limit response, flaky
// transport) that is safe to retry against the same page.
type RetryableError struct {
	Err  error
	Code string
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// NewRetryableError wraps err as retryable, with an optional service error code.
func NewRetryableError(err error, code string) *RetryableError {
	return &RetryableError{Err: err, Code: code}
}

// MalformedError marks a response the engine could not interpret (success
// status with a missing item list). It is retried once, then escalated: a
// body that is still unreadable on the second fetch will not fix itself.
type MalformedError struct {
	Err error
}

func (e *MalformedError) Error() string { return e.Err.Error() }
func (e *MalformedError) Unwrap() error { return e.Err }

// NewMalformedError wraps err as a malformed-response failure.
func NewMalformedError(err error) *MalformedError {
	return &MalformedError{Err: err}
}

// MaxRetriesError is returned when a retryable failure persists past the
// attempt budget. The last underlying error is preserved in the chain.
type MaxRetriesError struct {
	Attempts int
	Err      error
}

func (e *MaxRetriesError) Error() string {
	return fmt.Sprintf("max retries exceeded after %d attempts: %v", e.Attempts, e.Err)
}

func (e *MaxRetriesError) Unwrap() error { return e.Err }

// IsFatal reports whether err carries a FatalError anywhere in its chain.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// IsRetryable reports whether err is safe to retry: an explicit
// RetryableError or MalformedError in the chain, or a network-level
// transient failure. Fatal errors are never retryable, even when a network
// error sits deeper in the chain.
func IsRetryable(err error) bool {
	if err == nil || IsFatal(err) {
		return false
	}

	var re *RetryableError
	if errors.As(err, &re) {
		return true
	}
	var me *MalformedError
	if errors.As(err, &me) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED)
}

// IsMalformed reports whether err carries a MalformedError anywhere in its
// chain.
func IsMalformed(err error) bool {
	var me *MalformedError
	return errors.As(err, &me)
}

// IsMaxRetries reports whether err is a retry-budget exhaustion.
func IsMaxRetries(err error) bool {
	var mre *MaxRetriesError
	return errors.As(err, &mre)
}
