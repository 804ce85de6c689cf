package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"
)

func TestIsRetryable_ExplicitKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"retryable", NewRetryableError(errors.New("429"), "10009"), true},
		{"malformed", NewMalformedError(errors.New("no pois")), true},
		{"fatal", NewFatalError(errors.New("quota"), "10044"), false},
		{"plain", errors.New("boom"), false},
		{"wrapped retryable", fmt.Errorf("fetch page 3: %w", NewRetryableError(errors.New("rate"), "")), true},
		{"wrapped fatal", fmt.Errorf("fetch page 1: %w", NewFatalError(errors.New("key"), "10001")), false},
		{"conn reset", syscall.ECONNRESET, true},
		{"conn refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsRetryable_NetworkTimeout(t *testing.T) {
	if !IsRetryable(timeoutErr{}) {
		t.Error("expected network timeout to be retryable")
	}
}

func TestIsRetryable_FatalWinsOverNested(t *testing.T) {
	// A fatal wrapper around a transient cause must not be retried.
	err := NewFatalError(fmt.Errorf("giving up: %w", syscall.ECONNRESET), "")
	if IsRetryable(err) {
		t.Error("fatal error must not be retryable")
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(fmt.Errorf("wrap: %w", NewFatalError(errors.New("quota"), "10044"))) {
		t.Error("expected wrapped fatal to be detected")
	}
	if IsFatal(NewRetryableError(errors.New("rate"), "")) {
		t.Error("retryable must not be fatal")
	}
}

func TestIsMalformed(t *testing.T) {
	if !IsMalformed(fmt.Errorf("fetch page 2: %w", NewMalformedError(errors.New("no pois")))) {
		t.Error("expected wrapped malformed to be detected")
	}
	if IsMalformed(NewRetryableError(errors.New("rate"), "")) {
		t.Error("retryable must not be malformed")
	}
}

func TestMaxRetriesError_Message(t *testing.T) {
	err := &MaxRetriesError{Attempts: 4, Err: errors.New("rate limited")}
	want := "max retries exceeded after 4 attempts: rate limited"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, err.Err) {
		t.Error("expected underlying error in chain")
	}
}

func TestErrorCodesPreserved(t *testing.T) {
	var re *RetryableError
	err := fmt.Errorf("attempt at %v: %w", time.Now(), NewRetryableError(errors.New("qps"), "10009"))
	if !errors.As(err, &re) || re.Code != "10009" {
		t.Errorf("expected code 10009 preserved, got %+v", re)
	}
}
