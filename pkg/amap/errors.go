package amap

import (
	"errors"
	"fmt"
)

// Service info codes the harvester reacts to. Everything else is surfaced
// verbatim in the APIError.
const (
	codeQPSExceeded     = "10009"
	codeQuotaExhausted  = "10044"
	codeInvalidKey      = "10001"
	codeTooFrequent     = "10019"
	codeIPRateLimited   = "10021"
	codeKeyRateLimited  = "10020"
)

// APIError is a non-success envelope from the service.
type APIError struct {
	InfoCode string
	Info     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("amap: api error %s: %s", e.InfoCode, e.Info)
}

// HTTPError is a non-200 transport-level response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("amap: unexpected status %d: %s", e.StatusCode, e.Body)
}

// IsRateLimited reports whether err is a QPS or frequency limit rejection,
// which is safe to retry after a pause.
func IsRateLimited(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		switch ae.InfoCode {
		case codeQPSExceeded, codeTooFrequent, codeIPRateLimited, codeKeyRateLimited:
			return true
		}
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode == 429 || he.StatusCode >= 500
	}
	return false
}

// IsQuotaExhausted reports whether err is the daily query quota rejection.
// No amount of retrying recovers from it until the quota resets.
func IsQuotaExhausted(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.InfoCode == codeQuotaExhausted
}

// IsInvalidKey reports whether err is a credential rejection.
func IsInvalidKey(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.InfoCode == codeInvalidKey
}
