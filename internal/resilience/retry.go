package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls the fixed-delay retry loop used around page fetches.
// The external rate limit is global, so backoff is a flat wait rather than
// exponential: the limiter already spaces requests, the delay only yields
// time for a rate-limit window to roll over.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	// Default: 3.
	MaxRetries int

	// Delay is the fixed wait between attempts. Default: 1s.
	Delay time.Duration

	// OnRetry is called before each retry sleep with the attempt number
	// (1-based) and the error that triggered it.
	OnRetry func(attempt int, err error)
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Delay <= 0 {
		cfg.Delay = time.Second
	}
	return cfg
}

// Retry runs fn up to 1+MaxRetries times. Fatal errors and context
// cancellation abort immediately; retryable errors are reattempted after the
// fixed delay; a malformed response is granted a single extra attempt
// regardless of MaxRetries; anything else is returned as-is. When the budget
// runs out the last error is wrapped in a MaxRetriesError.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var zero T
	var lastErr error
	for attempt := 0; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, lastErr
		}
		if !IsRetryable(err) {
			return zero, lastErr
		}

		budget := cfg.MaxRetries
		if IsMalformed(err) {
			budget = 1
		}
		if attempt >= budget {
			return zero, &MaxRetriesError{Attempts: attempt + 1, Err: lastErr}
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err)
		}

		timer := time.NewTimer(cfg.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(component, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("component", component),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
