package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastCfg() RetryConfig {
	return RetryConfig{MaxRetries: 3, Delay: time.Millisecond}
}

func TestRetry_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	val, err := Retry(context.Background(), fastCfg(), func(_ context.Context) (int, error) {
		calls++
		return 7, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 7 {
		t.Errorf("expected 7, got %d", val)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetry_RetryableTwiceThenSuccess(t *testing.T) {
	var calls int
	val, err := Retry(context.Background(), fastCfg(), func(_ context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewRetryableError(errors.New("rate limited"), "10009")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "ok" {
		t.Errorf("expected %q, got %q", "ok", val)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetry_FatalAbortsImmediately(t *testing.T) {
	var calls int
	_, err := Retry(context.Background(), fastCfg(), func(_ context.Context) (int, error) {
		calls++
		return 0, NewFatalError(errors.New("daily quota exhausted"), "10044")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call (no retry on fatal), got %d", calls)
	}
	if !IsFatal(err) {
		t.Errorf("expected fatal error, got %v", err)
	}
}

func TestRetry_ExhaustsBudget(t *testing.T) {
	var calls int
	_, err := Retry(context.Background(), RetryConfig{MaxRetries: 2, Delay: time.Millisecond}, func(_ context.Context) (int, error) {
		calls++
		return 0, NewRetryableError(errors.New("still limited"), "10009")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls (1 + 2 retries), got %d", calls)
	}
	if !IsMaxRetries(err) {
		t.Errorf("expected MaxRetriesError, got %v", err)
	}
	var mre *MaxRetriesError
	if errors.As(err, &mre) && mre.Attempts != 3 {
		t.Errorf("expected 3 attempts recorded, got %d", mre.Attempts)
	}
}

func TestRetry_MalformedIsRetried(t *testing.T) {
	var calls int
	val, err := Retry(context.Background(), fastCfg(), func(_ context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, NewMalformedError(errors.New("missing pois field"))
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 42 || calls != 2 {
		t.Errorf("expected 42 after 2 calls, got %d after %d", val, calls)
	}
}

func TestRetry_MalformedCappedAtOneExtraAttempt(t *testing.T) {
	var calls int
	_, err := Retry(context.Background(), fastCfg(), func(_ context.Context) (int, error) {
		calls++
		return 0, NewMalformedError(errors.New("missing pois field"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls (1 + 1 retry), got %d", calls)
	}
	if !IsMaxRetries(err) {
		t.Errorf("expected MaxRetriesError, got %v", err)
	}
	var mre *MaxRetriesError
	if errors.As(err, &mre) && mre.Attempts != 2 {
		t.Errorf("expected 2 attempts recorded, got %d", mre.Attempts)
	}
}

func TestRetry_PlainErrorNotRetried(t *testing.T) {
	var calls int
	_, err := Retry(context.Background(), fastCfg(), func(_ context.Context) (int, error) {
		calls++
		return 0, errors.New("bad request")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetry_ContextCancelStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	_, err := Retry(ctx, RetryConfig{MaxRetries: 5, Delay: 20 * time.Millisecond}, func(_ context.Context) (int, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return 0, NewRetryableError(errors.New("fail"), "")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls > 3 {
		t.Errorf("expected <= 3 calls after cancel, got %d", calls)
	}
}

func TestRetry_OnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := RetryConfig{
		MaxRetries: 2,
		Delay:      time.Millisecond,
		OnRetry: func(attempt int, _ error) {
			attempts = append(attempts, attempt)
		},
	}

	_, _ = Retry(context.Background(), cfg, func(_ context.Context) (int, error) {
		return 0, NewRetryableError(errors.New("fail"), "")
	})

	if len(attempts) != 2 {
		t.Fatalf("expected 2 OnRetry calls, got %d", len(attempts))
	}
	if attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("expected attempts [1, 2], got %v", attempts)
	}
}

func TestRetry_DefaultsApplied(t *testing.T) {
	cfg := RetryConfig{}.withDefaults()
	if cfg.MaxRetries != 3 {
		t.Errorf("expected default 3 retries, got %d", cfg.MaxRetries)
	}
	if cfg.Delay != time.Second {
		t.Errorf("expected default 1s delay, got %v", cfg.Delay)
	}
}

func TestRetryLogger(t *testing.T) {
	t.Parallel()
	// Just verify it doesn't panic.
	logger := RetryLogger("collector", "fetch_page")
	logger(1, errors.New("test error"))
}
