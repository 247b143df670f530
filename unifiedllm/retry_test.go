package unifiedllm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicyDelay(t *testing.T) {
	policy := RetryPolicy{
		BaseDelay:         time.Second,
		BackoffMultiplier: 2.0,
		MaxDelay:          time.Minute,
	}

	delays := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
	}

	for i, expected := range delays {
		if got := policy.Delay(i); got != expected {
			t.Errorf("attempt %d: expected %v, got %v", i, expected, got)
		}
	}
}

func TestRetryPolicyDelayWithMaxCap(t *testing.T) {
	policy := RetryPolicy{
		BaseDelay:         time.Second,
		BackoffMultiplier: 2.0,
		MaxDelay:          5 * time.Second,
	}

	if got := policy.Delay(10); got != 5*time.Second {
		t.Errorf("expected 5s (capped), got %v", got)
	}
}

func TestRetryPolicyDelayWithJitter(t *testing.T) {
	policy := RetryPolicy{
		BaseDelay:         time.Second,
		BackoffMultiplier: 2.0,
		MaxDelay:          time.Minute,
		Jitter:            true,
	}

	for i := 0; i < 100; i++ {
		got := policy.Delay(0)
		if got < 500*time.Millisecond || got > 1500*time.Millisecond {
			t.Errorf("jittered delay out of range: %v", got)
		}
	}
}

func fastPolicy(retries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:        retries,
		BaseDelay:         time.Millisecond,
		MaxDelay:          time.Millisecond,
		BackoffMultiplier: 1,
	}
}

func TestRetrySuccess(t *testing.T) {
	callCount := 0
	var retried []int
	policy := fastPolicy(3)
	policy.OnRetry = func(err error, attempt int, delay time.Duration) {
		retried = append(retried, attempt)
	}

	result, err := Retry(context.Background(), policy, func(ctx context.Context) (string, error) {
		callCount++
		if callCount < 3 {
			return "", &ServerError{ProviderError: ProviderError{
				SDKError: SDKError{Message: "server error"}, Retryable: true,
			}}
		}
		return "success", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "success" {
		t.Errorf("expected %q, got %q", "success", result)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Errorf("expected OnRetry attempts [1 2], got %v", retried)
	}
}

func TestRetryNonRetryableError(t *testing.T) {
	callCount := 0
	_, err := Retry(context.Background(), fastPolicy(3), func(ctx context.Context) (string, error) {
		callCount++
		return "", &AuthenticationError{ProviderError: ProviderError{
			SDKError: SDKError{Message: "invalid key"},
		}}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if callCount != 1 {
		t.Errorf("expected 1 call (no retries for non-retryable), got %d", callCount)
	}
}

func TestRetryExhausted(t *testing.T) {
	callCount := 0
	_, err := Retry(context.Background(), fastPolicy(2), func(ctx context.Context) (string, error) {
		callCount++
		return "", &ServerError{ProviderError: ProviderError{
			SDKError: SDKError{Message: "server error"}, Retryable: true,
		}}
	})
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if callCount != 3 { // 1 initial + 2 retries
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetryDisabled(t *testing.T) {
	callCount := 0
	_, err := Retry(context.Background(), NoRetryPolicy(), func(ctx context.Context) (string, error) {
		callCount++
		return "", errors.New("always fails")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if callCount != 1 {
		t.Errorf("expected exactly 1 call with retries disabled, got %d", callCount)
	}
}

func TestRetryHonorsRetryAfter(t *testing.T) {
	after := 0.001
	policy := fastPolicy(1)
	policy.MaxDelay = time.Second
	var seen time.Duration
	policy.OnRetry = func(err error, attempt int, delay time.Duration) { seen = delay }

	callCount := 0
	_, _ = Retry(context.Background(), policy, func(ctx context.Context) (string, error) {
		callCount++
		return "", &RateLimitError{ProviderError: ProviderError{Retryable: true}, RetryAfter: &after}
	})
	if callCount != 2 {
		t.Errorf("expected 2 calls, got %d", callCount)
	}
	if seen != time.Millisecond {
		t.Errorf("expected Retry-After delay of 1ms, got %v", seen)
	}
}

func TestRetryCancelled(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 5, BaseDelay: time.Second, BackoffMultiplier: 1, MaxDelay: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	callCount := 0
	_, err := Retry(ctx, policy, func(ctx context.Context) (string, error) {
		callCount++
		return "", errors.New("always fails")
	})
	var abortErr *AbortError
	if !errors.As(err, &abortErr) {
		t.Fatalf("expected AbortError, got %T (%v)", err, err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", callCount)
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.MaxRetries != 2 {
		t.Errorf("expected max_retries 2, got %d", p.MaxRetries)
	}
	if p.BaseDelay != time.Second {
		t.Errorf("expected base_delay 1s, got %v", p.BaseDelay)
	}
	if !p.Jitter {
		t.Error("expected jitter = true")
	}
}

func TestRetryGivesUpWhenRetryAfterExceedsMaxDelay(t *testing.T) {
	after := 120.0
	callCount := 0
	_, err := Retry(context.Background(), fastPolicy(3), func(ctx context.Context) (string, error) {
		callCount++
		return "", &RateLimitError{ProviderError: ProviderError{Retryable: true}, RetryAfter: &after}
	})
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %T (%v)", err, err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}
