package unifiedllm

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy configures retry behavior with exponential backoff.
type RetryPolicy struct {
	MaxRetries        int           // retry attempts after the first call; 0 disables retries
	BaseDelay         time.Duration // delay before the first retry
	MaxDelay          time.Duration // cap on any single delay
	BackoffMultiplier float64
	Jitter            bool // scale each delay by a random factor in [0.5, 1.5)
	OnRetry           func(err error, attempt int, delay time.Duration)
}

// NoRetryPolicy calls once and returns whatever happens.
func NoRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay:         time.Second,
		MaxDelay:          time.Minute,
		BackoffMultiplier: 2.0,
	}
}

// DefaultRetryPolicy retries twice with jittered exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	p := NoRetryPolicy()
	p.MaxRetries = 2
	p.Jitter = true
	return p
}

// Delay calculates the delay before retry attempt n (0-indexed).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt))
	delay = math.Min(delay, float64(p.MaxDelay))
	if p.Jitter {
		delay *= 0.5 + rand.Float64()
	}
	return time.Duration(delay)
}

// nextDelay returns how long to wait before retrying after err, and false
// when err should not be retried at all. A rate limit's Retry-After wins
// over backoff unless it exceeds MaxDelay.
func (p RetryPolicy) nextDelay(err error, attempt int) (time.Duration, bool) {
	if !IsRetryable(err) {
		return 0, false
	}
	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter != nil {
		after := time.Duration(*rl.RetryAfter * float64(time.Second))
		return after, after <= p.MaxDelay
	}
	return p.Delay(attempt), true
}

// Retry executes fn, retrying retryable errors according to policy.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if attempt >= policy.MaxRetries {
			return zero, err
		}
		delay, ok := policy.nextDelay(err, attempt)
		if !ok {
			return zero, err
		}
		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt+1, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, &AbortError{SDKError: SDKError{Message: "request cancelled during retry", Cause: ctx.Err()}}
		case <-timer.C:
		}
	}
}
