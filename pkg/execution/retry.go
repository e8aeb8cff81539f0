package execution

import (
	"context"
	"math/rand"
	"time"
)

// RetryableFunc is a function that can be retried.
type RetryableFunc[T any] func(ctx context.Context) (T, error)

// RetryPolicy bounds a retry loop. Retryable decides which errors are worth another attempt;
// a nil Retryable retries every error. A zero InitialBackoff retries immediately.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Retryable      func(error) bool
	OnRetry        func(attempt int, err error)
}

// WithRetry runs fn once plus up to MaxRetries more times, spacing attempts with exponential
// backoff and jitter. It stops early on success, on a non-retryable error or when ctx ends.
func WithRetry[T any](ctx context.Context, policy RetryPolicy, fn RetryableFunc[T]) (T, error) {
	var (
		result T
		err    error
	)

	for attempt := 0; ; attempt++ {
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
		if attempt >= policy.MaxRetries || (policy.Retryable != nil && !policy.Retryable(err)) {
			return result, err
		}
		if policy.OnRetry != nil {
			policy.OnRetry(attempt+1, err)
		}

		if policy.InitialBackoff <= 0 {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			continue
		}

		backoff := policy.InitialBackoff * (1 << attempt)
		if policy.MaxBackoff > 0 && backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
		jitter := time.Duration(rand.Int63n(int64(policy.InitialBackoff)/2 + 1))

		timer := time.NewTimer(backoff + jitter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}
	}
}
