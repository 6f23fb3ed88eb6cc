package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Operation is one attempt of a retried unit of work.
type Operation func(ctx context.Context) error

// OnRetry is called before sleeping for the next attempt.
type OnRetry func(attempt int, err error, wait time.Duration)

// Execute runs op until it succeeds, returns a non-retryable error, or the
// policy's attempts are exhausted. It returns the number of attempts made and
// the last error.
func Execute(ctx context.Context, policy RetryPolicy, op Operation, onRetry OnRetry) (int, error) {
	attempts := 0
	operation := func() (struct{}, error) {
		attempts++
		err := op(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		if !policy.ShouldRetry(err) || attempts >= policy.GetMaxAttempts() {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(policy.NewBackOff()),
		backoff.WithMaxTries(uint(policy.GetMaxAttempts())),
		// Attempts are bounded by count and the caller's context, not elapsed time.
		backoff.WithMaxElapsedTime(0),
	}
	if onRetry != nil {
		opts = append(opts, backoff.WithNotify(func(err error, wait time.Duration) {
			onRetry(attempts, err, wait)
		}))
	}

	_, err := backoff.Retry(ctx, operation, opts...)
	return attempts, err
}
