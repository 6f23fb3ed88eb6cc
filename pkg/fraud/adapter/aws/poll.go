package aws

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

var errPending = errors.New("still running")

// checkFunc inspects an external job once. done reports a terminal state;
// a non-nil error ends polling immediately.
type checkFunc[T any] func(ctx context.Context) (result T, done bool, err error)

// awaitTerminal calls check every interval until the job is terminal, check
// fails, or ctx ends. Only ctx bounds the wait.
func awaitTerminal[T any](ctx context.Context, interval time.Duration, check checkFunc[T]) (T, error) {
	op := func() (T, error) {
		result, done, err := check(ctx)
		if err != nil {
			return result, backoff.Permanent(err)
		}
		if !done {
			return result, errPending
		}
		return result, nil
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxElapsedTime(0),
	)
}
