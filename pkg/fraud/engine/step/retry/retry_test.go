package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

func fastPolicy(max int) RetryPolicy {
	return NewDefaultRetryPolicyFactory().Create(max, 1, 5, 2.0, []string{exception.ThrottlingException, exception.ServiceUnavailable})
}

func TestShouldRetry(t *testing.T) {
	p := fastPolicy(3)
	assert.True(t, p.ShouldRetry(fmt.Errorf("call: %w", exception.ErrThrottling)))
	assert.True(t, p.ShouldRetry(exception.NewFlowError("m", "x", nil, true)))
	assert.False(t, p.ShouldRetry(exception.ErrTaskFailed))
	assert.False(t, p.ShouldRetry(nil))
}

func TestExecute_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	var notified []int
	attempts, err := Execute(context.Background(), fastPolicy(6), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return exception.ErrThrottling
		}
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		notified = append(notified, attempt)
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{1, 2}, notified)
}

func TestExecute_ExhaustsAttempts(t *testing.T) {
	attempts, err := Execute(context.Background(), fastPolicy(4), func(ctx context.Context) error {
		return exception.ErrServiceUnavailable
	}, nil)

	assert.Equal(t, 4, attempts)
	assert.True(t, errors.Is(err, exception.ErrServiceUnavailable))
}

func TestExecute_PermanentErrorStopsImmediately(t *testing.T) {
	attempts, err := Execute(context.Background(), fastPolicy(6), func(ctx context.Context) error {
		return exception.ErrTaskFailed
	}, nil)

	assert.Equal(t, 1, attempts)
	assert.True(t, errors.Is(err, exception.ErrTaskFailed))
}

func TestNewBackOff_Exponential(t *testing.T) {
	p := NewDefaultRetryPolicyFactory().FromConfig(config.RetryConfig{MaxAttempts: 6, InitialInterval: 2000, Factor: 2.0})
	b := p.NewBackOff()
	assert.Equal(t, 2*time.Second, b.NextBackOff())
	assert.Equal(t, 4*time.Second, b.NextBackOff())
	assert.Equal(t, 8*time.Second, b.NextBackOff())
}

func TestNoRetry(t *testing.T) {
	attempts, err := Execute(context.Background(), NoRetry(), func(ctx context.Context) error {
		return exception.ErrThrottling
	}, nil)
	assert.Equal(t, 1, attempts)
	assert.Error(t, err)
}
