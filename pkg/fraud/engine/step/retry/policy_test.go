package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

func TestShouldRetry_TerminalFailureMentioningRetryableName(t *testing.T) {
	p := NewDefaultRetryPolicyFactory().FromConfig(config.NewConfig().Fraudflow.Pipeline.Retry)

	terminal := exception.NewFlowErrorf("glue", "job run %s ended in %s: %s",
		"jr_1", "FAILED", "py4j ThrottlingException in user script", exception.ErrTaskFailed)
	assert.False(t, p.ShouldRetry(terminal))
	assert.Equal(t, exception.StatesTaskFailed, exception.ErrorName(terminal))

	lambdaErr := exception.NewFlowErrorf("lambda", "function %s failed: %s", "repackage", "ServiceException: bucket missing", exception.ErrTaskFailed)
	assert.False(t, p.ShouldRetry(lambdaErr))
}

func TestExecute_TerminalFailureRunsOnce(t *testing.T) {
	p := NewDefaultRetryPolicyFactory().Create(6, 1, 5, 2.0, config.NewConfig().Fraudflow.Pipeline.Retry.RetryableExceptions)
	calls := 0
	attempts, err := Execute(context.Background(), p, func(ctx context.Context) error {
		calls++
		return exception.NewFlowErrorf("glue", "job ended: %s", "ThrottlingException raised by user code", exception.ErrTaskFailed)
	}, func(attempt int, err error, wait time.Duration) {})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}
