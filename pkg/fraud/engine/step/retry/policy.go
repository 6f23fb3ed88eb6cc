// Package retry decides which step errors are retried and drives the retry loop
// with exponential backoff.
package retry

import (
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

// RetryPolicy defines retry logic for a step.
type RetryPolicy interface {
	// ShouldRetry determines if a given error is retryable.
	ShouldRetry(err error) bool
	// GetMaxAttempts returns the total number of attempts, including the first one.
	GetMaxAttempts() int
	// NewBackOff returns a fresh backoff schedule for one execution.
	NewBackOff() backoff.BackOff
}

// DefaultRetryPolicyFactory creates RetryPolicy instances.
type DefaultRetryPolicyFactory struct{}

// NewDefaultRetryPolicyFactory creates a new DefaultRetryPolicyFactory.
func NewDefaultRetryPolicyFactory() *DefaultRetryPolicyFactory {
	return &DefaultRetryPolicyFactory{}
}

// Create builds a policy from explicit settings. Intervals are in milliseconds.
func (f *DefaultRetryPolicyFactory) Create(maxAttempts int, initialInterval int, maxInterval int, factor float64, retryableExceptions []string) RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if factor < 1 {
		factor = 1
	}
	return &defaultRetryPolicy{
		maxAttempts:         maxAttempts,
		initialInterval:     time.Duration(initialInterval) * time.Millisecond,
		maxInterval:         time.Duration(maxInterval) * time.Millisecond,
		factor:              factor,
		retryableExceptions: retryableExceptions,
	}
}

// FromConfig builds a policy from the pipeline retry configuration.
func (f *DefaultRetryPolicyFactory) FromConfig(cfg config.RetryConfig) RetryPolicy {
	return f.Create(cfg.MaxAttempts, cfg.InitialInterval, cfg.MaxInterval, cfg.Factor, cfg.RetryableExceptions)
}

// NoRetry returns a policy that never retries.
func NoRetry() RetryPolicy {
	return &defaultRetryPolicy{maxAttempts: 1, factor: 1}
}

type defaultRetryPolicy struct {
	maxAttempts         int
	initialInterval     time.Duration
	maxInterval         time.Duration
	factor              float64
	retryableExceptions []string
}

func (p *defaultRetryPolicy) GetMaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry honors a FlowError's retry flag first, then the configured error names.
func (p *defaultRetryPolicy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if fe, ok := err.(*exception.FlowError); ok && fe.IsRetryable() {
		return true
	}
	for _, typeName := range p.retryableExceptions {
		if exception.IsErrorOfType(err, typeName) {
			return true
		}
	}
	return false
}

// NewBackOff returns an exponential schedule starting at the initial interval
// and multiplied by factor after each attempt, without jitter.
func (p *defaultRetryPolicy) NewBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initialInterval
	b.Multiplier = p.factor
	b.RandomizationFactor = 0
	if p.maxInterval > 0 {
		b.MaxInterval = p.maxInterval
	}
	return b
}

var _ RetryPolicy = (*defaultRetryPolicy)(nil)
