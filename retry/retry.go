// Package retry provides bounded retries with capped exponential backoff
// around fallible upstream operations.
package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Defaults for the retry budget and backoff curve.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	DefaultMaxDelay   = 10 * time.Second
)

// Policy retries an operation when its error is classified as
// transient. Fatal errors surface immediately; transient errors are
// retried up to MaxRetries additional attempts, and the last error is
// surfaced when the budget is exhausted.
type Policy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	retryable  func(error) bool
	logger     *zap.Logger
}

// New creates a retry policy. maxRetries < 0 selects the default;
// non-positive delays select the default backoff curve. retryable
// classifies errors as transient; a nil classifier treats every error
// as fatal.
func New(maxRetries int, baseDelay, maxDelay time.Duration, retryable func(error) bool, logger *zap.Logger) *Policy {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	if retryable == nil {
		retryable = func(error) bool { return false }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Policy{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		retryable:  retryable,
		logger:     logger,
	}
}

// Execute runs op, retrying transient failures. Every attempt is logged
// with its attempt number and the caller's context fields. The backoff
// sleep is context-aware; cancellation aborts the wait and returns
// ctx.Err().
func (p *Policy) Execute(ctx context.Context, op func() error, fields ...zap.Field) error {
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		attemptFields := append([]zap.Field{zap.Int("attempt", attempt)}, fields...)

		err := op()
		if err == nil {
			p.logger.Debug("attempt succeeded", attemptFields...)
			return nil
		}

		lastErr = err
		p.logger.Warn("attempt failed", append(attemptFields, zap.Error(err))...)

		if !p.retryable(err) || attempt == p.maxRetries {
			return err
		}

		if err := p.sleep(ctx, p.Delay(attempt)); err != nil {
			return fmt.Errorf("retry aborted: %w", err)
		}
	}

	return lastErr
}

// Delay returns the backoff before the attempt after the given one:
// baseDelay * 2^attempt, capped at maxDelay.
func (p *Policy) Delay(attempt int) time.Duration {
	delay := p.baseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.maxDelay {
			return p.maxDelay
		}
	}
	if delay > p.maxDelay {
		return p.maxDelay
	}
	return delay
}

// sleep waits for d or until ctx is done, whichever comes first.
func (p *Policy) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
