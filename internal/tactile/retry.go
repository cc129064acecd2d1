package tactile

import (
	"context"
	"time"

	"playable/internal/logging"
)

// RetryExecutor re-runs commands that exit non-zero, for network-bound
// tools like hub uploads. Killed commands and infrastructure errors are
// not retried.
type RetryExecutor struct {
	executor   Executor
	maxRetries int
	retryDelay func(attempt int) time.Duration
}

// NewRetryExecutor creates a new retry executor.
func NewRetryExecutor(executor Executor, maxRetries int) *RetryExecutor {
	return &RetryExecutor{
		executor:   executor,
		maxRetries: maxRetries,
		retryDelay: func(attempt int) time.Duration {
			// Exponential backoff: 2s, 4s, 8s, ...
			return 2 * time.Second << attempt
		},
	}
}

// SetRetryDelay sets a custom retry delay function.
func (r *RetryExecutor) SetRetryDelay(delayFunc func(attempt int) time.Duration) {
	r.retryDelay = delayFunc
}

// Execute runs cmd, retrying non-zero exits up to maxRetries times.
func (r *RetryExecutor) Execute(ctx context.Context, cmd Command) (*ExecutionResult, error) {
	var (
		result *ExecutionResult
		err    error
	)
	for attempt := 0; ; attempt++ {
		result, err = r.executor.Execute(ctx, cmd)
		if !r.shouldRetry(result, err) || attempt >= r.maxRetries {
			return result, err
		}

		delay := r.retryDelay(attempt)
		logging.TactileWarn("%s exited %d, retrying in %s (attempt %d/%d)",
			cmd.Binary, result.ExitCode, delay, attempt+1, r.maxRetries)

		select {
		case <-ctx.Done():
			return result, err
		case <-time.After(delay):
		}
	}
}

func (r *RetryExecutor) shouldRetry(result *ExecutionResult, err error) bool {
	if err != nil || result == nil {
		return false
	}
	if result.Killed {
		return false
	}
	return result.IsNonZeroExit()
}

// Validate validates a command.
func (r *RetryExecutor) Validate(cmd Command) error {
	return r.executor.Validate(cmd)
}
