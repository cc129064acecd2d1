package tactile

import "context"

// Executor is the interface for command execution.
type Executor interface {
	// Execute runs a command and returns its result. A non-zero exit is
	// reported in the result, not as an error.
	Execute(ctx context.Context, cmd Command) (*ExecutionResult, error)

	// Validate checks if a command can be executed by this executor.
	Validate(cmd Command) error
}
