package tactile

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// DryRunExecutor prints commands instead of running them. Every command
// "succeeds" with exit code 0 and empty output.
type DryRunExecutor struct {
	mu       sync.Mutex
	out      io.Writer
	commands []Command
}

// NewDryRunExecutor writes each planned command to out.
func NewDryRunExecutor(out io.Writer) *DryRunExecutor {
	if out == nil {
		out = io.Discard
	}
	return &DryRunExecutor{out: out}
}

// Validate checks that a binary is named.
func (e *DryRunExecutor) Validate(cmd Command) error {
	if cmd.Binary == "" {
		return fmt.Errorf("binary is required")
	}
	return nil
}

// Execute records cmd and prints it.
func (e *DryRunExecutor) Execute(_ context.Context, cmd Command) (*ExecutionResult, error) {
	if err := e.Validate(cmd); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.commands = append(e.commands, cmd)
	e.mu.Unlock()

	if cmd.WorkingDirectory != "" {
		fmt.Fprintf(e.out, "[dry-run] (cd %s) %s\n", cmd.WorkingDirectory, cmd.CommandString())
	} else {
		fmt.Fprintf(e.out, "[dry-run] %s\n", cmd.CommandString())
	}
	return &ExecutionResult{Success: true, ExitCode: 0, Command: &cmd}, nil
}

// Commands returns every command seen so far.
func (e *DryRunExecutor) Commands() []Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Command, len(e.commands))
	copy(out, e.commands)
	return out
}
