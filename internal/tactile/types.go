// Package tactile runs the external tools the publish pipeline drives
// (firectl, python, llama.cpp, huggingface-cli) and captures their output.
package tactile

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ErrCommandFailed is wrapped by Check for non-zero exits, kills and
// infrastructure failures.
var ErrCommandFailed = errors.New("command failed")

// Command is one process invocation.
type Command struct {
	// Binary is the executable to run (e.g. "python", "firectl").
	Binary string `json:"binary"`

	// Arguments are the command-line arguments.
	Arguments []string `json:"arguments"`

	// WorkingDirectory is the directory to execute in.
	// If empty, uses the executor's default working directory.
	WorkingDirectory string `json:"working_directory,omitempty"`

	// Environment variables to set (in KEY=VALUE format).
	// These are merged with the executor's allowed environment.
	Environment []string `json:"environment,omitempty"`

	// Stdin provides input to the command's standard input.
	Stdin string `json:"stdin,omitempty"`

	// Limits specifies resource constraints for execution.
	Limits *ResourceLimits `json:"limits,omitempty"`

	// Description is the human label printed above the command.
	Description string `json:"description,omitempty"`
}

// CommandString returns the full command as a string (for display/logging).
func (c Command) CommandString() string {
	if len(c.Arguments) == 0 {
		return c.Binary
	}
	return c.Binary + " " + strings.Join(c.Arguments, " ")
}

// ResourceLimits defines constraints on command execution.
type ResourceLimits struct {
	// TimeoutMs is the maximum execution time in milliseconds.
	// Zero means use the executor's default timeout.
	TimeoutMs int64 `json:"timeout_ms,omitempty"`

	// MaxOutputBytes limits captured stdout and stderr, each.
	// Zero means use the executor's default.
	MaxOutputBytes int64 `json:"max_output_bytes,omitempty"`
}

// ExecutionResult is the output of one command.
type ExecutionResult struct {
	// Success indicates whether the command completed without error.
	// Note: A command that runs but returns non-zero exit code has Success=true.
	// Success=false means the execution infrastructure failed.
	Success bool `json:"success"`

	// ExitCode is the command's exit code (-1 if not available).
	ExitCode int `json:"exit_code"`

	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	Combined string `json:"combined"`

	Duration   time.Duration `json:"duration"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`

	// Killed indicates the command was forcibly terminated.
	Killed     bool   `json:"killed"`
	KillReason string `json:"kill_reason,omitempty"`

	// Truncated indicates output was truncated due to size limits.
	Truncated      bool  `json:"truncated"`
	TruncatedBytes int64 `json:"truncated_bytes,omitempty"`

	// Error contains any infrastructure-level error message.
	Error string `json:"error,omitempty"`

	// Command is the command after defaults were merged.
	Command *Command `json:"command,omitempty"`
}

// IsError returns true if execution failed at the infrastructure level.
func (r *ExecutionResult) IsError() bool {
	return !r.Success || r.Error != ""
}

// IsNonZeroExit returns true if the command ran but returned non-zero.
func (r *ExecutionResult) IsNonZeroExit() bool {
	return r.Success && r.ExitCode != 0
}

// Output returns Combined if available, otherwise Stdout+Stderr.
func (r *ExecutionResult) Output() string {
	if r.Combined != "" {
		return r.Combined
	}
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// Check turns an Execute outcome into a single error: nil only when the
// command ran to completion with exit code 0.
func Check(result *ExecutionResult, err error) error {
	if err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("%w: no result", ErrCommandFailed)
	}
	name := "command"
	if result.Command != nil {
		name = result.Command.Binary
	}
	switch {
	case result.Killed:
		return fmt.Errorf("%w: %s killed (%s)", ErrCommandFailed, name, result.KillReason)
	case result.IsError():
		return fmt.Errorf("%w: %s: %s", ErrCommandFailed, name, result.Error)
	case result.ExitCode != 0:
		// Some tools report failures on stdout only.
		output := strings.TrimSpace(result.Stderr)
		if output == "" {
			output = strings.TrimSpace(result.Output())
		}
		if output != "" {
			return fmt.Errorf("%w: %s exited with code %d\nError output: %s", ErrCommandFailed, name, result.ExitCode, output)
		}
		return fmt.Errorf("%w: %s exited with code %d", ErrCommandFailed, name, result.ExitCode)
	}
	return nil
}

// ExecutorConfig is the configuration for creating executors.
type ExecutorConfig struct {
	// DefaultWorkingDir is used when Command.WorkingDirectory is empty.
	DefaultWorkingDir string `json:"default_working_dir"`

	// DefaultTimeout applies when the command sets none.
	DefaultTimeout time.Duration `json:"default_timeout"`

	// MaxTimeout caps any requested timeout.
	MaxTimeout time.Duration `json:"max_timeout"`

	// MaxOutputBytes bounds captured stdout and stderr, each.
	MaxOutputBytes int64 `json:"max_output_bytes"`

	// AllowedEnvironment lists the variables copied from the parent process.
	AllowedEnvironment []string `json:"allowed_environment"`

	// Stream, when set, receives stdout and stderr as they are produced.
	Stream io.Writer `json:"-"`
}

// DefaultExecutorConfig returns defaults sized for multi-hour model work.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		DefaultWorkingDir: "",
		DefaultTimeout:    2 * time.Hour,
		MaxTimeout:        12 * time.Hour,
		MaxOutputBytes:    10 * 1024 * 1024,
		AllowedEnvironment: []string{
			"PATH", "HOME", "USER", "TMPDIR", "TEMP", "TMP",
			"SYSTEMROOT", "USERPROFILE", "APPDATA", "LOCALAPPDATA",
			"LANG", "LC_ALL",
		},
	}
}

// Merge applies defaults to cmd.
func (c ExecutorConfig) Merge(cmd Command) Command {
	result := cmd
	if result.WorkingDirectory == "" {
		result.WorkingDirectory = c.DefaultWorkingDir
	}

	limits := ResourceLimits{}
	if cmd.Limits != nil {
		limits = *cmd.Limits
	}
	if limits.TimeoutMs <= 0 {
		limits.TimeoutMs = c.DefaultTimeout.Milliseconds()
	}
	if c.MaxTimeout > 0 && limits.TimeoutMs > c.MaxTimeout.Milliseconds() {
		limits.TimeoutMs = c.MaxTimeout.Milliseconds()
	}
	if limits.MaxOutputBytes <= 0 {
		limits.MaxOutputBytes = c.MaxOutputBytes
	}
	result.Limits = &limits
	return result
}
