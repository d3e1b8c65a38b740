// Package execx wraps external command invocation behind a small
// interface so modules that shell out are testable.
package execx

import (
	"context"
	"errors"
	"os/exec"
)

// Runner executes an external command and returns its stdout.
type Runner interface {
	// Run executes name with args. Stdout is returned even when the
	// command exits nonzero, alongside the *exec.ExitError.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// NewRunner returns the real command runner.
func NewRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// IsNotFound reports whether err means the binary is not installed.
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}

// ExitCode returns the command's exit code, or -1 if err is not an
// *exec.ExitError.
func ExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
