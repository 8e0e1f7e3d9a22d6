package wallpaper

import (
	"context"
	"fmt"
	"os/exec"
)

// Runner executes external commands. It exists so tests can observe the
// commands a setter would run.
type Runner interface {
	// Run executes a command to completion and returns its combined output
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// Start launches a long-running command detached from the daemon
	Start(name string, args ...string) error

	// LookPath reports whether a binary is available
	LookPath(name string) (string, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// NewExecRunner creates a runner backed by os/exec
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes a command and returns its combined output
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Start launches name in its own session so it outlives the daemon
func (ExecRunner) Start(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}
	// Reap the child if it exits while we are still running
	go func() { _ = cmd.Wait() }()
	return nil
}

// LookPath searches PATH for name
func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
