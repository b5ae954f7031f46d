// Package runner offers higher level command execution on top of a compute
// engine: strict runs, probing runs and detached starts, all pre-bound to a
// single environment.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/slok/vetbox/internal/compute"
	"github.com/slok/vetbox/internal/log"
	"github.com/slok/vetbox/internal/model"
)

// EnvironmentAccessor provides access to one environment's operations.
// It pre-binds the environment ID so callers are engine-agnostic and don't
// get access to lifecycle operations (create/remove).
type EnvironmentAccessor interface {
	Exec(ctx context.Context, command []string, opts model.ExecOpts) (*model.ExecResult, error)
	CopyTo(ctx context.Context, srcLocal string, dstRemote string) error
}

// NewEnvironmentAccessor creates an EnvironmentAccessor bound to a specific
// environment ID.
func NewEnvironmentAccessor(engine compute.Engine, environmentID string) EnvironmentAccessor {
	return &environmentAccessor{
		engine:        engine,
		environmentID: environmentID,
	}
}

type environmentAccessor struct {
	engine        compute.Engine
	environmentID string
}

func (a *environmentAccessor) Exec(ctx context.Context, command []string, opts model.ExecOpts) (*model.ExecResult, error) {
	return a.engine.Exec(ctx, a.environmentID, command, opts)
}

func (a *environmentAccessor) CopyTo(ctx context.Context, srcLocal string, dstRemote string) error {
	return a.engine.CopyTo(ctx, a.environmentID, srcLocal, dstRemote)
}

// RunOpts are the options for a single run.
type RunOpts struct {
	// WorkingDir is the directory the command runs in.
	WorkingDir string
	// Env is extra process environment for the command.
	Env map[string]string
	// Elevated runs the command as the privileged user.
	Elevated bool
}

// Result is the captured result of a run.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ExitError is returned by strict runs when the command exits non-zero.
type ExitError struct {
	Command  []string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = "no stderr output"
	}
	return fmt.Sprintf("command %q exited with code %d: %s", strings.Join(e.Command, " "), e.ExitCode, msg)
}

// RunnerConfig is the configuration for the runner.
type RunnerConfig struct {
	Accessor EnvironmentAccessor
	Logger   log.Logger
}

func (c *RunnerConfig) defaults() error {
	if c.Accessor == nil {
		return fmt.Errorf("environment accessor is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "runner.Runner"})
	return nil
}

// Runner runs commands inside one environment and captures their output.
type Runner struct {
	accessor EnvironmentAccessor
	logger   log.Logger
}

// NewRunner creates a new runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runner{
		accessor: cfg.Accessor,
		logger:   cfg.Logger,
	}, nil
}

// TryRun runs a command and returns the captured result whatever the exit
// code. The error is only non-nil when the command could not be executed at
// all.
func (r *Runner) TryRun(ctx context.Context, command []string, opts RunOpts) (*Result, error) {
	var stdout, stderr bytes.Buffer

	res, err := r.accessor.Exec(ctx, command, model.ExecOpts{
		WorkingDir: opts.WorkingDir,
		Env:        opts.Env,
		Elevated:   opts.Elevated,
		Stdout:     &stdout,
		Stderr:     &stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("could not execute command: %w", err)
	}

	return &Result{
		ExitCode: res.ExitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

// Run is the strict variant of TryRun: a non-zero exit code is an error that
// carries the captured stderr.
func (r *Runner) Run(ctx context.Context, command []string, opts RunOpts) (*Result, error) {
	res, err := r.TryRun(ctx, command, opts)
	if err != nil {
		return nil, err
	}

	if res.ExitCode != 0 {
		return nil, &ExitError{Command: command, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}

	return res, nil
}

// RunShell runs a shell script line through `sh -c`.
func (r *Runner) RunShell(ctx context.Context, script string, opts RunOpts) (*Result, error) {
	return r.Run(ctx, []string{"sh", "-c", script}, opts)
}

// TryRunShell runs a shell script line through `sh -c` without failing on
// non-zero exit codes.
func (r *Runner) TryRunShell(ctx context.Context, script string, opts RunOpts) (*Result, error) {
	return r.TryRun(ctx, []string{"sh", "-c", script}, opts)
}

// Start launches a command detached and returns without waiting for it.
func (r *Runner) Start(ctx context.Context, command []string, opts RunOpts) error {
	_, err := r.accessor.Exec(ctx, command, model.ExecOpts{
		WorkingDir: opts.WorkingDir,
		Env:        opts.Env,
		Elevated:   opts.Elevated,
		Detach:     true,
	})
	if err != nil {
		return fmt.Errorf("could not start command: %w", err)
	}

	return nil
}
