package model

import (
	"fmt"
	"io"
)

// ExecRequest is a single command execution request sent to the agent exec API.
type ExecRequest struct {
	// Command is the program to run.
	Command string
	// Args are the program arguments.
	Args []string
}

// Validate checks the exec request is correct.
func (r ExecRequest) Validate() error {
	if r.Command == "" {
		return fmt.Errorf("command is required: %w", ErrNotValid)
	}

	return nil
}

// Session is an agent workspace session. Every exec request is scoped to one.
type Session struct {
	// ID is the session identifier assigned by the agent.
	ID string
}

// OutcomeCategory is the classified verdict for one exec attempt against the
// agent. Every response maps to exactly one category.
type OutcomeCategory string

const (
	// OutcomeAllowed means the command ran to completion and exited zero.
	OutcomeAllowed OutcomeCategory = "allowed"
	// OutcomeBlocked means the agent policy engine denied the command.
	OutcomeBlocked OutcomeCategory = "blocked"
	// OutcomeError means the command failed for a reason other than policy,
	// or the response was missing or unparseable.
	OutcomeError OutcomeCategory = "error"
)

// ExecOutcome is the classified result of one exec attempt.
type ExecOutcome struct {
	// Category is the verdict.
	Category OutcomeCategory
	// ExitCode is the command exit code. Nil when the response carried none
	// (policy denials, transport failures).
	ExitCode *int
	// Stdout is the trimmed standard output, when present.
	Stdout string
	// Stderr is the trimmed standard error, when present.
	Stderr string
	// Reason is a human-readable explanation for blocked and error outcomes.
	Reason string
	// RuleID is the policy rule that triggered a blocked outcome, when known.
	RuleID string
}

// ExecOpts contains options for executing a command inside an environment at
// the engine level, below the agent exec API.
type ExecOpts struct {
	// WorkingDir is the directory to run the command in (optional).
	WorkingDir string
	// Env contains additional environment variables for this exec.
	Env map[string]string
	// Elevated runs the command as the privileged user.
	Elevated bool
	// Detach starts the command and returns without waiting for it to finish.
	Detach bool
	// Stdin is the input stream for the command (optional).
	Stdin io.Reader
	// Stdout is the output stream for the command (optional, defaults to discard).
	Stdout io.Writer
	// Stderr is the error stream for the command (optional, defaults to discard).
	Stderr io.Writer
}

// ExecResult contains the result of an engine-level exec operation.
type ExecResult struct {
	// ExitCode is the exit code of the executed command.
	ExitCode int
}
