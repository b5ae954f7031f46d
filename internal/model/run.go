package model

import (
	"fmt"
	"time"
)

// RunStatus is the lifecycle status of a verification run.
type RunStatus string

const (
	// RunStatusRunning means provisioning or verification is in progress.
	RunStatusRunning RunStatus = "running"
	// RunStatusPassed means every scenario in the run passed.
	RunStatusPassed RunStatus = "passed"
	// RunStatusFailed means at least one scenario did not pass.
	RunStatusFailed RunStatus = "failed"
	// RunStatusError means the run aborted before verification finished
	// (e.g. provisioning failed).
	RunStatusError RunStatus = "error"
)

// VerificationRun is the persisted record of one provision-and-verify
// execution, used for history listing and reporting.
type VerificationRun struct {
	// ID is the unique run identifier (ULID).
	ID string
	// EnvironmentID is the environment the run executed against.
	EnvironmentID string
	// Engine is the compute engine used.
	Engine EngineType
	// AgentVersion is the resolved agent release tag or source reference.
	AgentVersion string
	// Workspace is the session workspace the agent was configured with.
	Workspace string
	// Status is the run lifecycle status.
	Status RunStatus
	// Total is the number of scenarios executed.
	Total int
	// Passed is the number of scenarios whose verdict matched.
	Passed int
	// Failed is the number of scenarios whose verdict did not match.
	Failed int
	// Error holds the abort cause when Status is error.
	Error string
	// CreatedAt is when the run started.
	CreatedAt time.Time
	// FinishedAt is when the run finished. Nil while running.
	FinishedAt *time.Time
}

// Validate checks the verification run is correct.
func (r VerificationRun) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required: %w", ErrNotValid)
	}

	switch r.Status {
	case RunStatusRunning, RunStatusPassed, RunStatusFailed, RunStatusError:
	default:
		return fmt.Errorf("unknown run status %q: %w", r.Status, ErrNotValid)
	}

	return nil
}

// RunScenarioResult is the persisted per-scenario row of a verification run.
type RunScenarioResult struct {
	// RunID is the verification run the result belongs to.
	RunID string
	// Position is the zero-based catalogue position, preserving order.
	Position int
	// Description is the scenario description.
	Description string
	// Command is the rendered command line the scenario sent.
	Command string
	// Expected is the expected outcome category.
	Expected OutcomeCategory
	// Actual is the classified outcome category.
	Actual OutcomeCategory
	// Passed is true when expected and actual matched.
	Passed bool
	// Reason explains blocked and error outcomes, when present.
	Reason string
}
