package lib

import (
	"errors"
	"time"

	"github.com/slok/vetbox/internal/model"
)

// Sentinel errors returned by the SDK. Inspect them with [errors.Is].
var (
	// ErrNotFound is returned when a resource does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrNotValid is returned on invalid input or operations.
	ErrNotValid = errors.New("not valid")
)

// EngineType identifies the compute engine implementation.
type EngineType string

const (
	// EngineDocker runs environments as Docker containers. Requires a
	// reachable Docker daemon.
	EngineDocker EngineType = "docker"

	// EngineSSH provisions onto an existing host reachable over SSH.
	// Requires [Config].SSH to be set.
	EngineSSH EngineType = "ssh"

	// EngineFake uses an in-memory simulation (no real infrastructure) with
	// a simulated agent inside. Use this for testing and dry runs.
	EngineFake EngineType = "fake"
)

// RunStatus represents the lifecycle state of a verification run.
type RunStatus string

const (
	// RunStatusRunning indicates provisioning or verification is in progress.
	RunStatusRunning RunStatus = "running"
	// RunStatusPassed indicates every scenario in the run passed.
	RunStatusPassed RunStatus = "passed"
	// RunStatusFailed indicates at least one scenario did not pass.
	RunStatusFailed RunStatus = "failed"
	// RunStatusError indicates the run aborted before verification finished.
	RunStatusError RunStatus = "error"
)

// OutcomeCategory is the classified verdict of one exec attempt.
type OutcomeCategory string

const (
	// OutcomeAllowed means the agent executed the command and it succeeded.
	OutcomeAllowed OutcomeCategory = "allowed"
	// OutcomeBlocked means the agent's policy refused or denied the command.
	OutcomeBlocked OutcomeCategory = "blocked"
	// OutcomeError means the command failed or the agent never answered.
	OutcomeError OutcomeCategory = "error"
)

// Environment is the handle to a provisioned environment.
//
// It is returned by [Client.Provision] and by runs that keep their
// environment. Release it with [Client.Teardown].
type Environment struct {
	// ID is the unique identifier (ULID) assigned at acquire time.
	ID string
	// Name is the human-friendly name.
	Name string
	// Engine is the compute engine that owns the environment.
	Engine EngineType
	// APIAddr is the host-reachable "host:port" of the agent API. Empty
	// unless the environment was provisioned with DirectAPI.
	APIAddr string
	// AgentVersion is the release tag or source reference of the installed
	// agent.
	AgentVersion string
	// CreatedAt is when the environment was acquired.
	CreatedAt time.Time
}

// Scenario is one diagnostic probe: a command sent through the agent and the
// outcome category it is expected to produce.
type Scenario struct {
	// Description says what the probe checks.
	Description string
	// Command is the command name.
	Command string
	// Args are the command arguments.
	Args []string
	// Expected is the outcome category the probe must produce to pass.
	Expected OutcomeCategory
}

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
	// Reason explains blocked and error outcomes.
	Reason string
	// RuleID is the policy rule that triggered a blocked outcome, when known.
	RuleID string
}

// ScenarioResult pairs a scenario with its classified outcome and verdict.
type ScenarioResult struct {
	// Scenario is the probe that ran.
	Scenario Scenario
	// Outcome is the classified result.
	Outcome ExecOutcome
	// Passed is true when the outcome category matched the expectation.
	Passed bool
}

// Report is the result of running a scenario catalogue, one entry per
// scenario in declaration order.
type Report struct {
	// Results are the per-scenario results.
	Results []ScenarioResult
}

// Total returns the number of scenarios that ran.
func (r Report) Total() int { return len(r.Results) }

// Passed returns the number of scenarios whose verdict matched.
func (r Report) Passed() int {
	passed := 0
	for _, res := range r.Results {
		if res.Passed {
			passed++
		}
	}
	return passed
}

// Failed returns the number of scenarios whose verdict did not match.
func (r Report) Failed() int { return r.Total() - r.Passed() }

// Ok returns true when every scenario passed.
func (r Report) Ok() bool { return r.Failed() == 0 }

// VerificationRun is the recorded history entry of one verification run.
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
	// Error holds the abort cause when Status is [RunStatusError].
	Error string
	// CreatedAt is when the run started.
	CreatedAt time.Time
	// FinishedAt is when the run finished. Nil while running.
	FinishedAt *time.Time
}

// RunScenarioResult is the recorded per-scenario row of a verification run.
type RunScenarioResult struct {
	// RunID is the verification run the result belongs to.
	RunID string
	// Position is the zero-based catalogue position.
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

// CheckStatus represents the status of a preflight check.
type CheckStatus string

const (
	// CheckStatusOK indicates the check passed.
	CheckStatusOK CheckStatus = "ok"
	// CheckStatusWarning indicates the check passed with a warning.
	CheckStatusWarning CheckStatus = "warning"
	// CheckStatusError indicates the check failed.
	CheckStatusError CheckStatus = "error"
)

// CheckResult represents the result of a single preflight check.
type CheckResult struct {
	// ID is a unique identifier for the check (e.g. "docker_daemon").
	ID string
	// Message is a human-readable description of the result.
	Message string
	// Status is the check status.
	Status CheckStatus
}

// --- Internal conversion helpers ---

func toInternalScenarios(ss []Scenario) []model.Scenario {
	result := make([]model.Scenario, len(ss))
	for i, s := range ss {
		result[i] = model.Scenario{
			Description: s.Description,
			Request:     model.ExecRequest{Command: s.Command, Args: s.Args},
			Expected:    model.OutcomeCategory(s.Expected),
		}
	}
	return result
}

func fromInternalScenario(s model.Scenario) Scenario {
	return Scenario{
		Description: s.Description,
		Command:     s.Request.Command,
		Args:        s.Request.Args,
		Expected:    OutcomeCategory(s.Expected),
	}
}

func fromInternalScenarioList(ss []model.Scenario) []Scenario {
	result := make([]Scenario, len(ss))
	for i, s := range ss {
		result[i] = fromInternalScenario(s)
	}
	return result
}

func fromInternalEnvironment(e model.Environment) Environment {
	return Environment{
		ID:           e.ID,
		Name:         e.Name,
		Engine:       EngineType(e.Engine),
		APIAddr:      e.APIAddr,
		AgentVersion: e.AgentVersion,
		CreatedAt:    e.CreatedAt,
	}
}

func fromInternalReport(r model.Report) Report {
	results := make([]ScenarioResult, len(r.Results))
	for i, res := range r.Results {
		results[i] = ScenarioResult{
			Scenario: fromInternalScenario(res.Scenario),
			Outcome: ExecOutcome{
				Category: OutcomeCategory(res.Outcome.Category),
				ExitCode: res.Outcome.ExitCode,
				Stdout:   res.Outcome.Stdout,
				Stderr:   res.Outcome.Stderr,
				Reason:   res.Outcome.Reason,
				RuleID:   res.Outcome.RuleID,
			},
			Passed: res.Passed,
		}
	}
	return Report{Results: results}
}

func fromInternalRun(r model.VerificationRun) VerificationRun {
	return VerificationRun{
		ID:            r.ID,
		EnvironmentID: r.EnvironmentID,
		Engine:        EngineType(r.Engine),
		AgentVersion:  r.AgentVersion,
		Workspace:     r.Workspace,
		Status:        RunStatus(r.Status),
		Total:         r.Total,
		Passed:        r.Passed,
		Failed:        r.Failed,
		Error:         r.Error,
		CreatedAt:     r.CreatedAt,
		FinishedAt:    r.FinishedAt,
	}
}

func fromInternalRunList(rs []model.VerificationRun) []VerificationRun {
	result := make([]VerificationRun, len(rs))
	for i, r := range rs {
		result[i] = fromInternalRun(r)
	}
	return result
}

func fromInternalRunResult(r model.RunScenarioResult) RunScenarioResult {
	return RunScenarioResult{
		RunID:       r.RunID,
		Position:    r.Position,
		Description: r.Description,
		Command:     r.Command,
		Expected:    OutcomeCategory(r.Expected),
		Actual:      OutcomeCategory(r.Actual),
		Passed:      r.Passed,
		Reason:      r.Reason,
	}
}

func fromInternalRunResultList(rs []model.RunScenarioResult) []RunScenarioResult {
	result := make([]RunScenarioResult, len(rs))
	for i, r := range rs {
		result[i] = fromInternalRunResult(r)
	}
	return result
}

func fromInternalCheckResults(rs []model.CheckResult) []CheckResult {
	result := make([]CheckResult, len(rs))
	for i, r := range rs {
		result[i] = CheckResult{
			ID:      r.ID,
			Message: r.Message,
			Status:  CheckStatus(r.Status),
		}
	}
	return result
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, model.ErrNotFound):
		return joinErrors(err, ErrNotFound)
	case errors.Is(err, model.ErrNotValid):
		return joinErrors(err, ErrNotValid)
	default:
		return err
	}
}

func joinErrors(original, sentinel error) error {
	return &mappedError{original: original, sentinel: sentinel}
}

type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool {
	return target == e.sentinel
}

func (e *mappedError) Unwrap() error { return e.original }
