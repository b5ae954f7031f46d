// Package run implements the provision-and-verify flow: it provisions an
// ephemeral environment, verifies the agent controls inside it, records the
// run and releases the environment.
package run

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/vetbox/internal/app/verify"
	"github.com/slok/vetbox/internal/log"
	"github.com/slok/vetbox/internal/model"
	"github.com/slok/vetbox/internal/storage"
)

// Provisioner brings an environment from nonexistent to agent-ready and
// releases it. Teardown never fails, release problems stay internal.
type Provisioner interface {
	Provision(ctx context.Context, opts model.ProvisionOptions) (*model.Environment, error)
	Teardown(ctx context.Context, environmentID string)
}

// Verifier runs a scenario catalogue against a provisioned environment.
type Verifier interface {
	Run(ctx context.Context, req verify.Request) (*model.Report, error)
}

// ServiceConfig is the configuration for the run service.
type ServiceConfig struct {
	Provisioner Provisioner
	Verifier    Verifier
	Repository  storage.Repository
	Logger      log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Provisioner == nil {
		return fmt.Errorf("provisioner is required")
	}
	if c.Verifier == nil {
		return fmt.Errorf("verifier is required")
	}
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Run"})
	return nil
}

// Service owns one provision-and-verify execution end to end. The
// environment handle never leaves the service: whatever happens after the
// acquire (verification errors included), the environment is released
// exactly once unless the caller explicitly asks to keep it.
type Service struct {
	provisioner Provisioner
	verifier    Verifier
	repo        storage.Repository
	logger      log.Logger
}

// NewService creates a new run service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		provisioner: cfg.Provisioner,
		verifier:    cfg.Verifier,
		repo:        cfg.Repository,
		logger:      cfg.Logger,
	}, nil
}

// Request contains the parameters for one provision-and-verify run.
type Request struct {
	// Options configure provisioning.
	Options model.ProvisionOptions
	// Scenarios is the probe catalogue, in declaration order.
	Scenarios []model.Scenario
	// Keep leaves the environment running after verification, for manual
	// inspection. The environment must then be released with the remove
	// service.
	Keep bool
}

// Response is the result of one provision-and-verify run.
type Response struct {
	// Run is the persisted run record, in its final state.
	Run model.VerificationRun
	// Report carries the ordered per-scenario verdicts. Nil when the run
	// aborted before verification.
	Report *model.Report
	// Environment is the environment the run executed against. Only set
	// when the request asked to keep it.
	Environment *model.Environment
}

// Run provisions an environment, verifies it and records the run.
//
// Provisioning failures abort the run (no diagnostics can proceed without a
// running agent) and are recorded as errored runs. Scenario failures never
// abort: they surface as failed verdicts in the report, and deciding what a
// failed verdict means (e.g. a non-zero process exit) is the caller's call.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	if err := req.Options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid provision options: %w", err)
	}
	if len(req.Scenarios) == 0 {
		return nil, fmt.Errorf("scenario catalogue is empty: %w", model.ErrNotValid)
	}

	run := model.VerificationRun{
		ID:        ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
		Workspace: req.Options.Workspace,
		Status:    model.RunStatusRunning,
		CreatedAt: time.Now().UTC(),
	}

	environment, err := s.provisioner.Provision(ctx, req.Options)
	if err != nil {
		s.recordAbort(ctx, run, err)
		return nil, fmt.Errorf("could not provision environment: %w", err)
	}

	keep := false
	defer func() {
		if !keep {
			s.provisioner.Teardown(ctx, environment.ID)
		}
	}()

	run.EnvironmentID = environment.ID
	run.Engine = environment.Engine
	run.AgentVersion = environment.AgentVersion
	if err := s.repo.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("could not record run: %w", err)
	}

	report, err := s.verifier.Run(ctx, verify.Request{
		Environment: environment,
		Workspace:   req.Options.Workspace,
		Scenarios:   req.Scenarios,
	})
	if err != nil {
		s.finishRun(ctx, run, model.RunStatusError, nil, err)
		return nil, fmt.Errorf("could not verify environment: %w", err)
	}

	status := model.RunStatusPassed
	if !report.Ok() {
		status = model.RunStatusFailed
	}
	run = s.finishRun(ctx, run, status, report, nil)

	if err := s.repo.CreateRunResults(ctx, toRunResults(run.ID, report)); err != nil {
		return nil, fmt.Errorf("could not record run results: %w", err)
	}

	resp := &Response{Run: run, Report: report}
	if req.Keep {
		keep = true
		resp.Environment = environment
		s.logger.Infof("Keeping environment %s running, release it with the remove command", environment.ID)
	}

	return resp, nil
}

// recordAbort persists a run that failed before the environment existed.
// Recording is best effort: the provisioning error is what the caller needs
// to see.
func (s *Service) recordAbort(ctx context.Context, run model.VerificationRun, cause error) {
	now := time.Now().UTC()
	run.Status = model.RunStatusError
	run.Error = cause.Error()
	run.FinishedAt = &now

	if err := s.repo.CreateRun(ctx, run); err != nil {
		s.logger.Warningf("Could not record aborted run %s: %v", run.ID, err)
	}
}

func (s *Service) finishRun(ctx context.Context, run model.VerificationRun, status model.RunStatus, report *model.Report, cause error) model.VerificationRun {
	now := time.Now().UTC()
	run.Status = status
	run.FinishedAt = &now
	if report != nil {
		run.Total = report.Total()
		run.Passed = report.Passed()
		run.Failed = report.Failed()
	}
	if cause != nil {
		run.Error = cause.Error()
	}

	if err := s.repo.UpdateRun(ctx, run); err != nil {
		s.logger.Warningf("Could not update run %s: %v", run.ID, err)
	}

	return run
}

func toRunResults(runID string, report *model.Report) []model.RunScenarioResult {
	results := make([]model.RunScenarioResult, 0, len(report.Results))
	for i, res := range report.Results {
		command := res.Scenario.Request.Command
		for _, arg := range res.Scenario.Request.Args {
			command += " " + arg
		}

		results = append(results, model.RunScenarioResult{
			RunID:       runID,
			Position:    i,
			Description: res.Scenario.Description,
			Command:     command,
			Expected:    res.Scenario.Expected,
			Actual:      res.Outcome.Category,
			Passed:      res.Passed,
			Reason:      res.Outcome.Reason,
		})
	}

	return results
}
