// Package scenario runs diagnostic probe catalogues against a provisioned
// agent and collects per-probe verdicts.
package scenario

import (
	"context"
	"fmt"

	"github.com/slok/vetbox/internal/agent"
	"github.com/slok/vetbox/internal/log"
	"github.com/slok/vetbox/internal/model"
)

// RunnerConfig is the configuration for the scenario runner.
type RunnerConfig struct {
	// Gateway sends exec requests to the agent.
	Gateway agent.Gateway
	// Logger is the logger.
	Logger log.Logger
}

func (c *RunnerConfig) defaults() error {
	if c.Gateway == nil {
		return fmt.Errorf("exec gateway is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "scenario.Runner"})

	return nil
}

// Runner drives scenario catalogues: each scenario goes through the exec
// gateway, the raw response is classified and the verdict checked against
// the expectation. The runner collects everything: a transport failure, an
// unparseable response or a panic becomes an ERROR outcome for that entry
// and the run continues, so an N-scenario catalogue always produces N
// results in declaration order.
type Runner struct {
	gateway agent.Gateway
	logger  log.Logger
}

// NewRunner creates a new scenario runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runner{
		gateway: cfg.Gateway,
		logger:  cfg.Logger,
	}, nil
}

// Run runs all scenarios against the session and reports their verdicts.
func (r *Runner) Run(ctx context.Context, session model.Session, scenarios []model.Scenario) *model.Report {
	report := &model.Report{Results: make([]model.ScenarioResult, 0, len(scenarios))}

	for i, sc := range scenarios {
		r.logger.Infof("[%d/%d] %s", i+1, len(scenarios), sc.Description)

		outcome := r.runOne(ctx, session, sc)
		passed := outcome.Category == sc.Expected
		if !passed {
			r.logger.Warningf("Scenario %q failed: expected %s, got %s (%s)",
				sc.Description, sc.Expected, outcome.Category, outcome.Reason)
		}

		report.Results = append(report.Results, model.ScenarioResult{
			Scenario: sc,
			Outcome:  outcome,
			Passed:   passed,
		})
	}

	return report
}

// runOne never lets a single scenario abort the catalogue: failures and
// panics become ERROR outcomes.
func (r *Runner) runOne(ctx context.Context, session model.Session, sc model.Scenario) (outcome model.ExecOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			outcome = model.ExecOutcome{
				Category: model.OutcomeError,
				Reason:   fmt.Sprintf("scenario panicked: %v", rec),
			}
		}
	}()

	raw, err := r.gateway.Exec(ctx, session, sc.Request)
	if err != nil {
		return model.ExecOutcome{
			Category: model.OutcomeError,
			Reason:   fmt.Sprintf("exec transport failed: %v", err),
		}
	}

	return agent.Classify(raw)
}
