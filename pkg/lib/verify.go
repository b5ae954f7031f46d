package lib

import (
	"context"
	"fmt"

	appverify "github.com/slok/vetbox/internal/app/verify"
	"github.com/slok/vetbox/internal/model"
	"github.com/slok/vetbox/internal/scenario"
)

// VerifyOpts configures verification of an already provisioned environment.
//
// Pass nil to [Client.Verify] to run the built-in probe battery through the
// in-environment transport.
type VerifyOpts struct {
	// APIAddr is the host-reachable "host:port" of the agent API. When set,
	// verification talks to the agent over direct HTTP instead of the
	// in-environment transport. Environments provisioned with DirectAPI
	// carry it in [Environment].APIAddr.
	APIAddr string
	// Workspace is the directory agent sessions are rooted at.
	// Default: "/workspace".
	Workspace string
	// Scenarios is the probe catalogue to run, in order. Nil means the
	// built-in battery.
	Scenarios []Scenario
}

// Verify runs a scenario catalogue against a provisioned environment and
// returns the per-scenario verdicts.
//
// A failing verdict is not an error: inspect [Report.Ok] to decide what a
// failed scenario means for the caller. An error is returned only when the
// catalogue could not be run at all.
func (c *Client) Verify(ctx context.Context, environmentID string, opts *VerifyOpts) (*Report, error) {
	if opts == nil {
		opts = &VerifyOpts{}
	}

	scenarios := toInternalScenarios(opts.Scenarios)
	if len(scenarios) == 0 {
		scenarios = scenario.DefaultCatalogue(opts.Workspace)
	}

	svc, err := appverify.NewService(appverify.ServiceConfig{
		Engine: c.engine,
		Logger: c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	report, err := svc.Run(ctx, appverify.Request{
		Environment: &model.Environment{
			ID:      environmentID,
			Engine:  model.EngineType(c.engineType),
			APIAddr: opts.APIAddr,
		},
		Workspace: opts.Workspace,
		Scenarios: scenarios,
	})
	if err != nil {
		return nil, mapError(err)
	}

	publicReport := fromInternalReport(*report)
	return &publicReport, nil
}

// DefaultCatalogue returns the built-in probe battery rooted at the given
// workspace (empty means the default workspace).
//
// It exercises each agent control surface at least once: plain execution,
// filesystem writes and deletes, protected reads, privilege escalation,
// network egress both ways and environment redaction. Use it as a starting
// point and append custom probes before passing the result to
// [Client.Verify] or [Client.ProvisionAndVerify].
func DefaultCatalogue(workspace string) []Scenario {
	return fromInternalScenarioList(scenario.DefaultCatalogue(workspace))
}
