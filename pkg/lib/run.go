package lib

import (
	"context"
	"fmt"

	apprun "github.com/slok/vetbox/internal/app/run"
	appverify "github.com/slok/vetbox/internal/app/verify"
	"github.com/slok/vetbox/internal/scenario"
)

// RunOpts configures one provision-and-verify run.
type RunOpts struct {
	// Provision configures environment provisioning.
	Provision ProvisionOpts
	// Scenarios is the probe catalogue to run, in order. Nil means the
	// built-in battery.
	Scenarios []Scenario
	// Keep leaves the environment running after verification for manual
	// inspection. Release it with [Client.Teardown]. The environment handle
	// is returned in [RunResult].Environment.
	Keep bool
}

// RunResult is the outcome of one provision-and-verify run.
type RunResult struct {
	// Run is the recorded run, in its final state.
	Run VerificationRun
	// Report carries the ordered per-scenario verdicts.
	Report *Report
	// Environment is set only when the run was asked to keep it.
	Environment *Environment
}

// ProvisionAndVerify provisions an environment, runs the scenario catalogue
// against the agent inside it, records the run in the history database and
// tears the environment down (unless [RunOpts].Keep is set).
//
// Failing verdicts do not return an error: the run records
// [RunStatusFailed] and the report carries the detail. An error means the
// run could not complete (provisioning failed, the catalogue could not run).
//
// Returns [ErrNotValid] if the options are invalid.
func (c *Client) ProvisionAndVerify(ctx context.Context, opts RunOpts) (*RunResult, error) {
	provisionDefaults(&opts.Provision)

	scenarios := toInternalScenarios(opts.Scenarios)
	if len(scenarios) == 0 {
		scenarios = scenario.DefaultCatalogue(opts.Provision.Workspace)
	}

	provisioner, err := c.newProvisioner(opts.Provision.AgentSource)
	if err != nil {
		return nil, mapError(fmt.Errorf("could not create provisioner: %w", err))
	}

	verifier, err := appverify.NewService(appverify.ServiceConfig{
		Engine: c.engine,
		Logger: c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	svc, err := apprun.NewService(apprun.ServiceConfig{
		Provisioner: provisioner,
		Verifier:    verifier,
		Repository:  c.repo,
		Logger:      c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	resp, err := svc.Run(ctx, apprun.Request{
		Options:   opts.Provision.toInternal(),
		Scenarios: scenarios,
		Keep:      opts.Keep,
	})
	if err != nil {
		return nil, mapError(err)
	}

	result := &RunResult{Run: fromInternalRun(resp.Run)}
	if resp.Report != nil {
		report := fromInternalReport(*resp.Report)
		result.Report = &report
	}
	if resp.Environment != nil {
		environment := fromInternalEnvironment(*resp.Environment)
		result.Environment = &environment
	}

	return result, nil
}
