// Package verify runs diagnostic scenario catalogues against an already
// provisioned environment with a running agent inside it.
package verify

import (
	"context"
	"fmt"

	"github.com/slok/vetbox/internal/agent"
	"github.com/slok/vetbox/internal/compute"
	"github.com/slok/vetbox/internal/conventions"
	"github.com/slok/vetbox/internal/log"
	"github.com/slok/vetbox/internal/model"
	"github.com/slok/vetbox/internal/runner"
	"github.com/slok/vetbox/internal/scenario"
)

// ServiceConfig is the configuration for the verify service.
type ServiceConfig struct {
	Engine compute.Engine
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Engine == nil {
		return fmt.Errorf("engine is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Verify"})
	return nil
}

// Service verifies the agent controls of one environment: it creates an
// agent session, drives the scenario catalogue through the exec gateway and
// collects the verdicts.
type Service struct {
	engine compute.Engine
	logger log.Logger
}

// NewService creates a new verify service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		engine: cfg.Engine,
		logger: cfg.Logger,
	}, nil
}

// Request contains the parameters for one verification.
type Request struct {
	// Environment is the provisioned environment the agent runs in.
	Environment *model.Environment
	// Workspace is the directory agent sessions are rooted at. Defaults to
	// the conventional workspace.
	Workspace string
	// Scenarios is the probe catalogue to run, in declaration order.
	Scenarios []model.Scenario
}

// Run verifies the environment's agent controls against the catalogue.
//
// The transport is picked from the environment handle: when the engine
// published the agent API to the host the direct HTTP gateway is used,
// otherwise exec requests travel through the in-environment script
// transport. The choice happens here once, never per scenario.
func (s *Service) Run(ctx context.Context, req Request) (*model.Report, error) {
	if req.Environment == nil || req.Environment.ID == "" {
		return nil, fmt.Errorf("environment is required: %w", model.ErrNotValid)
	}
	if len(req.Scenarios) == 0 {
		return nil, fmt.Errorf("scenario catalogue is empty: %w", model.ErrNotValid)
	}
	if req.Workspace == "" {
		req.Workspace = conventions.DefaultWorkspace
	}

	accessor := runner.NewEnvironmentAccessor(s.engine, req.Environment.ID)
	run, err := runner.NewRunner(runner.RunnerConfig{Accessor: accessor, Logger: s.logger})
	if err != nil {
		return nil, fmt.Errorf("could not create environment runner: %w", err)
	}

	client, err := agent.NewClient(agent.ClientConfig{Runner: run, Logger: s.logger})
	if err != nil {
		return nil, fmt.Errorf("could not create agent client: %w", err)
	}

	session, err := client.CreateSession(ctx, req.Workspace)
	if err != nil {
		return nil, fmt.Errorf("could not create agent session: %w", err)
	}

	gateway, err := s.newGateway(req.Environment, run)
	if err != nil {
		return nil, fmt.Errorf("could not create exec gateway: %w", err)
	}

	scRunner, err := scenario.NewRunner(scenario.RunnerConfig{Gateway: gateway, Logger: s.logger})
	if err != nil {
		return nil, fmt.Errorf("could not create scenario runner: %w", err)
	}

	report := scRunner.Run(ctx, *session, req.Scenarios)

	s.logger.Infof("Verification finished: %d/%d scenarios passed", report.Passed(), report.Total())

	return report, nil
}

func (s *Service) newGateway(environment *model.Environment, run *runner.Runner) (agent.Gateway, error) {
	if environment.APIAddr != "" {
		return agent.NewHTTPGateway(agent.HTTPGatewayConfig{APIAddr: environment.APIAddr, Logger: s.logger})
	}

	return agent.NewScriptGateway(agent.ScriptGatewayConfig{Runner: run, Logger: s.logger})
}
