// Package provision exposes standalone provisioning: bring up an
// environment with a running agent and hand the caller the handle, without
// running any verification.
package provision

import (
	"context"
	"fmt"

	"github.com/slok/vetbox/internal/log"
	"github.com/slok/vetbox/internal/model"
)

// Provisioner brings an environment from nonexistent to agent-ready.
type Provisioner interface {
	Provision(ctx context.Context, opts model.ProvisionOptions) (*model.Environment, error)
}

// ServiceConfig is the configuration for the provision service.
type ServiceConfig struct {
	Provisioner Provisioner
	Logger      log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Provisioner == nil {
		return fmt.Errorf("provisioner is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Provision"})
	return nil
}

// Service provisions environments on demand. The caller owns the returned
// handle and is responsible for releasing it (e.g. with the remove service).
type Service struct {
	provisioner Provisioner
	logger      log.Logger
}

// NewService creates a new provision service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		provisioner: cfg.Provisioner,
		logger:      cfg.Logger,
	}, nil
}

// Request contains the parameters for provisioning an environment.
type Request struct {
	// Options configure provisioning.
	Options model.ProvisionOptions
}

// Run provisions a new environment and returns its handle.
func (s *Service) Run(ctx context.Context, req Request) (*model.Environment, error) {
	if err := req.Options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid provision options: %w", err)
	}

	environment, err := s.provisioner.Provision(ctx, req.Options)
	if err != nil {
		return nil, fmt.Errorf("could not provision environment: %w", err)
	}

	s.logger.Infof("Provisioned environment %s (agent %s)", environment.ID, environment.AgentVersion)

	return environment, nil
}
