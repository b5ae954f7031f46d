// Package remove releases kept environments and deletes run history
// records.
package remove

import (
	"context"
	"errors"
	"fmt"

	"github.com/slok/vetbox/internal/compute"
	"github.com/slok/vetbox/internal/log"
	"github.com/slok/vetbox/internal/model"
	"github.com/slok/vetbox/internal/storage"
)

// ServiceConfig is the configuration for the remove service.
type ServiceConfig struct {
	Engine     compute.Engine
	Repository storage.Repository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Engine == nil {
		return fmt.Errorf("engine is required")
	}
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Remove"})
	return nil
}

// Service removes environments and run records.
type Service struct {
	engine compute.Engine
	repo   storage.Repository
	logger log.Logger
}

// NewService creates a new remove service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		engine: cfg.Engine,
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request contains the parameters for a removal. At least one target is
// required; both may be set.
type Request struct {
	// EnvironmentID releases a kept environment. Releasing is idempotent:
	// an environment that is already gone is not an error.
	EnvironmentID string
	// RunID deletes a run record and its per-scenario results.
	RunID string
}

// Run removes the requested targets.
func (s *Service) Run(ctx context.Context, req Request) error {
	if req.EnvironmentID == "" && req.RunID == "" {
		return fmt.Errorf("an environment id or a run id is required: %w", model.ErrNotValid)
	}

	if req.EnvironmentID != "" {
		if err := s.engine.Remove(ctx, req.EnvironmentID); err != nil {
			return fmt.Errorf("could not remove environment: %w", err)
		}
		s.logger.Infof("Removed environment %s", req.EnvironmentID)
	}

	if req.RunID != "" {
		err := s.repo.DeleteRun(ctx, req.RunID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return fmt.Errorf("run %s: %w", req.RunID, model.ErrNotFound)
			}
			return fmt.Errorf("could not delete run: %w", err)
		}
		s.logger.Infof("Deleted run %s", req.RunID)
	}

	return nil
}
