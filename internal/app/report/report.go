// Package report retrieves one verification run with its per-scenario
// results.
package report

import (
	"context"
	"fmt"

	"github.com/slok/vetbox/internal/log"
	"github.com/slok/vetbox/internal/model"
	"github.com/slok/vetbox/internal/storage"
)

// ServiceConfig is the configuration for the report service.
type ServiceConfig struct {
	Repository storage.Repository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Report"})
	return nil
}

// Service retrieves recorded runs.
type Service struct {
	repo   storage.Repository
	logger log.Logger
}

// NewService creates a new report service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request contains the parameters for retrieving a run report.
type Request struct {
	// RunID is the run to retrieve.
	RunID string
}

// Response is one recorded run with its ordered per-scenario results.
type Response struct {
	Run     model.VerificationRun
	Results []model.RunScenarioResult
}

// Run retrieves a run and its results.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	if req.RunID == "" {
		return nil, fmt.Errorf("run id is required: %w", model.ErrNotValid)
	}

	run, err := s.repo.GetRun(ctx, req.RunID)
	if err != nil {
		return nil, fmt.Errorf("could not get run: %w", err)
	}

	results, err := s.repo.GetRunResults(ctx, req.RunID)
	if err != nil {
		return nil, fmt.Errorf("could not get run results: %w", err)
	}

	s.logger.Debugf("Retrieved run %s with %d results", run.ID, len(results))

	return &Response{Run: *run, Results: results}, nil
}
