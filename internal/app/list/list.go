// Package list exposes the verification run history.
package list

import (
	"context"
	"fmt"
	"sort"

	"github.com/slok/vetbox/internal/log"
	"github.com/slok/vetbox/internal/model"
	"github.com/slok/vetbox/internal/storage"
)

// ServiceConfig is the configuration for the list service.
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.List"})
	return nil
}

// Service lists verification runs.
type Service struct {
	repo   storage.Repository
	logger log.Logger
}

// NewService creates a new list service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request contains the parameters for listing runs.
type Request struct {
	// StatusFilter keeps only runs with this status when set.
	StatusFilter *model.RunStatus
}

// Run lists verification runs, newest first.
func (s *Service) Run(ctx context.Context, req Request) ([]model.VerificationRun, error) {
	runs, err := s.repo.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list runs: %w", err)
	}

	if req.StatusFilter != nil {
		filtered := runs[:0]
		for _, run := range runs {
			if run.Status == *req.StatusFilter {
				filtered = append(filtered, run)
			}
		}
		runs = filtered
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })

	s.logger.Debugf("Listed %d runs", len(runs))

	return runs, nil
}
