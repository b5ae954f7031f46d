package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/slok/vetbox/internal/log"
	"github.com/slok/vetbox/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.Repository.
type Repository struct {
	runs    map[string]model.VerificationRun
	results map[string][]model.RunScenarioResult
	mu      sync.RWMutex
	logger  log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		runs:    make(map[string]model.VerificationRun),
		results: make(map[string][]model.RunScenarioResult),
		logger:  cfg.Logger,
	}, nil
}

// CreateRun creates a new verification run in the repository.
func (r *Repository) CreateRun(ctx context.Context, run model.VerificationRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}

	if _, ok := r.runs[run.ID]; ok {
		return fmt.Errorf("run with id %s: %w", run.ID, model.ErrAlreadyExists)
	}

	r.runs[run.ID] = run
	r.logger.Debugf("Created run in repository: %s", run.ID)

	return nil
}

// GetRun retrieves a verification run by ID.
func (r *Repository) GetRun(ctx context.Context, id string) (*model.VerificationRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, model.ErrNotFound)
	}

	// Return a copy
	runCopy := run
	return &runCopy, nil
}

// ListRuns returns all verification runs, newest first.
func (r *Repository) ListRuns(ctx context.Context) ([]model.VerificationRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]model.VerificationRun, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, run)
	}

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].ID > runs[j].ID
	})

	return runs, nil
}

// UpdateRun updates an existing verification run.
func (r *Repository) UpdateRun(ctx context.Context, run model.VerificationRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}

	if _, ok := r.runs[run.ID]; !ok {
		return fmt.Errorf("run %s: %w", run.ID, model.ErrNotFound)
	}

	r.runs[run.ID] = run
	r.logger.Debugf("Updated run in repository: %s", run.ID)

	return nil
}

// DeleteRun deletes a verification run and its stored results.
func (r *Repository) DeleteRun(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[id]; !ok {
		return fmt.Errorf("run %s: %w", id, model.ErrNotFound)
	}

	delete(r.runs, id)
	delete(r.results, id)
	r.logger.Debugf("Deleted run from repository: %s", id)

	return nil
}

// CreateRunResults stores the per-scenario results of a verification run.
func (r *Repository) CreateRunResults(ctx context.Context, results []model.RunScenarioResult) error {
	if len(results) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	type resultKey struct {
		runID    string
		position int
	}
	seen := map[resultKey]bool{}
	for _, res := range results {
		if _, ok := r.runs[res.RunID]; !ok {
			return fmt.Errorf("run %s: %w", res.RunID, model.ErrNotFound)
		}

		key := resultKey{runID: res.RunID, position: res.Position}
		if seen[key] {
			return fmt.Errorf("result %d for run %s: %w", res.Position, res.RunID, model.ErrAlreadyExists)
		}
		seen[key] = true

		for _, existing := range r.results[res.RunID] {
			if existing.Position == res.Position {
				return fmt.Errorf("result %d for run %s: %w", res.Position, res.RunID, model.ErrAlreadyExists)
			}
		}
	}

	for _, res := range results {
		r.results[res.RunID] = append(r.results[res.RunID], res)
	}

	r.logger.Debugf("Stored %d results for run %s", len(results), results[0].RunID)

	return nil
}

// GetRunResults returns the stored results of a run in catalogue order.
// A run without stored results yields an empty slice.
func (r *Repository) GetRunResults(ctx context.Context, runID string) ([]model.RunScenarioResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Return a copy
	results := make([]model.RunScenarioResult, len(r.results[runID]))
	copy(results, r.results[runID])

	sort.Slice(results, func(i, j int) bool { return results[i].Position < results[j].Position })

	return results, nil
}
