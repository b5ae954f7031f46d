package lib

import (
	"context"
	"fmt"

	applist "github.com/slok/vetbox/internal/app/list"
	appreport "github.com/slok/vetbox/internal/app/report"
	appremove "github.com/slok/vetbox/internal/app/remove"
	"github.com/slok/vetbox/internal/model"
)

// ListRunsOpts configures run listing.
//
// Pass nil to [Client.ListRuns] to list all recorded runs.
type ListRunsOpts struct {
	// Status filters runs by status. Nil means all statuses.
	Status *RunStatus
}

// RunReport is one recorded run with its ordered per-scenario results.
type RunReport struct {
	// Run is the recorded run.
	Run VerificationRun
	// Results are the per-scenario results, in catalogue order.
	Results []RunScenarioResult
}

// ListRuns returns the recorded verification runs, newest first.
func (c *Client) ListRuns(ctx context.Context, opts *ListRunsOpts) ([]VerificationRun, error) {
	svc, err := applist.NewService(applist.ServiceConfig{
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	req := applist.Request{}
	if opts != nil && opts.Status != nil {
		status := model.RunStatus(*opts.Status)
		req.StatusFilter = &status
	}

	runs, err := svc.Run(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalRunList(runs), nil
}

// GetReport returns one recorded run with its per-scenario results.
//
// Returns [ErrNotFound] if the run does not exist.
func (c *Client) GetReport(ctx context.Context, runID string) (*RunReport, error) {
	svc, err := appreport.NewService(appreport.ServiceConfig{
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	resp, err := svc.Run(ctx, appreport.Request{RunID: runID})
	if err != nil {
		return nil, mapError(err)
	}

	return &RunReport{
		Run:     fromInternalRun(resp.Run),
		Results: fromInternalRunResultList(resp.Results),
	}, nil
}

// DeleteRun deletes a recorded run and its per-scenario results.
//
// Returns [ErrNotFound] if the run does not exist.
func (c *Client) DeleteRun(ctx context.Context, runID string) error {
	svc, err := appremove.NewService(appremove.ServiceConfig{
		Engine:     c.engine,
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	err = svc.Run(ctx, appremove.Request{RunID: runID})
	if err != nil {
		return mapError(err)
	}

	return nil
}
