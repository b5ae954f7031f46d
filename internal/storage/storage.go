package storage

import (
	"context"

	"github.com/slok/vetbox/internal/model"
)

// Repository is the interface for verification run persistence.
type Repository interface {
	CreateRun(ctx context.Context, run model.VerificationRun) error
	GetRun(ctx context.Context, id string) (*model.VerificationRun, error)
	ListRuns(ctx context.Context) ([]model.VerificationRun, error)
	UpdateRun(ctx context.Context, run model.VerificationRun) error
	DeleteRun(ctx context.Context, id string) error
	CreateRunResults(ctx context.Context, results []model.RunScenarioResult) error
	GetRunResults(ctx context.Context, runID string) ([]model.RunScenarioResult, error)
}
