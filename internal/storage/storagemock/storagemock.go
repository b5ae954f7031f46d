// Package storagemock has mocks for the storage package.
package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/vetbox/internal/model"
)

// MockRepository is a mock implementation of storage.Repository.
type MockRepository struct {
	mock.Mock
}

// CreateRun satisfies storage.Repository.
func (m *MockRepository) CreateRun(ctx context.Context, run model.VerificationRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

// GetRun satisfies storage.Repository.
func (m *MockRepository) GetRun(ctx context.Context, id string) (*model.VerificationRun, error) {
	args := m.Called(ctx, id)
	run, _ := args.Get(0).(*model.VerificationRun)
	return run, args.Error(1)
}

// ListRuns satisfies storage.Repository.
func (m *MockRepository) ListRuns(ctx context.Context) ([]model.VerificationRun, error) {
	args := m.Called(ctx)
	runs, _ := args.Get(0).([]model.VerificationRun)
	return runs, args.Error(1)
}

// UpdateRun satisfies storage.Repository.
func (m *MockRepository) UpdateRun(ctx context.Context, run model.VerificationRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

// DeleteRun satisfies storage.Repository.
func (m *MockRepository) DeleteRun(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// CreateRunResults satisfies storage.Repository.
func (m *MockRepository) CreateRunResults(ctx context.Context, results []model.RunScenarioResult) error {
	args := m.Called(ctx, results)
	return args.Error(0)
}

// GetRunResults satisfies storage.Repository.
func (m *MockRepository) GetRunResults(ctx context.Context, runID string) ([]model.RunScenarioResult, error) {
	args := m.Called(ctx, runID)
	results, _ := args.Get(0).([]model.RunScenarioResult)
	return results, args.Error(1)
}
