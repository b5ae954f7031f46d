// Package computemock has mocks for the compute package.
package computemock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/vetbox/internal/model"
)

// MockEngine is a mock implementation of compute.Engine.
type MockEngine struct {
	mock.Mock
}

// Check satisfies compute.Engine.
func (m *MockEngine) Check(ctx context.Context) []model.CheckResult {
	args := m.Called(ctx)
	res, _ := args.Get(0).([]model.CheckResult)
	return res
}

// Create satisfies compute.Engine.
func (m *MockEngine) Create(ctx context.Context, cfg model.EnvironmentConfig) (*model.Environment, error) {
	args := m.Called(ctx, cfg)
	env, _ := args.Get(0).(*model.Environment)
	return env, args.Error(1)
}

// Remove satisfies compute.Engine.
func (m *MockEngine) Remove(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Exec satisfies compute.Engine.
func (m *MockEngine) Exec(ctx context.Context, id string, command []string, opts model.ExecOpts) (*model.ExecResult, error) {
	args := m.Called(ctx, id, command, opts)
	res, _ := args.Get(0).(*model.ExecResult)
	return res, args.Error(1)
}

// CopyTo satisfies compute.Engine.
func (m *MockEngine) CopyTo(ctx context.Context, id string, srcLocal string, dstRemote string) error {
	args := m.Called(ctx, id, srcLocal, dstRemote)
	return args.Error(0)
}
