// Package agentmock has mocks for the agent package.
package agentmock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/vetbox/internal/agent"
	"github.com/slok/vetbox/internal/model"
)

// MockGateway is a mock implementation of agent.Gateway.
type MockGateway struct {
	mock.Mock
}

// Exec satisfies agent.Gateway.
func (m *MockGateway) Exec(ctx context.Context, session model.Session, req model.ExecRequest) (string, error) {
	args := m.Called(ctx, session, req)
	return args.String(0), args.Error(1)
}

// MockResolver is a mock implementation of agent.Resolver.
type MockResolver struct {
	mock.Mock
}

// Resolve satisfies agent.Resolver.
func (m *MockResolver) Resolve(ctx context.Context, arch string) (*agent.Artifact, error) {
	args := m.Called(ctx, arch)
	artifact, _ := args.Get(0).(*agent.Artifact)
	return artifact, args.Error(1)
}
