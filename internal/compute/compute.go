package compute

import (
	"context"

	"github.com/slok/vetbox/internal/model"
)

// Engine is the interface for environment lifecycle management. Engines own
// the raw compute (containers, remote hosts) and know nothing about the agent
// installed on top of it.
type Engine interface {
	// Check performs preflight checks and returns the results.
	// Checks verify that the engine has all required dependencies and permissions.
	Check(ctx context.Context) []model.CheckResult

	// Create acquires a new isolated environment.
	Create(ctx context.Context, cfg model.EnvironmentConfig) (*model.Environment, error)

	// Remove releases an environment. It is idempotent: removing an
	// environment that is already gone returns nil.
	Remove(ctx context.Context, id string) error

	// Exec executes a command inside the environment.
	Exec(ctx context.Context, id string, command []string, opts model.ExecOpts) (*model.ExecResult, error)

	// CopyTo copies a file from the local host into the environment.
	CopyTo(ctx context.Context, id string, srcLocal string, dstRemote string) error
}
