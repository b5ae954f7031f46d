package model

import (
	"fmt"
	"time"
)

// EngineType identifies the compute engine implementation.
type EngineType string

const (
	// EngineDocker runs environments as Docker containers.
	EngineDocker EngineType = "docker"
	// EngineSSH provisions onto an existing host reachable over SSH.
	EngineSSH EngineType = "ssh"
	// EngineFake is an in-memory simulation (no real infrastructure).
	EngineFake EngineType = "fake"
)

// Environment is the handle to an acquired isolated compute instance.
//
// The provisioning flow owns the handle for its lifetime and releases it
// exactly once; teardown is idempotent so late or repeated releases are safe.
type Environment struct {
	// ID is the unique identifier (ULID) assigned at acquire time.
	ID string
	// Name is the human-friendly name.
	Name string
	// Engine is the compute engine that owns the instance.
	Engine EngineType
	// APIAddr is the host-reachable "host:port" of the agent control API.
	// Empty when the orchestrator has no direct network line of sight into
	// the environment; the script transport is used in that case.
	APIAddr string
	// AgentVersion is the release tag or source reference of the installed
	// agent. Set by provisioning, empty until the agent is installed.
	AgentVersion string
	// CreatedAt is when the instance was acquired.
	CreatedAt time.Time
}

// EnvironmentConfig is the static configuration used to acquire a compute instance.
type EnvironmentConfig struct {
	// Name is the environment name.
	Name string
	// Image is the base container image (docker engine only).
	Image string
	// Arch is the target architecture ("amd64" or "arm64").
	Arch string
	// Env is seeded into the instance process environment at acquire time.
	Env map[string]string
	// PublishAgentPort asks the engine to expose the agent API port on the
	// host, giving the orchestrator a direct line of sight into the agent.
	PublishAgentPort bool
}

// Validate checks the environment configuration is correct.
func (c EnvironmentConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required: %w", ErrNotValid)
	}

	switch c.Arch {
	case "", "amd64", "arm64":
	default:
		return fmt.Errorf("unsupported architecture %q: %w", c.Arch, ErrNotValid)
	}

	return nil
}

// ProvisionOptions is the immutable configuration for one provisioning flow.
// It is supplied once at provision time and never mutated afterwards.
type ProvisionOptions struct {
	// AgentSource is where the agent binary comes from: a GitHub repository
	// ("owner/repo"), a local binary ("file:/path/to/agent"), or a direct
	// artifact URL ("https://...").
	AgentSource string
	// Arch is the target architecture of the agent release.
	Arch string
	// Workspace is the directory inside the environment that agent sessions
	// are rooted at.
	Workspace string
	// NetworkAllowRules are extra hosts appended to the agent network policy
	// allow list.
	NetworkAllowRules []string
	// ExtraEnv is seeded into the environment process environment before the
	// agent starts, so the agent inherits it.
	ExtraEnv map[string]string
	// Image is the base container image (docker engine only).
	Image string
	// DirectAPI exposes the agent API to the orchestrator host and makes the
	// agent listen beyond loopback, so verification can use the direct HTTP
	// transport instead of the in-environment script transport.
	DirectAPI bool
}

// Validate checks the provision options are correct.
func (o ProvisionOptions) Validate() error {
	if o.AgentSource == "" {
		return fmt.Errorf("agent source is required: %w", ErrNotValid)
	}

	switch o.Arch {
	case "amd64", "arm64":
	default:
		return fmt.Errorf("unsupported architecture %q: %w", o.Arch, ErrNotValid)
	}

	if o.Workspace == "" {
		return fmt.Errorf("workspace is required: %w", ErrNotValid)
	}

	return nil
}
