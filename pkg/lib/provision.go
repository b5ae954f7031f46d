package lib

import (
	"context"
	"fmt"

	appprovision "github.com/slok/vetbox/internal/app/provision"
	"github.com/slok/vetbox/internal/model"
)

// ProvisionOpts configures environment provisioning.
//
// All fields are optional: an empty ProvisionOpts{} provisions from the
// default agent repository, for the host architecture, with the default
// workspace and image.
type ProvisionOpts struct {
	// AgentSource is where the agent binary comes from: a GitHub repository
	// ("owner/repo"), a local binary ("file:/path/to/agent"), or a direct
	// artifact URL ("https://..."). Default: the upstream agent repository.
	AgentSource string
	// Arch is the target architecture of the agent release ("amd64" or
	// "arm64"). Default: the host architecture.
	Arch string
	// Workspace is the directory agent sessions are rooted at inside the
	// environment. Default: "/workspace".
	Workspace string
	// AllowedHosts are extra hosts appended to the agent network policy
	// allow list.
	AllowedHosts []string
	// Env is seeded into the environment before the agent starts, so agent
	// sessions inherit it.
	Env map[string]string
	// Image is the base container image ([EngineDocker] only).
	Image string
	// DirectAPI publishes the agent API to the host so verification can use
	// direct HTTP instead of the in-environment transport.
	DirectAPI bool
}

func (o ProvisionOpts) toInternal() model.ProvisionOptions {
	return model.ProvisionOptions{
		AgentSource:       o.AgentSource,
		Arch:              o.Arch,
		Workspace:         o.Workspace,
		NetworkAllowRules: o.AllowedHosts,
		ExtraEnv:          o.Env,
		Image:             o.Image,
		DirectAPI:         o.DirectAPI,
	}
}

// Provision brings up an environment with a running, verified-ready agent
// inside it and returns its handle.
//
// The caller owns the environment and must release it with
// [Client.Teardown]. Use [Client.ProvisionAndVerify] for the full
// provision-verify-teardown flow in one call.
//
// Returns [ErrNotValid] if the options are invalid.
func (c *Client) Provision(ctx context.Context, opts ProvisionOpts) (*Environment, error) {
	provisionDefaults(&opts)

	provisioner, err := c.newProvisioner(opts.AgentSource)
	if err != nil {
		return nil, mapError(fmt.Errorf("could not create provisioner: %w", err))
	}

	svc, err := appprovision.NewService(appprovision.ServiceConfig{
		Provisioner: provisioner,
		Logger:      c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	environment, err := svc.Run(ctx, appprovision.Request{Options: opts.toInternal()})
	if err != nil {
		return nil, mapError(err)
	}

	publicEnv := fromInternalEnvironment(*environment)
	return &publicEnv, nil
}

// Teardown releases a provisioned environment.
//
// Releasing is idempotent: tearing down an environment that is already gone
// is not an error.
func (c *Client) Teardown(ctx context.Context, environmentID string) error {
	if environmentID == "" {
		return mapError(fmt.Errorf("environment id is required: %w", model.ErrNotValid))
	}

	if err := c.engine.Remove(ctx, environmentID); err != nil {
		return mapError(fmt.Errorf("could not remove environment: %w", err))
	}

	return nil
}
