package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/vetbox/internal/agent"
	appprovision "github.com/slok/vetbox/internal/app/provision"
	"github.com/slok/vetbox/internal/bootstrap"
)

type ProvisionCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	engineFlags    *engineFlags
	provisionFlags *provisionFlags
}

// NewProvisionCommand returns the provision command.
func NewProvisionCommand(rootCmd *RootCommand, app *kingpin.Application) *ProvisionCommand {
	c := &ProvisionCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("provision", "Provision an environment with a running agent and keep it for manual inspection or later verification.")
	c.engineFlags = registerEngineFlags(c.Cmd)
	c.provisionFlags = registerProvisionFlags(c.Cmd)

	return c
}

func (c ProvisionCommand) Name() string { return c.Cmd.FullCommand() }

func (c ProvisionCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	opts, err := c.provisionFlags.provisionOptions()
	if err != nil {
		return err
	}

	eng, err := c.engineFlags.newEngine(logger)
	if err != nil {
		return fmt.Errorf("could not create engine: %w", err)
	}

	resolver, err := agent.NewSourceResolver(agent.SourceResolverConfig{
		Source: c.engineFlags.resolverSource(opts.AgentSource),
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create agent resolver: %w", err)
	}

	provisioner, err := bootstrap.NewService(bootstrap.ServiceConfig{
		Engine:   eng,
		Resolver: resolver,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create provisioning service: %w", err)
	}

	svc, err := appprovision.NewService(appprovision.ServiceConfig{
		Provisioner: provisioner,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("could not create provision service: %w", err)
	}

	environment, err := svc.Run(ctx, appprovision.Request{Options: *opts})
	if err != nil {
		return err
	}

	out := c.rootCmd.Stdout
	fmt.Fprintf(out, "Environment %s provisioned (engine %s, agent %s).\n", environment.ID, environment.Engine, environment.AgentVersion)
	if environment.APIAddr != "" {
		fmt.Fprintf(out, "Agent API published at %s.\n", environment.APIAddr)
	}
	fmt.Fprintf(out, "Verify it with: vetbox verify %s --engine %s\n", environment.ID, c.engineFlags.engine)
	fmt.Fprintf(out, "Release it with: vetbox rm --environment %s --engine %s\n", environment.ID, c.engineFlags.engine)

	return nil
}
