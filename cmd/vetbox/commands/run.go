package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/vetbox/internal/agent"
	apprun "github.com/slok/vetbox/internal/app/run"
	"github.com/slok/vetbox/internal/app/verify"
	"github.com/slok/vetbox/internal/bootstrap"
	"github.com/slok/vetbox/internal/storage/sqlite"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	engineFlags    *engineFlags
	provisionFlags *provisionFlags

	catalogue string
	keep      bool
	output    string
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Provision an environment, verify the agent controls inside it and tear it down.")
	c.engineFlags = registerEngineFlags(c.Cmd)
	c.provisionFlags = registerProvisionFlags(c.Cmd)
	c.Cmd.Flag("catalogue", "Path to a YAML scenario catalogue (default: built-in battery).").StringVar(&c.catalogue)
	c.Cmd.Flag("keep", "Keep the environment running after verification, release it later with rm.").BoolVar(&c.keep)
	registerOutputFlag(c.Cmd, &c.output)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	opts, err := c.provisionFlags.provisionOptions()
	if err != nil {
		return err
	}

	scenarios, err := loadCatalogue(ctx, c.catalogue, opts.Workspace)
	if err != nil {
		return err
	}

	// Initialize storage (SQLite).
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.rootCmd.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}
	defer repo.Close()

	// Initialize engine and the provisioning chain.
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

	verifier, err := verify.NewService(verify.ServiceConfig{
		Engine: eng,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create verify service: %w", err)
	}

	svc, err := apprun.NewService(apprun.ServiceConfig{
		Provisioner: provisioner,
		Verifier:    verifier,
		Repository:  repo,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("could not create run service: %w", err)
	}

	resp, err := svc.Run(ctx, apprun.Request{
		Options:   *opts,
		Scenarios: scenarios,
		Keep:      c.keep,
	})
	if err != nil {
		return err
	}

	p := newPrinter(c.output, c.rootCmd.Stdout)
	if err := p.PrintReport(*resp.Report); err != nil {
		return fmt.Errorf("could not print report: %w", err)
	}

	if resp.Environment != nil {
		fmt.Fprintf(c.rootCmd.Stdout, "\nEnvironment %s kept running (engine %s). Release it with: vetbox rm --environment %s\n",
			resp.Environment.ID, resp.Environment.Engine, resp.Environment.ID)
	}

	// Failed scenarios mean the agent controls are not doing what they
	// should, the process exit code has to say so.
	if !resp.Report.Ok() {
		return fmt.Errorf("verification failed: %d of %d scenarios did not behave as expected", resp.Report.Failed(), resp.Report.Total())
	}

	return nil
}
