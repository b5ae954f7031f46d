package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/vetbox/internal/app/verify"
	"github.com/slok/vetbox/internal/conventions"
	"github.com/slok/vetbox/internal/model"
)

type VerifyCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	engineFlags *engineFlags

	environmentID string
	apiAddr       string
	workspace     string
	catalogue     string
	output        string
}

// NewVerifyCommand returns the verify command.
func NewVerifyCommand(rootCmd *RootCommand, app *kingpin.Application) *VerifyCommand {
	c := &VerifyCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("verify", "Run the scenario catalogue against an already provisioned environment.")
	c.Cmd.Arg("environment", "ID of the provisioned environment.").Required().StringVar(&c.environmentID)
	c.engineFlags = registerEngineFlags(c.Cmd)
	c.Cmd.Flag("api-addr", "Host-reachable \"host:port\" of the agent API, when it was published with --direct-api.").StringVar(&c.apiAddr)
	c.Cmd.Flag("workspace", "Directory agent sessions are rooted at inside the environment.").Default(conventions.DefaultWorkspace).StringVar(&c.workspace)
	c.Cmd.Flag("catalogue", "Path to a YAML scenario catalogue (default: built-in battery).").StringVar(&c.catalogue)
	registerOutputFlag(c.Cmd, &c.output)

	return c
}

func (c VerifyCommand) Name() string { return c.Cmd.FullCommand() }

func (c VerifyCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	scenarios, err := loadCatalogue(ctx, c.catalogue, c.workspace)
	if err != nil {
		return err
	}

	eng, err := c.engineFlags.newEngine(logger)
	if err != nil {
		return fmt.Errorf("could not create engine: %w", err)
	}

	svc, err := verify.NewService(verify.ServiceConfig{
		Engine: eng,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create verify service: %w", err)
	}

	report, err := svc.Run(ctx, verify.Request{
		Environment: &model.Environment{
			ID:      c.environmentID,
			Engine:  c.engineFlags.engineType(),
			APIAddr: c.apiAddr,
		},
		Workspace: c.workspace,
		Scenarios: scenarios,
	})
	if err != nil {
		return err
	}

	p := newPrinter(c.output, c.rootCmd.Stdout)
	if err := p.PrintReport(*report); err != nil {
		return fmt.Errorf("could not print report: %w", err)
	}

	if !report.Ok() {
		return fmt.Errorf("verification failed: %d of %d scenarios did not behave as expected", report.Failed(), report.Total())
	}

	return nil
}
