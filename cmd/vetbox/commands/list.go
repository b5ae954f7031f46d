package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/vetbox/internal/app/list"
	"github.com/slok/vetbox/internal/model"
	"github.com/slok/vetbox/internal/storage/sqlite"
)

type ListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	status string
	output string
}

// NewListCommand returns the list command.
func NewListCommand(rootCmd *RootCommand, app *kingpin.Application) *ListCommand {
	c := &ListCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("list", "List recorded verification runs.").Alias("ls")
	c.Cmd.Flag("status", "Only show runs with this status.").EnumVar(&c.status,
		string(model.RunStatusRunning), string(model.RunStatusPassed), string(model.RunStatusFailed), string(model.RunStatusError))
	registerOutputFlag(c.Cmd, &c.output)

	return c
}

func (c ListCommand) Name() string { return c.Cmd.FullCommand() }

func (c ListCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.rootCmd.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}
	defer repo.Close()

	svc, err := list.NewService(list.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create list service: %w", err)
	}

	req := list.Request{}
	if c.status != "" {
		status := model.RunStatus(c.status)
		req.StatusFilter = &status
	}

	runs, err := svc.Run(ctx, req)
	if err != nil {
		return err
	}

	p := newPrinter(c.output, c.rootCmd.Stdout)
	if err := p.PrintRunList(runs); err != nil {
		return fmt.Errorf("could not print runs: %w", err)
	}

	return nil
}
