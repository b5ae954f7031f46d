package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/vetbox/internal/app/remove"
	"github.com/slok/vetbox/internal/storage/sqlite"
)

type RemoveCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	engineFlags *engineFlags

	environmentID string
	runID         string
}

// NewRemoveCommand returns the rm command.
func NewRemoveCommand(rootCmd *RootCommand, app *kingpin.Application) *RemoveCommand {
	c := &RemoveCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("rm", "Release a kept environment and/or delete a recorded run.")
	c.engineFlags = registerEngineFlags(c.Cmd)
	c.Cmd.Flag("environment", "ID of the environment to release.").StringVar(&c.environmentID)
	c.Cmd.Flag("run", "ID of the run record to delete (with its results).").StringVar(&c.runID)

	return c
}

func (c RemoveCommand) Name() string { return c.Cmd.FullCommand() }

func (c RemoveCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.rootCmd.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}
	defer repo.Close()

	eng, err := c.engineFlags.newEngine(logger)
	if err != nil {
		return fmt.Errorf("could not create engine: %w", err)
	}

	svc, err := remove.NewService(remove.ServiceConfig{
		Engine:     eng,
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create remove service: %w", err)
	}

	err = svc.Run(ctx, remove.Request{
		EnvironmentID: c.environmentID,
		RunID:         c.runID,
	})
	if err != nil {
		return err
	}

	out := c.rootCmd.Stdout
	if c.environmentID != "" {
		fmt.Fprintf(out, "Environment %s removed.\n", c.environmentID)
	}
	if c.runID != "" {
		fmt.Fprintf(out, "Run %s deleted.\n", c.runID)
	}

	return nil
}
