package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/vetbox/internal/app/report"
	"github.com/slok/vetbox/internal/storage/sqlite"
)

type ReportCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	runID  string
	output string
}

// NewReportCommand returns the report command.
func NewReportCommand(rootCmd *RootCommand, app *kingpin.Application) *ReportCommand {
	c := &ReportCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("report", "Show the per-scenario results of a recorded run.")
	c.Cmd.Arg("run-id", "ID of the run.").Required().StringVar(&c.runID)
	registerOutputFlag(c.Cmd, &c.output)

	return c
}

func (c ReportCommand) Name() string { return c.Cmd.FullCommand() }

func (c ReportCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.rootCmd.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}
	defer repo.Close()

	svc, err := report.NewService(report.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create report service: %w", err)
	}

	resp, err := svc.Run(ctx, report.Request{RunID: c.runID})
	if err != nil {
		return err
	}

	p := newPrinter(c.output, c.rootCmd.Stdout)
	if err := p.PrintRunReport(resp.Run, resp.Results); err != nil {
		return fmt.Errorf("could not print run report: %w", err)
	}

	return nil
}
