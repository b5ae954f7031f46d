package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/vetbox/internal/conventions"
)

type CatalogCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	file      string
	workspace string
	output    string
}

// NewCatalogCommand returns the catalog command.
func NewCatalogCommand(rootCmd *RootCommand, app *kingpin.Application) *CatalogCommand {
	c := &CatalogCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("catalog", "Show the scenario catalogue without running it.")
	c.Cmd.Flag("file", "Path to a YAML scenario catalogue (default: built-in battery).").Short('f').StringVar(&c.file)
	c.Cmd.Flag("workspace", "Workspace path probes reference.").Default(conventions.DefaultWorkspace).StringVar(&c.workspace)
	registerOutputFlag(c.Cmd, &c.output)

	return c
}

func (c CatalogCommand) Name() string { return c.Cmd.FullCommand() }

func (c CatalogCommand) Run(ctx context.Context) error {
	scenarios, err := loadCatalogue(ctx, c.file, c.workspace)
	if err != nil {
		return err
	}

	p := newPrinter(c.output, c.rootCmd.Stdout)
	if err := p.PrintCatalogue(scenarios); err != nil {
		return fmt.Errorf("could not print catalogue: %w", err)
	}

	return nil
}
