package commands

import (
	"io"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/vetbox/internal/printer"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

func registerOutputFlag(cmd *kingpin.CmdClause, target *string) {
	cmd.Flag("output", "Output format (table, json).").Short('o').Default(outputTable).EnumVar(target, outputTable, outputJSON)
}

func newPrinter(output string, w io.Writer) printer.Printer {
	if output == outputJSON {
		return printer.NewJSONPrinter(w)
	}
	return printer.NewTablePrinter(w)
}
