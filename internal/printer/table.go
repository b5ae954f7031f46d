package printer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/slok/vetbox/internal/model"
)

// TablePrinter prints verification information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintReport prints a fresh verification report with per-scenario verdicts
// and a summary line.
func (t *TablePrinter) PrintReport(report model.Report) error {
	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "VERDICT\tSCENARIO\tEXPECTED\tACTUAL\tDETAIL")

	for _, res := range report.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			verdictWord(res.Passed),
			res.Scenario.Description,
			res.Scenario.Expected,
			res.Outcome.Category,
			outcomeDetail(res.Outcome),
		)
	}
	tw.Flush()

	fmt.Fprintf(t.writer, "\n%d scenarios: %d passed, %d failed\n", report.Total(), report.Passed(), report.Failed())

	return nil
}

// PrintRunList prints the run history in a table format.
func (t *TablePrinter) PrintRunList(runs []model.VerificationRun) error {
	if len(runs) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tENGINE\tAGENT\tSTATUS\tPASSED\tFAILED\tCREATED")

	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.Engine, r.AgentVersion, r.Status, r.Passed, r.Failed, TimeAgo(r.CreatedAt))
	}

	return nil
}

// PrintRunReport prints a recorded run with its per-scenario results.
func (t *TablePrinter) PrintRunReport(run model.VerificationRun, results []model.RunScenarioResult) error {
	fmt.Fprintf(t.writer, "Run:        %s\n", run.ID)
	fmt.Fprintf(t.writer, "Status:     %s\n", run.Status)
	fmt.Fprintf(t.writer, "Engine:     %s\n", run.Engine)
	if run.AgentVersion != "" {
		fmt.Fprintf(t.writer, "Agent:      %s\n", run.AgentVersion)
	}
	if run.Workspace != "" {
		fmt.Fprintf(t.writer, "Workspace:  %s\n", run.Workspace)
	}
	fmt.Fprintf(t.writer, "Created:    %s\n", FormatTimestamp(run.CreatedAt))
	if run.FinishedAt != nil {
		fmt.Fprintf(t.writer, "Finished:   %s\n", FormatTimestamp(*run.FinishedAt))
	}
	if run.Error != "" {
		fmt.Fprintf(t.writer, "Error:      %s\n", run.Error)
	}

	if len(results) == 0 {
		return nil
	}

	fmt.Fprintln(t.writer)

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERDICT\tSCENARIO\tCOMMAND\tEXPECTED\tACTUAL\tDETAIL")
	for _, res := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			verdictWord(res.Passed), res.Description, res.Command, res.Expected, res.Actual, res.Reason)
	}
	tw.Flush()

	fmt.Fprintf(t.writer, "\n%d scenarios: %d passed, %d failed\n", run.Total, run.Passed, run.Failed)

	return nil
}

// PrintCatalogue prints scenario catalogue entries in a table format.
func (t *TablePrinter) PrintCatalogue(scenarios []model.Scenario) error {
	if len(scenarios) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "#\tSCENARIO\tCOMMAND\tEXPECTED")

	for i, sc := range scenarios {
		command := sc.Request.Command
		if len(sc.Request.Args) > 0 {
			command += " " + strings.Join(sc.Request.Args, " ")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, sc.Description, command, sc.Expected)
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

func verdictWord(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}

// outcomeDetail picks the most telling detail of one outcome for a single
// table cell.
func outcomeDetail(outcome model.ExecOutcome) string {
	switch {
	case outcome.Category == model.OutcomeBlocked:
		detail := "rule: " + outcome.RuleID
		if outcome.Reason != "" {
			detail += " (" + outcome.Reason + ")"
		}
		return detail
	case outcome.Reason != "":
		return outcome.Reason
	case outcome.Stdout != "":
		return firstLine(outcome.Stdout)
	default:
		return ""
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
