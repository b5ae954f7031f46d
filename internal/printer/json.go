package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/vetbox/internal/model"
)

// JSONPrinter prints verification information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// reportOutput represents a fresh verification report.
type reportOutput struct {
	Total   int                    `json:"total"`
	Passed  int                    `json:"passed"`
	Failed  int                    `json:"failed"`
	Ok      bool                   `json:"ok"`
	Results []scenarioResultOutput `json:"results"`
}

type scenarioResultOutput struct {
	Description string   `json:"description"`
	Command     string   `json:"command"`
	Args        []string `json:"args,omitempty"`
	Expected    string   `json:"expected"`
	Actual      string   `json:"actual"`
	Passed      bool     `json:"passed"`
	ExitCode    *int     `json:"exit_code"`
	Stdout      string   `json:"stdout,omitempty"`
	Stderr      string   `json:"stderr,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	RuleID      string   `json:"rule_id,omitempty"`
}

// runItem represents a run in the run history list output.
type runItem struct {
	ID           string     `json:"id"`
	Engine       string     `json:"engine"`
	AgentVersion string     `json:"agent_version,omitempty"`
	Status       string     `json:"status"`
	Total        int        `json:"total"`
	Passed       int        `json:"passed"`
	Failed       int        `json:"failed"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	FinishedAt   *time.Time `json:"finished_at"`
}

// runReportOutput represents a recorded run with its results.
type runReportOutput struct {
	Run     runItem           `json:"run"`
	Results []runResultOutput `json:"results"`
}

type runResultOutput struct {
	Position    int    `json:"position"`
	Description string `json:"description"`
	Command     string `json:"command"`
	Expected    string `json:"expected"`
	Actual      string `json:"actual"`
	Passed      bool   `json:"passed"`
	Reason      string `json:"reason,omitempty"`
}

// catalogueItem represents a scenario catalogue entry.
type catalogueItem struct {
	Description string   `json:"description"`
	Command     string   `json:"command"`
	Args        []string `json:"args,omitempty"`
	Expected    string   `json:"expected"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintReport prints a fresh verification report in JSON format.
func (j *JSONPrinter) PrintReport(report model.Report) error {
	output := reportOutput{
		Total:   report.Total(),
		Passed:  report.Passed(),
		Failed:  report.Failed(),
		Ok:      report.Ok(),
		Results: make([]scenarioResultOutput, 0, len(report.Results)),
	}

	for _, res := range report.Results {
		output.Results = append(output.Results, scenarioResultOutput{
			Description: res.Scenario.Description,
			Command:     res.Scenario.Request.Command,
			Args:        res.Scenario.Request.Args,
			Expected:    string(res.Scenario.Expected),
			Actual:      string(res.Outcome.Category),
			Passed:      res.Passed,
			ExitCode:    res.Outcome.ExitCode,
			Stdout:      res.Outcome.Stdout,
			Stderr:      res.Outcome.Stderr,
			Reason:      res.Outcome.Reason,
			RuleID:      res.Outcome.RuleID,
		})
	}

	return j.encode(output)
}

// PrintRunList prints the run history in JSON format.
func (j *JSONPrinter) PrintRunList(runs []model.VerificationRun) error {
	items := make([]runItem, 0, len(runs))
	for _, r := range runs {
		items = append(items, toRunItem(r))
	}

	return j.encode(items)
}

// PrintRunReport prints a recorded run with its results in JSON format.
func (j *JSONPrinter) PrintRunReport(run model.VerificationRun, results []model.RunScenarioResult) error {
	output := runReportOutput{
		Run:     toRunItem(run),
		Results: make([]runResultOutput, 0, len(results)),
	}

	for _, res := range results {
		output.Results = append(output.Results, runResultOutput{
			Position:    res.Position,
			Description: res.Description,
			Command:     res.Command,
			Expected:    string(res.Expected),
			Actual:      string(res.Actual),
			Passed:      res.Passed,
			Reason:      res.Reason,
		})
	}

	return j.encode(output)
}

// PrintCatalogue prints scenario catalogue entries in JSON format.
func (j *JSONPrinter) PrintCatalogue(scenarios []model.Scenario) error {
	items := make([]catalogueItem, 0, len(scenarios))
	for _, sc := range scenarios {
		items = append(items, catalogueItem{
			Description: sc.Description,
			Command:     sc.Request.Command,
			Args:        sc.Request.Args,
			Expected:    string(sc.Expected),
		})
	}

	return j.encode(items)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func toRunItem(r model.VerificationRun) runItem {
	item := runItem{
		ID:           r.ID,
		Engine:       string(r.Engine),
		AgentVersion: r.AgentVersion,
		Status:       string(r.Status),
		Total:        r.Total,
		Passed:       r.Passed,
		Failed:       r.Failed,
		Error:        r.Error,
		CreatedAt:    r.CreatedAt.UTC(),
	}
	if r.FinishedAt != nil {
		utcTime := r.FinishedAt.UTC()
		item.FinishedAt = &utcTime
	}

	return item
}
