package printer

import "github.com/slok/vetbox/internal/model"

// Printer knows how to print verification information in different formats.
type Printer interface {
	PrintReport(report model.Report) error
	PrintRunList(runs []model.VerificationRun) error
	PrintRunReport(run model.VerificationRun, results []model.RunScenarioResult) error
	PrintCatalogue(scenarios []model.Scenario) error
	PrintMessage(msg string) error
}
