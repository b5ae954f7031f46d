package printer_test

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/vetbox/internal/model"
	"github.com/slok/vetbox/internal/printer"
)

func testReport() model.Report {
	exitZero := 0
	return model.Report{Results: []model.ScenarioResult{
		{
			Scenario: model.Scenario{
				Description: "plain command execution",
				Request:     model.ExecRequest{Command: "/bin/echo", Args: []string{"Hello"}},
				Expected:    model.OutcomeAllowed,
			},
			Outcome: model.ExecOutcome{Category: model.OutcomeAllowed, ExitCode: &exitZero, Stdout: "Hello"},
			Passed:  true,
		},
		{
			Scenario: model.Scenario{
				Description: "privilege escalation",
				Request:     model.ExecRequest{Command: "sudo", Args: []string{"whoami"}},
				Expected:    model.OutcomeBlocked,
			},
			Outcome: model.ExecOutcome{Category: model.OutcomeError, Reason: "no response"},
			Passed:  false,
		},
	}}
}

func TestTablePrinterPrintReport(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintReport(testReport())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(out, "VERDICT")
	assert.Contains(out, "PASS")
	assert.Contains(out, "FAIL")
	assert.Contains(out, "plain command execution")
	assert.Contains(out, "no response")
	assert.Contains(out, "2 scenarios: 1 passed, 1 failed")
}

func TestTablePrinterPrintRunList(t *testing.T) {
	assert := assert.New(t)

	runs := []model.VerificationRun{
		{
			ID:           "01HRUNAAAAAAAAAAAAAAAAAAAA",
			Engine:       model.EngineDocker,
			AgentVersion: "v1.2.3",
			Status:       model.RunStatusPassed,
			Total:        8, Passed: 8,
			CreatedAt: time.Now().Add(-2 * time.Minute),
		},
	}

	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintRunList(runs)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(out, "ID")
	assert.Contains(out, "01HRUNAAAAAAAAAAAAAAAAAAAA")
	assert.Contains(out, "docker")
	assert.Contains(out, "v1.2.3")
	assert.Contains(out, "passed")
	assert.Contains(out, "2 minutes ago (UTC)")
}

func TestTablePrinterPrintRunListEmpty(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintRunList(nil)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestTablePrinterPrintRunReport(t *testing.T) {
	assert := assert.New(t)

	finished := time.Date(2026, 8, 30, 10, 5, 0, 0, time.UTC)
	run := model.VerificationRun{
		ID:           "01HRUNAAAAAAAAAAAAAAAAAAAA",
		Engine:       model.EngineFake,
		AgentVersion: "v1.2.3",
		Workspace:    "/workspace",
		Status:       model.RunStatusFailed,
		Total:        1, Failed: 1,
		CreatedAt:  time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		FinishedAt: &finished,
	}
	results := []model.RunScenarioResult{
		{RunID: run.ID, Position: 0, Description: "privilege escalation", Command: "sudo whoami", Expected: model.OutcomeBlocked, Actual: model.OutcomeError, Reason: "no response"},
	}

	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintRunReport(run, results)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(out, "Run:        01HRUNAAAAAAAAAAAAAAAAAAAA")
	assert.Contains(out, "Status:     failed")
	assert.Contains(out, "2026-08-30 10:00:00 UTC")
	assert.Contains(out, "2026-08-30 10:05:00 UTC")
	assert.Contains(out, "sudo whoami")
	assert.Contains(out, "1 scenarios: 0 passed, 1 failed")
}

func TestTablePrinterPrintCatalogue(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintCatalogue([]model.Scenario{
		{
			Description: "privilege escalation",
			Request:     model.ExecRequest{Command: "sudo", Args: []string{"whoami"}},
			Expected:    model.OutcomeBlocked,
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(out, "SCENARIO")
	assert.Contains(out, "privilege escalation")
	assert.Contains(out, "sudo whoami")
	assert.Contains(out, "blocked")
}

func TestJSONPrinterPrintReport(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	err := p.PrintReport(testReport())
	require.NoError(err)

	got := struct {
		Total   int  `json:"total"`
		Passed  int  `json:"passed"`
		Failed  int  `json:"failed"`
		Ok      bool `json:"ok"`
		Results []struct {
			Description string `json:"description"`
			Actual      string `json:"actual"`
			Passed      bool   `json:"passed"`
			ExitCode    *int   `json:"exit_code"`
			Reason      string `json:"reason"`
		} `json:"results"`
	}{}
	require.NoError(json.Unmarshal(buf.Bytes(), &got))

	assert.Equal(2, got.Total)
	assert.Equal(1, got.Passed)
	assert.Equal(1, got.Failed)
	assert.False(got.Ok)
	require.Len(got.Results, 2)
	assert.Equal("allowed", got.Results[0].Actual)
	require.NotNil(got.Results[0].ExitCode)
	assert.Equal(0, *got.Results[0].ExitCode)
	assert.Nil(got.Results[1].ExitCode)
	assert.Equal("no response", got.Results[1].Reason)
}

func TestJSONPrinterPrintRunList(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	finished := time.Date(2026, 8, 30, 10, 5, 0, 0, time.UTC)
	runs := []model.VerificationRun{
		{
			ID:         "01HRUNAAAAAAAAAAAAAAAAAAAA",
			Engine:     model.EngineSSH,
			Status:     model.RunStatusError,
			Error:      "provisioning failed at step \"dependencies\"",
			CreatedAt:  time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
			FinishedAt: &finished,
		},
	}

	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	err := p.PrintRunList(runs)
	require.NoError(err)

	got := []map[string]any{}
	require.NoError(json.Unmarshal(buf.Bytes(), &got))
	require.Len(got, 1)
	assert.Equal("01HRUNAAAAAAAAAAAAAAAAAAAA", got[0]["id"])
	assert.Equal("ssh", got[0]["engine"])
	assert.Equal("error", got[0]["status"])
	assert.NotEmpty(got[0]["error"])
	assert.NotNil(got[0]["finished_at"])
}
