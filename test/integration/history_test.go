package integration

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runItemJSON struct {
	ID           string `json:"id"`
	Engine       string `json:"engine"`
	AgentVersion string `json:"agent_version"`
	Status       string `json:"status"`
	Total        int    `json:"total"`
	Passed       int    `json:"passed"`
	Failed       int    `json:"failed"`
}

type runReportJSON struct {
	Run     runItemJSON `json:"run"`
	Results []struct {
		Position    int    `json:"position"`
		Description string `json:"description"`
		Command     string `json:"command"`
		Expected    string `json:"expected"`
		Actual      string `json:"actual"`
		Passed      bool   `json:"passed"`
	} `json:"results"`
}

func TestRunHistoryLifecycle(t *testing.T) {
	buildTestBinary(t)

	dbPath := tempDBPath(t)

	// A passing run and a failing one, sharing the history database.
	_, stderr, err := runVetbox(t, dbPath, "run", "--engine", "fake")
	require.NoError(t, err, stderr)

	failing := writeCatalogueFile(t, `
scenarios:
  - description: wrongly expected blocked
    command: echo
    args: ["hello"]
    expect: blocked
`)
	_, _, err = runVetbox(t, dbPath, "run", "--engine", "fake", "--catalogue", failing)
	require.Error(t, err)

	// Newest first.
	stdout, stderr, err := runVetbox(t, dbPath, "list", "-o", "json")
	require.NoError(t, err, stderr)

	var runs []runItemJSON
	require.NoError(t, json.Unmarshal([]byte(stdout), &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, "failed", runs[0].Status)
	assert.Equal(t, "passed", runs[1].Status)
	assert.Equal(t, "fake", runs[1].Engine)
	assert.Equal(t, 8, runs[1].Total)
	assert.Equal(t, 8, runs[1].Passed)

	passedID := runs[1].ID

	// Status filter.
	stdout, stderr, err = runVetbox(t, dbPath, "list", "--status", "failed", "-o", "json")
	require.NoError(t, err, stderr)
	var failedRuns []runItemJSON
	require.NoError(t, json.Unmarshal([]byte(stdout), &failedRuns))
	require.Len(t, failedRuns, 1)
	assert.Equal(t, 1, failedRuns[0].Failed)

	// The recorded report keeps the per-scenario detail in order.
	stdout, stderr, err = runVetbox(t, dbPath, "report", passedID, "-o", "json")
	require.NoError(t, err, stderr)

	var report runReportJSON
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, passedID, report.Run.ID)
	require.Len(t, report.Results, 8)
	for i, res := range report.Results {
		assert.Equal(t, i, res.Position)
		assert.True(t, res.Passed, res.Description)
	}
	assert.Equal(t, "plain command execution", report.Results[0].Description)

	// Delete the run and make sure it is gone.
	stdout, stderr, err = runVetbox(t, dbPath, "rm", "--engine", "fake", "--run", passedID)
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "Run "+passedID+" deleted.")

	_, stderr, err = runVetbox(t, dbPath, "report", passedID)
	require.Error(t, err)
	assert.Contains(t, stderr, "not found")

	_, _, err = runVetbox(t, dbPath, "rm", "--engine", "fake", "--run", passedID)
	require.Error(t, err)
}

func TestListCommandEmptyHistory(t *testing.T) {
	buildTestBinary(t)

	stdout, stderr, err := runVetbox(t, tempDBPath(t), "list", "-o", "json")
	require.NoError(t, err, stderr)

	var runs []runItemJSON
	require.NoError(t, json.Unmarshal([]byte(stdout), &runs))
	assert.Empty(t, runs)
}
