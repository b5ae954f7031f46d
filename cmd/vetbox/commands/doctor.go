package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/vetbox/internal/model"
)

const githubAPIPingURL = "https://api.github.com/"

type DoctorCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	engineFlags *engineFlags
}

// NewDoctorCommand returns the doctor command.
func NewDoctorCommand(rootCmd *RootCommand, app *kingpin.Application) *DoctorCommand {
	c := &DoctorCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("doctor", "Run preflight checks for the selected engine and the local setup.")
	c.engineFlags = registerEngineFlags(c.Cmd)

	return c
}

func (c DoctorCommand) Name() string { return c.Cmd.FullCommand() }

func (c DoctorCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger
	out := c.rootCmd.Stdout

	// Engine checks.
	eng, err := c.engineFlags.newEngine(logger)
	if err != nil {
		return fmt.Errorf("could not create engine: %w", err)
	}

	fmt.Fprintf(out, "Checking %s engine...\n", c.engineFlags.engine)
	results := eng.Check(ctx)
	printCheckResults(out, results)

	// Local checks.
	fmt.Fprintf(out, "\nChecking local setup...\n")
	localResults := []model.CheckResult{
		c.checkDBPath(),
		c.checkGitHubAPI(ctx),
	}
	printCheckResults(out, localResults)
	results = append(results, localResults...)

	// Summary.
	_, warnings, errors := model.CountByStatus(results)
	fmt.Fprintln(out)
	if errors == 0 && warnings == 0 {
		fmt.Fprintln(out, "All checks passed!")
	} else {
		var summary []string
		if errors > 0 {
			summary = append(summary, fmt.Sprintf("%d error(s)", errors))
		}
		if warnings > 0 {
			summary = append(summary, fmt.Sprintf("%d warning(s)", warnings))
		}
		fmt.Fprintf(out, "%s\n", strings.Join(summary, ", "))
	}

	if errors > 0 {
		return fmt.Errorf("preflight checks failed with %d error(s)", errors)
	}

	return nil
}

// checkDBPath checks the run history database location is usable.
func (c DoctorCommand) checkDBPath() model.CheckResult {
	dir := filepath.Dir(c.rootCmd.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return model.CheckResult{
			ID:      "db_path",
			Message: fmt.Sprintf("Cannot create database directory %s: %v", dir, err),
			Status:  model.CheckStatusError,
		}
	}

	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return model.CheckResult{
			ID:      "db_path",
			Message: fmt.Sprintf("Database directory %s is not writable: %v", dir, err),
			Status:  model.CheckStatusError,
		}
	}
	f.Close()
	os.Remove(f.Name())

	return model.CheckResult{
		ID:      "db_path",
		Message: fmt.Sprintf("Database directory %s is writable", dir),
		Status:  model.CheckStatusOK,
	}
}

// checkGitHubAPI checks GitHub is reachable, agent releases come from there
// by default. Not reachable is a warning: local file and direct URL agent
// sources keep working without it.
func (c DoctorCommand) checkGitHubAPI(ctx context.Context) model.CheckResult {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, githubAPIPingURL, nil)
	if err != nil {
		return model.CheckResult{
			ID:      "github_api",
			Message: fmt.Sprintf("Could not build GitHub API request: %v", err),
			Status:  model.CheckStatusError,
		}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return model.CheckResult{
			ID:      "github_api",
			Message: fmt.Sprintf("GitHub API not reachable (release downloads will fail): %v", err),
			Status:  model.CheckStatusWarning,
		}
	}
	resp.Body.Close()

	return model.CheckResult{
		ID:      "github_api",
		Message: "GitHub API reachable",
		Status:  model.CheckStatusOK,
	}
}

func printCheckResults(out io.Writer, results []model.CheckResult) {
	for _, r := range results {
		fmt.Fprintf(out, "  %s %-20s %s\n", statusIcon(r.Status), r.ID, r.Message)
	}
}

func statusIcon(status model.CheckStatus) string {
	switch status {
	case model.CheckStatusOK:
		return "OK"
	case model.CheckStatusWarning:
		return "!!"
	case model.CheckStatusError:
		return "XX"
	default:
		return "??"
	}
}
