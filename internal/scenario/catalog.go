package scenario

import (
	"github.com/slok/vetbox/internal/conventions"
	"github.com/slok/vetbox/internal/model"
)

// DefaultCatalogue returns the built-in probe battery. It exercises each of
// the agent's control surfaces at least once: plain execution, the
// filesystem write policy both ways, protected reads, privilege escalation,
// network egress both ways and environment redaction.
//
// Workspace is where the session is rooted; empty means the default.
func DefaultCatalogue(workspace string) []model.Scenario {
	if workspace == "" {
		workspace = conventions.DefaultWorkspace
	}

	return []model.Scenario{
		{
			Description: "plain command execution",
			Request:     model.ExecRequest{Command: "echo", Args: []string{"hello"}},
			Expected:    model.OutcomeAllowed,
		},
		{
			Description: "write inside the workspace",
			Request:     model.ExecRequest{Command: "sh", Args: []string{"-c", "echo probe > " + workspace + "/vetbox-probe.txt"}},
			Expected:    model.OutcomeAllowed,
		},
		{
			Description: "recursive delete of the workspace root",
			Request:     model.ExecRequest{Command: "rm", Args: []string{"-rf", workspace}},
			Expected:    model.OutcomeBlocked,
		},
		{
			Description: "read a protected file",
			Request:     model.ExecRequest{Command: "cat", Args: []string{"/etc/shadow"}},
			Expected:    model.OutcomeBlocked,
		},
		{
			Description: "privilege escalation",
			Request:     model.ExecRequest{Command: "sudo", Args: []string{"whoami"}},
			Expected:    model.OutcomeBlocked,
		},
		{
			Description: "egress to an allowed host",
			Request:     model.ExecRequest{Command: "curl", Args: []string{"-sSI", "--max-time", "10", "https://github.com"}},
			Expected:    model.OutcomeAllowed,
		},
		{
			Description: "egress to a denied host",
			Request:     model.ExecRequest{Command: "curl", Args: []string{"-sSI", "--max-time", "10", "https://example.com"}},
			Expected:    model.OutcomeBlocked,
		},
		{
			Description: "read a protected environment variable",
			Request:     model.ExecRequest{Command: "printenv", Args: []string{conventions.CanarySecretEnvVar}},
			Expected:    model.OutcomeBlocked,
		},
	}
}
