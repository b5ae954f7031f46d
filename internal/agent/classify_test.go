package agent_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/vetbox/internal/agent"
	"github.com/slok/vetbox/internal/model"
)

func intPtr(i int) *int { return &i }

func TestClassify(t *testing.T) {
	tests := map[string]struct {
		raw        string
		expOutcome model.ExecOutcome
	}{
		"An empty response should be an error with no response reason": {
			raw: "",
			expOutcome: model.ExecOutcome{
				Category: model.OutcomeError,
				Reason:   "no response",
			},
		},

		"A whitespace only response should be an error with no response reason": {
			raw: "  \n\t ",
			expOutcome: model.ExecOutcome{
				Category: model.OutcomeError,
				Reason:   "no response",
			},
		},

		"A non JSON response should be an error with a parse error reason": {
			raw: "<html>502 Bad Gateway</html>",
			expOutcome: model.ExecOutcome{
				Category: model.OutcomeError,
				Reason:   "parse error: <html>502 Bad Gateway</html>",
			},
		},

		"A long unparseable response should be truncated in the reason": {
			raw: strings.Repeat("x", 500),
			expOutcome: model.ExecOutcome{
				Category: model.OutcomeError,
				Reason:   "parse error: " + strings.Repeat("x", 120) + "...",
			},
		},

		"A policy denied error code should be blocked": {
			raw: `{"error": {"code": "policy_denied", "message": "path outside workspace", "rule_id": "fs-write-01"}}`,
			expOutcome: model.ExecOutcome{
				Category: model.OutcomeBlocked,
				Reason:   "path outside workspace",
				RuleID:   "fs-write-01",
			},
		},

		"A policy denied error without a rule id should report unknown": {
			raw: `{"error": {"code": "policy_denied", "message": "denied"}}`,
			expOutcome: model.ExecOutcome{
				Category: model.OutcomeBlocked,
				Reason:   "denied",
				RuleID:   "unknown",
			},
		},

		"A non policy error code should not be blocked": {
			raw: `{"error": {"code": "internal", "message": "boom"}}`,
			expOutcome: model.ExecOutcome{
				Category: model.OutcomeError,
				Reason:   "no exec result in response",
			},
		},

		"A blocked operations list should be blocked with the first record": {
			raw: `{"blocked_operations": [
				{"rule_id": "net-egress-03", "message": "host not in allow list", "operation": "connect"},
				{"rule_id": "net-egress-04", "message": "second", "operation": "connect"}
			]}`,
			expOutcome: model.ExecOutcome{
				Category: model.OutcomeBlocked,
				Reason:   "host not in allow list",
				RuleID:   "net-egress-03",
			},
		},

		"A guidance blocked flag should be blocked": {
			raw: `{"guidance": {"blocked": true, "reason": "try inside the workspace", "rule_id": "fs-guide-02"}}`,
			expOutcome: model.ExecOutcome{
				Category: model.OutcomeBlocked,
				Reason:   "try inside the workspace",
				RuleID:   "fs-guide-02",
			},
		},

		"A guidance blocked status should be blocked": {
			raw: `{"guidance": {"status": "blocked", "reason": "redacted secret"}}`,
			expOutcome: model.ExecOutcome{
				Category: model.OutcomeBlocked,
				Reason:   "redacted secret",
				RuleID:   "unknown",
			},
		},

		"A guidance object without block signals should not be blocked": {
			raw: `{"guidance": {"status": "ok"}, "result": {"exit_code": 0, "stdout": "hi"}}`,
			expOutcome: model.ExecOutcome{
				Category: model.OutcomeAllowed,
				ExitCode: intPtr(0),
				Stdout:   "hi",
			},
		},

		"A zero exit code should be allowed with trimmed streams": {
			raw: `{"result": {"exit_code": 0, "stdout": "Hello\n", "stderr": "  "}}`,
			expOutcome: model.ExecOutcome{
				Category: model.OutcomeAllowed,
				ExitCode: intPtr(0),
				Stdout:   "Hello",
				Stderr:   "",
			},
		},

		"A non-zero exit code should be an error carrying the stderr": {
			raw: `{"result": {"exit_code": 2, "stdout": "", "stderr": "cat: /etc/shadow: Permission denied\n"}}`,
			expOutcome: model.ExecOutcome{
				Category: model.OutcomeError,
				ExitCode: intPtr(2),
				Stderr:   "cat: /etc/shadow: Permission denied",
				Reason:   "cat: /etc/shadow: Permission denied",
			},
		},

		"A non-zero exit code without stderr should use the generic reason": {
			raw: `{"result": {"exit_code": 1}}`,
			expOutcome: model.ExecOutcome{
				Category: model.OutcomeError,
				ExitCode: intPtr(1),
				Reason:   "command failed",
			},
		},

		"An empty JSON object should be an error without exit code": {
			raw: `{}`,
			expOutcome: model.ExecOutcome{
				Category: model.OutcomeError,
				Reason:   "no exec result in response",
			},
		},

		"A blocked operations list should win over a clean exit code": {
			raw: `{
				"blocked_operations": [{"rule_id": "fs-del-01", "message": "recursive delete refused"}],
				"result": {"exit_code": 0, "stdout": "deleted"}
			}`,
			expOutcome: model.ExecOutcome{
				Category: model.OutcomeBlocked,
				ExitCode: intPtr(0),
				Stdout:   "deleted",
				Reason:   "recursive delete refused",
				RuleID:   "fs-del-01",
			},
		},

		"A policy denied error should win over blocked operations and guidance": {
			raw: `{
				"error": {"code": "policy_denied", "message": "never executed", "rule_id": "cmd-sudo-01"},
				"blocked_operations": [{"rule_id": "other", "message": "audit"}],
				"guidance": {"blocked": true, "reason": "advisory", "rule_id": "g-1"}
			}`,
			expOutcome: model.ExecOutcome{
				Category: model.OutcomeBlocked,
				Reason:   "never executed",
				RuleID:   "cmd-sudo-01",
			},
		},

		"Blocked operations should win over guidance": {
			raw: `{
				"blocked_operations": [{"rule_id": "audit-1", "message": "from the audit trail"}],
				"guidance": {"blocked": true, "reason": "from guidance", "rule_id": "g-1"}
			}`,
			expOutcome: model.ExecOutcome{
				Category: model.OutcomeBlocked,
				Reason:   "from the audit trail",
				RuleID:   "audit-1",
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			assert.Equal(test.expOutcome, agent.Classify(test.raw))
		})
	}
}
