package agent

import (
	"encoding/json"
	"strings"

	"github.com/slok/vetbox/internal/model"
)

const (
	// codePolicyDenied is the error code the agent uses when the policy
	// engine refused to execute the command at all.
	codePolicyDenied = "policy_denied"
	// unknownRuleID is reported when a denial carries no rule identifier.
	unknownRuleID = "unknown"
	// parseErrorSample is how much raw text a parse error reason carries.
	parseErrorSample = 120
)

// execResponse is the wire shape of the agent exec API response. A single
// response may carry several denial signals at once, the classifier resolves
// them with a fixed priority.
type execResponse struct {
	Error             *responseError     `json:"error,omitempty"`
	BlockedOperations []blockedOperation `json:"blocked_operations,omitempty"`
	Guidance          *guidance          `json:"guidance,omitempty"`
	Result            *execResult        `json:"result,omitempty"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	RuleID  string `json:"rule_id"`
}

type blockedOperation struct {
	RuleID    string `json:"rule_id"`
	Message   string `json:"message"`
	Operation string `json:"operation"`
}

type guidance struct {
	Blocked bool   `json:"blocked"`
	Status  string `json:"status"`
	Reason  string `json:"reason"`
	RuleID  string `json:"rule_id"`
}

type execResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// Classify turns the raw response text of one exec attempt into an outcome.
//
// Denial can be signaled at three independent layers: a hard policy error, a
// blocked-operations audit trail, and a soft guidance advisory. A response
// may carry more than one at once, so the checks run in a fixed priority
// order and the first match wins. The explicit error code is the most
// authoritative because it means the command never executed; audit and
// guidance signals may describe partial execution.
func Classify(raw string) model.ExecOutcome {
	if strings.TrimSpace(raw) == "" {
		return model.ExecOutcome{
			Category: model.OutcomeError,
			Reason:   "no response",
		}
	}

	var resp execResponse
	err := json.Unmarshal([]byte(raw), &resp)
	if err != nil {
		return model.ExecOutcome{
			Category: model.OutcomeError,
			Reason:   "parse error: " + truncate(raw, parseErrorSample),
		}
	}

	// The exit code and streams travel with the outcome whenever the agent
	// reported an execution result, whatever the category ends up being.
	var exitCode *int
	var stdout, stderr string
	if resp.Result != nil {
		code := resp.Result.ExitCode
		exitCode = &code
		stdout = strings.TrimSpace(resp.Result.Stdout)
		stderr = strings.TrimSpace(resp.Result.Stderr)
	}

	blocked := func(ruleID, reason string) model.ExecOutcome {
		if ruleID == "" {
			ruleID = unknownRuleID
		}
		return model.ExecOutcome{
			Category: model.OutcomeBlocked,
			ExitCode: exitCode,
			Stdout:   stdout,
			Stderr:   stderr,
			Reason:   reason,
			RuleID:   ruleID,
		}
	}

	// Hard policy error.
	if resp.Error != nil && resp.Error.Code == codePolicyDenied {
		return blocked(resp.Error.RuleID, resp.Error.Message)
	}

	// Blocked-operations audit trail, first record wins.
	if len(resp.BlockedOperations) > 0 {
		op := resp.BlockedOperations[0]
		return blocked(op.RuleID, op.Message)
	}

	// Guidance advisory.
	if resp.Guidance != nil && (resp.Guidance.Blocked || resp.Guidance.Status == "blocked") {
		return blocked(resp.Guidance.RuleID, resp.Guidance.Reason)
	}

	// Clean success.
	if resp.Result != nil && resp.Result.ExitCode == 0 {
		return model.ExecOutcome{
			Category: model.OutcomeAllowed,
			ExitCode: exitCode,
			Stdout:   stdout,
			Stderr:   stderr,
		}
	}

	// Anything else is an execution failure.
	reason := stderr
	if reason == "" {
		if resp.Result != nil {
			reason = "command failed"
		} else {
			reason = "no exec result in response"
		}
	}

	return model.ExecOutcome{
		Category: model.OutcomeError,
		ExitCode: exitCode,
		Stdout:   stdout,
		Stderr:   stderr,
		Reason:   reason,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
