package fake_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/vetbox/internal/compute/fake"
	"github.com/slok/vetbox/internal/model"
)

// execSim runs one exec request through the simulated script transport the
// way the real gateway does: write the script, run it, read the response
// file back. It returns the raw response text ("" when no file appeared).
func execSim(ctx context.Context, t *testing.T, eng *fake.Engine, envID, command string, args []string) string {
	t.Helper()

	body, err := json.Marshal(map[string]any{"command": command, "args": args})
	require.NoError(t, err)

	scriptPath := "/tmp/vetbox/exec-test.sh"
	resultPath := "/tmp/vetbox/exec-test.json"
	script := fmt.Sprintf("#!/bin/sh\ncurl -sS -d '%s' -o %s http://127.0.0.1:7337/api/v1/sessions/s1/exec\n", body, resultPath)
	encoded := base64.StdEncoding.EncodeToString([]byte(script))
	writeLine := fmt.Sprintf("mkdir -p /tmp/vetbox && echo %s | base64 -d > %s && chmod +x %s", encoded, scriptPath, scriptPath)

	res, err := eng.Exec(ctx, envID, []string{"sh", "-c", writeLine}, model.ExecOpts{})
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)

	res, err = eng.Exec(ctx, envID, []string{"sh", scriptPath}, model.ExecOpts{})
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)

	var stdout, stderr bytes.Buffer
	res, err = eng.Exec(ctx, envID, []string{"cat", resultPath}, model.ExecOpts{Stdout: &stdout, Stderr: &stderr})
	require.NoError(t, err)
	if res.ExitCode != 0 {
		return ""
	}

	return stdout.String()
}

func TestAgentSimHandler(t *testing.T) {
	tests := map[string]struct {
		config      fake.AgentSimConfig
		command     string
		args        []string
		expCategory model.OutcomeCategory
		expRuleID   string
	}{
		"A plain command should be allowed": {
			command:     "echo",
			args:        []string{"hello"},
			expCategory: model.OutcomeAllowed,
		},

		"Privilege escalation should be blocked": {
			command:     "sudo",
			args:        []string{"whoami"},
			expCategory: model.OutcomeBlocked,
			expRuleID:   "cmd-001",
		},

		"A recursive delete should be blocked": {
			command:     "rm",
			args:        []string{"-rf", "/workspace"},
			expCategory: model.OutcomeBlocked,
			expRuleID:   "fs-002",
		},

		"Reading a protected file should be blocked": {
			command:     "cat",
			args:        []string{"/etc/shadow"},
			expCategory: model.OutcomeBlocked,
			expRuleID:   "fs-001",
		},

		"Egress to an allowed host should pass": {
			command:     "curl",
			args:        []string{"-sSI", "https://github.com"},
			expCategory: model.OutcomeAllowed,
		},

		"Egress to a denied host should be blocked": {
			command:     "curl",
			args:        []string{"-sSI", "https://example.com"},
			expCategory: model.OutcomeBlocked,
			expRuleID:   "net-001",
		},

		"Extra allowed hosts should extend the egress allow list": {
			config:      fake.AgentSimConfig{AllowedHosts: []string{"example.com"}},
			command:     "curl",
			args:        []string{"-sSI", "https://example.com"},
			expCategory: model.OutcomeAllowed,
		},

		"Reading the canary secret should be blocked": {
			command:     "printenv",
			args:        []string{"VETBOX_CANARY_SECRET"},
			expCategory: model.OutcomeBlocked,
			expRuleID:   "env-001",
		},

		"Extra denied commands should be blocked with their rule": {
			config:      fake.AgentSimConfig{DeniedCommands: map[string]string{"git": "cmd-042"}},
			command:     "git",
			args:        []string{"push"},
			expCategory: model.OutcomeBlocked,
			expRuleID:   "cmd-042",
		},

		"A silent command should produce no response": {
			config:      fake.AgentSimConfig{SilentCommands: []string{"nc"}},
			command:     "nc",
			args:        []string{"example.com", "80"},
			expCategory: model.OutcomeError,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)
			ctx := context.Background()

			eng, err := fake.NewEngine(fake.EngineConfig{ExecHandler: fake.NewAgentSimHandler(test.config)})
			require.NoError(err)

			environment, err := eng.Create(ctx, model.EnvironmentConfig{Name: "sim"})
			require.NoError(err)

			raw := execSim(ctx, t, eng, environment.ID, test.command, test.args)

			if test.expCategory == model.OutcomeError {
				assert.Empty(raw)
				return
			}

			var resp struct {
				Error *struct {
					RuleID string `json:"rule_id"`
				} `json:"error"`
				BlockedOperations []struct {
					RuleID string `json:"rule_id"`
				} `json:"blocked_operations"`
				Guidance *struct {
					Blocked bool   `json:"blocked"`
					RuleID  string `json:"rule_id"`
				} `json:"guidance"`
				Result *struct {
					ExitCode int `json:"exit_code"`
				} `json:"result"`
			}
			require.NoError(json.Unmarshal([]byte(raw), &resp))

			switch test.expCategory {
			case model.OutcomeAllowed:
				assert.Nil(resp.Error)
				assert.Empty(resp.BlockedOperations)
				require.NotNil(resp.Result)
				assert.Equal(0, resp.Result.ExitCode)
			case model.OutcomeBlocked:
				ruleID := ""
				switch {
				case resp.Error != nil:
					ruleID = resp.Error.RuleID
				case len(resp.BlockedOperations) > 0:
					ruleID = resp.BlockedOperations[0].RuleID
				case resp.Guidance != nil && resp.Guidance.Blocked:
					ruleID = resp.Guidance.RuleID
				}
				assert.Equal(test.expRuleID, ruleID)
			}
		})
	}
}

func TestAgentSimHandlerSessionAndHealth(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	eng, err := fake.NewEngine(fake.EngineConfig{ExecHandler: fake.NewAgentSimHandler(fake.AgentSimConfig{})})
	require.NoError(err)

	environment, err := eng.Create(ctx, model.EnvironmentConfig{Name: "sim"})
	require.NoError(err)

	var stdout bytes.Buffer
	res, err := eng.Exec(ctx, environment.ID, []string{"/usr/local/bin/warden", "session", "create", "--workspace", "/workspace", "--json"}, model.ExecOpts{Stdout: &stdout})
	require.NoError(err)
	assert.Equal(0, res.ExitCode)

	payload := struct {
		ID string `json:"id"`
	}{}
	require.NoError(json.Unmarshal(stdout.Bytes(), &payload))
	assert.NotEmpty(payload.ID)

	stdout.Reset()
	res, err = eng.Exec(ctx, environment.ID, []string{"sh", "-c", "curl -fsS --connect-timeout 2 --max-time 3 http://127.0.0.1:7337/health"}, model.ExecOpts{Stdout: &stdout})
	require.NoError(err)
	assert.Equal(0, res.ExitCode)
	assert.Equal("ok\n", stdout.String())
}
