package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/slok/vetbox/internal/conventions"
	"github.com/slok/vetbox/internal/log"
	"github.com/slok/vetbox/internal/model"
	"github.com/slok/vetbox/internal/runner"
	"github.com/slok/vetbox/internal/wait"
)

// ClientConfig is the configuration for the agent client.
type ClientConfig struct {
	// Runner executes commands inside the environment the agent lives in.
	Runner *runner.Runner
	Logger log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.Runner == nil {
		return fmt.Errorf("runner is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "agent.Client"})
	return nil
}

// Client drives the agent CLI and health surface from inside the
// environment.
type Client struct {
	runner *runner.Runner
	logger log.Logger
}

// NewClient creates a new agent client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Client{
		runner: cfg.Runner,
		logger: cfg.Logger,
	}, nil
}

// CreateSession creates a new agent session rooted at the workspace.
func (c *Client) CreateSession(ctx context.Context, workspace string) (*model.Session, error) {
	res, err := c.runner.Run(ctx, []string{
		conventions.AgentBinaryPath, "session", "create",
		"--workspace", workspace,
		"--json",
	}, runner.RunOpts{})
	if err != nil {
		return nil, fmt.Errorf("could not create agent session: %w", err)
	}

	payload := struct {
		ID string `json:"id"`
	}{}
	err = json.Unmarshal([]byte(res.Stdout), &payload)
	if err != nil {
		return nil, fmt.Errorf("could not parse session create output: %w", err)
	}
	if payload.ID == "" {
		return nil, fmt.Errorf("agent returned an empty session id")
	}

	c.logger.Debugf("Created agent session %s (workspace: %s)", payload.ID, workspace)

	return &model.Session{ID: payload.ID}, nil
}

// Ready returns a condition that reports whether the agent health endpoint
// answers ok, shaped for the readiness poller.
func (c *Client) Ready() wait.ConditionFunc {
	healthLine := fmt.Sprintf("curl -fsS --connect-timeout 2 --max-time 3 http://%s/health", conventions.AgentAPIAddr())

	return func(ctx context.Context) (bool, error) {
		res, err := c.runner.TryRunShell(ctx, healthLine, runner.RunOpts{})
		if err != nil {
			return false, err
		}
		if res.ExitCode != 0 {
			return false, fmt.Errorf("health endpoint not answering: %s", strings.TrimSpace(res.Stderr))
		}

		return strings.TrimSpace(res.Stdout) == "ok", nil
	}
}

// InstallShim installs the shell interception shim so every shell invocation
// in the environment routes through the agent. The agent makes this
// idempotent, installing twice is safe.
func (c *Client) InstallShim(ctx context.Context) error {
	_, err := c.runner.Run(ctx, []string{
		conventions.AgentBinaryPath, "shim", "install-shell",
		"--root", "/",
		"--shim", conventions.ShimBinaryPath,
		"--bash",
		"--i-understand-this-modifies-the-host",
	}, runner.RunOpts{Elevated: true})
	if err != nil {
		return fmt.Errorf("could not install shell shim: %w", err)
	}

	c.logger.Debugf("Installed shell shim at %s", conventions.ShimBinaryPath)

	return nil
}
