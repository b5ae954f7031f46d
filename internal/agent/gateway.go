package agent

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/vetbox/internal/conventions"
	"github.com/slok/vetbox/internal/log"
	"github.com/slok/vetbox/internal/model"
	"github.com/slok/vetbox/internal/runner"
	"github.com/slok/vetbox/internal/utils/env"
)

const (
	// scriptConnectTimeout bounds how long the in-environment curl waits for
	// the agent to accept the connection.
	scriptConnectTimeout = 2 * time.Second
	// scriptTotalTimeout bounds the whole in-environment curl call.
	scriptTotalTimeout = 15 * time.Second
)

// apiExecRequest is the wire shape of the agent exec API request.
type apiExecRequest struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// Gateway sends exec requests to the agent's per-session endpoint and returns
// the raw response text. Classification happens elsewhere: a gateway never
// interprets the response, and a missing response is returned as empty text,
// not as a transport error.
type Gateway interface {
	Exec(ctx context.Context, session model.Session, req model.ExecRequest) (string, error)
}

// HTTPGatewayConfig is the configuration for the direct HTTP gateway.
type HTTPGatewayConfig struct {
	// APIAddr is the host-reachable "host:port" of the agent API.
	APIAddr string
	// Client is the HTTP client to use (optional).
	Client *http.Client
	Logger log.Logger
}

func (c *HTTPGatewayConfig) defaults() error {
	if c.APIAddr == "" {
		return fmt.Errorf("agent API address is required")
	}
	if c.Client == nil {
		c.Client = &http.Client{Timeout: scriptTotalTimeout}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "agent.HTTPGateway"})
	return nil
}

// HTTPGateway talks to the agent API directly from the orchestrating process.
// It needs network line of sight into the environment, which only some
// engines can offer.
type HTTPGateway struct {
	apiAddr string
	client  *http.Client
	logger  log.Logger
}

// NewHTTPGateway creates a new direct HTTP gateway.
func NewHTTPGateway(cfg HTTPGatewayConfig) (*HTTPGateway, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &HTTPGateway{
		apiAddr: cfg.APIAddr,
		client:  cfg.Client,
		logger:  cfg.Logger,
	}, nil
}

// Exec posts the request to the agent exec endpoint and returns the raw body.
func (g *HTTPGateway) Exec(ctx context.Context, session model.Session, req model.ExecRequest) (string, error) {
	body, err := json.Marshal(apiExecRequest{Command: req.Command, Args: req.Args})
	if err != nil {
		return "", fmt.Errorf("could not marshal exec request: %w", err)
	}

	url := fmt.Sprintf("http://%s/api/v1/sessions/%s/exec", g.apiAddr, session.ID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("could not create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	g.logger.Debugf("POST %s", url)
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("exec request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("could not read exec response: %w", err)
	}

	return string(raw), nil
}

// ScriptGatewayConfig is the configuration for the script gateway.
type ScriptGatewayConfig struct {
	// Runner executes commands inside the target environment.
	Runner *runner.Runner
	Logger log.Logger
}

func (c *ScriptGatewayConfig) defaults() error {
	if c.Runner == nil {
		return fmt.Errorf("runner is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "agent.ScriptGateway"})
	return nil
}

// ScriptGateway reaches the agent from inside the environment: it writes a
// small curl script next to a result path, runs it and reads the result file
// back. This is the default transport, used whenever the orchestrating
// process has no direct network line of sight to the agent's loopback
// address. A missing result file means the agent never answered and is
// returned as empty text so the classifier reports "no response" rather than
// a parse failure.
type ScriptGateway struct {
	runner *runner.Runner
	logger log.Logger
}

// NewScriptGateway creates a new script gateway.
func NewScriptGateway(cfg ScriptGatewayConfig) (*ScriptGateway, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &ScriptGateway{
		runner: cfg.Runner,
		logger: cfg.Logger,
	}, nil
}

// Exec runs one exec request through the in-environment script transport.
func (g *ScriptGateway) Exec(ctx context.Context, session model.Session, req model.ExecRequest) (string, error) {
	body, err := json.Marshal(apiExecRequest{Command: req.Command, Args: req.Args})
	if err != nil {
		return "", fmt.Errorf("could not marshal exec request: %w", err)
	}

	execID := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	resultPath := conventions.ExecResultPath(execID)
	scriptPath := path.Join(conventions.ExecResultsDir, fmt.Sprintf("exec-%s.sh", execID))
	url := fmt.Sprintf("http://%s/api/v1/sessions/%s/exec", conventions.AgentAPIAddr(), session.ID)

	script := fmt.Sprintf("#!/bin/sh\ncurl -sS -X POST -H 'Content-Type: application/json' --connect-timeout %d --max-time %d -d %s -o %s %s\n",
		int(scriptConnectTimeout.Seconds()), int(scriptTotalTimeout.Seconds()), env.SingleQuote(string(body)), resultPath, url)

	defer func() {
		_, err := g.runner.TryRunShell(ctx, fmt.Sprintf("rm -f %s %s", scriptPath, resultPath), runner.RunOpts{})
		if err != nil {
			g.logger.Debugf("Could not clean up exec transport files: %v", err)
		}
	}()

	encoded := base64.StdEncoding.EncodeToString([]byte(script))
	writeLine := fmt.Sprintf("mkdir -p %s && echo %s | base64 -d > %s && chmod +x %s",
		conventions.ExecResultsDir, encoded, scriptPath, scriptPath)
	_, err = g.runner.RunShell(ctx, writeLine, runner.RunOpts{})
	if err != nil {
		return "", fmt.Errorf("could not write exec script: %w", err)
	}

	// The curl exit code doesn't matter: a failed call leaves no result file
	// and that absence is the signal.
	res, err := g.runner.TryRun(ctx, []string{"sh", scriptPath}, runner.RunOpts{})
	if err != nil {
		return "", fmt.Errorf("could not run exec script: %w", err)
	}
	if res.ExitCode != 0 {
		g.logger.Debugf("Exec script exited with code %d: %s", res.ExitCode, res.Stderr)
	}

	read, err := g.runner.TryRun(ctx, []string{"cat", resultPath}, runner.RunOpts{})
	if err != nil {
		return "", fmt.Errorf("could not read exec response file: %w", err)
	}
	if read.ExitCode != 0 {
		// No file produced: the agent never answered.
		return "", nil
	}

	return read.Stdout, nil
}
