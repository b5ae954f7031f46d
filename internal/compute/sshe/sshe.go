// Package sshe implements a compute engine that provisions onto an existing
// host reachable over SSH. The engine does not create or destroy the host:
// Create verifies reachability and Remove releases the connection after a
// best-effort agent cleanup.
package sshe

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/slok/vetbox/internal/conventions"
	"github.com/slok/vetbox/internal/log"
	"github.com/slok/vetbox/internal/model"
	"github.com/slok/vetbox/internal/utils/env"
)

const (
	// DefaultConnectTimeout is the default SSH connection timeout.
	DefaultConnectTimeout = 10 * time.Second
	// DefaultSSHPort is the default SSH port.
	DefaultSSHPort = 22
)

// EngineConfig is the configuration for the SSH engine.
type EngineConfig struct {
	// Host is the IP address or hostname of the target.
	Host string
	// Port is the SSH port (default: 22).
	Port int
	// User is the SSH user (e.g., "root").
	User string
	// PrivateKeyPath is the path to the PEM-encoded private key.
	PrivateKeyPath string
	// ConnectTimeout is the SSH connection timeout (default: 10s).
	ConnectTimeout time.Duration
	// Logger for logging (optional).
	Logger log.Logger
}

func (c *EngineConfig) defaults() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	if c.PrivateKeyPath == "" {
		return fmt.Errorf("private key path is required")
	}
	if c.Port == 0 {
		c.Port = DefaultSSHPort
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "compute.SSH"})
	return nil
}

// Engine is the SSH implementation of the compute.Engine interface. One
// engine instance owns at most one environment: the configured host.
type Engine struct {
	cfg    EngineConfig
	logger log.Logger

	mu    sync.Mutex
	conn  *ssh.Client
	envID string
}

// NewEngine creates a new SSH engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Engine{
		cfg:    cfg,
		logger: cfg.Logger,
	}, nil
}

// Create dials the configured host and returns an environment handle bound
// to it. The host itself already exists, creation only verifies we can run
// commands on it.
func (e *Engine) Create(ctx context.Context, cfg model.EnvironmentConfig) (*model.Environment, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conn != nil {
		return nil, fmt.Errorf("engine already owns host %s: %w", e.cfg.Host, model.ErrAlreadyExists)
	}

	conn, err := e.dial(ctx)
	if err != nil {
		return nil, err
	}

	// Make sure we can actually run commands before handing out the handle.
	_, err = execOnConn(ctx, conn, "true", nil, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("could not run commands on %s: %w", e.cfg.Host, err)
	}

	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	e.conn = conn
	e.envID = id

	environment := &model.Environment{
		ID:        id,
		Name:      cfg.Name,
		Engine:    model.EngineSSH,
		CreatedAt: time.Now().UTC(),
	}
	if cfg.PublishAgentPort {
		environment.APIAddr = net.JoinHostPort(e.cfg.Host, strconv.Itoa(conventions.AgentAPIPort))
	}

	e.logger.Infof("Attached SSH environment: %s (host: %s)", id, e.cfg.Host)

	return environment, nil
}

func (e *Engine) dial(ctx context.Context) (*ssh.Client, error) {
	key, err := os.ReadFile(e.cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("could not read private key %s: %w", e.cfg.PrivateKeyPath, err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("could not parse private key: %w", err)
	}

	sshCfg := &ssh.ClientConfig{
		User: e.cfg.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         e.cfg.ConnectTimeout,
	}

	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))

	// Use a dialer with context for cancellation support.
	var d net.Dialer
	netConn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("could not connect to %s: %w", addr, err)
	}

	// Perform SSH handshake over the raw connection.
	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, sshCfg)
	if err != nil {
		netConn.Close()
		return nil, fmt.Errorf("ssh handshake failed with %s: %w", addr, err)
	}

	return ssh.NewClient(sshConn, chans, reqs), nil
}

// Exec executes a command on the remote host.
func (e *Engine) Exec(ctx context.Context, id string, command []string, opts model.ExecOpts) (*model.ExecResult, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("command cannot be empty: %w", model.ErrNotValid)
	}

	conn, err := e.connFor(id)
	if err != nil {
		return nil, err
	}

	line := buildCommandLine(command, opts)
	e.logger.Debugf("Executing command on %s: %s", e.cfg.Host, line)

	exitCode, err := execOnConn(ctx, conn, line, opts.Stdout, opts.Stderr)
	if err != nil {
		return nil, err
	}

	return &model.ExecResult{ExitCode: exitCode}, nil
}

// buildCommandLine renders command and options into a single remote shell
// line. sshd rejects Setenv for most variables, so env goes inline instead.
func buildCommandLine(command []string, opts model.ExecOpts) string {
	quoted := make([]string, 0, len(command))
	for _, arg := range command {
		quoted = append(quoted, env.SingleQuote(arg))
	}
	line := strings.Join(quoted, " ")

	if len(opts.Env) > 0 {
		line = fmt.Sprintf("%s %s", strings.Join(env.FormatExportLines(opts.Env), "; ")+";", line)
	}
	if opts.WorkingDir != "" {
		line = fmt.Sprintf("cd %s && %s", env.SingleQuote(opts.WorkingDir), line)
	}
	if opts.Elevated {
		line = fmt.Sprintf("sudo -n sh -c %s", env.SingleQuote(line))
	}
	if opts.Detach {
		line = fmt.Sprintf("nohup sh -c %s >/dev/null 2>&1 &", env.SingleQuote(line))
	}

	return line
}

// execOnConn runs a command line on the connection with context cancellation
// support and returns the remote exit code.
func execOnConn(ctx context.Context, conn *ssh.Client, line string, stdout, stderr io.Writer) (int, error) {
	session, err := conn.NewSession()
	if err != nil {
		return -1, fmt.Errorf("could not create ssh session: %w", err)
	}
	defer session.Close()

	if stdout != nil {
		session.Stdout = stdout
	}
	if stderr != nil {
		session.Stderr = stderr
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Run(line)
	}()

	select {
	case <-ctx.Done():
		// Send signal to remote process and close session.
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		return -1, ctx.Err()
	case err := <-done:
		if err != nil {
			if exitErr, ok := err.(*ssh.ExitError); ok {
				return exitErr.ExitStatus(), nil
			}
			return -1, fmt.Errorf("command execution failed: %w", err)
		}
		return 0, nil
	}
}

// CopyTo copies a local file to the remote host via SFTP.
func (e *Engine) CopyTo(ctx context.Context, id string, srcLocal string, dstRemote string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	conn, err := e.connFor(id)
	if err != nil {
		return err
	}

	sftpClient, err := sftp.NewClient(conn)
	if err != nil {
		return fmt.Errorf("could not create sftp client: %w", err)
	}
	defer sftpClient.Close()

	srcInfo, err := os.Stat(srcLocal)
	if err != nil {
		return fmt.Errorf("could not stat source %s: %w", srcLocal, err)
	}

	src, err := os.Open(srcLocal)
	if err != nil {
		return fmt.Errorf("could not open local file %s: %w", srcLocal, err)
	}
	defer src.Close()

	dst, err := sftpClient.Create(dstRemote)
	if err != nil {
		return fmt.Errorf("could not create remote file %s: %w", dstRemote, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("could not copy to remote file %s: %w", dstRemote, err)
	}

	if err := sftpClient.Chmod(dstRemote, srcInfo.Mode()); err != nil {
		e.logger.Debugf("Could not set permissions on %s: %v", dstRemote, err)
	}

	return nil
}

// Remove releases the environment: it kills any leftover agent processes on
// the host (best effort) and closes the connection. The host is not touched
// otherwise. Removing an already released environment is a no-op.
func (e *Engine) Remove(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conn == nil || e.envID != id {
		e.logger.Debugf("Removing SSH environment %s: already released", id)
		return nil
	}

	killLine := fmt.Sprintf("sudo -n pkill -f %s || true", env.SingleQuote(conventions.AgentBinaryPath))
	_, err := execOnConn(ctx, e.conn, killLine, nil, nil)
	if err != nil {
		e.logger.Warningf("Could not kill agent processes on %s: %v", e.cfg.Host, err)
	}

	err = e.conn.Close()
	e.conn = nil
	e.envID = ""
	if err != nil {
		return fmt.Errorf("could not close ssh connection: %w", err)
	}

	e.logger.Infof("Released SSH environment: %s (host: %s)", id, e.cfg.Host)

	return nil
}

// Check performs the SSH engine preflight checks.
func (e *Engine) Check(ctx context.Context) []model.CheckResult {
	results := []model.CheckResult{}

	key, err := os.ReadFile(e.cfg.PrivateKeyPath)
	if err != nil {
		results = append(results, model.CheckResult{
			ID:      "ssh_private_key",
			Message: fmt.Sprintf("Private key not readable: %v", err),
			Status:  model.CheckStatusError,
		})
		return results
	}
	_, err = ssh.ParsePrivateKey(key)
	if err != nil {
		results = append(results, model.CheckResult{
			ID:      "ssh_private_key",
			Message: fmt.Sprintf("Private key not parseable: %v", err),
			Status:  model.CheckStatusError,
		})
		return results
	}
	results = append(results, model.CheckResult{
		ID:      "ssh_private_key",
		Message: "Private key is valid",
		Status:  model.CheckStatusOK,
	})

	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
	d := net.Dialer{Timeout: e.cfg.ConnectTimeout}
	netConn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		results = append(results, model.CheckResult{
			ID:      "ssh_host_reachable",
			Message: fmt.Sprintf("Host %s not reachable: %v", addr, err),
			Status:  model.CheckStatusError,
		})
		return results
	}
	netConn.Close()
	results = append(results, model.CheckResult{
		ID:      "ssh_host_reachable",
		Message: fmt.Sprintf("Host %s is reachable", addr),
		Status:  model.CheckStatusOK,
	})

	return results
}

func (e *Engine) connFor(id string) (*ssh.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conn == nil || e.envID != id {
		return nil, fmt.Errorf("environment %s: %w", id, model.ErrNotFound)
	}

	return e.conn, nil
}
