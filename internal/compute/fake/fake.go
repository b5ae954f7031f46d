package fake

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/vetbox/internal/log"
	"github.com/slok/vetbox/internal/model"
)

// ExecHandler lets tests and dry runs script the result of in-environment
// command executions. Handlers may write to opts.Stdout and opts.Stderr.
type ExecHandler func(ctx context.Context, id string, command []string, opts model.ExecOpts) (*model.ExecResult, error)

// CopiedFile records one CopyTo call.
type CopiedFile struct {
	Src string
	Dst string
}

// EngineConfig is the configuration for the fake engine.
type EngineConfig struct {
	// ExecHandler scripts exec results. Optional: the default handler
	// succeeds with a canned output line.
	ExecHandler ExecHandler
	// APIAddr is returned as the environment API address when the config
	// asks for the agent port to be published.
	APIAddr string
	Logger  log.Logger
}

func (c *EngineConfig) defaults() error {
	if c.ExecHandler == nil {
		c.ExecHandler = func(ctx context.Context, id string, command []string, opts model.ExecOpts) (*model.ExecResult, error) {
			if opts.Stdout != nil {
				fmt.Fprintf(opts.Stdout, "fake output for: %v\n", command)
			}
			return &model.ExecResult{ExitCode: 0}, nil
		}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "compute.Fake"})
	return nil
}

// Engine is a fake implementation of the compute.Engine interface.
// It simulates environment lifecycle without creating real infrastructure,
// used by tests and dry runs.
type Engine struct {
	environments map[string]*model.Environment
	copies       []CopiedFile
	execHandler  ExecHandler
	apiAddr      string
	mu           sync.RWMutex
	logger       log.Logger
}

// NewEngine creates a new fake engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Engine{
		environments: make(map[string]*model.Environment),
		execHandler:  cfg.ExecHandler,
		apiAddr:      cfg.APIAddr,
		logger:       cfg.Logger,
	}, nil
}

// Create creates a new fake environment.
func (e *Engine) Create(ctx context.Context, cfg model.EnvironmentConfig) (*model.Environment, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()

	environment := &model.Environment{
		ID:        id,
		Name:      cfg.Name,
		Engine:    model.EngineFake,
		CreatedAt: time.Now().UTC(),
	}
	if cfg.PublishAgentPort {
		environment.APIAddr = e.apiAddr
	}

	e.environments[id] = environment
	e.logger.Infof("Created fake environment: %s (name: %s)", id, cfg.Name)

	return environment, nil
}

// Remove removes a fake environment.
func (e *Engine) Remove(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.environments[id]; !ok {
		// Already gone, removal is idempotent.
		e.logger.Debugf("Removing fake environment: %s (not in engine memory)", id)
		return nil
	}

	delete(e.environments, id)
	e.logger.Infof("Removed fake environment: %s", id)

	return nil
}

// Exec executes a command inside a fake environment through the configured
// exec handler.
func (e *Engine) Exec(ctx context.Context, id string, command []string, opts model.ExecOpts) (*model.ExecResult, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("command cannot be empty: %w", model.ErrNotValid)
	}

	e.mu.RLock()
	handler := e.execHandler
	e.mu.RUnlock()

	e.logger.Debugf("Executing command in fake environment %s: %v", id, command)

	return handler(ctx, id, command, opts)
}

// CopyTo records the copy so tests can assert on what was installed.
func (e *Engine) CopyTo(ctx context.Context, id string, srcLocal string, dstRemote string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.copies = append(e.copies, CopiedFile{Src: srcLocal, Dst: dstRemote})
	e.logger.Debugf("Copied %s to fake environment %s:%s", srcLocal, id, dstRemote)

	return nil
}

// Check performs the fake engine preflight checks. It always passes.
func (e *Engine) Check(ctx context.Context) []model.CheckResult {
	return []model.CheckResult{
		{ID: "fake_engine", Message: "Fake engine is always available", Status: model.CheckStatusOK},
	}
}

// CopiedFiles returns a copy of the recorded CopyTo calls.
func (e *Engine) CopiedFiles() []CopiedFile {
	e.mu.RLock()
	defer e.mu.RUnlock()

	copies := make([]CopiedFile, len(e.copies))
	copy(copies, e.copies)

	return copies
}

// SetExecHandler replaces the exec handler, for tests that need to change
// behavior between provisioning and verification.
func (e *Engine) SetExecHandler(handler ExecHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.execHandler = handler
}
