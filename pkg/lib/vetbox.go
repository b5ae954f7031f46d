package lib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/slok/vetbox/internal/agent"
	"github.com/slok/vetbox/internal/bootstrap"
	"github.com/slok/vetbox/internal/compute"
	"github.com/slok/vetbox/internal/compute/docker"
	"github.com/slok/vetbox/internal/compute/fake"
	"github.com/slok/vetbox/internal/compute/sshe"
	"github.com/slok/vetbox/internal/conventions"
	"github.com/slok/vetbox/internal/log"
	"github.com/slok/vetbox/internal/storage"
	"github.com/slok/vetbox/internal/storage/memory"
	"github.com/slok/vetbox/internal/storage/sqlite"
)

const (
	defaultDataDir = ".vetbox"
	defaultDBFile  = "vetbox.db"
)

// SSHConfig configures the SSH engine target host.
type SSHConfig struct {
	// Host is the IP address or hostname of the target (required).
	Host string
	// Port is the SSH port. Default: 22.
	Port int
	// User is the SSH user. Default: "root".
	User string
	// PrivateKeyPath is the path to the PEM-encoded private key (required).
	PrivateKeyPath string
}

// SimConfig configures the simulated agent used by [EngineFake].
//
// The default simulation matches the built-in probe battery: privilege
// escalation, workspace deletion, protected reads, denied egress and secret
// environment reads are blocked, everything else is allowed.
type SimConfig struct {
	// AllowedHosts extends the simulated egress allow list.
	AllowedHosts []string
	// DeniedCommands maps extra command names to the rule id that denies them.
	DeniedCommands map[string]string
	// SilentCommands are commands the simulated agent never answers for,
	// which classify as [OutcomeError] with a "no response" reason.
	SilentCommands []string
}

// Config configures the SDK client.
//
// All fields are optional and have sensible defaults. An empty Config{} uses
// ~/.vetbox/vetbox.db for run history and the Docker engine.
type Config struct {
	// DBPath is the SQLite run history database path.
	// Default: ~/.vetbox/vetbox.db. Ignored when InMemoryHistory is set.
	DBPath string

	// InMemoryHistory keeps run history in memory instead of SQLite.
	// Nothing is persisted across clients. Useful in tests and throwaway
	// verification flows.
	InMemoryHistory bool

	// DataDir is the base directory for vetbox data (agent release cache).
	// Default: ~/.vetbox.
	DataDir string

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger

	// Engine selects the compute engine environments run on.
	// Default: [EngineDocker]. Set [EngineFake] for testing without real
	// infrastructure.
	Engine EngineType

	// SSH configures the target host. Required when Engine is [EngineSSH],
	// ignored otherwise.
	SSH *SSHConfig

	// Sim configures the simulated agent. Only used when Engine is
	// [EngineFake].
	Sim *SimConfig

	// ReadinessTimeout bounds how long provisioning waits for the agent
	// health endpoint. Default: 15s.
	ReadinessTimeout time.Duration
}

func (c *Config) defaults() error {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("could not get user home dir: %w", err)
		}
		c.DataDir = filepath.Join(home, defaultDataDir)
	}

	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, defaultDBFile)
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	if c.Engine == "" {
		c.Engine = EngineDocker
	}

	if c.Engine == EngineSSH {
		if c.SSH == nil || c.SSH.Host == "" || c.SSH.PrivateKeyPath == "" {
			return fmt.Errorf("ssh engine requires SSH host and private key: %w", ErrNotValid)
		}
	}

	return nil
}

// Client is the main SDK entry point for provisioning environments and
// verifying agent controls programmatically.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is safe for concurrent use.
type Client struct {
	repo             storage.Repository
	engine           compute.Engine
	logger           log.Logger
	dataDir          string
	engineType       EngineType
	readinessTimeout time.Duration
	closeFn          func() error
}

// New creates a new SDK client backed by a SQLite database.
//
// The caller must call [Client.Close] when done to release the database
// connection. Typically used with defer:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, mapError(fmt.Errorf("invalid config: %w", err))
	}

	repo, closeFn, err := newRepository(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}

	engine, err := newEngine(cfg)
	if err != nil {
		closeFn()
		return nil, fmt.Errorf("could not create engine: %w", err)
	}

	return &Client{
		repo:             repo,
		engine:           engine,
		logger:           cfg.Logger,
		dataDir:          cfg.DataDir,
		engineType:       cfg.Engine,
		readinessTimeout: cfg.ReadinessTimeout,
		closeFn:          closeFn,
	}, nil
}

func newRepository(ctx context.Context, cfg Config) (storage.Repository, func() error, error) {
	if cfg.InMemoryHistory {
		repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: cfg.Logger})
		if err != nil {
			return nil, nil, err
		}
		return repo, func() error { return nil }, nil
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: cfg.DBPath,
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, nil, err
	}

	return repo, repo.Close, nil
}

// Close releases resources held by the client, including the database
// connection. After Close returns, the client must not be used.
func (c *Client) Close() error {
	if c.closeFn != nil {
		return c.closeFn()
	}
	return nil
}

// Doctor runs preflight health checks for the configured engine.
//
// For [EngineDocker] this checks daemon reachability and permissions, for
// [EngineSSH] connectivity and authentication. [EngineFake] has nothing to
// check and returns an empty slice.
func (c *Client) Doctor(ctx context.Context) ([]CheckResult, error) {
	if c.engineType == EngineFake {
		return []CheckResult{}, nil
	}

	return fromInternalCheckResults(c.engine.Check(ctx)), nil
}

func newEngine(cfg Config) (compute.Engine, error) {
	switch cfg.Engine {
	case EngineDocker:
		return docker.NewEngine(docker.EngineConfig{Logger: cfg.Logger})
	case EngineSSH:
		return sshe.NewEngine(sshe.EngineConfig{
			Host:           cfg.SSH.Host,
			Port:           cfg.SSH.Port,
			User:           cfg.SSH.User,
			PrivateKeyPath: cfg.SSH.PrivateKeyPath,
			Logger:         cfg.Logger,
		})
	case EngineFake:
		simCfg := fake.AgentSimConfig{}
		if cfg.Sim != nil {
			simCfg = fake.AgentSimConfig{
				AllowedHosts:   cfg.Sim.AllowedHosts,
				DeniedCommands: cfg.Sim.DeniedCommands,
				SilentCommands: cfg.Sim.SilentCommands,
			}
		}
		return fake.NewEngine(fake.EngineConfig{
			ExecHandler: fake.NewAgentSimHandler(simCfg),
			Logger:      cfg.Logger,
		})
	default:
		return nil, fmt.Errorf("unsupported engine type: %s: %w", cfg.Engine, ErrNotValid)
	}
}

// newProvisioner builds the provisioning service for one operation.
func (c *Client) newProvisioner(source string) (*bootstrap.Service, error) {
	resolver, err := c.newResolver(source)
	if err != nil {
		return nil, err
	}

	return bootstrap.NewService(bootstrap.ServiceConfig{
		Engine:           c.engine,
		Resolver:         resolver,
		ReadinessTimeout: c.readinessTimeout,
		Logger:           c.logger,
	})
}

func (c *Client) newResolver(source string) (agent.Resolver, error) {
	// Nothing real gets installed in a fake environment, skip the download.
	if c.engineType == EngineFake {
		return simResolver{}, nil
	}

	return agent.NewSourceResolver(agent.SourceResolverConfig{
		Source:   source,
		CacheDir: filepath.Join(c.dataDir, "agents"),
		Logger:   c.logger,
	})
}

// simResolver serves the fake engine: it hands out a placeholder artifact
// without touching the network.
type simResolver struct{}

func (simResolver) Resolve(ctx context.Context, arch string) (*agent.Artifact, error) {
	return &agent.Artifact{Path: os.DevNull, Version: "simulated"}, nil
}

// defaultArch is the architecture used when provision options leave it empty.
func defaultArch() string {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return runtime.GOARCH
	default:
		return "amd64"
	}
}

// provisionDefaults fills the option defaults shared by Provision and
// ProvisionAndVerify.
func provisionDefaults(opts *ProvisionOpts) {
	if opts.AgentSource == "" {
		opts.AgentSource = conventions.DefaultAgentRepo
	}
	if opts.Arch == "" {
		opts.Arch = defaultArch()
	}
	if opts.Workspace == "" {
		opts.Workspace = conventions.DefaultWorkspace
	}
	if opts.Image == "" {
		opts.Image = conventions.DefaultImage
	}
}
