// Package bootstrap provisions verification environments: it acquires a
// compute instance, installs and starts the warden agent inside it and waits
// until the agent answers, tearing the instance down when any step fails.
package bootstrap

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/vetbox/internal/agent"
	"github.com/slok/vetbox/internal/compute"
	"github.com/slok/vetbox/internal/conventions"
	"github.com/slok/vetbox/internal/log"
	"github.com/slok/vetbox/internal/model"
	"github.com/slok/vetbox/internal/runner"
	"github.com/slok/vetbox/internal/utils/env"
	"github.com/slok/vetbox/internal/wait"
)

// Provisioning step names. Failures carry the step they happened at, so
// callers and logs can tell a download problem from an agent that never
// became ready.
const (
	StepAcquire      = "acquire"
	StepDependencies = "dependencies"
	StepAgentInstall = "agent-install"
	StepStateDirs    = "state-dirs"
	StepConfigWrite  = "config-write"
	StepElevation    = "elevation"
	StepEnvSeed      = "env-seed"
	StepAgentStart   = "agent-start"
	StepReadiness    = "readiness"
	StepShimInstall  = "shim-install"
)

const (
	defaultReadinessTimeout  = 15 * time.Second
	defaultReadinessInterval = 500 * time.Millisecond
)

// basePackages is what the rest of the flow depends on: curl for the exec
// transport and health checks, sudo for the scoped elevation grant, procps
// so the agent can manage session processes.
var basePackages = []string{"curl", "ca-certificates", "sudo", "procps"}

// ServiceConfig is the configuration of the provisioning service.
type ServiceConfig struct {
	// Engine is the compute engine environments are acquired from.
	Engine compute.Engine
	// Resolver resolves the agent binary to install.
	Resolver agent.Resolver
	// ReadinessTimeout bounds how long to wait for the agent health endpoint
	// after starting it (default 15s).
	ReadinessTimeout time.Duration
	// ReadinessInterval is how often the health endpoint is polled
	// (default 500ms).
	ReadinessInterval time.Duration
	// Logger is the logger.
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Engine == nil {
		return fmt.Errorf("compute engine is required")
	}
	if c.Resolver == nil {
		return fmt.Errorf("agent resolver is required")
	}
	if c.ReadinessTimeout == 0 {
		c.ReadinessTimeout = defaultReadinessTimeout
	}
	if c.ReadinessInterval == 0 {
		c.ReadinessInterval = defaultReadinessInterval
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "bootstrap.Service"})

	return nil
}

// Service owns the provisioning flow. Provision runs the steps strictly in
// order, each one a precondition for the next, and releases the acquired
// instance when anything after the acquire fails.
type Service struct {
	engine            compute.Engine
	resolver          agent.Resolver
	readinessTimeout  time.Duration
	readinessInterval time.Duration
	logger            log.Logger
}

// NewService creates a new provisioning service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		engine:            cfg.Engine,
		resolver:          cfg.Resolver,
		readinessTimeout:  cfg.ReadinessTimeout,
		readinessInterval: cfg.ReadinessInterval,
		logger:            cfg.Logger,
	}, nil
}

// runtime bundles the per-environment helpers the steps share.
type runtime struct {
	opts        model.ProvisionOptions
	environment *model.Environment
	runner      *runner.Runner
	fs          *runner.Filesystem
	client      *agent.Client

	// seededEnv is set by the env-seed step and handed to the agent process
	// at start so the agent inherits it.
	seededEnv map[string]string
}

// step is one named unit of the provisioning sequence.
type step struct {
	name  string
	title string
	run   func(ctx context.Context, rt *runtime) error
}

func (s *Service) steps() []step {
	return []step{
		{StepDependencies, "Installing base packages", s.stepDependencies},
		{StepAgentInstall, "Installing warden agent", s.stepAgentInstall},
		{StepStateDirs, "Creating agent directories", s.stepStateDirs},
		{StepConfigWrite, "Writing agent configuration", s.stepConfigWrite},
		{StepElevation, "Granting scoped elevation", s.stepElevation},
		{StepEnvSeed, "Seeding environment variables", s.stepEnvSeed},
		{StepAgentStart, "Starting warden agent", s.stepAgentStart},
		{StepReadiness, "Waiting for agent readiness", s.stepReadiness},
		{StepShimInstall, "Installing shell shim", s.stepShimInstall},
	}
}

// Provision acquires an environment and runs every provisioning step in
// order. When a step after the acquire fails, the environment is torn down
// best effort and the step-tagged error is what propagates. On success the
// returned environment has a running, health-checked agent with the shell
// shim installed.
func (s *Service) Provision(ctx context.Context, opts model.ProvisionOptions) (*model.Environment, error) {
	err := opts.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid provision options: %w", err)
	}

	steps := s.steps()
	total := len(steps) + 1

	s.logger.Infof("[1/%d] Acquiring environment...", total)
	environment, err := s.acquire(ctx, opts)
	if err != nil {
		return nil, model.NewProvisionError(StepAcquire, err)
	}

	rt, err := s.newRuntime(environment, opts)
	if err != nil {
		s.Teardown(ctx, environment.ID)
		return nil, model.NewProvisionError(StepAcquire, err)
	}

	for i, st := range steps {
		s.logger.Infof("[%d/%d] %s...", i+2, total, st.title)

		err := st.run(ctx, rt)
		if err != nil {
			s.logger.Errorf("Step %q failed, tearing down environment %s", st.name, environment.ID)
			s.Teardown(ctx, environment.ID)
			return nil, model.NewProvisionError(st.name, err)
		}
	}

	s.logger.Infof("Environment %s ready (agent %s)", environment.ID, environment.AgentVersion)

	return environment, nil
}

// Teardown releases the environment. It is idempotent and never fails:
// release problems are logged and swallowed so a provisioning error stays
// the error the caller sees.
func (s *Service) Teardown(ctx context.Context, environmentID string) {
	err := s.engine.Remove(ctx, environmentID)
	if err != nil {
		s.logger.Warningf("Could not tear down environment %s: %v", environmentID, err)
		return
	}

	s.logger.Debugf("Tore down environment %s", environmentID)
}

func (s *Service) acquire(ctx context.Context, opts model.ProvisionOptions) (*model.Environment, error) {
	image := opts.Image
	if image == "" {
		image = conventions.DefaultImage
	}

	name := fmt.Sprintf("vetbox-%s", strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()))

	environment, err := s.engine.Create(ctx, model.EnvironmentConfig{
		Name:             name,
		Image:            image,
		Arch:             opts.Arch,
		PublishAgentPort: opts.DirectAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("could not acquire environment: %w", err)
	}

	return environment, nil
}

func (s *Service) newRuntime(environment *model.Environment, opts model.ProvisionOptions) (*runtime, error) {
	accessor := runner.NewEnvironmentAccessor(s.engine, environment.ID)

	run, err := runner.NewRunner(runner.RunnerConfig{Accessor: accessor, Logger: s.logger})
	if err != nil {
		return nil, fmt.Errorf("could not create environment runner: %w", err)
	}

	fs, err := runner.NewFilesystem(runner.FilesystemConfig{Accessor: accessor, Runner: run, Logger: s.logger})
	if err != nil {
		return nil, fmt.Errorf("could not create environment filesystem: %w", err)
	}

	client, err := agent.NewClient(agent.ClientConfig{Runner: run, Logger: s.logger})
	if err != nil {
		return nil, fmt.Errorf("could not create agent client: %w", err)
	}

	return &runtime{
		opts:        opts,
		environment: environment,
		runner:      run,
		fs:          fs,
		client:      client,
	}, nil
}

func (s *Service) stepDependencies(ctx context.Context, rt *runtime) error {
	aptEnv := map[string]string{"DEBIAN_FRONTEND": "noninteractive"}

	// The index update is best effort, the install is what decides.
	res, err := rt.runner.TryRunShell(ctx, "apt-get update", runner.RunOpts{Elevated: true, Env: aptEnv})
	if err != nil {
		return fmt.Errorf("could not update package index: %w", err)
	}
	if res.ExitCode != 0 {
		s.logger.Warningf("Package index update exited with code %d, installing anyway", res.ExitCode)
	}

	installCmd := append([]string{"apt-get", "install", "-y", "--no-install-recommends"}, basePackages...)
	_, err = rt.runner.Run(ctx, installCmd, runner.RunOpts{Elevated: true, Env: aptEnv})
	if err != nil {
		return fmt.Errorf("could not install base packages: %w", err)
	}

	// Agent sessions run as an unprivileged user, make sure it exists.
	createUser := fmt.Sprintf("id -u %[1]s >/dev/null 2>&1 || useradd --create-home --shell /bin/bash %[1]s", conventions.RuntimeUser)
	_, err = rt.runner.RunShell(ctx, createUser, runner.RunOpts{Elevated: true})
	if err != nil {
		return fmt.Errorf("could not create runtime user: %w", err)
	}

	return nil
}

func (s *Service) stepAgentInstall(ctx context.Context, rt *runtime) error {
	artifact, err := s.resolver.Resolve(ctx, rt.opts.Arch)
	if err != nil {
		return fmt.Errorf("could not resolve agent binary: %w", err)
	}

	err = rt.fs.InstallFile(ctx, artifact.Path, conventions.AgentBinaryPath, 0o755)
	if err != nil {
		return fmt.Errorf("could not install agent binary: %w", err)
	}

	rt.environment.AgentVersion = artifact.Version
	s.logger.Debugf("Installed agent %s at %s", artifact.Version, conventions.AgentBinaryPath)

	return nil
}

func (s *Service) stepStateDirs(ctx context.Context, rt *runtime) error {
	dirs := []struct {
		path string
		mode os.FileMode
	}{
		{conventions.AgentConfigDir, conventions.AgentConfigDirMode},
		{conventions.AgentStateDir, conventions.AgentStateDirMode},
		{conventions.AgentSessionsDir, conventions.AgentStateDirMode},
	}

	for _, d := range dirs {
		err := rt.fs.MkdirAll(ctx, d.path, d.mode)
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) stepConfigWrite(ctx context.Context, rt *runtime) error {
	listenAddr := ""
	if rt.opts.DirectAPI {
		// The API port is published to the host, loopback is not enough.
		listenAddr = fmt.Sprintf("0.0.0.0:%d", conventions.AgentAPIPort)
	}

	serverCfg, err := agent.RenderServerConfig(agent.ServerConfig{ListenAddr: listenAddr})
	if err != nil {
		return err
	}
	err = rt.fs.WriteFile(ctx, conventions.AgentServerConfigPath, serverCfg, 0o644)
	if err != nil {
		return err
	}

	policy, err := agent.RenderPolicy(agent.PolicyConfig{
		Workspace:       rt.opts.Workspace,
		ExtraAllowHosts: rt.opts.NetworkAllowRules,
	})
	if err != nil {
		return err
	}

	return rt.fs.WriteFile(ctx, conventions.AgentPolicyPath, policy, 0o644)
}

func (s *Service) stepElevation(ctx context.Context, rt *runtime) error {
	// Scoped to the agent binary. A blanket NOPASSWD:ALL grant would let any
	// session escape the command policy with a single sudo call.
	entry := fmt.Sprintf("%s ALL=(ALL) NOPASSWD: %s\n", conventions.RuntimeUser, conventions.AgentBinaryPath)

	err := rt.fs.WriteFile(ctx, conventions.SudoersDropInPath, []byte(entry), 0o440)
	if err != nil {
		return fmt.Errorf("could not write sudoers entry: %w", err)
	}

	return nil
}

func (s *Service) stepEnvSeed(ctx context.Context, rt *runtime) error {
	canary := fmt.Sprintf("canary-%s", strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()))
	seeded := env.MergeMaps(map[string]string{conventions.CanarySecretEnvVar: canary}, rt.opts.ExtraEnv)

	lines := append([]string{"# Seeded by vetbox before agent start."}, env.FormatExportLines(seeded)...)
	content := strings.Join(lines, "\n") + "\n"

	err := rt.fs.WriteFile(ctx, conventions.ProfileEnvPath, []byte(content), 0o644)
	if err != nil {
		return fmt.Errorf("could not seed profile environment: %w", err)
	}

	rt.seededEnv = seeded

	return nil
}

func (s *Service) stepAgentStart(ctx context.Context, rt *runtime) error {
	err := rt.runner.Start(ctx, []string{
		conventions.AgentBinaryPath, "server",
		"--config", conventions.AgentServerConfigPath,
	}, runner.RunOpts{Elevated: true, Env: rt.seededEnv})
	if err != nil {
		return fmt.Errorf("could not start agent: %w", err)
	}

	return nil
}

func (s *Service) stepReadiness(ctx context.Context, rt *runtime) error {
	err := wait.Until(ctx, s.readinessInterval, s.readinessTimeout, rt.client.Ready())
	if err != nil {
		if errors.Is(err, wait.ErrTimeout) {
			err = fmt.Errorf("%w: %w", model.ErrAgentNotReady, err)
		}
		return fmt.Errorf("agent health endpoint never answered ok: %w", err)
	}

	return nil
}

func (s *Service) stepShimInstall(ctx context.Context, rt *runtime) error {
	return rt.client.InstallShim(ctx)
}
