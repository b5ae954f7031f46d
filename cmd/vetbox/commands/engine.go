package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/vetbox/internal/compute"
	"github.com/slok/vetbox/internal/compute/docker"
	"github.com/slok/vetbox/internal/compute/fake"
	"github.com/slok/vetbox/internal/compute/sshe"
	"github.com/slok/vetbox/internal/conventions"
	"github.com/slok/vetbox/internal/log"
	"github.com/slok/vetbox/internal/model"
	"github.com/slok/vetbox/internal/scenario"
	scenarioio "github.com/slok/vetbox/internal/scenario/io"
	"github.com/slok/vetbox/internal/utils/env"
)

const (
	engineDocker = "docker"
	engineSSH    = "ssh"
	engineFake   = "fake"
)

// engineFlags groups the compute engine selection flags shared by the
// commands that need an environment.
type engineFlags struct {
	engine string

	sshHost string
	sshPort int
	sshUser string
	sshKey  string
}

func registerEngineFlags(cmd *kingpin.CmdClause) *engineFlags {
	f := &engineFlags{}

	cmd.Flag("engine", "Compute engine for the environment (docker, ssh, fake).").Default(engineDocker).EnumVar(&f.engine, engineDocker, engineSSH, engineFake)
	cmd.Flag("ssh-host", "Target host for the ssh engine.").StringVar(&f.sshHost)
	cmd.Flag("ssh-port", "SSH port for the ssh engine.").Default("22").IntVar(&f.sshPort)
	cmd.Flag("ssh-user", "SSH user for the ssh engine.").Default("root").StringVar(&f.sshUser)
	cmd.Flag("ssh-key", "Path to the SSH private key for the ssh engine.").StringVar(&f.sshKey)

	return f
}

// newEngine builds the compute engine the flags select.
func (f *engineFlags) newEngine(logger log.Logger) (compute.Engine, error) {
	switch f.engine {
	case engineDocker:
		return docker.NewEngine(docker.EngineConfig{Logger: logger})
	case engineSSH:
		if f.sshHost == "" {
			return nil, fmt.Errorf("--ssh-host is required when using the ssh engine")
		}
		if f.sshKey == "" {
			return nil, fmt.Errorf("--ssh-key is required when using the ssh engine")
		}
		return sshe.NewEngine(sshe.EngineConfig{
			Host:           f.sshHost,
			Port:           f.sshPort,
			User:           f.sshUser,
			PrivateKeyPath: f.sshKey,
			Logger:         logger,
		})
	case engineFake:
		// Fake environments carry a simulated agent so the whole flow can
		// dry run without real infrastructure.
		return fake.NewEngine(fake.EngineConfig{
			ExecHandler: fake.NewAgentSimHandler(fake.AgentSimConfig{}),
			Logger:      logger,
		})
	default:
		return nil, fmt.Errorf("unknown engine type %q", f.engine)
	}
}

// resolverSource returns the agent source to resolve. Fake environments
// install nothing real, so the default GitHub source is swapped for a local
// placeholder to keep dry runs off the network.
func (f *engineFlags) resolverSource(source string) string {
	if f.engine == engineFake && source == conventions.DefaultAgentRepo {
		return "file:" + os.DevNull
	}
	return source
}

func (f *engineFlags) engineType() model.EngineType {
	switch f.engine {
	case engineSSH:
		return model.EngineSSH
	case engineFake:
		return model.EngineFake
	default:
		return model.EngineDocker
	}
}

// provisionFlags groups the provisioning flags shared by the run and
// provision commands.
type provisionFlags struct {
	agentSource string
	arch        string
	workspace   string
	image       string
	allowHosts  []string
	envSpecs    []string
	directAPI   bool
}

func registerProvisionFlags(cmd *kingpin.CmdClause) *provisionFlags {
	f := &provisionFlags{}

	cmd.Flag("agent-source", "Where the warden agent comes from: a GitHub repo (owner/repo), file:/path, or a direct URL.").Default(conventions.DefaultAgentRepo).StringVar(&f.agentSource)
	cmd.Flag("arch", "Target architecture of the agent release (amd64, arm64).").Default(runtime.GOARCH).EnumVar(&f.arch, "amd64", "arm64")
	cmd.Flag("workspace", "Directory agent sessions are rooted at inside the environment.").Default(conventions.DefaultWorkspace).StringVar(&f.workspace)
	cmd.Flag("image", "Base container image (docker engine only).").Default(conventions.DefaultImage).StringVar(&f.image)
	cmd.Flag("allow-host", "Extra host appended to the agent network allow list (repeatable).").StringsVar(&f.allowHosts)
	cmd.Flag("env", "Environment variable seeded before the agent starts, KEY=VALUE or KEY to inherit (repeatable).").Short('e').StringsVar(&f.envSpecs)
	cmd.Flag("direct-api", "Publish the agent API to the host and verify over direct HTTP instead of the in-environment transport.").BoolVar(&f.directAPI)

	return f
}

// provisionOptions turns the flags into validated provision options.
func (f *provisionFlags) provisionOptions() (*model.ProvisionOptions, error) {
	extraEnv, err := env.ParseSpecs(f.envSpecs)
	if err != nil {
		return nil, fmt.Errorf("invalid --env flag: %w", err)
	}

	opts := model.ProvisionOptions{
		AgentSource:       f.agentSource,
		Arch:              f.arch,
		Workspace:         f.workspace,
		NetworkAllowRules: f.allowHosts,
		ExtraEnv:          extraEnv,
		Image:             f.image,
		DirectAPI:         f.directAPI,
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return &opts, nil
}

// loadCatalogue returns the scenario catalogue to run: the YAML document at
// path when given, the built-in battery otherwise.
func loadCatalogue(ctx context.Context, path, workspace string) ([]model.Scenario, error) {
	if path == "" {
		return scenario.DefaultCatalogue(workspace), nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("could not resolve catalogue path: %w", err)
	}

	repo := scenarioio.NewCatalogueYAMLRepository(os.DirFS(filepath.Dir(abs)))
	scenarios, err := repo.GetCatalogue(ctx, filepath.Base(abs))
	if err != nil {
		return nil, fmt.Errorf("could not load catalogue %s: %w", path, err)
	}

	return scenarios, nil
}
