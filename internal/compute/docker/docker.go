package docker

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/oklog/ulid/v2"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/slok/vetbox/internal/conventions"
	"github.com/slok/vetbox/internal/log"
	"github.com/slok/vetbox/internal/model"
	"github.com/slok/vetbox/internal/utils/env"
)

// DockerClient is the interface for Docker operations that we use.
// This allows us to mock the Docker client for testing.
type DockerClient interface {
	Ping(ctx context.Context) (types.Ping, error)
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
}

// EngineConfig is the configuration for the Docker engine.
type EngineConfig struct {
	Client DockerClient
	Logger log.Logger
}

func (c *EngineConfig) defaults() error {
	if c.Client == nil {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return fmt.Errorf("could not create Docker client: %w", err)
		}
		c.Client = cli
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "compute.Docker"})
	return nil
}

// Engine is the Docker implementation of the compute.Engine interface.
// Environments are long-running containers that the provisioning flow
// installs the agent into.
type Engine struct {
	client DockerClient
	logger log.Logger
}

// NewEngine creates a new Docker engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Engine{
		client: cfg.Client,
		logger: cfg.Logger,
	}, nil
}

// Create creates and starts a new Docker container environment.
func (e *Engine) Create(ctx context.Context, cfg model.EnvironmentConfig) (*model.Environment, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	if cfg.Image == "" {
		return nil, fmt.Errorf("container image is required: %w", model.ErrNotValid)
	}

	// Generate ULID for the environment.
	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	containerName := containerName(id)

	e.logger.Infof("[1/3] Pulling image: %s", cfg.Image)
	pullOpts := image.PullOptions{}
	var platform *ocispec.Platform
	if cfg.Arch != "" {
		pullOpts.Platform = fmt.Sprintf("linux/%s", cfg.Arch)
		platform = &ocispec.Platform{OS: "linux", Architecture: cfg.Arch}
	}
	pullResp, err := e.client.ImagePull(ctx, cfg.Image, pullOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to pull image %s: %w", cfg.Image, err)
	}
	// Consume the pull response to ensure it completes.
	_, _ = io.Copy(io.Discard, pullResp)
	pullResp.Close()

	e.logger.Infof("[2/3] Creating container: %s", containerName)

	containerConfig := &container.Config{
		Image: cfg.Image,
		Env:   env.FormatSpecs(cfg.Env),
		Cmd:   []string{"tail", "-f", "/dev/null"}, // Keep container running.
	}
	hostConfig := &container.HostConfig{}

	// Publish the agent API port on a loopback ephemeral port so the host
	// can talk to the agent directly when asked to.
	apiPort, err := nat.NewPort("tcp", strconv.Itoa(conventions.AgentAPIPort))
	if err != nil {
		return nil, fmt.Errorf("failed to build agent API port: %w", err)
	}
	if cfg.PublishAgentPort {
		containerConfig.ExposedPorts = nat.PortSet{apiPort: struct{}{}}
		hostConfig.PortBindings = nat.PortMap{
			apiPort: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: ""}},
		}
	}

	resp, err := e.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, platform, containerName)
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	containerID := resp.ID

	e.logger.Infof("[3/3] Starting container: %s", containerID)
	err = e.client.ContainerStart(ctx, containerID, container.StartOptions{})
	if err != nil {
		// Don't leave the created container behind.
		rmErr := e.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
		if rmErr != nil {
			e.logger.Warningf("Could not remove container %s after failed start: %v", containerID, rmErr)
		}
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	environment := &model.Environment{
		ID:        id,
		Name:      cfg.Name,
		Engine:    model.EngineDocker,
		CreatedAt: time.Now().UTC(),
	}

	if cfg.PublishAgentPort {
		addr, err := e.publishedAPIAddr(ctx, containerID, apiPort)
		if err != nil {
			// No handle exists yet, so nobody else can tear this down.
			rmErr := e.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
			if rmErr != nil {
				e.logger.Warningf("Could not remove container %s after failed port discovery: %v", containerID, rmErr)
			}
			return nil, err
		}
		environment.APIAddr = addr
	}

	e.logger.Infof("Created Docker environment: %s (container: %s)", id, containerID)

	return environment, nil
}

// publishedAPIAddr discovers the host port Docker bound the agent API to.
func (e *Engine) publishedAPIAddr(ctx context.Context, containerID string, apiPort nat.Port) (string, error) {
	info, err := e.client.ContainerInspect(ctx, containerID)
	if err != nil {
		return "", fmt.Errorf("failed to inspect container %s: %w", containerID, err)
	}
	if info.NetworkSettings == nil {
		return "", fmt.Errorf("container %s has no network settings", containerID)
	}

	bindings := info.NetworkSettings.Ports[apiPort]
	if len(bindings) == 0 {
		return "", fmt.Errorf("container %s has no binding for port %s", containerID, apiPort)
	}

	return fmt.Sprintf("127.0.0.1:%s", bindings[0].HostPort), nil
}

// Exec executes a command inside a running Docker container environment.
func (e *Engine) Exec(ctx context.Context, id string, command []string, opts model.ExecOpts) (*model.ExecResult, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("command cannot be empty: %w", model.ErrNotValid)
	}

	containerName := containerName(id)

	// Build docker exec command.
	args := []string{"exec"}

	if opts.Detach {
		args = append(args, "-d")
	}
	if opts.Elevated {
		args = append(args, "-u", "0")
	}
	if opts.WorkingDir != "" {
		args = append(args, "-w", opts.WorkingDir)
	}
	for _, spec := range env.FormatSpecs(opts.Env) {
		args = append(args, "-e", spec)
	}

	args = append(args, containerName)
	args = append(args, command...)

	e.logger.Debugf("Executing command in container %s: docker %v", containerName, args)

	cmd := exec.CommandContext(ctx, "docker", args...)

	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}
	if opts.Stdout != nil {
		cmd.Stdout = opts.Stdout
	}
	if opts.Stderr != nil {
		cmd.Stderr = opts.Stderr
	}

	err := cmd.Run()

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
			e.logger.Debugf("Command exited with code %d", exitCode)
		} else {
			if strings.Contains(err.Error(), "No such container") {
				return nil, fmt.Errorf("container %s: %w", containerName, model.ErrNotFound)
			}
			if strings.Contains(err.Error(), "is not running") {
				return nil, fmt.Errorf("container %s is not running: %w", containerName, model.ErrNotValid)
			}
			return nil, fmt.Errorf("failed to execute command: %w", err)
		}
	}

	return &model.ExecResult{
		ExitCode: exitCode,
	}, nil
}

// CopyTo copies a local file into a running Docker container environment.
func (e *Engine) CopyTo(ctx context.Context, id string, srcLocal string, dstRemote string) error {
	containerName := containerName(id)

	e.logger.Debugf("Copying %s to container %s:%s", srcLocal, containerName, dstRemote)

	cmd := exec.CommandContext(ctx, "docker", "cp", srcLocal, fmt.Sprintf("%s:%s", containerName, dstRemote))
	out, err := cmd.CombinedOutput()
	if err != nil {
		if strings.Contains(string(out), "No such container") {
			return fmt.Errorf("container %s: %w", containerName, model.ErrNotFound)
		}
		return fmt.Errorf("failed to copy %s to container: %s: %w", srcLocal, strings.TrimSpace(string(out)), err)
	}

	return nil
}

// Remove removes a Docker container environment.
func (e *Engine) Remove(ctx context.Context, id string) error {
	containerName := containerName(id)

	e.logger.Infof("Removing container: %s", containerName)
	err := e.client.ContainerRemove(ctx, containerName, container.RemoveOptions{
		Force: true, // Force removal even if running.
	})
	if err != nil {
		// Already removed, removal is idempotent.
		if strings.Contains(err.Error(), "No such container") {
			e.logger.Debugf("Container %s already removed", containerName)
			return nil
		}
		return fmt.Errorf("failed to remove container %s: %w", containerName, err)
	}

	e.logger.Infof("Removed Docker environment: %s", id)
	return nil
}

// Check performs the Docker engine preflight checks.
func (e *Engine) Check(ctx context.Context) []model.CheckResult {
	results := []model.CheckResult{}

	_, err := e.client.Ping(ctx)
	if err != nil {
		results = append(results, model.CheckResult{
			ID:      "docker_daemon",
			Message: fmt.Sprintf("Docker daemon not reachable: %v", err),
			Status:  model.CheckStatusError,
		})
	} else {
		results = append(results, model.CheckResult{
			ID:      "docker_daemon",
			Message: "Docker daemon is reachable",
			Status:  model.CheckStatusOK,
		})
	}

	// Exec and CopyTo shell out to the docker CLI.
	_, err = exec.LookPath("docker")
	if err != nil {
		results = append(results, model.CheckResult{
			ID:      "docker_cli",
			Message: "docker CLI not found in PATH",
			Status:  model.CheckStatusError,
		})
	} else {
		results = append(results, model.CheckResult{
			ID:      "docker_cli",
			Message: "docker CLI is available",
			Status:  model.CheckStatusOK,
		})
	}

	return results
}

func containerName(id string) string {
	return fmt.Sprintf("vetbox-%s", strings.ToLower(id))
}
