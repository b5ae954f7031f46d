package runner

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/slok/vetbox/internal/log"
	"github.com/slok/vetbox/internal/utils/env"
)

// FilesystemConfig is the configuration for the in-environment filesystem.
type FilesystemConfig struct {
	Accessor EnvironmentAccessor
	Runner   *Runner
	Logger   log.Logger
}

func (c *FilesystemConfig) defaults() error {
	if c.Accessor == nil {
		return fmt.Errorf("environment accessor is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	if c.Runner == nil {
		runner, err := NewRunner(RunnerConfig{Accessor: c.Accessor, Logger: c.Logger})
		if err != nil {
			return err
		}
		c.Runner = runner
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "runner.Filesystem"})
	return nil
}

// Filesystem writes files and directories inside an environment as the
// privileged user. Small files travel inline through the shell, binaries are
// staged with the engine copy and then installed in place so ownership ends
// up with root.
type Filesystem struct {
	accessor EnvironmentAccessor
	runner   *Runner
	logger   log.Logger
}

// NewFilesystem creates a new in-environment filesystem.
func NewFilesystem(cfg FilesystemConfig) (*Filesystem, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Filesystem{
		accessor: cfg.Accessor,
		runner:   cfg.Runner,
		logger:   cfg.Logger,
	}, nil
}

// MkdirAll creates a directory tree with the given mode.
func (f *Filesystem) MkdirAll(ctx context.Context, dir string, mode os.FileMode) error {
	quoted := env.SingleQuote(dir)
	script := fmt.Sprintf("mkdir -p %s && chmod %o %s", quoted, mode.Perm(), quoted)

	_, err := f.runner.RunShell(ctx, script, RunOpts{Elevated: true})
	if err != nil {
		return fmt.Errorf("could not create directory %s: %w", dir, err)
	}

	f.logger.Debugf("Created directory %s (mode %o)", dir, mode.Perm())

	return nil
}

// WriteFile writes content to a file with the given mode. Content travels
// base64 encoded through the shell, so keep it for configuration sized
// payloads and use InstallFile for binaries.
func (f *Filesystem) WriteFile(ctx context.Context, dst string, content []byte, mode os.FileMode) error {
	encoded := base64.StdEncoding.EncodeToString(content)
	quoted := env.SingleQuote(dst)
	script := fmt.Sprintf("echo %s | base64 -d > %s && chmod %o %s", encoded, quoted, mode.Perm(), quoted)

	_, err := f.runner.RunShell(ctx, script, RunOpts{Elevated: true})
	if err != nil {
		return fmt.Errorf("could not write file %s: %w", dst, err)
	}

	f.logger.Debugf("Wrote file %s (%d bytes, mode %o)", dst, len(content), mode.Perm())

	return nil
}

// InstallFile copies a local file into the environment at the given path,
// owned by root with the given mode. The file is staged in a world-writable
// location first because engine copies run as the connecting user.
func (f *Filesystem) InstallFile(ctx context.Context, srcLocal string, dstRemote string, mode os.FileMode) error {
	stage := path.Join("/tmp", fmt.Sprintf("vetbox-stage-%s", filepath.Base(dstRemote)))

	err := f.accessor.CopyTo(ctx, srcLocal, stage)
	if err != nil {
		return fmt.Errorf("could not stage %s: %w", srcLocal, err)
	}

	quotedStage := env.SingleQuote(stage)
	script := fmt.Sprintf("install -m %o %s %s && rm -f %s", mode.Perm(), quotedStage, env.SingleQuote(dstRemote), quotedStage)

	_, err = f.runner.RunShell(ctx, script, RunOpts{Elevated: true})
	if err != nil {
		return fmt.Errorf("could not install %s: %w", dstRemote, err)
	}

	f.logger.Debugf("Installed %s (mode %o)", dstRemote, mode.Perm())

	return nil
}
