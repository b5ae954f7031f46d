package conventions

import (
	"fmt"
	"path/filepath"
)

const (
	// AgentBinaryPath is where the warden agent binary is installed inside
	// the environment.
	AgentBinaryPath = "/usr/local/bin/warden"
	// ShimBinaryPath is where the warden shell shim is installed inside the
	// environment.
	ShimBinaryPath = "/usr/local/bin/warden-shim"

	// Agent configuration files.

	// AgentConfigDir is the agent configuration directory.
	AgentConfigDir = "/etc/warden"
	// AgentServerConfigPath is the agent server configuration file.
	AgentServerConfigPath = "/etc/warden/server.yaml"
	// AgentPolicyPath is the agent policy rules file.
	AgentPolicyPath = "/etc/warden/policy.yaml"

	// Agent state directories.

	// AgentStateDir is the agent mutable state directory.
	AgentStateDir = "/var/lib/warden"
	// AgentSessionsDir is where the agent keeps per-session state.
	AgentSessionsDir = "/var/lib/warden/sessions"
	// AgentConfigDirMode is the permission mode for the config directory.
	AgentConfigDirMode = 0o755
	// AgentStateDirMode is the permission mode for the state directories.
	// State holds session transcripts, keep it out of reach of other users.
	AgentStateDirMode = 0o700

	// Elevation and environment seeding.

	// SudoersDropInPath grants the unprivileged user passwordless sudo for
	// the agent binary only. A blanket grant would defeat the point of the
	// command policy the agent enforces.
	SudoersDropInPath = "/etc/sudoers.d/90-warden"
	// ProfileEnvPath is the profile drop-in that seeds agent environment
	// variables into login shells.
	ProfileEnvPath = "/etc/profile.d/warden-env.sh"

	// Agent control API.

	// AgentAPIHost is the loopback address the agent listens on inside the
	// environment.
	AgentAPIHost = "127.0.0.1"
	// AgentAPIPort is the port the agent control API listens on.
	AgentAPIPort = 7337

	// RuntimeUser is the unprivileged user agent sessions run as. Created
	// during provisioning, granted sudo for the agent binary only.
	RuntimeUser = "sandbox"

	// CanarySecretEnvVar is the environment variable planted before the
	// agent starts. Probes read it back to prove the agent redacts secrets.
	CanarySecretEnvVar = "VETBOX_CANARY_SECRET"

	// DefaultWorkspace is the default directory agent sessions are rooted at.
	DefaultWorkspace = "/workspace"
	// DefaultImage is the default container image for docker environments.
	DefaultImage = "debian:bookworm-slim"
	// DefaultAgentRepo is the GitHub repository agent releases come from.
	DefaultAgentRepo = "slok/warden"
	// ExecResultsDir is where the script transport stages its scripts and
	// response files inside the environment.
	ExecResultsDir = "/tmp/vetbox"

	// DefaultDataDir is the default vetbox data directory name (relative to home).
	DefaultDataDir = ".vetbox"
)

// AgentAPIAddr returns the loopback "host:port" of the agent control API as
// seen from inside the environment.
func AgentAPIAddr() string {
	return fmt.Sprintf("%s:%d", AgentAPIHost, AgentAPIPort)
}

// ExecResultPath returns the response file path for one script-transport exec.
func ExecResultPath(execID string) string {
	return filepath.Join(ExecResultsDir, fmt.Sprintf("exec-%s.json", execID))
}
