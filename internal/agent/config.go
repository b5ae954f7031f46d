package agent

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/slok/vetbox/internal/conventions"
)

// Baseline policy material. Options extend these, they never replace them.
var (
	defaultWriteRoots = []string{"/tmp"}

	defaultDenyReadPaths = []string{
		"/etc/shadow",
		"/etc/sudoers",
		"/etc/sudoers.d/**",
		"/root/**",
		"/var/lib/warden/**",
	}

	defaultAllowHosts = []string{
		"github.com",
		"objects.githubusercontent.com",
	}

	defaultRedactEnvVars = []string{
		conventions.CanarySecretEnvVar,
		"*_SECRET",
		"*_TOKEN",
		"*_KEY",
		"AWS_*",
	}

	defaultDenyCommands = []string{
		"sudo",
		"su",
		"mount",
		"chroot",
	}
)

// ServerConfig is the material rendered into the agent server configuration
// document.
type ServerConfig struct {
	// ListenAddr is the address the agent API listens on. Defaults to the
	// in-environment loopback address.
	ListenAddr string
	// LogLevel is the agent log level (default info).
	LogLevel string
}

type serverConfigYAML struct {
	ListenAddr  string `yaml:"listen_addr"`
	StateDir    string `yaml:"state_dir"`
	SessionsDir string `yaml:"sessions_dir"`
	PolicyPath  string `yaml:"policy_path"`
	LogLevel    string `yaml:"log_level"`
}

// RenderServerConfig renders the agent server configuration document.
func RenderServerConfig(cfg ServerConfig) ([]byte, error) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = conventions.AgentAPIAddr()
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	data, err := yaml.Marshal(serverConfigYAML{
		ListenAddr:  cfg.ListenAddr,
		StateDir:    conventions.AgentStateDir,
		SessionsDir: conventions.AgentSessionsDir,
		PolicyPath:  conventions.AgentPolicyPath,
		LogLevel:    cfg.LogLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("could not render server config: %w", err)
	}

	return data, nil
}

// PolicyConfig is the material rendered into the agent policy document.
type PolicyConfig struct {
	// Workspace is the directory sessions may write to.
	Workspace string
	// ExtraAllowHosts extends the network egress allow list.
	ExtraAllowHosts []string
	// ExtraRedactEnvVars extends the environment redaction list.
	ExtraRedactEnvVars []string
}

type policyYAML struct {
	Version    int            `yaml:"version"`
	Filesystem policyFSYAML   `yaml:"filesystem"`
	Network    policyNetYAML  `yaml:"network"`
	Env        policyEnvYAML  `yaml:"environment"`
	Commands   policyCmdsYAML `yaml:"commands"`
}

type policyFSYAML struct {
	WriteRoots   []string `yaml:"write_roots"`
	DenyRead     []string `yaml:"deny_read"`
	ProtectRoots bool     `yaml:"protect_roots"`
}

type policyNetYAML struct {
	DefaultAction string   `yaml:"default_action"`
	AllowHosts    []string `yaml:"allow_hosts"`
}

type policyEnvYAML struct {
	Redact []string `yaml:"redact"`
}

type policyCmdsYAML struct {
	Deny []string `yaml:"deny"`
}

// RenderPolicy renders the agent policy document: writes confined to the
// workspace, egress denied by default with an allow list, secrets redacted
// from the environment and privileged commands refused.
func RenderPolicy(cfg PolicyConfig) ([]byte, error) {
	if cfg.Workspace == "" {
		return nil, fmt.Errorf("workspace is required")
	}

	writeRoots := append([]string{cfg.Workspace}, defaultWriteRoots...)
	allowHosts := append(append([]string{}, defaultAllowHosts...), cfg.ExtraAllowHosts...)
	redact := append(append([]string{}, defaultRedactEnvVars...), cfg.ExtraRedactEnvVars...)

	data, err := yaml.Marshal(policyYAML{
		Version: 1,
		Filesystem: policyFSYAML{
			WriteRoots:   writeRoots,
			DenyRead:     defaultDenyReadPaths,
			ProtectRoots: true,
		},
		Network: policyNetYAML{
			DefaultAction: "deny",
			AllowHosts:    allowHosts,
		},
		Env: policyEnvYAML{
			Redact: redact,
		},
		Commands: policyCmdsYAML{
			Deny: defaultDenyCommands,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("could not render policy: %w", err)
	}

	return data, nil
}
