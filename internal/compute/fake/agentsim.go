package fake

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/vetbox/internal/conventions"
	"github.com/slok/vetbox/internal/model"
)

// Simulated policy rule ids, mirroring the control surfaces of a real agent
// policy: command, filesystem, network and environment rules.
const (
	simRuleSudo      = "cmd-001"
	simRuleDeleteFS  = "fs-002"
	simRuleReadFS    = "fs-001"
	simRuleEgress    = "net-001"
	simRuleEnvSecret = "env-001"
)

// simAllowedHosts is the default egress allow list of the simulated agent.
var simAllowedHosts = []string{"github.com", "api.github.com", "objects.githubusercontent.com"}

// AgentSimConfig configures the simulated agent.
type AgentSimConfig struct {
	// AllowedHosts extends the egress allow list (github hosts are always
	// allowed, agent releases come from there).
	AllowedHosts []string
	// DeniedCommands maps extra command names to the rule id that denies
	// them, on top of the built-in policy.
	DeniedCommands map[string]string
	// SilentCommands are commands the simulated agent never answers for: no
	// response file is produced, which looks like a transport failure to the
	// caller.
	SilentCommands []string
}

// NewAgentSimHandler returns an ExecHandler that makes a fake environment
// answer like one with a healthy warden agent inside: the agent CLI creates
// sessions, the health endpoint answers ok and exec requests travel through
// the script transport against a simulated policy.
//
// The simulated policy matches the built-in probe battery: privilege
// escalation, workspace deletion, protected reads, denied egress and secret
// environment reads are blocked, everything else executes and succeeds.
// It exists so the whole provision-and-verify flow can run end to end with
// no real infrastructure, for tests and dry runs.
func NewAgentSimHandler(cfg AgentSimConfig) ExecHandler {
	sim := &agentSim{
		allowedHosts:   append(append([]string{}, simAllowedHosts...), cfg.AllowedHosts...),
		deniedCommands: cfg.DeniedCommands,
		silentCommands: map[string]bool{},
		scripts:        map[string]string{},
		responses:      map[string]string{},
	}
	for _, c := range cfg.SilentCommands {
		sim.silentCommands[c] = true
	}

	return sim.handle
}

// agentSim holds the state of one simulated agent: the transport scripts
// written into the environment and the response files they produced.
type agentSim struct {
	mu             sync.Mutex
	allowedHosts   []string
	deniedCommands map[string]string
	silentCommands map[string]bool
	scripts        map[string]string
	responses      map[string]string
}

func (s *agentSim) handle(ctx context.Context, id string, command []string, opts model.ExecOpts) (*model.ExecResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Agent CLI.
	if len(command) > 1 && command[0] == conventions.AgentBinaryPath {
		if len(command) > 2 && command[1] == "session" && command[2] == "create" {
			sessionID := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
			fmt.Fprintf(opts.Stdout, `{"id": %q}`, sessionID)
		}
		return &model.ExecResult{ExitCode: 0}, nil
	}

	// Shell lines: health checks, transport script writes and cleanup.
	if len(command) == 3 && command[0] == "sh" && command[1] == "-c" {
		line := command[2]

		if strings.Contains(line, "/health") {
			fmt.Fprint(opts.Stdout, "ok\n")
			return &model.ExecResult{ExitCode: 0}, nil
		}

		if path, content, ok := decodeInlineWrite(line); ok {
			s.scripts[path] = content
		}

		return &model.ExecResult{ExitCode: 0}, nil
	}

	// Transport script execution.
	if len(command) == 2 && command[0] == "sh" {
		script, ok := s.scripts[command[1]]
		if !ok {
			fmt.Fprintf(opts.Stderr, "sh: %s: No such file or directory\n", command[1])
			return &model.ExecResult{ExitCode: 127}, nil
		}
		s.runTransportScript(script)
		return &model.ExecResult{ExitCode: 0}, nil
	}

	// Response file reads.
	if len(command) == 2 && command[0] == "cat" {
		response, ok := s.responses[command[1]]
		if !ok {
			fmt.Fprintf(opts.Stderr, "cat: %s: No such file or directory\n", command[1])
			return &model.ExecResult{ExitCode: 1}, nil
		}
		fmt.Fprint(opts.Stdout, response)
		return &model.ExecResult{ExitCode: 0}, nil
	}

	// Everything else (package installs, user creation, agent start...)
	// succeeds silently.
	return &model.ExecResult{ExitCode: 0}, nil
}

// runTransportScript emulates the curl call inside one transport script: it
// parses the request body and output path from the curl flags, runs the
// request through the simulated policy and produces the response file.
func (s *agentSim) runTransportScript(script string) {
	body := flagValue(script, "-d ")
	outPath := flagValue(script, "-o ")
	if body == "" || outPath == "" {
		return
	}

	req := struct {
		Command string   `json:"command"`
		Args    []string `json:"args"`
	}{}
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return
	}

	if s.silentCommands[req.Command] {
		return // The agent never answers: no response file.
	}

	s.responses[outPath] = s.decide(req.Command, req.Args)
}

// decide runs one exec request through the simulated policy and returns the
// raw agent response. Denials are reported through the same layers a real
// agent uses: hard policy errors, the blocked-operations audit trail and
// guidance advisories.
func (s *agentSim) decide(command string, args []string) string {
	if ruleID, ok := s.deniedCommands[command]; ok {
		return policyDeniedResponse(ruleID, fmt.Sprintf("command %q is denied", command))
	}

	switch command {
	case "sudo":
		return policyDeniedResponse(simRuleSudo, "privilege escalation is denied")

	case "rm":
		for _, a := range args {
			if strings.Contains(a, "r") && strings.HasPrefix(a, "-") {
				return blockedOperationsResponse(simRuleDeleteFS, "recursive delete is denied", "fs.delete")
			}
		}

	case "cat":
		for _, a := range args {
			if strings.HasPrefix(a, "/etc/") || strings.HasPrefix(a, "/root/") {
				return blockedOperationsResponse(simRuleReadFS, fmt.Sprintf("read of %s is denied", a), "fs.read")
			}
		}

	case "curl", "wget":
		host := lastURLHost(args)
		if host != "" && !s.hostAllowed(host) {
			return policyDeniedResponse(simRuleEgress, fmt.Sprintf("egress to %s is denied", host))
		}
		return resultResponse(0, "HTTP/2 200\n", "")

	case "printenv", "env":
		for _, a := range args {
			if a == conventions.CanarySecretEnvVar {
				return guidanceResponse(simRuleEnvSecret, "protected environment variables are redacted")
			}
		}

	case "echo":
		return resultResponse(0, strings.Join(args, " ")+"\n", "")
	}

	return resultResponse(0, "", "")
}

func (s *agentSim) hostAllowed(host string) bool {
	for _, h := range s.allowedHosts {
		if host == h {
			return true
		}
	}
	return false
}

// flagValue returns the value following a flag token in a shell line.
// Values wrapped in POSIX single quotes are unquoted, undoing the '\''
// escaping env.SingleQuote applies; bare values run to the next whitespace.
func flagValue(line, flag string) string {
	_, rest, ok := strings.Cut(line, flag)
	if !ok {
		return ""
	}

	if !strings.HasPrefix(rest, "'") {
		if i := strings.IndexAny(rest, " \n"); i >= 0 {
			return rest[:i]
		}
		return rest
	}

	// Single-quoted: '\'' splices a literal quote between two quoted runs.
	rest = rest[1:]
	var b strings.Builder
	for {
		i := strings.IndexByte(rest, '\'')
		if i < 0 {
			return "" // Unterminated quote.
		}
		b.WriteString(rest[:i])
		rest = rest[i+1:]
		if strings.HasPrefix(rest, `\''`) {
			b.WriteByte('\'')
			rest = rest[3:]
			continue
		}
		return b.String()
	}
}

// lastURLHost returns the hostname of the last URL-looking argument.
func lastURLHost(args []string) string {
	for i := len(args) - 1; i >= 0; i-- {
		if !strings.HasPrefix(args[i], "http://") && !strings.HasPrefix(args[i], "https://") {
			continue
		}
		u, err := url.Parse(args[i])
		if err != nil {
			continue
		}
		return u.Hostname()
	}
	return ""
}

func policyDeniedResponse(ruleID, message string) string {
	return fmt.Sprintf(`{"error": {"code": "policy_denied", "message": %q, "rule_id": %q}}`, message, ruleID)
}

func blockedOperationsResponse(ruleID, message, operation string) string {
	return fmt.Sprintf(`{"blocked_operations": [{"rule_id": %q, "message": %q, "operation": %q}], "result": {"exit_code": 1, "stdout": "", "stderr": %q}}`,
		ruleID, message, operation, message)
}

func guidanceResponse(ruleID, reason string) string {
	return fmt.Sprintf(`{"guidance": {"blocked": true, "status": "blocked", "reason": %q, "rule_id": %q}, "result": {"exit_code": 0, "stdout": "", "stderr": ""}}`,
		reason, ruleID)
}

func resultResponse(exitCode int, stdout, stderr string) string {
	payload := struct {
		Result struct {
			ExitCode int    `json:"exit_code"`
			Stdout   string `json:"stdout"`
			Stderr   string `json:"stderr"`
		} `json:"result"`
	}{}
	payload.Result.ExitCode = exitCode
	payload.Result.Stdout = stdout
	payload.Result.Stderr = stderr

	raw, _ := json.Marshal(payload)
	return string(raw)
}

// decodeInlineWrite matches the shell line the script transport uses to
// write a script into the environment and returns the path and decoded
// content.
func decodeInlineWrite(line string) (path, content string, ok bool) {
	if !strings.Contains(line, "base64 -d > ") {
		return "", "", false
	}
	_, rest, ok := strings.Cut(line, "echo ")
	if !ok {
		return "", "", false
	}
	encoded, rest, ok := strings.Cut(rest, " | base64 -d > ")
	if !ok {
		return "", "", false
	}
	path, _, _ = strings.Cut(rest, " && ")

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", false
	}

	return path, string(decoded), true
}
