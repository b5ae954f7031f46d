package fake

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/vetbox/internal/utils/env"
)

func TestFlagValue(t *testing.T) {
	tests := map[string]struct {
		line     string
		flag     string
		expected string
	}{
		"A bare value should run to the next whitespace": {
			line:     "curl -sS -d body -o /tmp/vetbox/exec-1.json http://host/exec",
			flag:     "-o ",
			expected: "/tmp/vetbox/exec-1.json",
		},

		"A bare value at the end of the line should be returned whole": {
			line:     "curl -o /tmp/out.json",
			flag:     "-o ",
			expected: "/tmp/out.json",
		},

		"A single-quoted value should be unquoted": {
			line:     `curl -d '{"command":"echo","args":["hi"]}' -o /tmp/out.json http://host`,
			flag:     "-d ",
			expected: `{"command":"echo","args":["hi"]}`,
		},

		"An embedded single quote escaped with the POSIX idiom should be restored": {
			line:     "curl -d " + env.SingleQuote(`{"args":["it's"]}`) + " -o /tmp/out.json",
			flag:     "-d ",
			expected: `{"args":["it's"]}`,
		},

		"A missing flag should yield an empty value": {
			line:     "curl -sS http://host",
			flag:     "-d ",
			expected: "",
		},

		"An unterminated quote should yield an empty value": {
			line:     "curl -d 'oops",
			flag:     "-d ",
			expected: "",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expected, flagValue(test.line, test.flag))
		})
	}
}

func TestRunTransportScriptRoundTrip(t *testing.T) {
	assert := assert.New(t)

	sim := &agentSim{
		allowedHosts: simAllowedHosts,
		scripts:      map[string]string{},
		responses:    map[string]string{},
	}

	body := `{"command":"echo","args":["it's fine"]}`
	script := "#!/bin/sh\ncurl -sS -X POST --connect-timeout 2 --max-time 15 -d " +
		env.SingleQuote(body) + " -o /tmp/vetbox/exec-1.json http://127.0.0.1:7337/api/v1/sessions/s1/exec\n"

	sim.runTransportScript(script)

	response, ok := sim.responses["/tmp/vetbox/exec-1.json"]
	assert.True(ok)
	assert.Contains(response, `"exit_code":0`)
	assert.Contains(response, "it's fine")
}
