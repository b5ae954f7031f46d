package agent_test

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/vetbox/internal/agent"
	"github.com/slok/vetbox/internal/compute/computemock"
	"github.com/slok/vetbox/internal/model"
	"github.com/slok/vetbox/internal/runner"
)

func TestHTTPGatewayExec(t *testing.T) {
	assert := assert.New(t)

	var gotMethod, gotPath, gotContentType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte(`{"result":{"exit_code":0,"stdout":"hi\n","stderr":""}}`))
	}))
	t.Cleanup(server.Close)

	g, err := agent.NewHTTPGateway(agent.HTTPGatewayConfig{APIAddr: strings.TrimPrefix(server.URL, "http://")})
	require.NoError(t, err)

	raw, err := g.Exec(context.TODO(), model.Session{ID: "sess-1"}, model.ExecRequest{Command: "echo", Args: []string{"hi"}})
	require.NoError(t, err)

	assert.Equal(http.MethodPost, gotMethod)
	assert.Equal("/api/v1/sessions/sess-1/exec", gotPath)
	assert.Equal("application/json", gotContentType)
	assert.JSONEq(`{"command":"echo","args":["hi"]}`, gotBody)
	assert.Equal(`{"result":{"exit_code":0,"stdout":"hi\n","stderr":""}}`, raw)
}

func TestHTTPGatewayExecUnreachable(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.NotFoundHandler())
	apiAddr := strings.TrimPrefix(server.URL, "http://")
	server.Close()

	g, err := agent.NewHTTPGateway(agent.HTTPGatewayConfig{APIAddr: apiAddr})
	require.NoError(t, err)

	_, err = g.Exec(context.TODO(), model.Session{ID: "sess-1"}, model.ExecRequest{Command: "echo"})

	assert.Error(err)
}

func TestHTTPGatewayConfig(t *testing.T) {
	assert := assert.New(t)

	_, err := agent.NewHTTPGateway(agent.HTTPGatewayConfig{})

	assert.Error(err)
}

// isScriptWrite matches the shell line that stages the curl script in the
// environment, and checks the decoded script targets the right session with
// the right request body.
func isScriptWrite(wantInScript ...string) func(command []string) bool {
	return func(command []string) bool {
		if len(command) != 3 || command[0] != "sh" || command[1] != "-c" {
			return false
		}
		line := command[2]
		if !strings.HasPrefix(line, "mkdir -p /tmp/vetbox && echo ") {
			return false
		}
		rest := strings.TrimPrefix(line, "mkdir -p /tmp/vetbox && echo ")
		encoded, _, ok := strings.Cut(rest, " | base64 -d > ")
		if !ok {
			return false
		}
		script, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return false
		}
		for _, want := range wantInScript {
			if !strings.Contains(string(script), want) {
				return false
			}
		}
		return true
	}
}

func isScriptRun(command []string) bool {
	return len(command) == 2 && command[0] == "sh" &&
		strings.HasPrefix(command[1], "/tmp/vetbox/exec-") && strings.HasSuffix(command[1], ".sh")
}

func isResultRead(command []string) bool {
	return len(command) == 2 && command[0] == "cat" &&
		strings.HasPrefix(command[1], "/tmp/vetbox/exec-") && strings.HasSuffix(command[1], ".json")
}

func isCleanup(command []string) bool {
	return len(command) == 3 && command[0] == "sh" && command[1] == "-c" &&
		strings.HasPrefix(command[2], "rm -f /tmp/vetbox/exec-")
}

func TestScriptGatewayExec(t *testing.T) {
	tests := map[string]struct {
		request model.ExecRequest
		mock    func(mEngine *computemock.MockEngine)
		expRaw  string
		expErr  bool
	}{
		"The staged script should carry the request and the response file should be returned raw": {
			request: model.ExecRequest{Command: "rm", Args: []string{"-rf", "/workspace"}},
			mock: func(mEngine *computemock.MockEngine) {
				wantScript := isScriptWrite(
					`-d '{"command":"rm","args":["-rf","/workspace"]}'`,
					"http://127.0.0.1:7337/api/v1/sessions/sess-1/exec",
					"--connect-timeout 2 --max-time 15",
				)
				mEngine.On("Exec", mock.Anything, "env-1", mock.MatchedBy(wantScript), mock.Anything).Once().
					Return(&model.ExecResult{ExitCode: 0}, nil)
				mEngine.On("Exec", mock.Anything, "env-1", mock.MatchedBy(isScriptRun), mock.Anything).Once().
					Return(&model.ExecResult{ExitCode: 0}, nil)
				mEngine.On("Exec", mock.Anything, "env-1", mock.MatchedBy(isResultRead), mock.Anything).Once().
					Run(func(args mock.Arguments) {
						opts := args.Get(3).(model.ExecOpts)
						opts.Stdout.Write([]byte(`{"error":{"code":"policy_denied","message":"nope"}}`))
					}).
					Return(&model.ExecResult{ExitCode: 0}, nil)
				mEngine.On("Exec", mock.Anything, "env-1", mock.MatchedBy(isCleanup), mock.Anything).Once().
					Return(&model.ExecResult{ExitCode: 0}, nil)
			},
			expRaw: `{"error":{"code":"policy_denied","message":"nope"}}`,
		},

		"A missing response file should be returned as an empty response, not an error": {
			request: model.ExecRequest{Command: "echo", Args: []string{"hi"}},
			mock: func(mEngine *computemock.MockEngine) {
				mEngine.On("Exec", mock.Anything, "env-1", mock.MatchedBy(isScriptWrite()), mock.Anything).Once().
					Return(&model.ExecResult{ExitCode: 0}, nil)
				mEngine.On("Exec", mock.Anything, "env-1", mock.MatchedBy(isScriptRun), mock.Anything).Once().
					Return(&model.ExecResult{ExitCode: 7}, nil)
				mEngine.On("Exec", mock.Anything, "env-1", mock.MatchedBy(isResultRead), mock.Anything).Once().
					Run(func(args mock.Arguments) {
						opts := args.Get(3).(model.ExecOpts)
						opts.Stderr.Write([]byte("cat: /tmp/vetbox/exec-x.json: No such file or directory"))
					}).
					Return(&model.ExecResult{ExitCode: 1}, nil)
				mEngine.On("Exec", mock.Anything, "env-1", mock.MatchedBy(isCleanup), mock.Anything).Once().
					Return(&model.ExecResult{ExitCode: 0}, nil)
			},
			expRaw: "",
		},

		"A failure staging the script should be an error and still clean up": {
			request: model.ExecRequest{Command: "echo"},
			mock: func(mEngine *computemock.MockEngine) {
				mEngine.On("Exec", mock.Anything, "env-1", mock.MatchedBy(isScriptWrite()), mock.Anything).Once().
					Return(&model.ExecResult{ExitCode: 1}, nil)
				mEngine.On("Exec", mock.Anything, "env-1", mock.MatchedBy(isCleanup), mock.Anything).Once().
					Return(&model.ExecResult{ExitCode: 0}, nil)
			},
			expErr: true,
		},

		"An engine failure while running the script should be an error": {
			request: model.ExecRequest{Command: "echo"},
			mock: func(mEngine *computemock.MockEngine) {
				mEngine.On("Exec", mock.Anything, "env-1", mock.MatchedBy(isScriptWrite()), mock.Anything).Once().
					Return(&model.ExecResult{ExitCode: 0}, nil)
				mEngine.On("Exec", mock.Anything, "env-1", mock.MatchedBy(isScriptRun), mock.Anything).Once().
					Return(nil, errors.New("container is gone"))
				mEngine.On("Exec", mock.Anything, "env-1", mock.MatchedBy(isCleanup), mock.Anything).Once().
					Return(nil, errors.New("container is gone"))
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			mEngine := &computemock.MockEngine{}
			test.mock(mEngine)

			r, err := runner.NewRunner(runner.RunnerConfig{
				Accessor: runner.NewEnvironmentAccessor(mEngine, "env-1"),
			})
			require.NoError(t, err)

			g, err := agent.NewScriptGateway(agent.ScriptGatewayConfig{Runner: r})
			require.NoError(t, err)

			raw, err := g.Exec(context.TODO(), model.Session{ID: "sess-1"}, test.request)

			if test.expErr {
				assert.Error(err)
			} else {
				assert.NoError(err)
				assert.Equal(test.expRaw, raw)
			}
			mEngine.AssertExpectations(t)
		})
	}
}
