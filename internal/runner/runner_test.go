package runner_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/vetbox/internal/compute/computemock"
	"github.com/slok/vetbox/internal/model"
	"github.com/slok/vetbox/internal/runner"
)

func TestRunnerTryRun(t *testing.T) {
	tests := map[string]struct {
		command   []string
		opts      runner.RunOpts
		mock      func(mEngine *computemock.MockEngine)
		expResult *runner.Result
		expErr    bool
	}{
		"The captured output and exit code should be returned": {
			command: []string{"cat", "/etc/shadow"},
			mock: func(mEngine *computemock.MockEngine) {
				mEngine.On("Exec", mock.Anything, "env-1", []string{"cat", "/etc/shadow"}, mock.Anything).Once().
					Run(func(args mock.Arguments) {
						opts := args.Get(3).(model.ExecOpts)
						opts.Stdout.Write([]byte("partial"))
						opts.Stderr.Write([]byte("permission denied"))
					}).
					Return(&model.ExecResult{ExitCode: 1}, nil)
			},
			expResult: &runner.Result{ExitCode: 1, Stdout: "partial", Stderr: "permission denied"},
		},

		"Options should be forwarded to the engine": {
			command: []string{"id"},
			opts:    runner.RunOpts{WorkingDir: "/workspace", Env: map[string]string{"FOO": "bar"}, Elevated: true},
			mock: func(mEngine *computemock.MockEngine) {
				mEngine.On("Exec", mock.Anything, "env-1", []string{"id"}, mock.MatchedBy(func(opts model.ExecOpts) bool {
					return opts.WorkingDir == "/workspace" && opts.Env["FOO"] == "bar" && opts.Elevated && !opts.Detach
				})).Once().Return(&model.ExecResult{ExitCode: 0}, nil)
			},
			expResult: &runner.Result{ExitCode: 0},
		},

		"An engine failure should be an error": {
			command: []string{"id"},
			mock: func(mEngine *computemock.MockEngine) {
				mEngine.On("Exec", mock.Anything, "env-1", []string{"id"}, mock.Anything).Once().
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

			result, err := r.TryRun(context.TODO(), test.command, test.opts)

			if test.expErr {
				assert.Error(err)
			} else {
				assert.NoError(err)
				assert.Equal(test.expResult, result)
			}
			mEngine.AssertExpectations(t)
		})
	}
}

func TestRunnerRun(t *testing.T) {
	tests := map[string]struct {
		mock        func(mEngine *computemock.MockEngine)
		expErr      bool
		expExitCode int
	}{
		"A zero exit code should succeed": {
			mock: func(mEngine *computemock.MockEngine) {
				mEngine.On("Exec", mock.Anything, "env-1", mock.Anything, mock.Anything).Once().
					Return(&model.ExecResult{ExitCode: 0}, nil)
			},
		},

		"A non-zero exit code should be an exit error with the captured stderr": {
			mock: func(mEngine *computemock.MockEngine) {
				mEngine.On("Exec", mock.Anything, "env-1", mock.Anything, mock.Anything).Once().
					Run(func(args mock.Arguments) {
						opts := args.Get(3).(model.ExecOpts)
						opts.Stderr.Write([]byte("apt-get: not found\n"))
					}).
					Return(&model.ExecResult{ExitCode: 127}, nil)
			},
			expErr:      true,
			expExitCode: 127,
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

			_, err = r.Run(context.TODO(), []string{"apt-get", "update"}, runner.RunOpts{})

			if test.expErr {
				assert.Error(err)

				var exitErr *runner.ExitError
				assert.True(errors.As(err, &exitErr))
				assert.Equal(test.expExitCode, exitErr.ExitCode)
				assert.Contains(exitErr.Error(), "apt-get: not found")
			} else {
				assert.NoError(err)
			}
			mEngine.AssertExpectations(t)
		})
	}
}

func TestRunnerStart(t *testing.T) {
	assert := assert.New(t)

	mEngine := &computemock.MockEngine{}
	mEngine.On("Exec", mock.Anything, "env-1", []string{"/usr/local/bin/warden", "serve"}, mock.MatchedBy(func(opts model.ExecOpts) bool {
		return opts.Detach && opts.Elevated && opts.Stdout == nil
	})).Once().Return(&model.ExecResult{ExitCode: 0}, nil)

	r, err := runner.NewRunner(runner.RunnerConfig{
		Accessor: runner.NewEnvironmentAccessor(mEngine, "env-1"),
	})
	require.NoError(t, err)

	err = r.Start(context.TODO(), []string{"/usr/local/bin/warden", "serve"}, runner.RunOpts{Elevated: true})

	assert.NoError(err)
	mEngine.AssertExpectations(t)
}
