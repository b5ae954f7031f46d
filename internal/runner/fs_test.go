package runner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/vetbox/internal/compute/computemock"
	"github.com/slok/vetbox/internal/model"
	"github.com/slok/vetbox/internal/runner"
)

func newTestFilesystem(t *testing.T, mEngine *computemock.MockEngine) *runner.Filesystem {
	fs, err := runner.NewFilesystem(runner.FilesystemConfig{
		Accessor: runner.NewEnvironmentAccessor(mEngine, "env-1"),
	})
	require.NoError(t, err)
	return fs
}

func TestFilesystemMkdirAll(t *testing.T) {
	assert := assert.New(t)

	mEngine := &computemock.MockEngine{}
	expScript := "mkdir -p '/var/lib/warden' && chmod 700 '/var/lib/warden'"
	mEngine.On("Exec", mock.Anything, "env-1", []string{"sh", "-c", expScript}, mock.MatchedBy(func(opts model.ExecOpts) bool {
		return opts.Elevated
	})).Once().Return(&model.ExecResult{ExitCode: 0}, nil)

	fs := newTestFilesystem(t, mEngine)
	err := fs.MkdirAll(context.TODO(), "/var/lib/warden", 0o700)

	assert.NoError(err)
	mEngine.AssertExpectations(t)
}

func TestFilesystemWriteFile(t *testing.T) {
	assert := assert.New(t)

	mEngine := &computemock.MockEngine{}
	// "hello" encodes to aGVsbG8=.
	expScript := "echo aGVsbG8= | base64 -d > '/etc/warden/policy.yaml' && chmod 440 '/etc/warden/policy.yaml'"
	mEngine.On("Exec", mock.Anything, "env-1", []string{"sh", "-c", expScript}, mock.MatchedBy(func(opts model.ExecOpts) bool {
		return opts.Elevated
	})).Once().Return(&model.ExecResult{ExitCode: 0}, nil)

	fs := newTestFilesystem(t, mEngine)
	err := fs.WriteFile(context.TODO(), "/etc/warden/policy.yaml", []byte("hello"), 0o440)

	assert.NoError(err)
	mEngine.AssertExpectations(t)
}

func TestFilesystemInstallFile(t *testing.T) {
	tests := map[string]struct {
		mock   func(mEngine *computemock.MockEngine)
		expErr bool
	}{
		"The file should be staged and installed in place": {
			mock: func(mEngine *computemock.MockEngine) {
				mEngine.On("CopyTo", mock.Anything, "env-1", "/local/warden", "/tmp/vetbox-stage-warden").Once().Return(nil)

				expScript := "install -m 755 '/tmp/vetbox-stage-warden' '/usr/local/bin/warden' && rm -f '/tmp/vetbox-stage-warden'"
				mEngine.On("Exec", mock.Anything, "env-1", []string{"sh", "-c", expScript}, mock.Anything).Once().
					Return(&model.ExecResult{ExitCode: 0}, nil)
			},
		},

		"A failed stage copy should be an error": {
			mock: func(mEngine *computemock.MockEngine) {
				mEngine.On("CopyTo", mock.Anything, "env-1", "/local/warden", "/tmp/vetbox-stage-warden").Once().
					Return(assert.AnError)
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			mEngine := &computemock.MockEngine{}
			test.mock(mEngine)

			fs := newTestFilesystem(t, mEngine)
			err := fs.InstallFile(context.TODO(), "/local/warden", "/usr/local/bin/warden", 0o755)

			if test.expErr {
				assert.Error(err)
			} else {
				assert.NoError(err)
			}
			mEngine.AssertExpectations(t)
		})
	}
}
