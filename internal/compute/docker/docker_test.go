package docker_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/vetbox/internal/compute/docker"
	"github.com/slok/vetbox/internal/model"
)

type mockDockerClient struct {
	mock.Mock
}

func (m *mockDockerClient) Ping(ctx context.Context) (types.Ping, error) {
	args := m.Called(ctx)
	return args.Get(0).(types.Ping), args.Error(1)
}

func (m *mockDockerClient) ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error) {
	args := m.Called(ctx, refStr, options)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func (m *mockDockerClient) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	args := m.Called(ctx, config, hostConfig, networkingConfig, platform, containerName)
	return args.Get(0).(container.CreateResponse), args.Error(1)
}

func (m *mockDockerClient) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	args := m.Called(ctx, containerID, options)
	return args.Error(0)
}

func (m *mockDockerClient) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	args := m.Called(ctx, containerID, options)
	return args.Error(0)
}

func (m *mockDockerClient) ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error) {
	args := m.Called(ctx, containerID)
	return args.Get(0).(container.InspectResponse), args.Error(1)
}

func TestEngineCreate(t *testing.T) {
	const containerID = "container-1"

	tests := map[string]struct {
		config  model.EnvironmentConfig
		mock    func(m *mockDockerClient)
		expErr  bool
		expAddr string
	}{
		"Creating and starting an environment should succeed": {
			config: model.EnvironmentConfig{Name: "env", Image: "ubuntu:24.04"},
			mock: func(m *mockDockerClient) {
				m.On("ImagePull", mock.Anything, "ubuntu:24.04", mock.Anything).Once().Return(io.NopCloser(strings.NewReader("")), nil)
				m.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Once().Return(container.CreateResponse{ID: containerID}, nil)
				m.On("ContainerStart", mock.Anything, containerID, mock.Anything).Once().Return(nil)
			},
		},

		"A failed start should remove the created container": {
			config: model.EnvironmentConfig{Name: "env", Image: "ubuntu:24.04"},
			mock: func(m *mockDockerClient) {
				m.On("ImagePull", mock.Anything, "ubuntu:24.04", mock.Anything).Once().Return(io.NopCloser(strings.NewReader("")), nil)
				m.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Once().Return(container.CreateResponse{ID: containerID}, nil)
				m.On("ContainerStart", mock.Anything, containerID, mock.Anything).Once().Return(errors.New("oom"))
				m.On("ContainerRemove", mock.Anything, containerID, mock.Anything).Once().Return(nil)
			},
			expErr: true,
		},

		"A failed port discovery should remove the started container": {
			config: model.EnvironmentConfig{Name: "env", Image: "ubuntu:24.04", PublishAgentPort: true},
			mock: func(m *mockDockerClient) {
				m.On("ImagePull", mock.Anything, "ubuntu:24.04", mock.Anything).Once().Return(io.NopCloser(strings.NewReader("")), nil)
				m.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Once().Return(container.CreateResponse{ID: containerID}, nil)
				m.On("ContainerStart", mock.Anything, containerID, mock.Anything).Once().Return(nil)
				m.On("ContainerInspect", mock.Anything, containerID).Once().Return(container.InspectResponse{}, errors.New("inspect failed"))
				m.On("ContainerRemove", mock.Anything, containerID, mock.Anything).Once().Return(nil)
			},
			expErr: true,
		},

		"A missing port binding should remove the started container": {
			config: model.EnvironmentConfig{Name: "env", Image: "ubuntu:24.04", PublishAgentPort: true},
			mock: func(m *mockDockerClient) {
				m.On("ImagePull", mock.Anything, "ubuntu:24.04", mock.Anything).Once().Return(io.NopCloser(strings.NewReader("")), nil)
				m.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Once().Return(container.CreateResponse{ID: containerID}, nil)
				m.On("ContainerStart", mock.Anything, containerID, mock.Anything).Once().Return(nil)
				m.On("ContainerInspect", mock.Anything, containerID).Once().Return(inspectWithBindings(nat.PortMap{}), nil)
				m.On("ContainerRemove", mock.Anything, containerID, mock.Anything).Once().Return(nil)
			},
			expErr: true,
		},

		"A published agent port should surface as the environment API address": {
			config: model.EnvironmentConfig{Name: "env", Image: "ubuntu:24.04", PublishAgentPort: true},
			mock: func(m *mockDockerClient) {
				m.On("ImagePull", mock.Anything, "ubuntu:24.04", mock.Anything).Once().Return(io.NopCloser(strings.NewReader("")), nil)
				m.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Once().Return(container.CreateResponse{ID: containerID}, nil)
				m.On("ContainerStart", mock.Anything, containerID, mock.Anything).Once().Return(nil)
				m.On("ContainerInspect", mock.Anything, containerID).Once().Return(inspectWithBindings(nat.PortMap{
					"7337/tcp": []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: "49200"}},
				}), nil)
			},
			expAddr: "127.0.0.1:49200",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			mockClient := &mockDockerClient{}
			test.mock(mockClient)

			eng, err := docker.NewEngine(docker.EngineConfig{Client: mockClient})
			require.NoError(err)

			env, err := eng.Create(context.Background(), test.config)

			if test.expErr {
				assert.Error(err)
				assert.Nil(env)
			} else {
				require.NoError(err)
				require.NotNil(env)
				assert.Equal(model.EngineDocker, env.Engine)
				assert.Equal(test.expAddr, env.APIAddr)
			}

			mockClient.AssertExpectations(t)
		})
	}
}

func inspectWithBindings(ports nat.PortMap) container.InspectResponse {
	return container.InspectResponse{
		NetworkSettings: &container.NetworkSettings{
			NetworkSettingsBase: container.NetworkSettingsBase{Ports: ports},
		},
	}
}
