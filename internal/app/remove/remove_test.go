package remove_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/vetbox/internal/app/remove"
	"github.com/slok/vetbox/internal/compute/computemock"
	"github.com/slok/vetbox/internal/model"
	"github.com/slok/vetbox/internal/storage/storagemock"
)

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		config remove.ServiceConfig
		expErr bool
	}{
		"valid config": {
			config: remove.ServiceConfig{
				Engine:     &computemock.MockEngine{},
				Repository: &storagemock.MockRepository{},
			},
			expErr: false,
		},
		"missing engine": {
			config: remove.ServiceConfig{Repository: &storagemock.MockRepository{}},
			expErr: true,
		},
		"missing repository": {
			config: remove.ServiceConfig{Engine: &computemock.MockEngine{}},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			svc, err := remove.NewService(test.config)
			if test.expErr {
				require.Error(err)
			} else {
				require.NoError(err)
				require.NotNil(svc)
			}
		})
	}
}

func TestServiceRun(t *testing.T) {
	tests := map[string]struct {
		req        remove.Request
		mockEngine func(m *computemock.MockEngine)
		mockRepo   func(m *storagemock.MockRepository)
		expErr     bool
	}{
		"no target should fail": {
			req:        remove.Request{},
			mockEngine: func(m *computemock.MockEngine) {},
			mockRepo:   func(m *storagemock.MockRepository) {},
			expErr:     true,
		},

		"removing an environment": {
			req: remove.Request{EnvironmentID: "01HENVENVENVENVENVENVENVEN"},
			mockEngine: func(m *computemock.MockEngine) {
				m.On("Remove", mock.Anything, "01HENVENVENVENVENVENVENVEN").Once().Return(nil)
			},
			mockRepo: func(m *storagemock.MockRepository) {},
		},

		"removing an environment twice should not fail (idempotent engines)": {
			req: remove.Request{EnvironmentID: "01HENVENVENVENVENVENVENVEN"},
			mockEngine: func(m *computemock.MockEngine) {
				m.On("Remove", mock.Anything, "01HENVENVENVENVENVENVENVEN").Once().Return(nil)
			},
			mockRepo: func(m *storagemock.MockRepository) {},
		},

		"deleting a run record": {
			req:        remove.Request{RunID: "01HRUNRUNRUNRUNRUNRUNRUNRU"},
			mockEngine: func(m *computemock.MockEngine) {},
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("DeleteRun", mock.Anything, "01HRUNRUNRUNRUNRUNRUNRUNRU").Once().Return(nil)
			},
		},

		"deleting a missing run record should fail with not found": {
			req:        remove.Request{RunID: "01HRUNRUNRUNRUNRUNRUNRUNRU"},
			mockEngine: func(m *computemock.MockEngine) {},
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("DeleteRun", mock.Anything, "01HRUNRUNRUNRUNRUNRUNRUNRU").Once().Return(model.ErrNotFound)
			},
			expErr: true,
		},

		"both targets in one request": {
			req: remove.Request{EnvironmentID: "01HENVENVENVENVENVENVENVEN", RunID: "01HRUNRUNRUNRUNRUNRUNRUNRU"},
			mockEngine: func(m *computemock.MockEngine) {
				m.On("Remove", mock.Anything, "01HENVENVENVENVENVENVENVEN").Once().Return(nil)
			},
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("DeleteRun", mock.Anything, "01HRUNRUNRUNRUNRUNRUNRUNRU").Once().Return(nil)
			},
		},

		"an engine failure should surface": {
			req: remove.Request{EnvironmentID: "01HENVENVENVENVENVENVENVEN"},
			mockEngine: func(m *computemock.MockEngine) {
				m.On("Remove", mock.Anything, "01HENVENVENVENVENVENVENVEN").Once().Return(fmt.Errorf("docker exploded"))
			},
			mockRepo: func(m *storagemock.MockRepository) {},
			expErr:   true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			mEngine := &computemock.MockEngine{}
			test.mockEngine(mEngine)
			mRepo := &storagemock.MockRepository{}
			test.mockRepo(mRepo)

			svc, err := remove.NewService(remove.ServiceConfig{Engine: mEngine, Repository: mRepo})
			require.NoError(err)

			err = svc.Run(context.TODO(), test.req)

			if test.expErr {
				require.Error(err)
			} else {
				require.NoError(err)
			}

			mEngine.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}
