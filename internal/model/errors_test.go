package model_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/vetbox/internal/model"
)

func TestProvisionError(t *testing.T) {
	tests := map[string]struct {
		err        *model.ProvisionError
		expMessage string
		expIs      error
	}{
		"The message should carry the failed step and the cause": {
			err:        model.NewProvisionError("agent-start", errors.New("exit code 1")),
			expMessage: `provisioning failed at step "agent-start": exit code 1`,
			expIs:      nil,
		},

		"Unwrapping should reach the original sentinel": {
			err:        model.NewProvisionError("readiness", fmt.Errorf("health never answered: %w", model.ErrAgentNotReady)),
			expMessage: `provisioning failed at step "readiness": health never answered: agent not ready`,
			expIs:      model.ErrAgentNotReady,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			assert.Equal(test.expMessage, test.err.Error())

			if test.expIs != nil {
				assert.True(errors.Is(test.err, test.expIs))
			}

			var perr *model.ProvisionError
			assert.True(errors.As(test.err, &perr))
			assert.Equal(test.err.Step, perr.Step)
		})
	}
}
