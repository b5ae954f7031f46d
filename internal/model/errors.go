package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrAgentNotReady is returned when the agent never reported healthy
	// within the readiness deadline.
	ErrAgentNotReady = errors.New("agent not ready")
)

// ProvisionError is returned when the provisioning flow fails. It carries the
// name of the bootstrap step that failed so callers and logs can point at the
// exact stage, and wraps the underlying cause.
type ProvisionError struct {
	// Step is the bootstrap step that failed.
	Step string
	// Err is the underlying cause.
	Err error
}

// NewProvisionError returns a provision error tagged with the failed step.
func NewProvisionError(step string, err error) *ProvisionError {
	return &ProvisionError{Step: step, Err: err}
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provisioning failed at step %q: %v", e.Step, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}
