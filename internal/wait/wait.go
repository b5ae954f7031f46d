package wait

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when the condition did not become true in time.
var ErrTimeout = errors.New("timeout waiting for condition")

// ConditionFunc reports whether a condition is met. Returning an error means
// the condition is not met yet; the error is dropped and polling continues.
type ConditionFunc func(ctx context.Context) (bool, error)

// Until polls the condition every interval until it returns true, the timeout
// elapses, or the context is cancelled. The condition is checked once
// immediately before the first wait, and each check receives a context bound
// by the remaining timeout.
func Until(ctx context.Context, interval, timeout time.Duration, condition ConditionFunc) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := condition(ctx)
		if err == nil && ok {
			// A condition that ignored its context and came back true after
			// the deadline does not count as success.
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrTimeout
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrTimeout
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
