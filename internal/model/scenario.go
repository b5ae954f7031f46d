package model

import "fmt"

// Scenario is one diagnostic probe: a command to run through the agent and
// the outcome category it is expected to produce.
type Scenario struct {
	// Description says what the probe checks, e.g. "write inside workspace".
	Description string
	// Request is the command sent to the agent exec API.
	Request ExecRequest
	// Expected is the outcome category the probe must produce to pass.
	Expected OutcomeCategory
}

// Validate checks the scenario is correct.
func (s Scenario) Validate() error {
	if s.Description == "" {
		return fmt.Errorf("description is required: %w", ErrNotValid)
	}

	err := s.Request.Validate()
	if err != nil {
		return err
	}

	switch s.Expected {
	case OutcomeAllowed, OutcomeBlocked, OutcomeError:
	default:
		return fmt.Errorf("unknown expected outcome %q: %w", s.Expected, ErrNotValid)
	}

	return nil
}

// ScenarioResult pairs a scenario with its classified outcome and verdict.
type ScenarioResult struct {
	// Scenario is the probe that ran.
	Scenario Scenario
	// Outcome is the classified result of the exec attempt.
	Outcome ExecOutcome
	// Passed is true when the outcome category matched the expectation.
	Passed bool
}

// Report is the result of running a scenario catalogue. Results keep the
// catalogue declaration order and always contain one entry per scenario,
// including scenarios that failed or panicked.
type Report struct {
	// Results are the per-scenario results, in declaration order.
	Results []ScenarioResult
}

// Total returns the number of scenarios that ran.
func (r Report) Total() int {
	return len(r.Results)
}

// Passed returns the number of scenarios whose verdict matched.
func (r Report) Passed() int {
	passed := 0
	for _, res := range r.Results {
		if res.Passed {
			passed++
		}
	}

	return passed
}

// Failed returns the number of scenarios whose verdict did not match.
func (r Report) Failed() int {
	return r.Total() - r.Passed()
}

// Ok returns true when every scenario passed.
func (r Report) Ok() bool {
	return r.Failed() == 0
}
