package agent

import (
	"finsight/internal/guard"
	"finsight/internal/store"
)

// State is one stage of the per-request pipeline.
type State int

const (
	StateGenerating State = iota
	StateSecurityCheck
	StateExecuting
	StateRefining
	StateSucceeded
	StateFailed
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateGenerating:
		return "generating"
	case StateSecurityCheck:
		return "security_check"
	case StateExecuting:
		return "executing"
	case StateRefining:
		return "refining"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StepOutcome is the result of executing one pipeline stage.
type StepOutcome int

const (
	OutcomeQueryProduced StepOutcome = iota
	OutcomeSecurityPassed
	OutcomeSecurityRejected
	OutcomeExecutionSucceeded
	OutcomeExecutionFailed
)

// MaxAttempts is the execution-failure retry budget per request. It bounds
// worst-case external calls per request to a small constant.
const MaxAttempts = 3

// Next is the pure transition function of the pipeline state machine.
// attemptIndex counts completed execution attempts, and is incremented by
// the caller before consulting Next on an execution failure.
func Next(s State, attemptIndex int, outcome StepOutcome, maxAttempts int) State {
	if maxAttempts <= 0 {
		maxAttempts = MaxAttempts
	}
	switch s {
	case StateGenerating, StateRefining:
		if outcome == OutcomeQueryProduced {
			return StateSecurityCheck
		}
		return StateFailed
	case StateSecurityCheck:
		if outcome == OutcomeSecurityPassed {
			return StateExecuting
		}
		// A security rejection is terminal regardless of attempt index;
		// regenerating under the same prompt is not expected to produce a
		// safe statement.
		return StateFailed
	case StateExecuting:
		if outcome == OutcomeExecutionSucceeded {
			return StateSucceeded
		}
		if attemptIndex >= maxAttempts {
			return StateFailed
		}
		return StateRefining
	default:
		return s
	}
}

// Attempt records one candidate query and its fate. The sequence is owned
// by the orchestrator and discarded when the request completes.
type Attempt struct {
	Index     int
	QueryText string

	// Exactly one of the following describes the outcome.
	Result         *store.ResultSet
	SecurityReason guard.ViolationKind
	ErrorText      string
}
