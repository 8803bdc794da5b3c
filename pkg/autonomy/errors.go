package autonomy

import (
	"errors"
	"fmt"
)

// ErrNotPending signals that an approve/reject call targeted a request that
// is not in pending status (already resolved, expired, or unknown). It marks
// an idempotent no-op, not a failure: the first caller won and later callers
// learn the id was already resolved.
var ErrNotPending = errors.New("approval request not pending")

// Executor admission guard failures. Each guard produces a distinct error so
// callers can tell "try later" apart from "duplicate submission".
var (
	// ErrNotExecutable means the decision outcome does not permit execution.
	ErrNotExecutable = errors.New("decision outcome is not executable")

	// ErrRateLimited means the minimum inter-execution interval has not
	// elapsed since the previous execution. Try later.
	ErrRateLimited = errors.New("rate limited, try later")

	// ErrTooManyConcurrent means the concurrent-execution cap is reached.
	ErrTooManyConcurrent = errors.New("too many concurrent executions")

	// ErrTypeCoolingDown means the action's type is in a post-failure
	// cooldown window.
	ErrTypeCoolingDown = errors.New("action type is cooling down after failure")

	// ErrAlreadyExecuting means the same action id is currently executing.
	ErrAlreadyExecuting = errors.New("action already executing")
)

// RejectedError carries the reason a decision was rejected by policy.
// Rejection is a normal decision outcome, always audited, never retried.
type RejectedError struct {
	ActionID   string
	Reason     string
	Violations []string
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	if len(e.Violations) > 0 {
		return fmt.Sprintf("decision rejected for action %s: %s (violations: %v)", e.ActionID, e.Reason, e.Violations)
	}
	return fmt.Sprintf("decision rejected for action %s: %s", e.ActionID, e.Reason)
}
