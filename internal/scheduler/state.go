package scheduler

import "fmt"

// State is a task's runtime execution state. It is owned exclusively by the
// scheduler; every task ends a run in exactly one of StateSucceeded,
// StateFailed, or StateSkipped.
type State int

const (
	// StatePending means the task has not been dispatched yet.
	StatePending State = iota
	// StateRunning means a worker is executing the task's step.
	StateRunning
	// StateSucceeded means the step completed (or was bypassed by a once-flag).
	StateSucceeded
	// StateFailed means the step's external command failed.
	StateFailed
	// StateSkipped means an upstream dependency failed or the run was
	// cancelled before the task started.
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether the state is one of the three run outcomes.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateSkipped
}
