package scheduler

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/buildloom/buildloom/internal/task"
)

// TaskResult is the terminal outcome of one task in a run.
type TaskResult struct {
	ID       task.Identity
	State    State
	Err      error
	Duration time.Duration
	// Bypassed is set when a once-flag satisfied the step from cache
	// without executing the external command.
	Bypassed bool
	// ArtifactDir is where the task's build output lives, for the caller's
	// artifact collection.
	ArtifactDir string
}

// Report aggregates a whole run. Results are in plan order.
type Report struct {
	RunID   uuid.UUID
	Action  string
	Results []TaskResult
}

// Counts returns how many tasks ended in each terminal state.
func (r *Report) Counts() (succeeded, failed, skipped int) {
	for _, res := range r.Results {
		switch res.State {
		case StateSucceeded:
			succeeded++
		case StateFailed:
			failed++
		case StateSkipped:
			skipped++
		}
	}
	return
}

// Err returns the aggregate run error, or nil when every task succeeded.
func (r *Report) Err() error {
	var failed, skipped []task.Identity
	for _, res := range r.Results {
		switch res.State {
		case StateFailed:
			failed = append(failed, res.ID)
		case StateSkipped:
			skipped = append(skipped, res.ID)
		}
	}
	if len(failed) == 0 && len(skipped) == 0 {
		return nil
	}
	return &RunError{Failed: failed, Skipped: skipped}
}

// RunError reports the tasks that did not succeed in a run.
type RunError struct {
	Failed  []task.Identity
	Skipped []task.Identity
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run failed: %d task(s) failed, %d skipped", len(e.Failed), len(e.Skipped))
}
