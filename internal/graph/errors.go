package graph

import (
	"fmt"
	"strings"

	"github.com/buildloom/buildloom/internal/task"
)

// MissingDependencyError reports a dependency reference to an identity that
// is not present in the repository.
type MissingDependencyError struct {
	Task    task.Identity
	Missing task.Identity
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("task %s depends on %s, which is not declared", e.Task, e.Missing)
}

// CycleError reports an illegal dependency cycle. Path holds the full loop
// in dependency order; its first and last elements are the same identity.
type CycleError struct {
	Path []task.Identity
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, id := range e.Path {
		parts[i] = id.String()
	}
	return "dependency cycle detected: " + strings.Join(parts, " -> ")
}
