package graph

import (
	"github.com/buildloom/buildloom/internal/task"
)

// Plan is a topologically valid ordering of every task in a graph: each
// identity appears after all identities it depends on. It is created once
// per run and never mutated afterwards.
type Plan []task.Identity

// node colors for the depth-first traversal.
const (
	white = iota // unvisited
	gray         // in progress, on the traversal stack
	black        // done
)

// Sort proves the graph acyclic and returns a Plan, or reports the offending
// cycle. Determinism: tasks are visited in arena (identity-sorted) order and
// each task's dependencies in the same order, so repeated runs on the same
// input produce identical plans.
func (g *Graph) Sort() (Plan, error) {
	color := make([]int, len(g.tasks))
	parent := make([]int, len(g.tasks))
	for i := range parent {
		parent[i] = -1
	}

	plan := make(Plan, 0, len(g.tasks))

	var visit func(i int) *CycleError
	visit = func(i int) *CycleError {
		color[i] = gray
		for _, j := range g.deps[i] {
			switch color[j] {
			case gray:
				return g.cycleAt(i, j, parent)
			case white:
				parent[j] = i
				if cerr := visit(j); cerr != nil {
					return cerr
				}
			}
		}
		color[i] = black
		plan = append(plan, g.tasks[i].Identity())
		return nil
	}

	for i := range g.tasks {
		if color[i] == white {
			if cerr := visit(i); cerr != nil {
				return nil, cerr
			}
		}
	}
	return plan, nil
}

// cycleAt reconstructs the full cycle closed at arena index head, reached
// again from index tail during traversal.
func (g *Graph) cycleAt(tail, head int, parent []int) *CycleError {
	indices := []int{head, tail}
	for cur := tail; cur != head; {
		cur = parent[cur]
		indices = append(indices, cur)
	}
	// The walk collected the loop backwards; reverse it so the path reads
	// in dependency order, starting and ending at head.
	path := make([]task.Identity, len(indices))
	for i, idx := range indices {
		path[len(indices)-1-i] = g.tasks[idx].Identity()
	}
	return &CycleError{Path: path}
}
