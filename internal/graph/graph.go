// Package graph builds the directed task dependency graph and derives a
// deterministic execution plan from it, rejecting missing dependencies and
// cycles before anything runs.
package graph

import (
	"slices"

	"github.com/buildloom/buildloom/internal/task"
)

// Graph is the immutable dependency graph of a task repository. Tasks live
// in an arena indexed by position; edges are adjacency lists of indices.
// The arena is ordered by identity string, which makes every traversal in
// this package deterministic.
type Graph struct {
	tasks []*task.Task
	index map[task.Identity]int

	// deps[i] lists the arena indices task i depends on; dependents is the
	// reverse adjacency. Both are sorted ascending.
	deps       [][]int
	dependents [][]int
}

// Build constructs a Graph from the repository, resolving every declared
// dependency reference to a task present in the repository. A reference to
// an absent identity fails with a MissingDependencyError.
func Build(repo *task.Repository) (*Graph, error) {
	ids := repo.Identities()

	g := &Graph{
		tasks:      make([]*task.Task, len(ids)),
		index:      make(map[task.Identity]int, len(ids)),
		deps:       make([][]int, len(ids)),
		dependents: make([][]int, len(ids)),
	}
	for i, id := range ids {
		t, _ := repo.Get(id)
		g.tasks[i] = t
		g.index[id] = i
	}

	for i, t := range g.tasks {
		for _, dep := range t.Depends {
			j, ok := g.index[dep]
			if !ok {
				return nil, &MissingDependencyError{Task: t.Identity(), Missing: dep}
			}
			if j == i || slices.Contains(g.deps[i], j) {
				// A self-edge is a one-node cycle and is caught by the
				// sorter; a repeated declaration of the same dependency
				// collapses here.
				if j == i {
					return nil, &CycleError{Path: []task.Identity{t.Identity(), t.Identity()}}
				}
				continue
			}
			g.deps[i] = append(g.deps[i], j)
			g.dependents[j] = append(g.dependents[j], i)
		}
	}
	for i := range g.deps {
		slices.Sort(g.deps[i])
		slices.Sort(g.dependents[i])
	}
	return g, nil
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int {
	return len(g.tasks)
}

// Tasks returns the tasks in arena (identity-sorted) order.
func (g *Graph) Tasks() []*task.Task {
	return slices.Clone(g.tasks)
}

// Task returns the task with the given identity, if present.
func (g *Graph) Task(id task.Identity) (*task.Task, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return g.tasks[i], true
}

// Dependencies returns the identities the given task depends on.
func (g *Graph) Dependencies(id task.Identity) []task.Identity {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	out := make([]task.Identity, 0, len(g.deps[i]))
	for _, j := range g.deps[i] {
		out = append(out, g.tasks[j].Identity())
	}
	return out
}

// Dependents returns the identities that depend on the given task.
func (g *Graph) Dependents(id task.Identity) []task.Identity {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	out := make([]task.Identity, 0, len(g.dependents[i]))
	for _, j := range g.dependents[i] {
		out = append(out, g.tasks[j].Identity())
	}
	return out
}
