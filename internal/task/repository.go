package task

import (
	"fmt"
	"sort"
)

// Repository holds the full set of parsed task definitions, keyed by
// identity. It is the input to graph construction and performs the
// duplicate-identity checks at insertion time.
type Repository struct {
	tasks map[Identity]*Task
}

// ConflictError reports two declarations of the same identity with
// materially different content.
type ConflictError struct {
	ID Identity
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("duplicate identity %s: conflicting definitions", e.ID)
}

// NewRepository returns an empty repository.
func NewRepository() *Repository {
	return &Repository{tasks: make(map[Identity]*Task)}
}

// Add inserts a task into the repository. A re-declaration identical to the
// existing one collapses silently; a conflicting re-declaration fails with a
// ConflictError.
func (r *Repository) Add(t *Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	id := t.Identity()
	if existing, ok := r.tasks[id]; ok {
		if existing.equalDefinition(t) {
			return nil
		}
		return &ConflictError{ID: id}
	}
	r.tasks[id] = t
	return nil
}

// Get returns the task with the given identity, if present.
func (r *Repository) Get(id Identity) (*Task, bool) {
	t, ok := r.tasks[id]
	return t, ok
}

// Len returns the number of distinct tasks held.
func (r *Repository) Len() int {
	return len(r.tasks)
}

// Identities returns all task identities sorted by their string form, so
// that iteration over the repository is deterministic.
func (r *Repository) Identities() []Identity {
	ids := make([]Identity, 0, len(r.tasks))
	for id := range r.tasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	return ids
}

// FilterArch returns a new repository containing only the tasks that apply
// to the given architecture.
func (r *Repository) FilterArch(arch string) *Repository {
	out := NewRepository()
	for id, t := range r.tasks {
		if t.SupportsArch(arch) {
			out.tasks[id] = t
		}
	}
	return out
}
