// Package envset derives the exported environment variables from the task
// graph: a process-wide set locating every task's cache directories, plus a
// per-task overlay of user-declared variables. Resolution is a pure function
// of the graph and the cache layout.
package envset

import (
	"fmt"
	"maps"
	"sort"

	"github.com/buildloom/buildloom/internal/cache"
	"github.com/buildloom/buildloom/internal/graph"
	"github.com/buildloom/buildloom/internal/task"
)

const (
	// CacheRootKey exports the cache root location to every task command.
	CacheRootKey = cache.EnvCacheRoot

	// BuildDirKeyPrefix and SourceDirKeyPrefix are joined with a task's
	// identity suffix to name that task's cache directories, e.g.
	// LOOM_BUILD_CACHE_DIR_LIBC_0_1_0.
	BuildDirKeyPrefix  = "LOOM_BUILD_CACHE_DIR"
	SourceDirKeyPrefix = "LOOM_SOURCE_CACHE_DIR"

	// CurrentBuildDirKey aliases the executing task's own build output
	// directory in its per-task overlay.
	CurrentBuildDirKey = "LOOM_CURRENT_BUILD_DIR"
)

// CollisionError reports two distinct identities whose derived variable
// suffixes collapse to the same name. The transform is not injective, so
// this is checked rather than silently shadowed.
type CollisionError struct {
	Suffix string
	First  task.Identity
	Second task.Identity
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("environment variable suffix %s derived from both %s and %s",
		e.Suffix, e.First, e.Second)
}

// Set holds the derived variable mappings. Global applies to every task;
// PerTask overlays each task's own variables without overriding globals.
type Set struct {
	Global  map[string]string
	PerTask map[task.Identity]map[string]string
}

// Resolve computes a fresh Set from the graph. It has no side effects.
func Resolve(g *graph.Graph, layout cache.Layout) (*Set, error) {
	s := &Set{
		Global:  make(map[string]string),
		PerTask: make(map[task.Identity]map[string]string, g.Len()),
	}
	s.Global[CacheRootKey] = layout.Root

	bySuffix := make(map[string]task.Identity, g.Len())
	for _, t := range g.Tasks() {
		id := t.Identity()
		suffix := id.EnvSuffix()
		if prev, ok := bySuffix[suffix]; ok {
			return nil, &CollisionError{Suffix: suffix, First: prev, Second: id}
		}
		bySuffix[suffix] = id

		s.Global[BuildDirKeyPrefix+"_"+suffix] = layout.BuildDir(id)
		if t.NeedsSourceCache() {
			s.Global[SourceDirKeyPrefix+"_"+suffix] = layout.SourceDir(id)
		}

		local := make(map[string]string, len(t.Env)+1)
		maps.Copy(local, t.Env)
		local[CurrentBuildDirKey] = layout.BuildDir(id)
		s.PerTask[id] = local
	}
	return s, nil
}

// For returns the merged variable mapping for one task. Per-task variables
// are overlaid on the global set and never override a global name.
func (s *Set) For(id task.Identity) map[string]string {
	merged := make(map[string]string, len(s.Global)+len(s.PerTask[id]))
	maps.Copy(merged, s.PerTask[id])
	maps.Copy(merged, s.Global)
	return merged
}

// Environ renders the merged mapping for one task as sorted KEY=VALUE pairs,
// ready for exec.Cmd.
func (s *Set) Environ(id task.Identity) []string {
	merged := s.For(id)
	out := make([]string, 0, len(merged))
	for k, v := range merged {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
