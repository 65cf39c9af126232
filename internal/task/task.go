// Package task defines the build task model and the repository that holds
// the full set of parsed task definitions, keyed by identity.
package task

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// envNameReplacer rewrites the characters that may not appear in a derived
// environment variable name. Two distinct identities can collapse to the
// same result; the environment resolver reports that as a collision.
var envNameReplacer = strings.NewReplacer(
	" ", "_",
	"\t", "_",
	"-", "_",
	".", "_",
	"+", "_",
	"*", "_",
)

// Identity uniquely names a task as a (name, version) pair. Two tasks with
// the same identity are the same logical task.
type Identity struct {
	Name    string
	Version string
}

// String returns the canonical "name-version" form of the identity.
func (id Identity) String() string {
	return id.Name + "-" + id.Version
}

// Slug returns the filesystem-safe form of the identity, used for cache
// directory names.
func (id Identity) Slug() string {
	return envNameReplacer.Replace(id.String())
}

// EnvSuffix returns the environment variable suffix derived from the
// identity: the upper-cased "name-version" string with each of space, tab,
// '-', '.', '+', '*' replaced by '_'. Identity libc/0.1.0 yields LIBC_0_1_0.
func (id Identity) EnvSuffix() string {
	return envNameReplacer.Replace(strings.ToUpper(id.String()))
}

// Kind tells how a task produces its output.
type Kind int

const (
	// KindBuildFromSource builds the task's output from source code.
	KindBuildFromSource Kind = iota + 1
	// KindInstallFromPrebuilt takes the task's output from a prebuilt package.
	KindInstallFromPrebuilt
)

func (k Kind) String() string {
	switch k {
	case KindBuildFromSource:
		return "build_from_source"
	case KindInstallFromPrebuilt:
		return "install_from_prebuilt"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// SourceKind tells where a task's source or prebuilt payload comes from.
type SourceKind int

const (
	// SourceLocal points at a directory on the local filesystem.
	SourceLocal SourceKind = iota + 1
	// SourceGit points at a git repository to be fetched into the source cache.
	SourceGit
	// SourceArchive points at a remote archive to be fetched into the source cache.
	SourceArchive
)

func (k SourceKind) String() string {
	switch k {
	case SourceLocal:
		return "local"
	case SourceGit:
		return "git"
	case SourceArchive:
		return "archive"
	default:
		return fmt.Sprintf("SourceKind(%d)", int(k))
	}
}

// GitSource describes a git repository reference.
type GitSource struct {
	URL      string
	Branch   string
	Revision string
}

// Source is a closed tagged variant: exactly one payload field is meaningful,
// selected by Kind.
type Source struct {
	Kind SourceKind

	// Path is the local directory (SourceLocal).
	Path string
	// Git is the repository reference (SourceGit).
	Git GitSource
	// URL is the archive location (SourceArchive).
	URL string
}

// Task is a single build/install unit. It is immutable after graph
// construction; runtime execution state lives in the scheduler, not here.
type Task struct {
	Name        string
	Version     string
	Description string

	Kind   Kind
	Source Source

	// Depends lists the identities that must have succeeded before this
	// task may start.
	Depends []Identity

	BuildCommand   string
	InstallCommand string
	CleanCommand   string

	// Env holds the user-declared environment variables for this task's
	// commands. Insertion order is irrelevant.
	Env map[string]string

	// BuildOnce skips the build step when a prior successful build is
	// recorded in the cache. InstallOnce does the same for install.
	BuildOnce   bool
	InstallOnce bool

	// TargetArch lists the architectures this task applies to. Empty means
	// all architectures.
	TargetArch []string
}

// Identity returns the (name, version) identity of the task.
func (t *Task) Identity() Identity {
	return Identity{Name: t.Name, Version: t.Version}
}

// Validate checks the task definition for structural problems.
func (t *Task) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("task name is empty")
	}
	if t.Version == "" {
		return fmt.Errorf("task %q: version is empty", t.Name)
	}
	switch t.Kind {
	case KindBuildFromSource, KindInstallFromPrebuilt:
	default:
		return fmt.Errorf("task %s: unknown task kind %d", t.Identity(), int(t.Kind))
	}
	switch t.Source.Kind {
	case SourceLocal:
		if t.Source.Path == "" {
			return fmt.Errorf("task %s: local source path is empty", t.Identity())
		}
	case SourceGit:
		if t.Source.Git.URL == "" {
			return fmt.Errorf("task %s: git source url is empty", t.Identity())
		}
	case SourceArchive:
		if t.Source.URL == "" {
			return fmt.Errorf("task %s: archive source url is empty", t.Identity())
		}
	default:
		return fmt.Errorf("task %s: unknown source kind %d", t.Identity(), int(t.Source.Kind))
	}
	if t.Kind == KindInstallFromPrebuilt && t.Source.Kind == SourceGit {
		return fmt.Errorf("task %s: prebuilt tasks cannot use a git source", t.Identity())
	}
	for _, dep := range t.Depends {
		if dep.Name == "" || dep.Version == "" {
			return fmt.Errorf("task %s: dependency with empty name or version", t.Identity())
		}
	}
	return nil
}

// SupportsArch reports whether the task applies to the given architecture.
func (t *Task) SupportsArch(arch string) bool {
	if len(t.TargetArch) == 0 {
		return true
	}
	return slices.Contains(t.TargetArch, arch)
}

// NeedsSourceCache reports whether the task's input is fetched into the
// source cache rather than read from a local directory.
func (t *Task) NeedsSourceCache() bool {
	return t.Source.Kind == SourceGit || t.Source.Kind == SourceArchive
}

// equalDefinition reports whether two declarations of the same identity have
// materially identical content, so one of them can be collapsed away.
func (t *Task) equalDefinition(other *Task) bool {
	return t.Name == other.Name &&
		t.Version == other.Version &&
		t.Description == other.Description &&
		t.Kind == other.Kind &&
		t.Source == other.Source &&
		slices.Equal(t.Depends, other.Depends) &&
		t.BuildCommand == other.BuildCommand &&
		t.InstallCommand == other.InstallCommand &&
		t.CleanCommand == other.CleanCommand &&
		maps.Equal(t.Env, other.Env) &&
		t.BuildOnce == other.BuildOnce &&
		t.InstallOnce == other.InstallOnce &&
		slices.Equal(t.TargetArch, other.TargetArch)
}
