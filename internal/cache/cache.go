// Package cache manages the on-disk cache tree: per-task build output and
// source directories plus the persisted records behind the build-once and
// install-once flags.
package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/buildloom/buildloom/internal/task"
)

// EnvCacheRoot overrides the default cache root location when set in the
// invoking environment.
const EnvCacheRoot = "LOOM_CACHE_ROOT"

// defaultDirName is the cache root used when nothing else is configured,
// relative to the working directory.
const defaultDirName = ".cache"

// Layout locates everything under the cache root:
//
//	<root>/build/<name-version>   build output per task
//	<root>/source/<name-version>  fetched sources per task
//	<root>/state/<name-version>.json  cache records
type Layout struct {
	Root string
}

// NewLayout resolves the cache root and creates it if missing. Resolution
// order: explicit argument, the LOOM_CACHE_ROOT environment variable, then
// ".cache" under the working directory.
func NewLayout(root string) (Layout, error) {
	if root == "" {
		root = os.Getenv(EnvCacheRoot)
	}
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return Layout{}, fmt.Errorf("resolving cache root: %w", err)
		}
		root = filepath.Join(cwd, defaultDirName)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, fmt.Errorf("resolving cache root %q: %w", root, err)
	}
	if err := ensureDir(abs); err != nil {
		return Layout{}, err
	}
	return Layout{Root: abs}, nil
}

// BuildDir returns the build output directory for the given task identity.
func (l Layout) BuildDir(id task.Identity) string {
	return filepath.Join(l.Root, "build", id.Slug())
}

// SourceDir returns the fetched-source directory for the given task identity.
func (l Layout) SourceDir(id task.Identity) string {
	return filepath.Join(l.Root, "source", id.Slug())
}

// EnsureTaskDirs creates the task's build directory, and its source
// directory when the task fetches its input.
func (l Layout) EnsureTaskDirs(t *task.Task) error {
	if err := ensureDir(l.BuildDir(t.Identity())); err != nil {
		return err
	}
	if t.NeedsSourceCache() {
		if err := ensureDir(l.SourceDir(t.Identity())); err != nil {
			return err
		}
	}
	return nil
}

// BuildDirEmpty reports whether the task's build directory holds no entries.
func (l Layout) BuildDirEmpty(id task.Identity) (bool, error) {
	entries, err := os.ReadDir(l.BuildDir(id))
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}
	return len(entries) == 0, nil
}

// RemoveBuildDir deletes the task's build output directory recursively.
func (l Layout) RemoveBuildDir(id task.Identity) error {
	return os.RemoveAll(l.BuildDir(id))
}

// RemoveSourceDir deletes the task's fetched-source directory recursively.
func (l Layout) RemoveSourceDir(id task.Identity) error {
	return os.RemoveAll(l.SourceDir(id))
}

func ensureDir(path string) error {
	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("cache path %q exists and is not a directory", path)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(path, 0o755)
}
