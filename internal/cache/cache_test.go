package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildloom/buildloom/internal/task"
)

func TestNewLayout(t *testing.T) {
	t.Run("explicit root wins and is created", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "cache")
		t.Setenv(EnvCacheRoot, filepath.Join(t.TempDir(), "ignored"))

		layout, err := NewLayout(root)
		require.NoError(t, err)
		assert.Equal(t, root, layout.Root)
		assert.DirExists(t, root)
	})

	t.Run("environment variable is the fallback", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "env-cache")
		t.Setenv(EnvCacheRoot, root)

		layout, err := NewLayout("")
		require.NoError(t, err)
		assert.Equal(t, root, layout.Root)
		assert.DirExists(t, root)
	})

	t.Run("root occupied by a file is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "occupied")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

		_, err := NewLayout(path)
		assert.ErrorContains(t, err, "not a directory")
	})
}

func TestLayoutPaths(t *testing.T) {
	layout := Layout{Root: "/cache"}
	id := task.Identity{Name: "libc", Version: "0.1.0"}

	assert.Equal(t, filepath.Join("/cache", "build", "libc_0_1_0"), layout.BuildDir(id))
	assert.Equal(t, filepath.Join("/cache", "source", "libc_0_1_0"), layout.SourceDir(id))
}

func TestEnsureTaskDirs(t *testing.T) {
	layout := Layout{Root: t.TempDir()}

	local := &task.Task{
		Name: "app", Version: "1.0",
		Kind:   task.KindBuildFromSource,
		Source: task.Source{Kind: task.SourceLocal, Path: "/src/app"},
	}
	require.NoError(t, layout.EnsureTaskDirs(local))
	assert.DirExists(t, layout.BuildDir(local.Identity()))
	assert.NoDirExists(t, layout.SourceDir(local.Identity()))

	fetched := &task.Task{
		Name: "shell", Version: "1.0",
		Kind:   task.KindBuildFromSource,
		Source: task.Source{Kind: task.SourceGit, Git: task.GitSource{URL: "https://example.com/shell.git"}},
	}
	require.NoError(t, layout.EnsureTaskDirs(fetched))
	assert.DirExists(t, layout.BuildDir(fetched.Identity()))
	assert.DirExists(t, layout.SourceDir(fetched.Identity()))
}

func TestBuildDirEmpty(t *testing.T) {
	layout := Layout{Root: t.TempDir()}
	id := task.Identity{Name: "app", Version: "1.0"}

	// Missing directory counts as empty.
	empty, err := layout.BuildDirEmpty(id)
	require.NoError(t, err)
	assert.True(t, empty)

	require.NoError(t, os.MkdirAll(layout.BuildDir(id), 0o755))
	empty, err = layout.BuildDirEmpty(id)
	require.NoError(t, err)
	assert.True(t, empty)

	require.NoError(t, os.WriteFile(filepath.Join(layout.BuildDir(id), "out.bin"), []byte("x"), 0o644))
	empty, err = layout.BuildDirEmpty(id)
	require.NoError(t, err)
	assert.False(t, empty)
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(Layout{Root: t.TempDir()})
	id := task.Identity{Name: "libc", Version: "0.1.0"}

	// Missing record loads as the zero value.
	rec, err := store.Load(id)
	require.NoError(t, err)
	assert.False(t, rec.BuildCached())
	assert.False(t, rec.InstallCached())

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.Save(id, Record{
		BuildStatus: StepSuccess,
		BuildTime:   now,
	}))

	rec, err = store.Load(id)
	require.NoError(t, err)
	assert.True(t, rec.BuildCached())
	assert.False(t, rec.InstallCached())
	assert.Equal(t, now, rec.BuildTime)

	// A failed step does not count as cached.
	require.NoError(t, store.Save(id, Record{BuildStatus: StepFailed}))
	rec, err = store.Load(id)
	require.NoError(t, err)
	assert.False(t, rec.BuildCached())
}

func TestStoreClear(t *testing.T) {
	store := NewStore(Layout{Root: t.TempDir()})
	id := task.Identity{Name: "app", Version: "1.0"}

	// Clearing a missing record is fine.
	require.NoError(t, store.Clear(id))

	require.NoError(t, store.Save(id, Record{BuildStatus: StepSuccess}))
	require.NoError(t, store.Clear(id))

	rec, err := store.Load(id)
	require.NoError(t, err)
	assert.Equal(t, Record{}, rec)
}
