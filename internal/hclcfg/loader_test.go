package hclcfg

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildloom/buildloom/internal/task"
)

func writeTaskFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSingleFile(t *testing.T) {
	path := writeTaskFile(t, t.TempDir(), "libc.hcl", `
task "libc" "0.1.0" {
  description = "C library"

  source {
    git {
      url    = "https://example.com/libc.git"
      branch = "stable"
    }
  }

  build {
    command = "make ARCH=${arch}"
  }

  install {
    command = "make install"
  }

  env = {
    CC = "clang"
  }

  build_once  = true
  target_arch = ["x86_64", "riscv64"]
}
`)

	repo, err := NewLoader().Load(context.Background(), path, Variables{Arch: "x86_64", CacheRoot: "/cache"})
	require.NoError(t, err)
	require.Equal(t, 1, repo.Len())

	tk, ok := repo.Get(task.Identity{Name: "libc", Version: "0.1.0"})
	require.True(t, ok)
	assert.Equal(t, "C library", tk.Description)
	assert.Equal(t, task.KindBuildFromSource, tk.Kind)
	assert.Equal(t, task.SourceGit, tk.Source.Kind)
	assert.Equal(t, "https://example.com/libc.git", tk.Source.Git.URL)
	assert.Equal(t, "stable", tk.Source.Git.Branch)
	assert.Equal(t, "make ARCH=x86_64", tk.BuildCommand, "variables must interpolate")
	assert.Equal(t, "make install", tk.InstallCommand)
	assert.Equal(t, map[string]string{"CC": "clang"}, tk.Env)
	assert.True(t, tk.BuildOnce)
	assert.False(t, tk.InstallOnce)
	assert.Equal(t, []string{"x86_64", "riscv64"}, tk.TargetArch)
}

func TestLoadDirectoryWalksRecursively(t *testing.T) {
	dir := t.TempDir()
	writeTaskFile(t, dir, "base.hcl", `
task "libc" "0.1.0" {
  source {
    local = "/src/libc"
  }
  build {
    command = "make"
  }
}
`)
	writeTaskFile(t, dir, filepath.Join("apps", "shell.hcl"), `
task "shell" "1.0" {
  source {
    local = "/src/shell"
  }
  build {
    command = "make"
  }
  depends {
    name    = "libc"
    version = "0.1.0"
  }
}
`)
	writeTaskFile(t, dir, "README.md", "not a task file")

	repo, err := NewLoader().Load(context.Background(), dir, Variables{Arch: "x86_64"})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.Len())

	shell, ok := repo.Get(task.Identity{Name: "shell", Version: "1.0"})
	require.True(t, ok)
	assert.Equal(t, []task.Identity{{Name: "libc", Version: "0.1.0"}}, shell.Depends)
}

func TestLoadPrebuiltTask(t *testing.T) {
	path := writeTaskFile(t, t.TempDir(), "toolchain.hcl", `
task "toolchain" "2.0" {
  prebuilt {
    local = "/opt/toolchain"
  }
  install {
    command = "cp -r . /usr/local/toolchain"
  }
}
`)

	repo, err := NewLoader().Load(context.Background(), path, Variables{})
	require.NoError(t, err)

	tk, ok := repo.Get(task.Identity{Name: "toolchain", Version: "2.0"})
	require.True(t, ok)
	assert.Equal(t, task.KindInstallFromPrebuilt, tk.Kind)
	assert.Equal(t, task.SourceLocal, tk.Source.Kind)
	assert.Equal(t, "/opt/toolchain", tk.Source.Path)
}

func TestLoadRejectsConflictingDuplicates(t *testing.T) {
	dir := t.TempDir()
	writeTaskFile(t, dir, "one.hcl", `
task "libc" "0.1.0" {
  source {
    local = "/src/libc"
  }
  build {
    command = "make"
  }
}
`)
	writeTaskFile(t, dir, "two.hcl", `
task "libc" "0.1.0" {
  source {
    local = "/src/other-libc"
  }
  build {
    command = "make"
  }
}
`)

	_, err := NewLoader().Load(context.Background(), dir, Variables{})
	require.Error(t, err)
	var conflict *task.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestLoadCollapsesIdenticalDuplicates(t *testing.T) {
	dir := t.TempDir()
	decl := `
task "libc" "0.1.0" {
  source {
    local = "/src/libc"
  }
  build {
    command = "make"
  }
}
`
	writeTaskFile(t, dir, "one.hcl", decl)
	writeTaskFile(t, dir, "two.hcl", decl)

	repo, err := NewLoader().Load(context.Background(), dir, Variables{})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.Len())
}

func TestLoadBlockErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name: "missing source and prebuilt",
			body: `
task "x" "1.0" {
  build {
    command = "make"
  }
}
`,
			wantErr: "needs a source or prebuilt block",
		},
		{
			name: "both source and prebuilt",
			body: `
task "x" "1.0" {
  source {
    local = "/src/x"
  }
  prebuilt {
    local = "/opt/x"
  }
}
`,
			wantErr: "declares both source and prebuilt",
		},
		{
			name: "source with two payloads",
			body: `
task "x" "1.0" {
  source {
    local   = "/src/x"
    archive = "https://example.com/x.tar.gz"
  }
}
`,
			wantErr: "exactly one of local, archive, or git",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTaskFile(t, t.TempDir(), "bad.hcl", tc.body)
			_, err := NewLoader().Load(context.Background(), path, Variables{})
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestFindTaskFilesRejectsWrongExtension(t *testing.T) {
	path := writeTaskFile(t, t.TempDir(), "tasks.yaml", "not hcl")
	_, err := NewLoader().Load(context.Background(), path, Variables{})
	assert.ErrorContains(t, err, "not an .hcl file")
}
