package cli

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{"--tasks", "tasks.hcl"}, &out)
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, "tasks.hcl", cfg.TaskPath)
	assert.Equal(t, "build", cfg.Action)
	assert.Equal(t, runtime.GOARCH, cfg.Arch)
	assert.Equal(t, runtime.NumCPU(), cfg.WorkerCount)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParseFullInvocation(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{
		"--tasks", "./tasks",
		"--cache-root", "/var/cache/loom",
		"--arch", "riscv64",
		"--workers", "4",
		"--log-format", "json",
		"--log-level", "debug",
		"clean",
	}, &out)
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, "./tasks", cfg.TaskPath)
	assert.Equal(t, "clean", cfg.Action)
	assert.Equal(t, "/var/cache/loom", cfg.CacheRoot)
	assert.Equal(t, "riscv64", cfg.Arch)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParseShorthandTaskFlag(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{"-t", "tasks.hcl", "install"}, &out)
	require.NoError(t, err)
	require.False(t, exit)
	assert.Equal(t, "tasks.hcl", cfg.TaskPath)
	assert.Equal(t, "install", cfg.Action)
}

func TestParseMissingTaskPathPrintsUsage(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse(nil, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParseHelpExitsCleanly(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{"--help"}, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{
			name:    "unknown action",
			args:    []string{"--tasks", "tasks.hcl", "deploy"},
			wantMsg: `invalid action "deploy"`,
		},
		{
			name:    "too many positional arguments",
			args:    []string{"--tasks", "tasks.hcl", "build", "install"},
			wantMsg: "at most one ACTION",
		},
		{
			name:    "bad log format",
			args:    []string{"--tasks", "tasks.hcl", "--log-format", "xml"},
			wantMsg: "invalid log-format",
		},
		{
			name:    "bad log level",
			args:    []string{"--tasks", "tasks.hcl", "--log-level", "loud"},
			wantMsg: "invalid log-level",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			cfg, exit, err := Parse(tc.args, &out)
			require.Error(t, err)
			assert.False(t, exit)
			assert.Nil(t, cfg)

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.wantMsg)
		})
	}
}
