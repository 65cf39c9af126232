package app

import (
	"errors"
	"fmt"
	"runtime"
)

// Config holds everything an App instance needs to run.
type Config struct {
	// TaskPath is an .hcl task file or a directory of them.
	TaskPath string
	// Action is one of build, install, clean.
	Action string
	// CacheRoot overrides the cache root location. Empty falls back to
	// LOOM_CACHE_ROOT, then ./.cache.
	CacheRoot string
	// Arch filters tasks by target architecture.
	Arch string

	LogFormat   string
	LogLevel    string
	WorkerCount int
}

// NewConfig validates a Config and applies defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.TaskPath == "" {
		return nil, errors.New("TaskPath is a required configuration field and cannot be empty")
	}
	switch cfg.Action {
	case "build", "install", "clean":
	case "":
		cfg.Action = "build"
	default:
		return nil, fmt.Errorf("invalid action %q: must be build, install, or clean", cfg.Action)
	}
	if cfg.Arch == "" {
		cfg.Arch = runtime.GOARCH
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = runtime.NumCPU()
	}
	return &cfg, nil
}
