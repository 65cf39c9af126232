// Package app wires the loader, graph engine, environment resolver, and
// scheduler into one application lifecycle.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/buildloom/buildloom/internal/cache"
	"github.com/buildloom/buildloom/internal/ctxlog"
	"github.com/buildloom/buildloom/internal/hclcfg"
	"github.com/buildloom/buildloom/internal/task"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	repo   *task.Repository
	layout cache.Layout
}

// New constructs the application: it configures the logger, resolves the
// cache layout, and loads the task repository for the configured
// architecture.
func New(ctx context.Context, outW io.Writer, cfg *Config) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	layout, err := cache.NewLayout(cfg.CacheRoot)
	if err != nil {
		return nil, fmt.Errorf("initializing cache layout: %w", err)
	}
	logger.Debug("Cache layout resolved.", "root", layout.Root)

	loader := hclcfg.NewLoader()
	repo, err := loader.Load(ctx, cfg.TaskPath, hclcfg.Variables{
		Arch:      cfg.Arch,
		CacheRoot: layout.Root,
	})
	if err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}

	filtered := repo.FilterArch(cfg.Arch)
	if dropped := repo.Len() - filtered.Len(); dropped > 0 {
		logger.Info("Excluded tasks not targeting this architecture.",
			"arch", cfg.Arch, "excluded", dropped)
	}
	logger.Debug("Task repository loaded.", "tasks", filtered.Len())

	return &App{
		outW:   outW,
		logger: logger,
		config: cfg,
		repo:   filtered,
		layout: layout,
	}, nil
}

// Repository returns the loaded task repository. This is primarily for testing.
func (a *App) Repository() *task.Repository {
	return a.repo
}
