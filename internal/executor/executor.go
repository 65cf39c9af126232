// Package executor runs a single task's external build, install, or clean
// command with the task's derived environment. It knows nothing about
// ordering; the scheduler decides when a task may run.
package executor

import (
	"context"
	"fmt"

	"github.com/buildloom/buildloom/internal/cache"
	"github.com/buildloom/buildloom/internal/ctxlog"
	"github.com/buildloom/buildloom/internal/envset"
	"github.com/buildloom/buildloom/internal/task"
)

// Action selects which of a task's steps to run.
type Action int

const (
	// ActionBuild runs the task's build step.
	ActionBuild Action = iota + 1
	// ActionInstall runs the task's install step.
	ActionInstall
	// ActionClean runs the task's clean step and clears its cache dirs.
	ActionClean
)

func (a Action) String() string {
	switch a {
	case ActionBuild:
		return "build"
	case ActionInstall:
		return "install"
	case ActionClean:
		return "clean"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// ParseAction converts a CLI action word into an Action.
func ParseAction(s string) (Action, error) {
	switch s {
	case "build":
		return ActionBuild, nil
	case "install":
		return ActionInstall, nil
	case "clean":
		return ActionClean, nil
	default:
		return 0, fmt.Errorf("unknown action %q (expected build, install, or clean)", s)
	}
}

// Executor runs task steps against a cache layout with a resolved
// environment set. It is safe for concurrent use by scheduler workers.
type Executor struct {
	layout cache.Layout
	env    *envset.Set
}

// New returns an executor over the given layout and environment set.
func New(layout cache.Layout, env *envset.Set) *Executor {
	return &Executor{layout: layout, env: env}
}

// Execute runs one step of the task. The command for each step depends on
// the task kind, matched exhaustively.
func (e *Executor) Execute(ctx context.Context, t *task.Task, action Action) error {
	switch action {
	case ActionBuild:
		return e.build(ctx, t)
	case ActionInstall:
		return e.install(ctx, t)
	case ActionClean:
		return e.clean(ctx, t)
	default:
		return fmt.Errorf("task %s: unsupported action %s", t.Identity(), action)
	}
}

// build readies the task's input and produces its build output directory.
func (e *Executor) build(ctx context.Context, t *task.Task) error {
	logger := ctxlog.FromContext(ctx).With("task", t.Identity().String())

	if err := e.layout.EnsureTaskDirs(t); err != nil {
		return err
	}
	if err := e.prepareSource(ctx, t); err != nil {
		return fmt.Errorf("task %s: preparing source: %w", t.Identity(), err)
	}

	switch t.Kind {
	case task.KindBuildFromSource:
		if t.BuildCommand == "" {
			logger.Debug("No build command declared, nothing to run.")
			return nil
		}
		if err := e.runCommand(ctx, t, t.BuildCommand, e.workDir(t)); err != nil {
			return err
		}
	case task.KindInstallFromPrebuilt:
		// The prebuilt payload is staged into the build dir so dependents
		// and the install step find it in the usual place.
		if err := e.stagePrebuilt(ctx, t); err != nil {
			return err
		}
	default:
		return fmt.Errorf("task %s: unknown task kind %s", t.Identity(), t.Kind)
	}

	empty, err := e.layout.BuildDirEmpty(t.Identity())
	if err != nil {
		return err
	}
	if empty {
		logger.Warn("Build result is empty; did the command copy its output?",
			"expected_env", envset.BuildDirKeyPrefix+"_"+t.Identity().EnvSuffix())
	}
	return nil
}

// install runs the task's install command in its build output directory.
func (e *Executor) install(ctx context.Context, t *task.Task) error {
	logger := ctxlog.FromContext(ctx).With("task", t.Identity().String())
	if t.InstallCommand == "" {
		logger.Debug("No install command declared, nothing to run.")
		return nil
	}
	if err := e.layout.EnsureTaskDirs(t); err != nil {
		return err
	}
	return e.runCommand(ctx, t, t.InstallCommand, e.layout.BuildDir(t.Identity()))
}

// clean runs the task's clean command in its source directory, then removes
// the task's build output.
func (e *Executor) clean(ctx context.Context, t *task.Task) error {
	logger := ctxlog.FromContext(ctx).With("task", t.Identity().String())
	if t.CleanCommand != "" && t.Kind == task.KindBuildFromSource {
		if err := e.runCommand(ctx, t, t.CleanCommand, e.workDir(t)); err != nil {
			return err
		}
	}
	logger.Debug("Removing build output directory.")
	return e.layout.RemoveBuildDir(t.Identity())
}

// workDir returns the directory a task's build and clean commands run in:
// the local source path when there is one, else the source cache directory.
func (e *Executor) workDir(t *task.Task) string {
	if t.Source.Kind == task.SourceLocal {
		return t.Source.Path
	}
	return e.layout.SourceDir(t.Identity())
}

// stagePrebuilt copies a prebuilt task's payload into its build directory.
func (e *Executor) stagePrebuilt(ctx context.Context, t *task.Task) error {
	switch t.Source.Kind {
	case task.SourceLocal:
		cmd := fmt.Sprintf("cp -r %q/. %q/", t.Source.Path, e.layout.BuildDir(t.Identity()))
		return e.runCommand(ctx, t, cmd, t.Source.Path)
	case task.SourceArchive:
		return e.prepareArchive(ctx, t)
	default:
		return fmt.Errorf("task %s: prebuilt source kind %s not supported", t.Identity(), t.Source.Kind)
	}
}
