package app

import (
	"context"
	"fmt"

	"github.com/buildloom/buildloom/internal/cache"
	"github.com/buildloom/buildloom/internal/ctxlog"
	"github.com/buildloom/buildloom/internal/envset"
	"github.com/buildloom/buildloom/internal/executor"
	"github.com/buildloom/buildloom/internal/graph"
	"github.com/buildloom/buildloom/internal/scheduler"
)

// Run plans and executes the configured action over the loaded repository.
// All construction and planning errors abort before anything executes; task
// failures surface in the aggregate error after every eligible task ran.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.repo.Len() == 0 {
		a.logger.Warn("No tasks to run.")
		return nil
	}

	g, err := graph.Build(a.repo)
	if err != nil {
		return fmt.Errorf("building task graph: %w", err)
	}
	a.logger.Debug("Task graph built.", "tasks", g.Len())

	plan, err := g.Sort()
	if err != nil {
		return fmt.Errorf("planning execution order: %w", err)
	}
	a.logger.Debug("Execution plan ready.", "tasks", len(plan))

	env, err := envset.Resolve(g, a.layout)
	if err != nil {
		return fmt.Errorf("resolving environment: %w", err)
	}
	a.logger.Debug("Environment set resolved.", "global_vars", len(env.Global))

	action, err := executor.ParseAction(a.config.Action)
	if err != nil {
		return err
	}

	exec := executor.New(a.layout, env)
	store := cache.NewStore(a.layout)
	sched := scheduler.New(g, plan, exec, store, a.layout, scheduler.Options{
		Workers: a.config.WorkerCount,
		Action:  action,
	})

	a.logger.Info("Starting run.", "action", action.String(), "tasks", len(plan), "workers", a.config.WorkerCount)
	report, runErr := sched.Run(ctx)

	for _, res := range report.Results {
		attrs := []any{"task", res.ID.String(), "state", res.State.String()}
		if res.Bypassed {
			attrs = append(attrs, "cached", true)
		}
		switch res.State {
		case scheduler.StateSucceeded:
			a.logger.Info("Task result.", attrs...)
		default:
			if res.Err != nil {
				attrs = append(attrs, "error", res.Err)
			}
			a.logger.Error("Task result.", attrs...)
		}
	}

	succeeded, failed, skipped := report.Counts()
	a.logger.Info("Run finished.",
		"run_id", report.RunID.String(),
		"succeeded", succeeded, "failed", failed, "skipped", skipped)

	return runErr
}
