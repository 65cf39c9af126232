// Package scheduler drives a plan to completion with bounded parallelism.
// Readiness, not plan position, gates dispatch: a task starts only after
// every dependency has succeeded, and a failed dependency marks the whole
// downstream sub-graph skipped without touching independent branches.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/buildloom/buildloom/internal/cache"
	"github.com/buildloom/buildloom/internal/ctxlog"
	"github.com/buildloom/buildloom/internal/executor"
	"github.com/buildloom/buildloom/internal/graph"
	"github.com/buildloom/buildloom/internal/task"
)

// Options configures one run.
type Options struct {
	// Workers bounds the number of tasks executing concurrently.
	// Zero or negative selects the plan length (at least one).
	Workers int
	// Action selects which step every task runs.
	Action executor.Action
}

// Scheduler executes one plan. Create a fresh one per run.
type Scheduler struct {
	graph  *graph.Graph
	plan   graph.Plan
	exec   *executor.Executor
	store  *cache.Store
	layout cache.Layout
	opts   Options

	// ignoreDeps is set for the clean action, which runs unordered:
	// cleaning has no causal constraints.
	ignoreDeps bool

	mu     sync.Mutex
	states map[task.Identity]State

	nodes map[task.Identity]*node
	wg    sync.WaitGroup
}

// node is the per-task runtime bookkeeping. depCount counts unfinished
// dependencies; the task is enqueued when it reaches zero. doneOnce guards
// the single terminal transition.
type node struct {
	t        *task.Task
	depCount atomic.Int32
	doneOnce sync.Once

	err      error
	bypassed bool
	duration time.Duration
}

// New prepares a scheduler for the given plan.
func New(g *graph.Graph, plan graph.Plan, exec *executor.Executor, store *cache.Store, layout cache.Layout, opts Options) *Scheduler {
	if opts.Workers <= 0 {
		opts.Workers = max(len(plan), 1)
	}
	s := &Scheduler{
		graph:      g,
		plan:       plan,
		exec:       exec,
		store:      store,
		layout:     layout,
		opts:       opts,
		ignoreDeps: opts.Action == executor.ActionClean,
		states:     make(map[task.Identity]State, len(plan)),
		nodes:      make(map[task.Identity]*node, len(plan)),
	}
	for _, id := range plan {
		t, _ := g.Task(id)
		n := &node{t: t}
		if !s.ignoreDeps {
			n.depCount.Store(int32(len(g.Dependencies(id))))
		}
		s.nodes[id] = n
		s.states[id] = StatePending
	}
	return s
}

// States returns a snapshot of every task's current state, for diagnostics.
func (s *Scheduler) States() map[task.Identity]State {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[task.Identity]State, len(s.states))
	for id, st := range s.states {
		snapshot[id] = st
	}
	return snapshot
}

func (s *Scheduler) setState(id task.Identity, st State) {
	s.mu.Lock()
	s.states[id] = st
	s.mu.Unlock()
}

// Run executes the plan to completion and returns the per-task report.
// The returned error is the aggregate run outcome; the report is always
// populated.
func (s *Scheduler) Run(ctx context.Context) (*Report, error) {
	logger := ctxlog.FromContext(ctx)
	runID := uuid.New()
	logger = logger.With("run_id", runID.String(), "action", s.opts.Action.String())
	ctx = ctxlog.WithLogger(ctx, logger)

	ready := make(chan *node, len(s.plan))
	seeded := 0
	for _, id := range s.plan {
		n := s.nodes[id]
		if n.depCount.Load() == 0 {
			ready <- n
			seeded++
		}
	}
	logger.Debug("Seeded ready queue.", "roots", seeded, "tasks", len(s.plan), "workers", s.opts.Workers)

	s.wg.Add(len(s.plan))

	var eg errgroup.Group
	for i := 0; i < s.opts.Workers; i++ {
		eg.Go(func() error {
			s.worker(ctx, ready)
			return nil
		})
	}

	s.wg.Wait()
	close(ready)
	_ = eg.Wait()

	report := &Report{RunID: runID, Action: s.opts.Action.String()}
	for _, id := range s.plan {
		n := s.nodes[id]
		s.mu.Lock()
		st := s.states[id]
		s.mu.Unlock()
		report.Results = append(report.Results, TaskResult{
			ID:          id,
			State:       st,
			Err:         n.err,
			Duration:    n.duration,
			Bypassed:    n.bypassed,
			ArtifactDir: s.layout.BuildDir(id),
		})
	}
	return report, report.Err()
}

// worker consumes ready tasks until the queue closes. The queue is buffered
// to the plan length, so releasing dependents never blocks.
func (s *Scheduler) worker(ctx context.Context, ready chan *node) {
	logger := ctxlog.FromContext(ctx)
	for n := range ready {
		id := n.t.Identity()

		if ctx.Err() != nil {
			s.skip(ctx, n, fmt.Errorf("run cancelled: %w", ctx.Err()))
			continue
		}

		s.setState(id, StateRunning)
		start := time.Now()
		bypassed, err := s.runStep(ctx, n.t)
		n.duration = time.Since(start)
		n.bypassed = bypassed

		if err != nil {
			logger.Error("Task failed.", "task", id.String(), "error", err)
			n.doneOnce.Do(func() {
				n.err = err
				s.setState(id, StateFailed)
				s.wg.Done()
			})
			if !s.ignoreDeps {
				s.skipDependents(ctx, id)
			}
			continue
		}

		if bypassed {
			logger.Info("Step satisfied from cache.", "task", id.String())
		} else {
			logger.Info("Task finished.", "task", id.String(), "duration", n.duration)
		}
		n.doneOnce.Do(func() {
			s.setState(id, StateSucceeded)
			s.wg.Done()
		})

		if !s.ignoreDeps {
			for _, depID := range s.graph.Dependents(id) {
				dep := s.nodes[depID]
				if dep.depCount.Add(-1) == 0 {
					ready <- dep
				}
			}
		}
	}
}

// skip marks a node skipped and propagates the skip through its dependents.
func (s *Scheduler) skip(ctx context.Context, n *node, reason error) {
	id := n.t.Identity()
	n.doneOnce.Do(func() {
		ctxlog.FromContext(ctx).Warn("Skipping task.", "task", id.String(), "reason", reason)
		n.err = reason
		s.setState(id, StateSkipped)
		s.wg.Done()
	})
	if !s.ignoreDeps {
		s.skipDependents(ctx, id)
	}
}

// skipDependents marks every task downstream of id skipped. Each node's
// doneOnce keeps the recursion from double-counting joins in the graph.
func (s *Scheduler) skipDependents(ctx context.Context, id task.Identity) {
	logger := ctxlog.FromContext(ctx)
	for _, depID := range s.graph.Dependents(id) {
		dep := s.nodes[depID]
		dep.doneOnce.Do(func() {
			logger.Warn("Skipping task due to upstream failure.",
				"task", depID.String(), "upstream", id.String())
			dep.err = fmt.Errorf("skipped: upstream task %s did not succeed", id)
			s.setState(depID, StateSkipped)
			s.wg.Done()
			s.skipDependents(ctx, depID)
		})
	}
}

// runStep runs the configured action for one task, honoring the once-flags
// against the cache record. It reports whether the step was bypassed from
// cache, and the step error otherwise.
func (s *Scheduler) runStep(ctx context.Context, t *task.Task) (bypassed bool, err error) {
	id := t.Identity()

	rec, recErr := s.store.Load(id)
	if recErr != nil {
		ctxlog.FromContext(ctx).Warn("Unreadable cache record, re-running step.",
			"task", id.String(), "error", recErr)
		rec = cache.Record{}
	}

	switch s.opts.Action {
	case executor.ActionBuild:
		if t.BuildOnce && rec.BuildCached() {
			return true, nil
		}
	case executor.ActionInstall:
		if t.InstallOnce && rec.InstallCached() {
			return true, nil
		}
	}

	err = s.exec.Execute(ctx, t, s.opts.Action)
	s.recordOutcome(ctx, id, rec, err)
	return false, err
}

// recordOutcome persists the step result to the cache record store.
func (s *Scheduler) recordOutcome(ctx context.Context, id task.Identity, rec cache.Record, stepErr error) {
	logger := ctxlog.FromContext(ctx)
	now := time.Now()

	switch s.opts.Action {
	case executor.ActionBuild:
		if stepErr == nil {
			rec.BuildStatus = cache.StepSuccess
		} else {
			rec.BuildStatus = cache.StepFailed
		}
		rec.BuildTime = now
	case executor.ActionInstall:
		if stepErr == nil {
			rec.InstallStatus = cache.StepSuccess
		} else {
			rec.InstallStatus = cache.StepFailed
		}
		rec.InstallTime = now
	case executor.ActionClean:
		if stepErr == nil {
			if err := s.store.Clear(id); err != nil {
				logger.Warn("Failed to clear cache record.", "task", id.String(), "error", err)
			}
		}
		return
	}

	if err := s.store.Save(id, rec); err != nil {
		logger.Warn("Failed to save cache record.", "task", id.String(), "error", err)
	}
}
