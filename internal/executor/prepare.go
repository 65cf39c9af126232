package executor

import (
	"context"
	"fmt"
	"os"

	"github.com/buildloom/buildloom/internal/ctxlog"
	"github.com/buildloom/buildloom/internal/task"
)

// prepareSource makes the task's input available in its work directory.
// Local sources are used in place; git sources are cloned into the source
// cache on first use and reused afterwards.
func (e *Executor) prepareSource(ctx context.Context, t *task.Task) error {
	switch t.Source.Kind {
	case task.SourceLocal:
		info, err := os.Stat(t.Source.Path)
		if err != nil {
			return fmt.Errorf("local source %q: %w", t.Source.Path, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("local source %q is not a directory", t.Source.Path)
		}
		return nil
	case task.SourceGit:
		return e.prepareGit(ctx, t)
	case task.SourceArchive:
		return e.prepareArchive(ctx, t)
	default:
		return fmt.Errorf("unknown source kind %s", t.Source.Kind)
	}
}

// prepareGit clones the task's repository into its source cache directory.
// A non-empty source cache is treated as already fetched.
func (e *Executor) prepareGit(ctx context.Context, t *task.Task) error {
	logger := ctxlog.FromContext(ctx).With("task", t.Identity().String())
	srcDir := e.layout.SourceDir(t.Identity())

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		logger.Debug("Source cache already populated, skipping fetch.", "dir", srcDir)
		return nil
	}

	git := t.Source.Git
	clone := fmt.Sprintf("git clone --depth 1 %q .", git.URL)
	if git.Branch != "" {
		clone = fmt.Sprintf("git clone --depth 1 --branch %q %q .", git.Branch, git.URL)
	}
	if git.Revision != "" {
		// Pinned revisions need history beyond a shallow clone.
		clone = fmt.Sprintf("git clone %q . && git checkout %q", git.URL, git.Revision)
	}
	logger.Info("Fetching git source.", "url", git.URL)
	return e.runCommand(ctx, t, clone, srcDir)
}

// prepareArchive would download and unpack a remote archive source.
// TODO: fetch the archive over HTTP and unpack it into the source cache.
func (e *Executor) prepareArchive(_ context.Context, t *task.Task) error {
	return fmt.Errorf("task %s: archive sources are not supported yet (url %q)",
		t.Identity(), t.Source.URL)
}
