package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/buildloom/buildloom/internal/ctxlog"
	"github.com/buildloom/buildloom/internal/task"
)

// stderrTailLines bounds how much of a failing command's stderr is carried
// in the returned error.
const stderrTailLines = 20

// CommandError reports a task step command that exited non-zero or could
// not be started.
type CommandError struct {
	Task       task.Identity
	Command    string
	ExitCode   int
	StderrTail []string
	Err        error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("task %s: command failed with exit code %d", e.Task, e.ExitCode)
	if e.Err != nil {
		msg = fmt.Sprintf("task %s: command failed: %v", e.Task, e.Err)
	}
	if len(e.StderrTail) > 0 {
		msg += "\nstderr tail:\n" + strings.Join(e.StderrTail, "\n")
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// runCommand executes a shell command for the task in the given directory
// with the task's merged environment. Stdout and stderr stream through to
// the process; the stderr tail is retained for error reporting.
func (e *Executor) runCommand(ctx context.Context, t *task.Task, command, dir string) error {
	logger := ctxlog.FromContext(ctx).With("task", t.Identity().String())
	logger.Debug("Running command.", "command", command, "dir", dir)

	var tail tailBuffer
	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Dir = dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = io.MultiWriter(os.Stderr, &tail)
	// Process environment first, then the resolved set, so derived
	// variables win over inherited ones of the same name.
	cmd.Env = append(os.Environ(), e.env.Environ(t.Identity())...)

	if err := cmd.Run(); err != nil {
		cmdErr := &CommandError{
			Task:       t.Identity(),
			Command:    command,
			StderrTail: tail.Lines(stderrTailLines),
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cmdErr.ExitCode = exitErr.ExitCode()
		} else {
			cmdErr.Err = err
		}
		return cmdErr
	}
	return nil
}

// tailBuffer keeps everything written to it; only the last lines are ever
// read back. Task outputs are bounded by the external command, so holding
// the bytes is acceptable for build logs.
type tailBuffer struct {
	buf bytes.Buffer
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	return b.buf.Write(p)
}

// Lines returns the final n non-empty lines written.
func (b *tailBuffer) Lines(n int) []string {
	all := strings.Split(strings.TrimRight(b.buf.String(), "\n"), "\n")
	var lines []string
	for _, l := range all {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
