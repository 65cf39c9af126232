// Package cli parses command-line arguments into an app configuration.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/buildloom/buildloom/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("buildloom", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
buildloom - a declarative build orchestrator for interdependent tasks.

Usage:
  buildloom [options] [ACTION]

Arguments:
  ACTION
    One of 'build' (default), 'install', or 'clean'.

Options:
`)
		flagSet.PrintDefaults()
	}

	tasksFlag := flagSet.String("tasks", "", "Path to an .hcl task file or a directory of task files.")
	tFlag := flagSet.String("t", "", "Path to an .hcl task file or a directory of task files (shorthand).")
	cacheRootFlag := flagSet.String("cache-root", "", "Cache root directory. Defaults to $LOOM_CACHE_ROOT, then ./.cache.")
	archFlag := flagSet.String("arch", "", "Target architecture to build for. Defaults to the host architecture.")
	workersFlag := flagSet.Int("workers", 0, "Number of concurrent workers. 0 selects the host CPU count.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	taskPath := ""
	if *tasksFlag != "" {
		taskPath = *tasksFlag
	} else if *tFlag != "" {
		taskPath = *tFlag
	}
	if taskPath == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	action := ""
	switch flagSet.NArg() {
	case 0:
	case 1:
		action = flagSet.Arg(0)
	default:
		return nil, false, &ExitError{Code: 2, Message: "at most one ACTION argument is allowed"}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	config, err := app.NewConfig(app.Config{
		TaskPath:    taskPath,
		Action:      action,
		CacheRoot:   *cacheRootFlag,
		Arch:        *archFlag,
		LogFormat:   logFormat,
		LogLevel:    logLevel,
		WorkerCount: *workersFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, false, nil
}
