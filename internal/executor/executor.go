// Package executor implements the strategies used to run the gtburst
// script: Local (direct process), Shell (legacy command line through an
// embedded POSIX shell), and Docker (container carrying the Science Tools).
package executor

import (
	"context"
	"fmt"
	"gtburst/internal/config"
	"gtburst/pkg/launch"
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Exit codes reported when the child never produced one, following the
// POSIX shell conventions.
const (
	ExitCannotExec  = 126
	ExitNotFound    = 127
	ExitInterrupted = 130
)

// Executor is the interface for launch strategies.
type Executor interface {
	// Name identifies the strategy in logs and history.
	Name() string

	// Execute runs the invocation to completion and returns the child's
	// exit code. The error is non-nil only when the child could not be
	// started or waited on; a child exiting non-zero is not an error.
	Execute(ctx context.Context, inv *launch.Invocation) (int, error)
}

// Streams are the standard streams handed to the child.
type Streams struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// StdStreams returns the process's own standard streams.
func StdStreams() Streams {
	return Streams{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// ForMode builds the executor selected by cfg.Mode.
func ForMode(cfg *config.Config, logger *log.Logger, streams Streams) (Executor, error) {
	switch cfg.Mode {
	case config.ModeDirect:
		return NewLocalExecutor(logger, streams), nil
	case config.ModeShell:
		return NewShellExecutor(logger, streams), nil
	case config.ModeDocker:
		return NewDockerExecutor(cfg, logger, streams)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownMode, cfg.Mode)
	}
}
