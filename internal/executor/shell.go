package executor

import (
	"context"
	"errors"
	"fmt"
	"gtburst/pkg/launch"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// ShellExecutor runs the invocation's command line through an embedded
// POSIX shell. Variable references such as $INST_DIR are expanded by the
// shell from the child environment, never by the launcher, so the same
// command line behaves identically on every host platform.
type ShellExecutor struct {
	logger  *log.Logger
	streams Streams
}

// NewShellExecutor creates a shell executor.
func NewShellExecutor(logger *log.Logger, streams Streams) *ShellExecutor {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "shell-exec"})
	}
	return &ShellExecutor{logger: logger, streams: streams}
}

func (se *ShellExecutor) Name() string {
	return "shell"
}

// Execute parses and runs inv.Shell.
func (se *ShellExecutor) Execute(ctx context.Context, inv *launch.Invocation) (int, error) {
	if inv.Shell == "" {
		return 1, errors.New("no shell command line on invocation")
	}

	prog, err := syntax.NewParser().Parse(strings.NewReader(inv.Shell), "gtburst")
	if err != nil {
		return 1, fmt.Errorf("parse command line: %w", err)
	}

	se.logger.Debug("shell exec", "command", inv.Shell, "cwd", inv.Cwd)

	env := inv.Env
	if env == nil {
		env = os.Environ()
	}

	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(se.streams.Stdin, se.streams.Stdout, se.streams.Stderr),
	}
	if inv.Cwd != "" {
		opts = append(opts, interp.Dir(inv.Cwd))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return 1, fmt.Errorf("create shell: %w", err)
	}

	err = runner.Run(ctx, prog)
	if ctx.Err() != nil {
		return ExitInterrupted, ctx.Err()
	}
	if err != nil {
		var status interp.ExitStatus
		if errors.As(err, &status) {
			return int(status), nil
		}
		return 1, fmt.Errorf("run command line: %w", err)
	}

	return 0, nil
}

// QuoteArgs renders args as shell words appended to a command line.
func QuoteArgs(args []string) (string, error) {
	words := make([]string, 0, len(args))
	for _, arg := range args {
		q, err := syntax.Quote(arg, syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("quote %q: %w", arg, err)
		}
		words = append(words, q)
	}
	return strings.Join(words, " "), nil
}
