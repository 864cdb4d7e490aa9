package executor

import (
	"context"
	"errors"
	"fmt"
	"gtburst/pkg/launch"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

// waitDelay bounds how long a cancelled child may take to exit after it
// has been interrupted before it is killed.
const waitDelay = 5 * time.Second

// LocalExecutor runs the interpreter directly on the host, with the script
// path passed as an explicit argument. No shell is involved.
type LocalExecutor struct {
	logger  *log.Logger
	streams Streams
}

// NewLocalExecutor creates a local executor.
func NewLocalExecutor(logger *log.Logger, streams Streams) *LocalExecutor {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "local-exec"})
	}
	return &LocalExecutor{logger: logger, streams: streams}
}

func (le *LocalExecutor) Name() string {
	return "direct"
}

// Execute runs the interpreter and waits for it.
func (le *LocalExecutor) Execute(ctx context.Context, inv *launch.Invocation) (int, error) {
	interpreter, err := findInterpreter(inv.Interpreter, inv.Env)
	if err != nil {
		return ExitNotFound, fmt.Errorf("find interpreter %q: %w", inv.Interpreter, err)
	}

	argv := inv.Argv()
	le.logger.Debug("local exec", "interpreter", interpreter, "args", argv[1:], "cwd", inv.Cwd)

	cmd := exec.CommandContext(ctx, interpreter, argv[1:]...)
	cmd.Dir = inv.Cwd
	cmd.Env = inv.Env
	cmd.Stdin = le.streams.Stdin
	cmd.Stdout = le.streams.Stdout
	cmd.Stderr = le.streams.Stderr
	cmd.Cancel = func() error {
		// Give the script a chance to clean up before WaitDelay kills it
		if err := cmd.Process.Signal(os.Interrupt); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		return ExitCannotExec, fmt.Errorf("start interpreter: %w", err)
	}

	err = cmd.Wait()
	if ctx.Err() != nil {
		return ExitInterrupted, ctx.Err()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitStatus(exitErr), nil
		}
		le.logger.Warn("wait error", "err", err)
		return 1, fmt.Errorf("wait interpreter: %w", err)
	}

	return 0, nil
}

// findInterpreter resolves name against PATH. Names containing a path
// separator are used as given. The PATH of env is preferred over the
// launcher's own when present.
func findInterpreter(name string, env []string) (string, error) {
	if filepath.Base(name) != name {
		info, err := os.Stat(name)
		if err != nil {
			return "", err
		}
		if info.IsDir() {
			return "", fmt.Errorf("%s is a directory", name)
		}
		return name, nil
	}

	if path, ok := LookupEnv(env, "PATH"); ok {
		for _, dir := range filepath.SplitList(path) {
			if dir == "" {
				continue
			}
			candidate := filepath.Join(dir, name)
			if p, err := exec.LookPath(candidate); err == nil {
				return p, nil
			}
		}
		return "", fmt.Errorf("%w in PATH %q", exec.ErrNotFound, path)
	}

	return exec.LookPath(name)
}
