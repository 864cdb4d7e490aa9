// Package launcher implements the gtburst entry point.
// It resolves an invocation of the gtburst script from the configuration,
// the environment and argv, hands it to the configured executor, records
// the launch and turns the outcome into the process exit code.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"gtburst/internal/audit"
	"gtburst/internal/config"
	"gtburst/internal/executor"
	"gtburst/pkg/launch"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

var (
	ErrInstDirUnset  = errors.New("INST_DIR is not set and no inst_dir is configured")
	ErrScriptMissing = errors.New("gtburst script not found")
	ErrLocked        = errors.New("another gtburst launcher is already running")
)

// Launcher runs the gtburst script once per Launch call.
type Launcher struct {
	cfg      *config.Config
	logger   *log.Logger
	executor executor.Executor
	history  *audit.Logger
	environ  func() []string
	newRunID func() string
}

// Option customizes a Launcher.
type Option func(*Launcher)

// WithExecutor overrides the executor selected by the configured mode.
func WithExecutor(e executor.Executor) Option {
	return func(l *Launcher) { l.executor = e }
}

// WithEnviron replaces os.Environ as the source of the child environment.
func WithEnviron(fn func() []string) Option {
	return func(l *Launcher) { l.environ = fn }
}

// WithRunID replaces the uuid generator used for run ids.
func WithRunID(fn func() string) Option {
	return func(l *Launcher) { l.newRunID = fn }
}

// New creates a launcher for cfg. The launch history is opened here; a
// history file that cannot be opened only disables recording.
func New(cfg *config.Config, logger *log.Logger, opts ...Option) (*Launcher, error) {
	if logger == nil {
		logger = NewLogger(cfg.LogLevel, os.Stderr)
	}

	l := &Launcher{
		cfg:      cfg,
		logger:   logger,
		environ:  os.Environ,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.executor == nil {
		e, err := executor.ForMode(cfg, logger, executor.StdStreams())
		if err != nil {
			return nil, err
		}
		l.executor = e
	}

	history, err := audit.NewLogger(cfg.HistoryFile)
	if err != nil {
		logger.Warn("launch history disabled", "err", err)
		history, _ = audit.NewLogger("")
	}
	l.history = history

	return l, nil
}

// Close releases the history file and the executor's resources.
func (l *Launcher) Close() error {
	var errs []error
	if err := l.history.Close(); err != nil {
		errs = append(errs, err)
	}
	if c, ok := l.executor.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Launch runs the script with args and returns the exit code for the
// launcher process. When propagate_exit is disabled the result is always 0,
// whatever happened.
func (l *Launcher) Launch(ctx context.Context, args []string) int {
	code := l.launch(ctx, args)
	if !l.cfg.PropagateExit {
		return 0
	}
	return code
}

func (l *Launcher) launch(ctx context.Context, args []string) int {
	unlock, err := l.acquire()
	if err != nil {
		l.logger.Error("cannot launch", "err", err)
		return 1
	}
	defer unlock()

	inv, err := l.Prepare(args)
	if err != nil {
		l.logger.Error("cannot launch", "err", err)
		l.record(&launch.Invocation{Interpreter: l.cfg.Python, Args: args}, 1, err, 0)
		return 1
	}

	l.logger.Debug("launching", "mode", l.executor.Name(), "run_id", inv.RunID, "argv", inv.Argv())

	start := time.Now()
	code, err := l.executor.Execute(ctx, inv)
	elapsed := time.Since(start)

	switch {
	case errors.Is(err, context.Canceled):
		l.logger.Info("interrupted", "run_id", inv.RunID)
	case err != nil:
		l.logger.Error("launch failed", "mode", l.executor.Name(), "err", err)
	case code != 0:
		l.logger.Warn("gtburst exited with non-zero status", "code", code)
	}

	l.record(inv, code, err, elapsed)
	return code
}

// Prepare resolves the invocation for args without running it.
//
// In shell mode nothing is validated: the legacy command line is built
// with $INST_DIR left for the shell to expand. The other modes read and
// validate INST_DIR themselves and pass the absolute script path as an
// explicit argument.
func (l *Launcher) Prepare(args []string) (*launch.Invocation, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	inv := &launch.Invocation{
		RunID:       l.newRunID(),
		Interpreter: l.cfg.Python,
		Cwd:         cwd,
		Identity: launch.Identity{
			UID: os.Getuid(),
			GID: os.Getgid(),
		},
	}
	env := executor.SetEnv(l.environ(), launch.RunIDEnv, inv.RunID)

	if l.cfg.ForwardArgs && len(args) > 0 {
		inv.Args = append([]string(nil), args...)
	}

	instDir := l.cfg.ResolveInstDir(func(key string) string {
		v, _ := executor.LookupEnv(env, key)
		return v
	})

	if l.cfg.Mode == config.ModeShell {
		// A configured inst_dir is exported for the shell, never substituted
		if v, _ := executor.LookupEnv(env, launch.InstDirEnv); v == "" && instDir != "" {
			env = executor.SetEnv(env, launch.InstDirEnv, instDir)
		}
		inv.Script = launch.ShellScript(l.cfg.Script)
		inv.Shell, err = launch.LegacyCommand(l.cfg.Python, l.cfg.Script)
		if err != nil {
			return nil, err
		}
		if len(inv.Args) > 0 {
			quoted, err := executor.QuoteArgs(inv.Args)
			if err != nil {
				return nil, err
			}
			inv.Shell += " " + quoted
		}
		inv.Env = env
		return inv, nil
	}

	if instDir == "" {
		return nil, ErrInstDirUnset
	}
	instDir, err = filepath.Abs(instDir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", launch.InstDirEnv, err)
	}

	script := filepath.FromSlash(l.cfg.Script)
	if !filepath.IsAbs(script) {
		script = filepath.Join(instDir, script)
	}
	info, err := os.Stat(script)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScriptMissing, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrScriptMissing, script)
	}

	inv.InstDir = instDir
	inv.Script = script
	inv.Env = executor.SetEnv(env, launch.InstDirEnv, instDir)
	return inv, nil
}

// acquire takes the single-instance lock when enabled.
func (l *Launcher) acquire() (func(), error) {
	if !l.cfg.SingleInstance {
		return func() {}, nil
	}

	path := l.cfg.LockPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return nil, ErrLocked
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			l.logger.Warn("release lock", "path", path, "err", err)
		}
	}, nil
}

func (l *Launcher) record(inv *launch.Invocation, code int, runErr error, elapsed time.Duration) {
	if err := l.history.Record(inv, l.cfg.Mode.String(), code, runErr, elapsed); err != nil {
		l.logger.Warn("record launch", "err", err)
	}
}

// NewLogger creates the stderr logger used by both binaries.
func NewLogger(level string, w io.Writer) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{Prefix: "gtburst"})
	if lvl, err := log.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.SetLevel(log.WarnLevel)
	}
	return logger
}
