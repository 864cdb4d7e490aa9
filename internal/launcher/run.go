package launcher

import (
	"context"
	"fmt"
	"gtburst/internal/config"
	"os"
	"strconv"
)

// Run is the body of the gtburst binary: it loads the configuration,
// launches the script with args and returns the exit code. The binary
// parses no flags of its own so that every argument can be forwarded.
func Run(args []string) int {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "gtburst: %v\n", err)
		return loadFailureCode(os.LookupEnv)
	}

	logger := NewLogger(cfg.LogLevel, os.Stderr)

	l, err := New(cfg, logger)
	if err != nil {
		logger.Error("cannot initialize launcher", "err", err)
		if !cfg.PropagateExit {
			return 0
		}
		return 1
	}
	defer l.Close()

	ctx, stop := CancelOnSignal(context.Background(), logger)
	defer stop()

	return l.Launch(ctx, args)
}

// loadFailureCode is the exit code when the configuration cannot be loaded.
// Only the environment can disable exit propagation at that point.
func loadFailureCode(lookup func(string) (string, bool)) int {
	if v, ok := lookup(config.PropagateExitEnv); ok {
		if propagate, err := strconv.ParseBool(v); err == nil && !propagate {
			return 0
		}
	}
	return 1
}
