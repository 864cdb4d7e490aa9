//go:build unix

package launcher

import (
	"bytes"
	"context"
	"gtburst/internal/config"
	"gtburst/internal/executor"
	"gtburst/pkg/launch"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingExecutor runs until its context ends, the way a child does when
// the executor interrupts it.
type blockingExecutor struct {
	started chan struct{}
}

func (b *blockingExecutor) Name() string { return "blocking" }

func (b *blockingExecutor) Execute(ctx context.Context, _ *launch.Invocation) (int, error) {
	close(b.started)
	<-ctx.Done()
	return executor.ExitInterrupted, ctx.Err()
}

func TestCancelOnSignal(t *testing.T) {
	logger := log.NewWithOptions(&bytes.Buffer{}, log.Options{})
	ctx, stop := CancelOnSignal(context.Background(), logger)
	defer stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context was not cancelled by SIGTERM")
	}
}

func TestCancelOnSignalStop(t *testing.T) {
	logger := log.NewWithOptions(&bytes.Buffer{}, log.Options{})
	ctx, stop := CancelOnSignal(context.Background(), logger)

	stop()

	select {
	case <-ctx.Done():
	default:
		t.Fatal("stop must cancel the context")
	}
}

func TestLaunchInterruptedBySignal(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Mode = config.ModeShell

	be := &blockingExecutor{started: make(chan struct{})}
	logger := log.NewWithOptions(&bytes.Buffer{}, log.Options{})
	l, err := New(cfg, logger, WithExecutor(be), WithEnviron(func() []string { return nil }))
	require.NoError(t, err)
	defer l.Close()

	ctx, stop := CancelOnSignal(context.Background(), logger)
	defer stop()

	go func() {
		<-be.started
		syscall.Kill(os.Getpid(), syscall.SIGINT)
	}()

	done := make(chan int, 1)
	go func() { done <- l.Launch(ctx, nil) }()

	select {
	case code := <-done:
		assert.Equal(t, executor.ExitInterrupted, code)
	case <-time.After(5 * time.Second):
		t.Fatal("launch did not return after SIGINT")
	}
}
