package main

import (
	"errors"
	"fmt"
	"gtburst/internal/config"
	"gtburst/internal/launcher"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var version = "dev"

// ExitError carries a non-zero exit code out of a RunE handler.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

// load reads the configuration and applies the --log-level override.
func (g *globalFlags) load() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (g *globalFlags) logger(cfg *config.Config, w io.Writer) *log.Logger {
	return launcher.NewLogger(cfg.LogLevel, w)
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "gtburstctl",
		Short: "Inspect and run the gtburst launcher",
		Long: `gtburstctl works with the same configuration as the gtburst launcher
($GTBURSTCONFDIR/launcher.yaml and the GTBURST_* variables).

Examples:
  gtburstctl check              Verify the installation
  gtburstctl show -- --help     Show the command gtburst would run
  gtburstctl run --mode shell   Launch through the legacy shell command line
  gtburstctl history -n 5       List the last five launches`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (default is $GTBURSTCONFDIR/launcher.yaml)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(newCheckCmd(g))
	root.AddCommand(newShowCmd(g))
	root.AddCommand(newRunCmd(g))
	root.AddCommand(newHistoryCmd(g))
	root.AddCommand(newVersionCmd())

	return root
}

// execute runs the root command and maps the outcome to an exit code.
func execute(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	return exitCode(root.Execute(), os.Stderr)
}

func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintf(stderr, "error: %v\n", exitErr.Err)
		}
		return exitErr.Code
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return 1
}
