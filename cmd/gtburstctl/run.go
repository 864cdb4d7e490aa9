package main

import (
	"gtburst/internal/config"
	"gtburst/internal/executor"
	"gtburst/internal/launcher"
	"gtburst/pkg/launch"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// runFlags override the loaded configuration for a single launch.
type runFlags struct {
	mode            string
	python          string
	instDir         string
	noForwardArgs   bool
	noPropagateExit bool
}

func (f *runFlags) apply(cfg *config.Config) error {
	if f.mode != "" {
		cfg.Mode = config.Mode(strings.ToLower(f.mode))
	}
	if f.python != "" {
		cfg.Python = f.python
	}
	if f.noForwardArgs {
		cfg.ForwardArgs = false
	}
	if f.noPropagateExit {
		cfg.PropagateExit = false
	}
	return cfg.Validate()
}

func newRunCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [-- args...]",
		Short: "Launch gtburst with configuration overrides",
		Long: `Launch the gtburst script the way the gtburst binary does, with the
flags below taking precedence over the configuration file and the
environment. Arguments after -- are forwarded to the script.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if err := f.apply(cfg); err != nil {
				return err
			}

			logger := g.logger(cfg, cmd.ErrOrStderr())
			streams := executor.Streams{
				Stdin:  cmd.InOrStdin(),
				Stdout: cmd.OutOrStdout(),
				Stderr: cmd.ErrOrStderr(),
			}
			e, err := executor.ForMode(cfg, logger, streams)
			if err != nil {
				return err
			}

			opts := []launcher.Option{launcher.WithExecutor(e)}
			if f.instDir != "" {
				instDir := f.instDir
				opts = append(opts, launcher.WithEnviron(func() []string {
					return executor.SetEnv(os.Environ(), launch.InstDirEnv, instDir)
				}))
			}

			l, err := launcher.New(cfg, logger, opts...)
			if err != nil {
				return err
			}
			defer l.Close()

			ctx, stop := launcher.CancelOnSignal(cmd.Context(), logger)
			defer stop()

			if code := l.Launch(ctx, args); code != 0 {
				return &ExitError{Code: code}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&f.mode, "mode", "", "executor: direct, shell or docker")
	cmd.Flags().StringVar(&f.python, "python", "", "python interpreter")
	cmd.Flags().StringVar(&f.instDir, "inst-dir", "", "installation root, overrides $INST_DIR")
	cmd.Flags().BoolVar(&f.noForwardArgs, "no-forward-args", false, "do not pass arguments to the script")
	cmd.Flags().BoolVar(&f.noPropagateExit, "no-propagate-exit", false, "always exit 0")
	return cmd
}
