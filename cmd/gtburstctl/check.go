package main

import (
	"errors"
	"fmt"
	"gtburst/internal/config"
	"gtburst/internal/executor"
	"gtburst/internal/preflight"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCheckCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify that the installation can run gtburst",
		Long: `Check the installation directory, the gtburst script, the python
interpreter, the likelihood templates and the configuration directory.
In docker mode the daemon is probed instead of the local interpreter.

Exits 1 when any check fails; warnings do not affect the exit code.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}

			var opts []preflight.Option
			if cfg.Mode == config.ModeDocker {
				de, err := executor.NewDockerExecutor(cfg, g.logger(cfg, cmd.ErrOrStderr()), executor.StdStreams())
				if err == nil {
					defer de.Close()
					opts = append(opts, preflight.WithPinger(de))
				}
			}

			results := preflight.NewChecker(cfg, opts...).Run(cmd.Context())

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CHECK\tSTATUS\tDETAIL")
			for _, r := range results {
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, r.Status, r.Message)
			}
			w.Flush()

			if preflight.Failed(results) {
				return &ExitError{Code: 1, Err: errors.New("installation check failed")}
			}
			return nil
		},
	}
}
