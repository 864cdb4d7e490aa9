package main

import (
	"encoding/json"
	"fmt"
	"gtburst/internal/executor"
	"gtburst/internal/launcher"
	"gtburst/pkg/launch"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// preview is the machine-readable output of show --json.
type preview struct {
	Mode       string             `json:"mode"`
	ConfigFile string             `json:"config_file,omitempty"`
	Command    string             `json:"command"`
	Invocation *launch.Invocation `json:"invocation"`
}

func newShowCmd(g *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show [-- args...]",
		Short: "Show the command the launcher would run",
		Long: `Resolve the invocation exactly as gtburst would for the given
arguments and print it without running anything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			// Previewing must not append to the launch history
			cfg.HistoryFile = ""

			l, err := launcher.New(cfg, g.logger(cfg, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer l.Close()

			inv, err := l.Prepare(args)
			if err != nil {
				return err
			}

			command := inv.Shell
			if command == "" {
				command, err = executor.QuoteArgs(inv.Argv())
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				inv.Env = nil
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(preview{
					Mode:       cfg.Mode.String(),
					ConfigFile: cfg.Path,
					Command:    command,
					Invocation: inv,
				})
			}

			source := cfg.Path
			if source == "" {
				source = "(defaults)"
			}
			fmt.Fprintf(out, "Config:  %s\n", source)
			fmt.Fprintf(out, "Mode:    %s\n", cfg.Mode)
			fmt.Fprintf(out, "Command: %s\n", command)
			if inv.InstDir != "" {
				fmt.Fprintf(out, "INST_DIR: %s\n", inv.InstDir)
			}
			fmt.Fprintln(out)

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = out.Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the invocation as JSON")
	return cmd
}
