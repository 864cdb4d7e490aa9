package main

import (
	"fmt"
	"gtburst/internal/audit"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCmd(g *globalFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded launches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}

			entries, err := audit.Read(cfg.HistoryFile)
			if err != nil {
				return err
			}
			entries = audit.Last(entries, limit)

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No launch history")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tRUN\tMODE\tEXIT\tDURATION\tCOMMAND")
			for _, e := range entries {
				timestamp := e.Timestamp
				if t, err := time.Parse(time.RFC3339Nano, timestamp); err == nil {
					timestamp = t.Local().Format("2006-01-02 15:04:05")
				}

				duration := ""
				if e.Duration > 0 {
					duration = fmt.Sprintf("%.0fms", e.Duration)
				}

				runID := e.RunID
				if len(runID) > 8 {
					runID = runID[:8]
				}

				command := strings.TrimSpace(e.Command + " " + strings.Join(e.Args, " "))
				if e.Error != "" {
					command += " (" + e.Error + ")"
				}

				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					timestamp, runID, e.Mode, e.ExitCode, duration, command)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of launches to show (0 for all)")
	return cmd
}
