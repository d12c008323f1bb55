package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesler1/dadcam/internal/logs"
	"github.com/mesler1/dadcam/internal/pipeline"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var runID string
	var day string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent entries from the JSON log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var path string
			if strings.TrimSpace(day) != "" {
				parsed, err := time.Parse("2006-01-02", strings.TrimSpace(day))
				if err != nil {
					return pipeline.Fatal(fmt.Errorf("--day must be YYYY-MM-DD: %w", err))
				}
				path = cfg.LogFilePath(parsed)
			} else {
				path, err = logs.Latest(cfg.Paths.LogDir)
				if err != nil {
					return pipeline.Fatal(err)
				}
			}
			out := cmd.OutOrStdout()
			if path == "" {
				fmt.Fprintf(out, "No log files in %s\n", cfg.Paths.LogDir)
				return nil
			}

			var match logs.Matcher
			if strings.TrimSpace(runID) != "" {
				match = logs.ForRun(runID)
			}
			recent, offset, err := logs.Last(path, lines, match)
			if err != nil {
				return pipeline.Fatal(err)
			}
			for _, line := range recent {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, 0, match, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().StringVar(&runID, "run", "", "Only show records from this run id (prefix match)")
	cmd.Flags().StringVar(&day, "day", "", "Read the log for this day (YYYY-MM-DD) instead of the newest")
	return cmd
}
