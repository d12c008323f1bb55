package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/mesler1/dadcam/internal/pipeline"
	"github.com/mesler1/dadcam/internal/report"
)

func newReportsCommand(ctx *commandContext) *cobra.Command {
	var last int

	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List recent run reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if last <= 0 {
				return pipeline.Fatal(fmt.Errorf("--last must be positive, got %d", last))
			}
			paths, err := report.List(afero.NewOsFs(), cfg.ReportsDir(), last)
			if err != nil {
				return pipeline.Fatal(fmt.Errorf("list reports: %w", err))
			}
			out := cmd.OutOrStdout()
			if len(paths) == 0 {
				fmt.Fprintf(out, "No reports in %s\n", cfg.ReportsDir())
				return nil
			}
			for _, path := range paths {
				fmt.Fprintln(out, path)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&last, "last", "l", 5, "Number of most recent reports to list")
	return cmd
}
