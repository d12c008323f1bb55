package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesler1/dadcam/internal/pipeline"
	"github.com/mesler1/dadcam/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories and external programs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cfg)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.Name, checkState(r), r.Detail})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows))

			if failed := preflight.Failed(results); len(failed) > 0 {
				return pipeline.Fatal(fmt.Errorf("%d required check(s) failed", len(failed)))
			}
			fmt.Fprintln(out, "All required checks passed")
			return nil
		},
	}
}

func checkState(r preflight.Result) string {
	switch {
	case r.Passed:
		return "ok"
	case r.Optional:
		return "missing (optional)"
	default:
		return "FAILED"
	}
}
