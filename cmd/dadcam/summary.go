package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/mesler1/dadcam/internal/pipeline"
	"github.com/mesler1/dadcam/internal/sorter"
)

var (
	colorOK    = color.New(color.FgGreen, color.Bold)
	colorWarn  = color.New(color.FgYellow, color.Bold)
	colorMuted = color.New(color.FgCyan)
)

func printSummary(out io.Writer, outcome *pipeline.Outcome) {
	if outcome == nil {
		return
	}
	s := outcome.Summary
	if outcome.Scan.Found == 0 {
		fmt.Fprintln(out, "No media files found.")
		return
	}

	if outcome.DryRun {
		colorMuted.Fprintf(out, "Dry run complete. %d would be moved, %d with detections. No files were copied or removed.\n",
			s.Counts[sorter.Moved], s.WithDetections)
	} else {
		line := colorOK
		if s.Errors() > 0 {
			line = colorWarn
		}
		line.Fprintf(out, "Done. %d moved, %d duplicates, %d errors, %d with detections.\n",
			s.Counts[sorter.Moved], s.Counts[sorter.SkipDuplicate], s.Errors(), s.WithDetections)
	}
	if len(s.TopLabels) > 0 {
		parts := make([]string, 0, len(s.TopLabels))
		for _, lc := range s.TopLabels {
			parts = append(parts, fmt.Sprintf("%s (%d)", lc.Label, lc.Count))
		}
		fmt.Fprintf(out, "Top labels: %s\n", strings.Join(parts, ", "))
	}
	if outcome.ReportPath != "" {
		fmt.Fprintf(out, "Report: %s\n", outcome.ReportPath)
	}
}
