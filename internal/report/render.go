package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/mesler1/dadcam/internal/sorter"
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	emptyCell       = "—"
)

// Run describes the run a report covers.
type Run struct {
	Device string
	Start  time.Time
	End    time.Time
	DryRun bool
}

// Environment identifies the machine that produced a report.
type Environment struct {
	Host     string
	Platform string
}

// Render produces the markdown report for results.
func Render(results []sorter.Result, run Run, env Environment) string {
	summary := Summarize(results)
	var b strings.Builder

	b.WriteString("# dadcam Run Report\n\n")
	b.WriteString(markdownTable(
		table.Row{"Field", "Value"},
		[]table.Row{
			{"Timestamp", run.End.Format(timestampLayout)},
			{"Host", orEmpty(env.Host)},
			{"Platform", orEmpty(env.Platform)},
			{"Device", orEmpty(run.Device)},
			{"Run start", run.Start.Format(timestampLayout)},
			{"Run end", run.End.Format(timestampLayout)},
			{"Duration", run.End.Sub(run.Start).Round(time.Second).String()},
			{"Dry run", yesNo(run.DryRun)},
		},
		nil,
	))

	b.WriteString("\n\n## Summary\n\n")
	b.WriteString(markdownTable(
		table.Row{"Metric", "Count"},
		[]table.Row{
			{"Total files processed", summary.Total},
			{"Moved to destination", summary.Counts[sorter.Moved]},
			{"Skipped (duplicate)", summary.Counts[sorter.SkipDuplicate]},
			{"Detection errors", summary.Counts[sorter.DetectionError]},
			{"Copy errors", summary.Counts[sorter.CopyError]},
			{"Files with detections", summary.WithDetections},
			{"Top detected labels", formatTopLabels(summary.TopLabels)},
		},
		[]text.Align{text.AlignLeft, text.AlignRight},
	))

	b.WriteString("\n\n## Per-File Results\n\n")
	rows := make([]table.Row, 0, len(results))
	for _, res := range results {
		rows = append(rows, table.Row{
			res.File.RelPath,
			string(res.File.Type),
			detectedMarker(res),
			joinOrEmpty(res.Detection.Labels),
			formatConfidences(res.Detection.Confidences),
			formatAction(res),
		})
	}
	b.WriteString(markdownTable(
		table.Row{"File", "Type", "Detected", "Labels", "Confidence", "Action"},
		rows,
		nil,
	))

	b.WriteString("\n\n---\n\n*Generated by dadcam*\n")
	return b.String()
}

func markdownTable(header table.Row, rows []table.Row, aligns []text.Align) string {
	tw := table.NewWriter()
	tw.AppendHeader(header)
	tw.AppendRows(rows)
	if len(aligns) > 0 {
		configs := make([]table.ColumnConfig, 0, len(aligns))
		for i, align := range aligns {
			configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align})
		}
		tw.SetColumnConfigs(configs)
	}
	return tw.RenderMarkdown()
}

func detectedMarker(res sorter.Result) string {
	switch {
	case res.Action == sorter.DetectionError:
		return "⚠"
	case res.Detection.Detected:
		return "✓"
	default:
		return "✗"
	}
}

func formatAction(res sorter.Result) string {
	if res.Action.IsError() {
		if cause := res.Cause(); cause != "" {
			return fmt.Sprintf("%s (%s)", res.Action, cause)
		}
	}
	return string(res.Action)
}

func formatConfidences(values []float64) string {
	if len(values) == 0 {
		return emptyCell
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'f', 2, 64)
	}
	return strings.Join(parts, ", ")
}

func formatTopLabels(labels []LabelCount) string {
	if len(labels) == 0 {
		return emptyCell
	}
	parts := make([]string, len(labels))
	for i, lc := range labels {
		parts[i] = fmt.Sprintf("%s (%d)", lc.Label, lc.Count)
	}
	return strings.Join(parts, ", ")
}

func joinOrEmpty(values []string) string {
	if len(values) == 0 {
		return emptyCell
	}
	return strings.Join(values, ", ")
}

func orEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return emptyCell
	}
	return value
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
