package report

import (
	"sort"

	"golang.org/x/text/cases"

	"github.com/mesler1/dadcam/internal/sorter"
)

// topLabelLimit caps the label ranking in the summary table.
const topLabelLimit = 10

// LabelCount is how many files carried a label.
type LabelCount struct {
	Label string
	Count int
}

// Summary aggregates one run's results.
type Summary struct {
	Total  int
	Counts map[sorter.Action]int
	// WithDetections counts successfully sorted files with a positive detection.
	WithDetections int
	// TopLabels is ordered by count descending, ties by first sighting. Labels
	// differing only in case are counted together under the first spelling.
	TopLabels []LabelCount
}

// Summarize aggregates results.
func Summarize(results []sorter.Result) Summary {
	s := Summary{
		Total:  len(results),
		Counts: make(map[sorter.Action]int, len(sorter.Actions)),
	}
	index := make(map[string]int)
	fold := cases.Fold()
	for _, res := range results {
		s.Counts[res.Action]++
		if res.Action.IsError() || !res.Detection.Detected {
			continue
		}
		s.WithDetections++
		for _, label := range res.Detection.Labels {
			key := fold.String(label)
			if i, ok := index[key]; ok {
				s.TopLabels[i].Count++
				continue
			}
			index[key] = len(s.TopLabels)
			s.TopLabels = append(s.TopLabels, LabelCount{Label: label, Count: 1})
		}
	}
	sort.SliceStable(s.TopLabels, func(i, j int) bool {
		return s.TopLabels[i].Count > s.TopLabels[j].Count
	})
	if len(s.TopLabels) > topLabelLimit {
		s.TopLabels = s.TopLabels[:topLabelLimit]
	}
	return s
}

// Errors returns the number of per-file failures.
func (s Summary) Errors() int {
	return s.Counts[sorter.CopyError] + s.Counts[sorter.DetectionError]
}
