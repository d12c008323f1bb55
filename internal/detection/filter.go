package detection

import (
	"strings"

	"golang.org/x/text/cases"
)

// labelFilter keeps hits at or above the threshold whose label is a class of
// interest. Labels are compared case-insensitively.
type labelFilter struct {
	threshold float64
	fold      cases.Caser
	classes   map[string]struct{}
}

func newLabelFilter(threshold float64, classes []string) *labelFilter {
	f := &labelFilter{
		threshold: threshold,
		fold:      cases.Fold(),
		classes:   make(map[string]struct{}, len(classes)),
	}
	for _, class := range classes {
		if key := f.key(class); key != "" {
			f.classes[key] = struct{}{}
		}
	}
	return f
}

func (f *labelFilter) key(label string) string {
	return f.fold.String(strings.TrimSpace(label))
}

// keep returns the folded key of a surviving hit.
func (f *labelFilter) keep(hit Hit) (string, bool) {
	if hit.Confidence < f.threshold {
		return "", false
	}
	key := f.key(hit.Label)
	if _, ok := f.classes[key]; !ok {
		return "", false
	}
	return key, true
}

// aggregate collects filtered hits and keeps the highest confidence per label
// in first-seen order. Labels are keyed by their folded form and reported with
// the first spelling seen.
type aggregate struct {
	order   []string
	best    map[string]float64
	display map[string]string
}

func newAggregate() *aggregate {
	return &aggregate{
		best:    make(map[string]float64),
		display: make(map[string]string),
	}
}

// add records the surviving hits and reports whether any survived.
func (a *aggregate) add(f *labelFilter, hits []Hit) bool {
	matched := false
	for _, hit := range hits {
		key, ok := f.keep(hit)
		if !ok {
			continue
		}
		matched = true
		conf := roundConfidence(hit.Confidence)
		prev, seen := a.best[key]
		if !seen {
			a.order = append(a.order, key)
			a.best[key] = conf
			a.display[key] = strings.TrimSpace(hit.Label)
			continue
		}
		if conf > prev {
			a.best[key] = conf
		}
	}
	return matched
}

func (a *aggregate) result(frames []int) Result {
	res := Result{Frames: frames}
	if len(a.order) == 0 {
		return res
	}
	res.Detected = true
	res.Labels = make([]string, len(a.order))
	res.Confidences = make([]float64, len(a.order))
	for i, key := range a.order {
		res.Labels[i] = a.display[key]
		res.Confidences[i] = a.best[key]
	}
	return res
}
