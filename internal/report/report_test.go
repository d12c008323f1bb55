package report

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/mesler1/dadcam/internal/detection"
	"github.com/mesler1/dadcam/internal/media"
	"github.com/mesler1/dadcam/internal/sorter"
)

func sampleResults() []sorter.Result {
	return []sorter.Result{
		{
			File:      media.File{Path: "/card/DCIM/a.jpg", RelPath: "DCIM/a.jpg", Type: media.Image},
			Detection: detection.Result{Detected: true, Labels: []string{"dog", "person"}, Confidences: []float64{0.912, 0.5}},
			Action:    sorter.Moved,
			DestPath:  "/dest/detections/DCIM/a.jpg",
		},
		{
			File:      media.File{Path: "/card/DCIM/b.mp4", RelPath: "DCIM/b.mp4", Type: media.Video},
			Detection: detection.Result{Detected: true, Labels: []string{"person"}, Confidences: []float64{0.77}, Frames: []int{0, 30}},
			Action:    sorter.SkipDuplicate,
			DestPath:  "/dest/detections/DCIM/b.mp4",
		},
		{
			File:     media.File{Path: "/card/DCIM/c.jpg", RelPath: "DCIM/c.jpg", Type: media.Image},
			Action:   sorter.Moved,
			DestPath: "/dest/no_detections/DCIM/c.jpg",
		},
		{
			File:      media.File{Path: "/card/DCIM/d.jpg", RelPath: "DCIM/d.jpg", Type: media.Image},
			Detection: detection.Failed("open_error: truncated"),
			Action:    sorter.DetectionError,
			Error:     "open_error: truncated",
		},
		{
			File:      media.File{Path: "/card/DCIM/e.jpg", RelPath: "DCIM/e.jpg", Type: media.Image},
			Detection: detection.Result{Detected: true, Labels: []string{"cat"}, Confidences: []float64{0.6}},
			Action:    sorter.CopyError,
			Error:     "hash_mismatch_after_copy",
		},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleResults())
	if s.Total != 5 || s.WithDetections != 2 || s.Errors() != 2 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.Counts[sorter.Moved] != 2 || s.Counts[sorter.SkipDuplicate] != 1 {
		t.Fatalf("unexpected counts %+v", s.Counts)
	}
	want := []LabelCount{{"person", 2}, {"dog", 1}}
	if !reflect.DeepEqual(s.TopLabels, want) {
		t.Fatalf("unexpected top labels %+v", s.TopLabels)
	}
}

func TestSummarizeFoldsLabelCase(t *testing.T) {
	results := []sorter.Result{
		{Action: sorter.Moved, Detection: detection.Result{Detected: true, Labels: []string{"Deer"}, Confidences: []float64{0.9}}},
		{Action: sorter.Moved, Detection: detection.Result{Detected: true, Labels: []string{"deer"}, Confidences: []float64{0.7}}},
	}
	if got := Summarize(results).TopLabels; !reflect.DeepEqual(got, []LabelCount{{"Deer", 2}}) {
		t.Fatalf("unexpected top labels %+v", got)
	}
}

func TestSummarizeCapsTopLabels(t *testing.T) {
	var results []sorter.Result
	labels := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}
	for _, label := range labels {
		results = append(results, sorter.Result{
			Action:    sorter.Moved,
			Detection: detection.Result{Detected: true, Labels: []string{label}, Confidences: []float64{0.9}},
		})
	}
	results = append(results, sorter.Result{
		Action:    sorter.Moved,
		Detection: detection.Result{Detected: true, Labels: []string{"l"}, Confidences: []float64{0.9}},
	})
	top := Summarize(results).TopLabels
	if len(top) != topLabelLimit {
		t.Fatalf("expected %d labels, got %d", topLabelLimit, len(top))
	}
	if top[0] != (LabelCount{"l", 2}) || top[1].Label != "a" || top[9].Label != "i" {
		t.Fatalf("unexpected ranking %+v", top)
	}
}

func TestRender(t *testing.T) {
	start := time.Date(2026, 6, 1, 5, 0, 0, 0, time.UTC)
	run := Run{Device: "/dev/sdb1", Start: start, End: start.Add(90 * time.Second)}
	out := Render(sampleResults(), run, Environment{Host: "deck", Platform: "arch rolling x86_64"})

	for _, want := range []string{
		"# dadcam Run Report",
		"| Host | deck |",
		"| Platform | arch rolling x86_64 |",
		"| Device | /dev/sdb1 |",
		"| Duration | 1m30s |",
		"| Dry run | no |",
		"## Summary",
		"| Total files processed | 5 |",
		"| Moved to destination | 2 |",
		"| Skipped (duplicate) | 1 |",
		"| Detection errors | 1 |",
		"| Copy errors | 1 |",
		"| Files with detections | 2 |",
		"| Top detected labels | person (2), dog (1) |",
		"## Per-File Results",
		"| DCIM/a.jpg | image | ✓ | dog, person | 0.91, 0.50 | MOVED |",
		"| DCIM/c.jpg | image | ✗ | — | — | MOVED |",
		"| DCIM/d.jpg | image | ⚠ | — | — | DETECTION_ERROR (open_error: truncated) |",
		"| DCIM/e.jpg | image | ✓ | cat | 0.60 | COPY_ERROR (hash_mismatch_after_copy) |",
		"*Generated by dadcam*",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}

func TestRenderEmptyRun(t *testing.T) {
	now := time.Now()
	out := Render(nil, Run{Start: now, End: now, DryRun: true}, Environment{})
	for _, want := range []string{"| Host | — |", "| Dry run | yes |", "| Top detected labels | — |", "| Total files processed | 0 |"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}

func newTestWriter(fsys afero.Fs, keep int) *Writer {
	w := NewWriter(fsys, "/dest/reports", keep, nil)
	w.Hostname = func() (string, error) { return "deck", nil }
	w.Platform = func() (string, error) { return "", errors.New("no platform") }
	return w
}

func TestWriteNamesByEndTimeAndAvoidsCollisions(t *testing.T) {
	fsys := afero.NewMemMapFs()
	w := newTestWriter(fsys, 0)
	end := time.Date(2026, 6, 1, 5, 4, 3, 0, time.UTC)
	run := Run{Start: end.Add(-time.Minute), End: end}

	first, err := w.Write(sampleResults(), run)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if first != "/dest/reports/2026-06-01_05-04-03.md" {
		t.Fatalf("unexpected path %q", first)
	}
	second, err := w.Write(sampleResults(), run)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if second == first || !strings.HasPrefix(filepath.Base(second), "2026-06-01_05-04-03") {
		t.Fatalf("unexpected second path %q", second)
	}
	if second < first {
		t.Fatalf("collision name %q must sort after %q", second, first)
	}
	content, err := afero.ReadFile(fsys, first)
	if err != nil || !strings.Contains(string(content), "| Platform | — |") {
		t.Fatalf("unexpected content err=%v:\n%s", err, content)
	}
}

func TestWritePrunesOldest(t *testing.T) {
	fsys := afero.NewMemMapFs()
	for _, name := range []string{"2026-01-01_00-00-00.md", "2026-02-01_00-00-00.md", "2026-03-01_00-00-00.md", "notes.txt"} {
		if err := afero.WriteFile(fsys, filepath.Join("/dest/reports", name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	w := newTestWriter(fsys, 2)
	end := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	if _, err := w.Write(nil, Run{Start: end, End: end}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := List(fsys, "/dest/reports", 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/dest/reports/2026-03-01_00-00-00.md", "/dest/reports/2026-04-01_00-00-00.md"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected reports after prune %v", got)
	}
	if ok, _ := afero.Exists(fsys, "/dest/reports/notes.txt"); !ok {
		t.Fatal("non-report files must be left alone")
	}
}

func TestPruneOrdersCollisionSuffixesNumerically(t *testing.T) {
	fsys := afero.NewMemMapFs()
	const stem = "2026-06-01_05-04-03"
	names := []string{stem + ".md"}
	for i := 1; i <= 10; i++ {
		names = append(names, fmt.Sprintf("%s_%d.md", stem, i))
	}
	for _, name := range names {
		if err := afero.WriteFile(fsys, filepath.Join("/dest/reports", name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	w := newTestWriter(fsys, 3)
	end := time.Date(2026, 6, 1, 5, 4, 3, 0, time.UTC)
	path, err := w.Write(nil, Run{Start: end, End: end})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if path != "/dest/reports/"+stem+"_11.md" {
		t.Fatalf("unexpected path %q", path)
	}

	got, err := List(fsys, "/dest/reports", 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"/dest/reports/" + stem + "_9.md",
		"/dest/reports/" + stem + "_10.md",
		"/dest/reports/" + stem + "_11.md",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected reports after prune %v", got)
	}
}

func TestPruneDisabled(t *testing.T) {
	fsys := afero.NewMemMapFs()
	for _, name := range []string{"a.md", "b.md", "c.md"} {
		if err := afero.WriteFile(fsys, filepath.Join("/r", name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	removed, err := NewWriter(fsys, "/r", 0, nil).Prune()
	if err != nil || removed != 0 {
		t.Fatalf("expected no pruning, removed=%d err=%v", removed, err)
	}
}

func TestList(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if got, err := List(fsys, "/missing", 5); err != nil || got != nil {
		t.Fatalf("expected nothing for a missing dir, got %v err=%v", got, err)
	}
	for _, name := range []string{"3.md", "1.md", "2.md"} {
		if err := afero.WriteFile(fsys, filepath.Join("/r", name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := List(fsys, "/r", 2)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"/r/2.md", "/r/3.md"}) {
		t.Fatalf("unexpected list %v", got)
	}
}
