package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/mesler1/dadcam/internal/config"
	"github.com/mesler1/dadcam/internal/detection"
	"github.com/mesler1/dadcam/internal/media"
	"github.com/mesler1/dadcam/internal/report"
	"github.com/mesler1/dadcam/internal/scanner"
	"github.com/mesler1/dadcam/internal/sorter"
	"github.com/mesler1/dadcam/internal/testsupport"
)

// nameBackend reports a dog for any file whose base name is listed.
type nameBackend struct {
	dogs   map[string]bool
	closed bool
}

func (b *nameBackend) Name() string { return "names" }

func (b *nameBackend) Detect(_ context.Context, in detection.Input) ([]detection.Hit, error) {
	if b.dogs[filepath.Base(in.Path)] {
		return []detection.Hit{{Label: "dog", Confidence: 0.81}}, nil
	}
	return nil, nil
}

func (b *nameBackend) Close() error {
	b.closed = true
	return nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Paths.Destination = "/dest"
	cfg.Report.KeepReports = 5
	return &cfg
}

type harness struct {
	fs      afero.Fs
	backend *nameBackend
	opened  int
	clock   time.Time
}

func newHarness(t *testing.T, files map[string][]byte, dogs ...string) *harness {
	t.Helper()
	h := &harness{
		fs:      afero.NewMemMapFs(),
		backend: &nameBackend{dogs: map[string]bool{}},
		clock:   time.Date(2026, 6, 1, 5, 0, 0, 0, time.UTC),
	}
	for _, name := range dogs {
		h.backend.dogs[name] = true
	}
	for path, data := range files {
		if err := afero.WriteFile(h.fs, path, data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return h
}

func (h *harness) pipeline(opts ...Option) *Pipeline {
	base := []Option{
		WithFs(h.fs),
		WithBackendOpener(func(context.Context, *config.Config, *slog.Logger) (detection.Backend, error) {
			h.opened++
			return h.backend, nil
		}),
		WithClock(func() time.Time {
			h.clock = h.clock.Add(time.Second)
			return h.clock
		}),
		WithReportWriter(func(w *report.Writer) {
			w.Hostname = func() (string, error) { return "deck", nil }
			w.Platform = func() (string, error) { return "test", nil }
		}),
	}
	return New(testConfig(), nil, append(base, opts...)...)
}

func (h *harness) exists(t *testing.T, path string) bool {
	t.Helper()
	ok, err := afero.Exists(h.fs, path)
	if err != nil {
		t.Fatal(err)
	}
	return ok
}

func TestRunSortsAndReports(t *testing.T) {
	plain, dog := testsupport.PNG(t, 1), testsupport.PNG(t, 2)
	h := newHarness(t, map[string][]byte{
		"/card/DCIM/a.jpg": plain,
		"/card/DCIM/b.jpg": dog,
	}, "b.jpg")

	var started, completed []int
	out, err := h.pipeline(WithObserver(Observer{
		Started:   func(i, _ int, _ media.File) { started = append(started, i) },
		Completed: func(i, _ int, _ sorter.Result) { completed = append(completed, i) },
	})).Run(context.Background(), Request{Source: "/card", Device: "/dev/sdb1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Status != StatusOK || out.Err() != nil {
		t.Fatalf("unexpected status %d", out.Status)
	}
	if !reflect.DeepEqual(started, []int{1, 2}) || !reflect.DeepEqual(completed, []int{1, 2}) {
		t.Fatalf("unexpected observer calls %v %v", started, completed)
	}
	if !h.backend.closed {
		t.Fatal("backend must be closed after the run")
	}
	if !h.exists(t, "/dest/no_detections/DCIM/a.jpg") || !h.exists(t, "/dest/detections/DCIM/b.jpg") {
		t.Fatal("expected files in their subtrees")
	}
	if h.exists(t, "/card/DCIM/a.jpg") || h.exists(t, "/card/DCIM/b.jpg") {
		t.Fatal("sources must be removed after verified copies")
	}
	if filepath.Dir(out.ReportPath) != "/dest/reports" {
		t.Fatalf("unexpected report path %q", out.ReportPath)
	}
	content, err := afero.ReadFile(h.fs, out.ReportPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), "| Device | /dev/sdb1 |") || !strings.Contains(string(content), "| DCIM/b.jpg | image | ✓ | dog | 0.81 | MOVED |") {
		t.Fatalf("unexpected report:\n%s", content)
	}
}

func TestRunPathKeyedDedup(t *testing.T) {
	plain, dog := testsupport.PNG(t, 1), testsupport.PNG(t, 2)
	h := newHarness(t, map[string][]byte{
		"/dest/detections/previous.jpg": dog,
		"/card/a.jpg":                   plain,
		"/card/b.jpg":                   dog,
		"/card/c.jpg":                   dog,
	}, "b.jpg", "c.jpg")

	out, err := h.pipeline().Run(context.Background(), Request{Source: "/card"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := map[string]struct {
		action sorter.Action
		dest   string
	}{
		"a.jpg": {sorter.Moved, "/dest/no_detections/a.jpg"},
		"b.jpg": {sorter.Moved, "/dest/detections/b.jpg"},
		"c.jpg": {sorter.Moved, "/dest/detections/c.jpg"},
	}
	for _, res := range out.Results {
		w := want[res.File.Name()]
		if res.Action != w.action || res.DestPath != w.dest {
			t.Fatalf("%s: got %s -> %s, want %s -> %s", res.File.Name(), res.Action, res.DestPath, w.action, w.dest)
		}
	}
	if got := out.Results[1].Detection.Labels; !reflect.DeepEqual(got, []string{"dog"}) {
		t.Fatalf("unexpected labels for b.jpg: %v", got)
	}
	if !h.exists(t, "/dest/detections/previous.jpg") {
		t.Fatal("existing destination content must be kept")
	}

	// The same relative name with the same content is a duplicate.
	if err := afero.WriteFile(h.fs, "/card2/c.jpg", dog, 0o644); err != nil {
		t.Fatal(err)
	}
	again, err := h.pipeline().Run(context.Background(), Request{Source: "/card2"})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if again.Results[0].Action != sorter.SkipDuplicate || again.Results[0].DestPath != "/dest/detections/c.jpg" {
		t.Fatalf("unexpected second run result %+v", again.Results[0])
	}
	if h.exists(t, "/card2/c.jpg") || h.exists(t, "/dest/detections/c_1.jpg") {
		t.Fatal("duplicate source should be removed without a new copy")
	}
}

func TestRunPartialFailureStatus(t *testing.T) {
	h := newHarness(t, map[string][]byte{
		"/card/good.jpg":   testsupport.PNG(t, 1),
		"/card/broken.jpg": []byte("%PDF-1.7 not an image"),
	})
	out, err := h.pipeline().Run(context.Background(), Request{Source: "/card"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Status != StatusPartial || StatusOf(out.Err()) != StatusPartial {
		t.Fatalf("expected partial status, got %d", out.Status)
	}
	if out.Summary.Counts[sorter.DetectionError] != 1 || out.Summary.Counts[sorter.Moved] != 1 {
		t.Fatalf("unexpected counts %+v", out.Summary.Counts)
	}
	if !h.exists(t, "/card/broken.jpg") {
		t.Fatal("failed file must stay on the card")
	}
	if out.ReportPath == "" {
		t.Fatal("a report is written for partial runs")
	}
}

func TestRunEmptySourceWritesNothing(t *testing.T) {
	h := newHarness(t, map[string][]byte{"/card/readme.txt": []byte("x")})
	out, err := h.pipeline().Run(context.Background(), Request{Source: "/card"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Status != StatusOK || out.ReportPath != "" || len(out.Results) != 0 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if h.opened != 0 {
		t.Fatal("detector must not start when there is nothing to process")
	}
	if h.exists(t, "/dest/reports") {
		t.Fatal("no report expected for an empty run")
	}
}

func TestRunFatalErrors(t *testing.T) {
	t.Run("missing source", func(t *testing.T) {
		h := newHarness(t, nil)
		_, err := h.pipeline().Run(context.Background(), Request{Source: "/nowhere"})
		if StatusOf(err) != StatusFatal || !errors.Is(err, ErrFatal) || !errors.Is(err, scanner.ErrNotFound) {
			t.Fatalf("expected fatal scan error, got %v", err)
		}
	})
	t.Run("backend unavailable", func(t *testing.T) {
		h := newHarness(t, map[string][]byte{"/card/a.jpg": testsupport.PNG(t, 1)})
		p := h.pipeline(WithBackendOpener(func(context.Context, *config.Config, *slog.Logger) (detection.Backend, error) {
			return nil, detection.ErrNoBackend
		}))
		_, err := p.Run(context.Background(), Request{Source: "/card"})
		if StatusOf(err) != StatusFatal || !errors.Is(err, detection.ErrNoBackend) {
			t.Fatalf("expected fatal backend error, got %v", err)
		}
		if !h.exists(t, "/card/a.jpg") {
			t.Fatal("source must be untouched")
		}
	})
}

func TestRunRejectsOverlappingTrees(t *testing.T) {
	for _, source := range []string{"/dest/no_detections", "/dest", "/"} {
		h := newHarness(t, map[string][]byte{"/dest/no_detections/a.jpg": testsupport.PNG(t, 1)})
		_, err := h.pipeline().Run(context.Background(), Request{Source: source})
		if StatusOf(err) != StatusFatal || !errors.Is(err, ErrOverlappingTrees) {
			t.Fatalf("source %s: expected overlap error, got %v", source, err)
		}
		if h.opened != 0 {
			t.Fatalf("source %s: detector must not start", source)
		}
		if !h.exists(t, "/dest/no_detections/a.jpg") {
			t.Fatalf("source %s: sorted file must be untouched", source)
		}
	}
}

func TestRunStopsBetweenFilesOnCancel(t *testing.T) {
	h := newHarness(t, map[string][]byte{
		"/card/1.jpg": testsupport.PNG(t, 1),
		"/card/2.jpg": testsupport.PNG(t, 2),
		"/card/3.jpg": testsupport.PNG(t, 3),
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := h.pipeline(WithObserver(Observer{
		Completed: func(i, _ int, _ sorter.Result) {
			if i == 1 {
				cancel()
			}
		},
	}))
	out, err := p.Run(ctx, Request{Source: "/card"})
	if StatusOf(err) != StatusFatal || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if out == nil || len(out.Results) != 1 || out.ReportPath == "" {
		t.Fatalf("expected one processed file and a report, got %+v", out)
	}
	if !h.exists(t, "/card/2.jpg") || !h.exists(t, "/card/3.jpg") {
		t.Fatal("unprocessed files must stay on the card")
	}
}

func TestRunDryRun(t *testing.T) {
	h := newHarness(t, map[string][]byte{"/card/a.jpg": testsupport.PNG(t, 1)})
	out, err := h.pipeline().Run(context.Background(), Request{Source: "/card", DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Results[0].Action != sorter.Moved || out.Results[0].DestPath != "/dest/no_detections/a.jpg" {
		t.Fatalf("unexpected plan %+v", out.Results[0])
	}
	if !h.exists(t, "/card/a.jpg") || h.exists(t, "/dest/no_detections/a.jpg") {
		t.Fatal("dry run must not move files")
	}
	content, err := afero.ReadFile(h.fs, out.ReportPath)
	if err != nil || !strings.Contains(string(content), "| Dry run | yes |") {
		t.Fatalf("expected dry-run report, err=%v", err)
	}
}

func TestStatusOf(t *testing.T) {
	if StatusOf(nil) != StatusOK {
		t.Fatal("nil error is OK")
	}
	if StatusOf(errors.New("boom")) != StatusFatal {
		t.Fatal("plain errors are fatal")
	}
	if StatusOf(&ExitError{Status: StatusPartial}) != StatusPartial {
		t.Fatal("ExitError status must be preserved")
	}
}
