package report

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/spf13/afero"

	"github.com/mesler1/dadcam/internal/fileutil"
	"github.com/mesler1/dadcam/internal/logging"
	"github.com/mesler1/dadcam/internal/sorter"
)

const (
	reportExt        = ".md"
	reportNameLayout = "2006-01-02_15-04-05"
)

// Writer persists reports into one directory.
type Writer struct {
	fs     afero.Fs
	dir    string
	keep   int
	logger *slog.Logger

	// Hostname and Platform identify the machine; tests replace them.
	Hostname func() (string, error)
	Platform func() (string, error)
}

// NewWriter returns a writer for dir keeping at most keep reports; keep <= 0
// disables pruning.
func NewWriter(fsys afero.Fs, dir string, keep int, logger *slog.Logger) *Writer {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Writer{
		fs:       fsys,
		dir:      dir,
		keep:     keep,
		logger:   logging.NewComponentLogger(logger, "report"),
		Hostname: os.Hostname,
		Platform: hostPlatform,
	}
}

// Dir returns the reports directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Write renders and saves the report for results and prunes old reports. It
// returns the path written.
func (w *Writer) Write(results []sorter.Result, run Run) (string, error) {
	if err := w.fs.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}
	path, err := fileutil.UniquePath(w.fs, filepath.Join(w.dir, run.End.Format(reportNameLayout)+reportExt))
	if err != nil {
		return "", fmt.Errorf("choose report path: %w", err)
	}

	content := Render(results, run, w.environment())
	if err := afero.WriteFile(w.fs, path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	w.logger.Info("report written",
		logging.String(logging.FieldPath, path),
		logging.Int("files", len(results)),
	)

	if removed, err := w.Prune(); err != nil {
		logging.WarnWithContext(w.logger, "report pruning failed", "report_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the reports directory"),
			logging.String(logging.FieldImpact, "older reports are kept"),
		)
	} else if removed > 0 {
		w.logger.Info("old reports pruned", logging.Int("removed", removed))
	}
	return path, nil
}

// Prune deletes the oldest reports beyond the retention count and returns how
// many were removed.
func (w *Writer) Prune() (int, error) {
	if w.keep <= 0 {
		return 0, nil
	}
	names, err := reportNames(w.fs, w.dir)
	if err != nil {
		return 0, err
	}
	if len(names) <= w.keep {
		return 0, nil
	}
	var errs []error
	removed := 0
	for _, name := range names[:len(names)-w.keep] {
		if err := w.fs.Remove(filepath.Join(w.dir, name)); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func (w *Writer) environment() Environment {
	var env Environment
	if w.Hostname != nil {
		if name, err := w.Hostname(); err == nil {
			env.Host = name
		}
	}
	if w.Platform != nil {
		if platform, err := w.Platform(); err == nil {
			env.Platform = platform
		} else {
			w.logger.Debug("platform lookup failed", logging.Error(err))
		}
	}
	return env
}

func hostPlatform() (string, error) {
	info, err := host.Info()
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, 3)
	for _, part := range []string{info.Platform, info.PlatformVersion, info.KernelArch} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " "), nil
}

// List returns the newest last report paths in dir, oldest first. last <= 0
// returns every report. A missing directory yields no reports.
func List(fsys afero.Fs, dir string, last int) ([]string, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	names, err := reportNames(fsys, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if last > 0 && len(names) > last {
		names = names[len(names)-last:]
	}
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return paths, nil
}

func reportNames(fsys afero.Fs, dir string) ([]string, error) {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Mode().IsRegular() || !strings.HasSuffix(entry.Name(), reportExt) {
			continue
		}
		names = append(names, entry.Name())
	}
	slices.SortFunc(names, compareReportNames)
	return names, nil
}

// compareReportNames orders reports by time stamp, then by the numeric
// collision suffix so that name_10 follows name_9.
func compareReportNames(a, b string) int {
	aStem, aSeq := splitReportName(a)
	bStem, bSeq := splitReportName(b)
	if c := strings.Compare(aStem, bStem); c != 0 {
		return c
	}
	return cmp.Compare(aSeq, bSeq)
}

func splitReportName(name string) (string, int) {
	stem := strings.TrimSuffix(name, reportExt)
	i := strings.LastIndexByte(stem, '_')
	if i < 0 {
		return stem, 0
	}
	seq, err := strconv.Atoi(stem[i+1:])
	if err != nil || seq <= 0 {
		return stem, 0
	}
	return stem[:i], seq
}
