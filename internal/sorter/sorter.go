package sorter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/mesler1/dadcam/internal/detection"
	"github.com/mesler1/dadcam/internal/fileutil"
	"github.com/mesler1/dadcam/internal/logging"
	"github.com/mesler1/dadcam/internal/media"
)

const (
	// DetectionsDir holds files with at least one label of interest.
	DetectionsDir = "detections"
	// NoDetectionsDir holds everything else.
	NoDetectionsDir = "no_detections"
)

// Options tunes sorting.
type Options struct {
	// DryRun plans destinations and checks duplicates without touching either
	// tree.
	DryRun bool
}

// Sorter places files under a destination root.
type Sorter struct {
	fs     afero.Fs
	root   string
	opts   Options
	logger *slog.Logger
}

// New prepares a sorter rooted at destination. Outside dry-run mode both
// subtrees are created.
func New(fsys afero.Fs, destination string, opts Options, logger *slog.Logger) (*Sorter, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	root := filepath.Clean(strings.TrimSpace(destination))
	if root == "." || root == "" {
		return nil, errors.New("sorter: destination root is empty")
	}
	s := &Sorter{
		fs:     fsys,
		root:   root,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "sorter"),
	}
	if !opts.DryRun {
		for _, sub := range []string{DetectionsDir, NoDetectionsDir} {
			if err := fsys.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
				return nil, fmt.Errorf("create %s subtree: %w", sub, err)
			}
		}
	}
	return s, nil
}

// Root returns the destination root.
func (s *Sorter) Root() string {
	return s.root
}

// Subtree returns the subtree a detection result sorts into.
func (s *Sorter) Subtree(det detection.Result) string {
	if det.Detected {
		return filepath.Join(s.root, DetectionsDir)
	}
	return filepath.Join(s.root, NoDetectionsDir)
}

// Sort moves file into the destination tree according to det. It never
// returns an error; failures are reported through Result.Action.
func (s *Sorter) Sort(ctx context.Context, file media.File, det detection.Result) (res Result) {
	logger := logging.WithContext(ctx, s.logger).With(logging.String(logging.FieldPath, file.Path))
	res = Result{File: file, Detection: det}

	defer func() {
		if r := recover(); r != nil {
			res.Action = CopyError
			res.Error = fmt.Sprintf("sorter panic: %v", r)
		}
		s.logOutcome(logger, res)
	}()

	if det.Error != "" {
		res.Action = DetectionError
		res.Error = det.Error
		return res
	}

	subtree := s.Subtree(det)
	dest := filepath.Join(subtree, file.RelPath)
	if !fileutil.Within(subtree, dest) || filepath.Clean(dest) == filepath.Clean(subtree) {
		return s.fail(res, "", fmt.Sprintf("path_traversal: %q escapes %s", file.RelPath, subtree))
	}
	inside, err := fileutil.ResolvedWithin(s.fs, subtree, dest)
	if err != nil {
		return s.fail(res, "", fmt.Sprintf("path_traversal: %v", err))
	}
	if !inside {
		return s.fail(res, "", fmt.Sprintf("path_traversal: %q resolves outside %s", file.RelPath, subtree))
	}

	// A source that is its own destination is never removed.
	if fileutil.SameFile(s.fs, file.Path, dest) {
		res.Action = SkipDuplicate
		res.DestPath = dest
		return res
	}

	srcHash, err := fileutil.HashFile(s.fs, file.Path)
	if err != nil {
		return s.fail(res, "", fmt.Sprintf("source_hash_error: %v", err))
	}

	exists, err := fileutil.Exists(s.fs, dest)
	if err != nil {
		return s.fail(res, dest, fmt.Sprintf("dest_stat_error: %v", err))
	}
	if exists {
		existingHash, err := fileutil.HashFile(s.fs, dest)
		if err != nil {
			return s.fail(res, dest, fmt.Sprintf("dest_hash_error: %v", err))
		}
		if existingHash == srcHash {
			res.Action = SkipDuplicate
			res.DestPath = dest
			if !s.opts.DryRun {
				s.removeSource(logger, file.Path, "duplicate")
			}
			return res
		}
		dest, err = fileutil.UniquePath(s.fs, dest)
		if err != nil {
			return s.fail(res, "", fmt.Sprintf("dest_stat_error: %v", err))
		}
		logger.Debug("destination taken by different content; renamed",
			logging.String("dest", dest))
	}

	if s.opts.DryRun {
		res.Action = Moved
		res.DestPath = dest
		return res
	}

	if err := s.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return s.fail(res, dest, fmt.Sprintf("mkdir_error: %v", err))
	}
	if _, err := fileutil.CopyPreserving(s.fs, file.Path, dest); err != nil {
		s.removePartial(logger, dest)
		return s.fail(res, dest, fmt.Sprintf("copy_error: %v", err))
	}

	destHash, err := fileutil.HashFile(s.fs, dest)
	if err != nil {
		s.removePartial(logger, dest)
		return s.fail(res, dest, fmt.Sprintf("verify_error: %v", err))
	}
	if destHash != srcHash {
		s.removePartial(logger, dest)
		return s.fail(res, dest, "hash_mismatch_after_copy")
	}

	s.removeSource(logger, file.Path, "moved")
	res.Action = Moved
	res.DestPath = dest
	return res
}

func (s *Sorter) fail(res Result, dest, cause string) Result {
	res.Action = CopyError
	res.DestPath = dest
	res.Error = cause
	return res
}

// removeSource deletes the source after its copy is confirmed. A failure
// leaves a redundant source behind, which is logged but does not change the
// outcome.
func (s *Sorter) removeSource(logger *slog.Logger, path, reason string) {
	if err := s.fs.Remove(path); err != nil {
		logging.WarnWithContext(logger, "source delete failed", "source_delete_failed",
			logging.String("reason", reason),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the card may be read-only; remove the file manually"),
			logging.String(logging.FieldImpact, "a verified copy exists; the source will be deduplicated next run"),
		)
	}
}

func (s *Sorter) removePartial(logger *slog.Logger, dest string) {
	if err := s.fs.Remove(dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.WarnWithContext(logger, "partial destination not removed", "partial_cleanup_failed",
			logging.String("dest", dest),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the partial file before the next run"),
			logging.String(logging.FieldImpact, "next run renames around the leftover file"),
		)
	}
}

func (s *Sorter) logOutcome(logger *slog.Logger, res Result) {
	attrs := []logging.Attr{
		logging.String(logging.FieldAction, string(res.Action)),
		logging.String("detection", res.Detection.Summary()),
	}
	if res.DestPath != "" {
		attrs = append(attrs, logging.String("dest", res.DestPath))
	}
	if s.opts.DryRun {
		attrs = append(attrs, logging.Bool("dry_run", true))
	}
	if res.Action == CopyError {
		attrs = append(attrs,
			logging.String("cause", res.Error),
			logging.String(logging.FieldErrorHint, "check destination free space and permissions"),
			logging.String(logging.FieldImpact, "source file kept on card"),
		)
		logging.WarnWithContext(logger, "copy failed", "copy_error", attrs...)
		return
	}
	logger.Info("file sorted", logging.Args(attrs...)...)
}
