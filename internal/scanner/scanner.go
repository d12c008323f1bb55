// Package scanner enumerates candidate media files beneath a root directory.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/mesler1/dadcam/internal/logging"
	"github.com/mesler1/dadcam/internal/media"
)

var (
	// ErrNotFound indicates the scan root does not exist.
	ErrNotFound = errors.New("scan root not found")
	// ErrNotADirectory indicates the scan root exists but is not a directory.
	ErrNotADirectory = errors.New("scan root is not a directory")
)

// Stats summarizes one scan.
type Stats struct {
	Found int
	// Skipped counts regular files with an unsupported extension.
	Skipped int
	// Failed counts entries that could not be inspected.
	Failed int
}

// Scanner walks a directory tree and classifies supported media files.
type Scanner struct {
	fs     afero.Fs
	logger *slog.Logger
}

// New constructs a Scanner. A nil fsys uses the OS filesystem.
func New(fsys afero.Fs, logger *slog.Logger) *Scanner {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Scanner{fs: fsys, logger: logging.NewComponentLogger(logger, "scanner")}
}

// Scan returns every supported media file under root, ordered by full path.
// Unreadable entries are logged and skipped; only a missing or non-directory
// root fails the scan.
func (s *Scanner) Scan(ctx context.Context, root string) ([]media.File, Stats, error) {
	var stats Stats

	resolved, err := s.resolveRoot(root)
	if err != nil {
		return nil, stats, err
	}

	files := make([]media.File, 0, 128)
	walkErr := afero.Walk(s.fs, resolved, func(path string, info os.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == resolved {
				return err
			}
			stats.Failed++
			logging.WarnWithContext(s.logger, "entry unreadable; skipped", "scan_entry_unreadable",
				logging.String(logging.FieldPath, path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check card for filesystem errors"),
				logging.String(logging.FieldImpact, "files under this entry are not ingested"),
			)
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		kind, ok := media.TypeForPath(path)
		if !ok {
			stats.Skipped++
			return nil
		}

		rel, err := filepath.Rel(resolved, path)
		if err != nil {
			stats.Failed++
			s.logger.Warn("relative path failed; skipped", logging.String(logging.FieldPath, path), logging.Error(err))
			return nil
		}

		files = append(files, media.File{
			Path:    path,
			Type:    kind,
			Size:    info.Size(),
			RelPath: rel,
		})
		return nil
	})
	if walkErr != nil {
		return nil, stats, fmt.Errorf("scan %s: %w", resolved, walkErr)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	stats.Found = len(files)

	s.logger.Info("scan complete",
		logging.String(logging.FieldPath, resolved),
		logging.Int("found", stats.Found),
		logging.Int("skipped", stats.Skipped),
		logging.Int("failed", stats.Failed),
	)
	return files, stats, nil
}

func (s *Scanner) resolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve scan root %q: %w", root, err)
	}
	if _, ok := s.fs.(*afero.OsFs); ok {
		if evaluated, err := filepath.EvalSymlinks(abs); err == nil {
			abs = evaluated
		}
	}

	info, err := s.fs.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, abs)
		}
		return "", fmt.Errorf("stat scan root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotADirectory, abs)
	}
	return abs, nil
}
