package detection

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/mesler1/dadcam/internal/logging"
	"github.com/mesler1/dadcam/internal/media"
)

// Options tunes classification.
type Options struct {
	ConfidenceThreshold float64
	ClassesOfInterest   []string
	// FrameInterval samples every Nth video frame.
	FrameInterval int
}

// Engine classifies media files with one Backend.
type Engine struct {
	backend  Backend
	frames   FrameSource
	fs       afero.Fs
	filter   *labelFilter
	interval int
	logger   *slog.Logger
}

// NewEngine wires a backend and frame source. A nil fsys uses the OS filesystem.
func NewEngine(backend Backend, frames FrameSource, opts Options, fsys afero.Fs, logger *slog.Logger) *Engine {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	interval := opts.FrameInterval
	if interval <= 0 {
		interval = 1
	}
	return &Engine{
		backend:  backend,
		frames:   frames,
		fs:       fsys,
		filter:   newLabelFilter(opts.ConfidenceThreshold, opts.ClassesOfInterest),
		interval: interval,
		logger:   logging.NewComponentLogger(logger, "detection"),
	}
}

// Backend returns the backend in use.
func (e *Engine) Backend() Backend {
	return e.backend
}

// Close releases the backend.
func (e *Engine) Close() error {
	if e.backend == nil {
		return nil
	}
	return e.backend.Close()
}

// Process classifies file. Every failure is reported in Result.Error.
func (e *Engine) Process(ctx context.Context, file media.File) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Failed(fmt.Sprintf("detector panic: %v", r))
		}
		if res.Error != "" {
			logging.WarnWithContext(e.logger, "detection failed; file kept on card", "detection_failed",
				logging.String(logging.FieldPath, file.Path),
				logging.String("cause", res.Error),
				logging.String(logging.FieldErrorHint, "inspect the file or the detector worker output"),
				logging.String(logging.FieldImpact, "source file is not copied or deleted"),
			)
			return
		}
		e.logger.Debug("detection complete",
			logging.String(logging.FieldPath, file.Path),
			logging.String("summary", res.Summary()),
		)
	}()

	if e.backend == nil {
		return Failed("detection_error: no backend")
	}
	switch file.Type {
	case media.Image:
		return e.processImage(ctx, file)
	case media.Video:
		return e.processVideo(ctx, file)
	default:
		return Failed(fmt.Sprintf("unsupported_media_type: %q", file.Type))
	}
}

func (e *Engine) processImage(ctx context.Context, file media.File) Result {
	in, err := e.fs.Open(file.Path)
	if err != nil {
		return Failed(fmt.Sprintf("open_error: %v", err))
	}
	defer in.Close()

	head, err := readHead(in)
	if err != nil {
		return Failed(fmt.Sprintf("open_error: %v", err))
	}
	if err := checkContent(head, media.Image); err != nil {
		return Failed(err.Error())
	}
	if _, err := in.Seek(0, io.SeekStart); err != nil {
		return Failed(fmt.Sprintf("open_error: %v", err))
	}
	img, err := decodeImage(in)
	if err != nil {
		return Failed(fmt.Sprintf("open_error: %v", err))
	}

	hits, err := e.backend.Detect(ctx, Input{Path: file.Path, Image: img})
	if err != nil {
		return Failed(fmt.Sprintf("backend_error: %v", err))
	}
	agg := newAggregate()
	agg.add(e.filter, hits)
	return agg.result(nil)
}

func (e *Engine) processVideo(ctx context.Context, file media.File) Result {
	if err := e.checkVideoHeader(file.Path); err != nil {
		return Failed(err.Error())
	}
	if e.frames == nil {
		return Failed("video_open_error: no frame source")
	}

	agg := newAggregate()
	var frames []int
	for frame, err := range e.frames.Sample(ctx, file.Path, e.interval) {
		if err != nil {
			return Failed(err.Error())
		}
		hits, err := e.backend.Detect(ctx, Input{Image: frame.Image})
		if err != nil {
			return Failed(fmt.Sprintf("backend_error: frame %d: %v", frame.Index, err))
		}
		if agg.add(e.filter, hits) {
			frames = append(frames, frame.Index)
			e.logger.Debug("frame hit",
				logging.String(logging.FieldPath, file.Path),
				logging.Int("frame", frame.Index),
			)
		}
	}
	return agg.result(frames)
}

func (e *Engine) checkVideoHeader(path string) error {
	in, err := e.fs.Open(path)
	if err != nil {
		return fmt.Errorf("video_open_error: %v", err)
	}
	defer in.Close()
	head, err := readHead(in)
	if err != nil {
		return fmt.Errorf("video_open_error: %v", err)
	}
	return checkContent(head, media.Video)
}
