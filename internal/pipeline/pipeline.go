package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"github.com/mesler1/dadcam/internal/config"
	"github.com/mesler1/dadcam/internal/detection"
	"github.com/mesler1/dadcam/internal/fileutil"
	"github.com/mesler1/dadcam/internal/logging"
	"github.com/mesler1/dadcam/internal/media"
	"github.com/mesler1/dadcam/internal/report"
	"github.com/mesler1/dadcam/internal/scanner"
	"github.com/mesler1/dadcam/internal/sorter"
)

// ErrOverlappingTrees is returned when the scan root and the destination
// contain one another.
var ErrOverlappingTrees = errors.New("source and destination overlap")

// BackendOpener starts the detection backend for a run.
type BackendOpener func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (detection.Backend, error)

// Observer receives progress callbacks. Any field may be nil.
type Observer struct {
	Scanned   func(total int)
	Started   func(index, total int, file media.File)
	Completed func(index, total int, res sorter.Result)
}

// Pipeline wires the run stages together.
type Pipeline struct {
	cfg      *config.Config
	fs       afero.Fs
	base     *slog.Logger
	logger   *slog.Logger
	open     BackendOpener
	frames   detection.FrameSource
	now      func() time.Time
	observer Observer
	reports  func(*report.Writer)
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithFs replaces the OS filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(p *Pipeline) { p.fs = fsys }
}

// WithBackendOpener replaces detection.Open.
func WithBackendOpener(open BackendOpener) Option {
	return func(p *Pipeline) { p.open = open }
}

// WithFrameSource replaces the ffmpeg frame source.
func WithFrameSource(frames detection.FrameSource) Option {
	return func(p *Pipeline) { p.frames = frames }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithObserver installs progress callbacks.
func WithObserver(obs Observer) Option {
	return func(p *Pipeline) { p.observer = obs }
}

// WithReportWriter lets callers adjust the report writer before it is used.
func WithReportWriter(configure func(*report.Writer)) Option {
	return func(p *Pipeline) { p.reports = configure }
}

// New constructs a pipeline for cfg.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		fs:     afero.NewOsFs(),
		base:   logger,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		open:   detection.Open,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.frames == nil && cfg != nil {
		p.frames = detection.NewFFmpegSource(cfg.Video.FFmpeg, cfg.Video.FFprobe)
	}
	return p
}

// Request describes one run.
type Request struct {
	Source string
	// Device labels the report; empty for directory runs.
	Device string
	DryRun bool
}

// Outcome summarises a completed run.
type Outcome struct {
	Results    []sorter.Result
	Scan       scanner.Stats
	Summary    report.Summary
	ReportPath string
	Start      time.Time
	End        time.Time
	DryRun     bool
	Status     Status
}

// Err returns the ExitError for a partial run, or nil.
func (o *Outcome) Err() error {
	if o == nil || o.Status == StatusOK {
		return nil
	}
	return &ExitError{Status: o.Status, Err: fmt.Errorf("%d of %d files failed", o.Summary.Errors(), o.Summary.Total)}
}

// Run executes one ingestion pass. Fatal problems are returned as
// *ExitError with StatusFatal; per-file failures are reflected in
// Outcome.Status.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Outcome, error) {
	if p.cfg == nil {
		return nil, Fatal(errors.New("pipeline: nil config"))
	}
	logger := logging.WithContext(ctx, p.logger)
	base := logging.WithContext(ctx, p.base)
	out := &Outcome{Start: p.now(), DryRun: req.DryRun}

	logger.Info("run started",
		logging.String("source", req.Source),
		logging.String(logging.FieldDevice, req.Device),
		logging.Bool("dry_run", req.DryRun),
	)

	if err := p.checkTrees(req.Source); err != nil {
		return nil, Fatal(err)
	}

	files, stats, err := scanner.New(p.fs, base).Scan(ctx, req.Source)
	if err != nil {
		return nil, Fatal(fmt.Errorf("scan %s: %w", req.Source, err))
	}
	out.Scan = stats
	if p.observer.Scanned != nil {
		p.observer.Scanned(len(files))
	}
	if len(files) == 0 {
		logger.Info("no media files found", logging.String("source", req.Source))
		out.End = p.now()
		return out, nil
	}

	backend, err := p.open(ctx, p.cfg, base)
	if err != nil {
		return nil, Fatal(fmt.Errorf("start detector: %w", err))
	}
	engine := detection.NewEngine(backend, p.frames, detection.Options{
		ConfidenceThreshold: p.cfg.Detection.ConfidenceThreshold,
		ClassesOfInterest:   p.cfg.Detection.ClassesOfInterest,
		FrameInterval:       p.cfg.Video.FrameSampleInterval,
	}, p.fs, base)
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Debug("detector close failed", logging.Error(err))
		}
	}()

	placer, err := sorter.New(p.fs, p.cfg.Paths.Destination, sorter.Options{DryRun: req.DryRun}, base)
	if err != nil {
		return nil, Fatal(err)
	}

	total := len(files)
	out.Results = make([]sorter.Result, 0, total)
	var interrupted error
	for i, file := range files {
		if err := ctx.Err(); err != nil {
			interrupted = err
			logging.WarnWithContext(logger, "run interrupted", "run_interrupted",
				logging.Int("processed", i),
				logging.Int("remaining", total-i),
				logging.String(logging.FieldErrorHint, "run again to process the remaining files"),
				logging.String(logging.FieldImpact, "unprocessed files stay on the card"),
			)
			break
		}
		if p.observer.Started != nil {
			p.observer.Started(i+1, total, file)
		}
		det := engine.Process(ctx, file)
		res := placer.Sort(ctx, file, det)
		out.Results = append(out.Results, res)
		if p.observer.Completed != nil {
			p.observer.Completed(i+1, total, res)
		}
	}

	out.End = p.now()
	out.Summary = report.Summarize(out.Results)
	out.Status = StatusOK
	if out.Summary.Errors() > 0 {
		out.Status = StatusPartial
	}

	writer := report.NewWriter(p.fs, p.cfg.ReportsDir(), p.cfg.Report.KeepReports, base)
	if p.reports != nil {
		p.reports(writer)
	}
	path, err := writer.Write(out.Results, report.Run{
		Device: req.Device,
		Start:  out.Start,
		End:    out.End,
		DryRun: req.DryRun,
	})
	if err != nil {
		logging.ErrorWithContext(logger, "report write failed", "report_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space under the destination"),
			logging.String(logging.FieldImpact, "files were sorted but no report was saved"),
		)
		out.Status = StatusPartial
	}
	out.ReportPath = path

	logger.Info("run complete",
		logging.Int("total", out.Summary.Total),
		logging.Int("moved", out.Summary.Counts[sorter.Moved]),
		logging.Int("duplicates", out.Summary.Counts[sorter.SkipDuplicate]),
		logging.Int("errors", out.Summary.Errors()),
		logging.Int("detections", out.Summary.WithDetections),
		logging.String("report", out.ReportPath),
	)

	if interrupted != nil {
		return out, Fatal(fmt.Errorf("interrupted after %d of %d files: %w", len(out.Results), total, interrupted))
	}
	return out, nil
}

// checkTrees rejects a scan root inside the destination, or the reverse.
// Files already sorted would otherwise be offered to the sorter as sources.
func (p *Pipeline) checkTrees(source string) error {
	src, err := fileutil.Resolve(p.fs, source)
	if err != nil {
		return fmt.Errorf("resolve source %s: %w", source, err)
	}
	dest, err := fileutil.Resolve(p.fs, p.cfg.Paths.Destination)
	if err != nil {
		return fmt.Errorf("resolve destination %s: %w", p.cfg.Paths.Destination, err)
	}
	if fileutil.Within(dest, src) || fileutil.Within(src, dest) {
		return fmt.Errorf("%w: source %s, destination %s", ErrOverlappingTrees, src, dest)
	}
	return nil
}
