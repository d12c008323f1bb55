package logging

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type runIDKey struct{}

// NewRunID returns a fresh identifier for one ingestion run.
func NewRunID() string {
	return uuid.NewString()
}

// ContextWithRunID stores the run identifier on ctx.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run identifier stored on ctx, if any.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok && id != ""
}

// WithRun returns a logger whose records all carry run_id.
func WithRun(logger *slog.Logger, runID string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if runID == "" {
		return logger
	}
	if h, ok := logger.Handler().(*runIDHandler); ok && h.runID == runID {
		return logger
	}
	return slog.New(&runIDHandler{base: logger.Handler(), runID: runID})
}

// WithContext returns a logger tagged with the run identifier carried by ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if id, ok := RunIDFromContext(ctx); ok {
		return WithRun(logger, id)
	}
	if logger == nil {
		return NewNop()
	}
	return logger
}

// runIDHandler injects run_id into every record it forwards.
type runIDHandler struct {
	base  slog.Handler
	runID string
}

func (h *runIDHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *runIDHandler) Handle(ctx context.Context, record slog.Record) error {
	record.AddAttrs(slog.String(FieldRunID, h.runID))
	return h.base.Handle(ctx, record)
}

func (h *runIDHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &runIDHandler{base: h.base.WithAttrs(attrs), runID: h.runID}
}

func (h *runIDHandler) WithGroup(name string) slog.Handler {
	return &runIDHandler{base: h.base.WithGroup(name), runID: h.runID}
}
