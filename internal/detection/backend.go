package detection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mesler1/dadcam/internal/config"
	"github.com/mesler1/dadcam/internal/logging"
)

// NoneBackend reports no hits for every input.
type NoneBackend struct{}

func (NoneBackend) Name() string { return config.BackendNone }

func (NoneBackend) Detect(context.Context, Input) ([]Hit, error) { return nil, nil }

func (NoneBackend) Close() error { return nil }

// Open selects and starts the configured backend. For the command backend the
// primary model is tried first and the fallback model second; ErrNoBackend is
// returned when neither starts.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrNoBackend)
	}
	logger = logging.NewComponentLogger(logger, "detector")

	switch cfg.Detection.Backend {
	case config.BackendNone:
		logger.Info("detection disabled; every file sorts as no detection",
			logging.String(logging.FieldEventType, "detector_none"))
		return NoneBackend{}, nil
	case config.BackendCommand:
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrNoBackend, cfg.Detection.Backend)
	}

	models := []string{cfg.Detection.Model}
	if cfg.Detection.FallbackModel != "" {
		models = append(models, cfg.Detection.FallbackModel)
	}

	var errs []error
	for i, model := range models {
		backend := NewCommandBackend(CommandOptions{
			Command:        cfg.Detection.Command,
			Model:          model,
			ModelDir:       cfg.Detection.ModelDir,
			StartupTimeout: time.Duration(cfg.Detection.StartupTimeout) * time.Second,
		}, logger)
		if err := backend.Start(ctx); err != nil {
			errs = append(errs, err)
			_ = backend.Close()
			if i < len(models)-1 {
				logging.WarnWithContext(logger, "detector model unavailable; trying fallback", "detector_fallback",
					logging.String("model", model),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check detection.model and detection.model_dir"),
					logging.String(logging.FieldImpact, "detection runs with the fallback model"),
				)
			}
			continue
		}
		return backend, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrNoBackend, errors.Join(errs...))
}
