package device

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mesler1/dadcam/internal/logging"
)

// Mount mounts dev with udisksctl and returns the mount path.
func (t *Tools) Mount(ctx context.Context, dev string) (string, error) {
	out, err := t.run(ctx, t.cfg.Udisksctl, "mount", "-b", dev, "--no-user-interaction")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMountFailed, err)
	}
	path, ok := ParseMountPath(string(out), dev)
	if !ok {
		return "", fmt.Errorf("%w: unrecognised udisksctl output %q", ErrMountFailed, strings.TrimSpace(string(out)))
	}
	return path, nil
}

// Unmount unmounts dev with udisksctl.
func (t *Tools) Unmount(ctx context.Context, dev string) error {
	if _, err := t.run(ctx, t.cfg.Udisksctl, "unmount", "-b", dev, "--no-user-interaction"); err != nil {
		return fmt.Errorf("unmount %s: %w", dev, err)
	}
	return nil
}

// ParseMountPath extracts the mount point from udisksctl output such as
// "Mounted /dev/sda1 at /run/media/deck/CARD.".
func ParseMountPath(out, dev string) (string, bool) {
	dev = strings.TrimSuffix(dev, ".")
	for _, field := range strings.Fields(out) {
		if !strings.HasPrefix(field, "/") {
			continue
		}
		field = strings.TrimSuffix(field, ".")
		if field == dev {
			continue
		}
		return field, true
	}
	return "", false
}

// Allow decides whether a probed device may be ingested.
type Allow func(Info) (bool, error)

// WithMounted probes dev, checks it with allow, mounts it, and runs fn with
// the mount path. The device is unmounted afterwards even when fn fails or
// ctx is cancelled.
func (t *Tools) WithMounted(ctx context.Context, dev string, allow Allow, logger *slog.Logger, fn func(ctx context.Context, info Info, mountPath string) error) error {
	logger = logging.NewComponentLogger(logger, "device").With(logging.String(logging.FieldDevice, dev))

	info, err := t.Probe(ctx, dev)
	if err != nil {
		return err
	}
	logger.Info("device probed",
		logging.String("uuid", info.UUID),
		logging.String("serial", info.Serial),
	)

	if allow != nil {
		ok, err := allow(info)
		if err != nil {
			return fmt.Errorf("check whitelist: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: uuid=%q serial=%q", ErrNotWhitelisted, info.UUID, info.Serial)
		}
	}

	mountPath, err := t.Mount(ctx, dev)
	if err != nil {
		return err
	}
	logger.Info("device mounted", logging.String("mount_path", mountPath))

	defer func() {
		if err := t.Unmount(context.WithoutCancel(ctx), dev); err != nil {
			logging.WarnWithContext(logger, "unmount failed", "unmount_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "unmount the card manually before removing it"),
				logging.String(logging.FieldImpact, "card is still mounted"),
			)
			return
		}
		logger.Info("device unmounted")
	}()

	return fn(ctx, info, mountPath)
}
