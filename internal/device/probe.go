package device

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mesler1/dadcam/internal/config"
)

var (
	// ErrNotWhitelisted is returned when neither identifier is allowed.
	ErrNotWhitelisted = errors.New("device not whitelisted")
	// ErrMountFailed is returned when udisks could not mount the device.
	ErrMountFailed = errors.New("device mount failed")
)

// serialProperties are consulted in order for a hardware identifier.
var serialProperties = []string{"ID_SERIAL", "ID_SERIAL_SHORT", "ID_MODEL_ID"}

// Info identifies a partition.
type Info struct {
	Device string
	UUID   string
	Serial string
}

// Runner executes an external command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec; stderr is folded into the error.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Tools wraps blkid, udevadm, and udisksctl.
type Tools struct {
	cfg config.Device
	run Runner
}

// NewTools returns tools using the configured binaries. A nil run uses
// ExecRunner.
func NewTools(cfg config.Device, run Runner) *Tools {
	if run == nil {
		run = ExecRunner
	}
	return &Tools{cfg: cfg, run: run}
}

// Probe reads the filesystem UUID and hardware serial of dev. Missing values
// are left empty; Probe only fails when neither could be read.
func (t *Tools) Probe(ctx context.Context, dev string) (Info, error) {
	info := Info{Device: dev}
	var errs []error

	out, err := t.run(ctx, t.cfg.Blkid, "-s", "UUID", "-o", "value", dev)
	if err != nil {
		errs = append(errs, err)
	} else {
		info.UUID = strings.TrimSpace(string(out))
	}

	out, err = t.run(ctx, t.cfg.Udevadm, "info", "--query=property", "--name="+dev)
	if err != nil {
		errs = append(errs, err)
	} else {
		info.Serial = SerialFromProperties(ParseProperties(out))
	}

	if info.UUID == "" && info.Serial == "" && len(errs) > 0 {
		return info, fmt.Errorf("probe %s: %w", dev, errors.Join(errs...))
	}
	return info, nil
}

// ParseProperties parses KEY=value lines as printed by udevadm.
func ParseProperties(out []byte) map[string]string {
	props := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok || key == "" {
			continue
		}
		props[key] = value
	}
	return props
}

// SerialFromProperties picks the first non-empty serial-like property.
func SerialFromProperties(props map[string]string) string {
	for _, key := range serialProperties {
		if v := strings.TrimSpace(props[key]); v != "" {
			return v
		}
	}
	return ""
}
