package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mesler1/dadcam/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Detection is disabled unless an option enables it.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.Destination = filepath.Join(base, "dest")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "state", "logs")
	cfgVal.Paths.Whitelist = filepath.Join(base, "config", "whitelist.conf")
	cfgVal.Detection.Backend = config.BackendNone
	cfgVal.Detection.ModelDir = filepath.Join(base, "models")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithDetector installs a shell-script detector worker with the given body
// and selects the command backend.
func WithDetector(body string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Detection.Backend = config.BackendCommand
		b.cfg.Detection.Command = WriteExecutable(b.t, filepath.Join(b.baseDir, "bin"), "dadcam-detect", body)
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the external tools dadcam calls
// are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe", "udisksctl", "blkid", "udevadm"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteExecutable(b.t, binDir, name, "exit 0\n")
		}
		oldPath := os.Getenv("PATH")
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath)
	}
}
