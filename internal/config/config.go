package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// SystemConfigPath is the machine-wide configuration file read before the user file.
const SystemConfigPath = "/etc/dadcam/dadcam.conf"

// Paths contains directory configuration.
type Paths struct {
	Destination string `toml:"destination"`
	StateDir    string `toml:"state_dir"`
	LogDir      string `toml:"log_dir"`
	Whitelist   string `toml:"whitelist"`
}

// Detection contains configuration for the detection backend.
type Detection struct {
	// Backend selects the detector variant: "command" or "none".
	Backend string `toml:"backend"`
	// Command is the detector worker executable started with --serve.
	Command       string `toml:"command"`
	Model         string `toml:"model"`
	FallbackModel string `toml:"fallback_model"`
	ModelDir      string `toml:"model_dir"`
	// ConfidenceThreshold drops hits scoring below it. Range 0..1.
	ConfidenceThreshold float64  `toml:"confidence_threshold"`
	ClassesOfInterest   []string `toml:"classes_of_interest"`
	// StartupTimeout bounds the worker handshake, in seconds.
	StartupTimeout int `toml:"startup_timeout"`
}

// Video contains configuration for frame sampling.
type Video struct {
	FrameSampleInterval int    `toml:"frame_sample_interval"`
	FFmpeg              string `toml:"ffmpeg"`
	FFprobe             string `toml:"ffprobe"`
}

// Report contains configuration for run reports.
type Report struct {
	// KeepReports is the number of reports retained; 0 disables pruning.
	KeepReports int `toml:"keep_reports"`
}

// Device contains the external tools used to probe and mount removable media.
type Device struct {
	Udisksctl string `toml:"udisksctl"`
	Blkid     string `toml:"blkid"`
	Udevadm   string `toml:"udevadm"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for dadcam.
//
// Configuration sections by subsystem:
//   - Paths: destination tree, state, logs, and the device whitelist
//   - Detection: detector worker, models, threshold, and classes of interest
//   - Video: frame sampling interval and ffmpeg binaries
//   - Report: report retention
//   - Device: block device helpers (udisksctl, blkid, udevadm)
//   - Logging: log format, level, and retention
type Config struct {
	Paths     Paths     `toml:"paths"`
	Detection Detection `toml:"detection"`
	Video     Video     `toml:"video"`
	Report    Report    `toml:"report"`
	Device    Device    `toml:"device"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the per-user configuration file.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/dadcam/dadcam.conf")
}

// Load layers the system file, the user file, and the optional explicit path
// over the defaults, then normalizes and validates the result. It returns the
// files that were applied, in order. An explicit path that does not exist is
// an error; missing system or user files are skipped.
func Load(path string) (*Config, []string, error) {
	cfg := Default()

	candidates, err := searchPaths()
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(path) != "" {
		explicit, err := expandPath(path)
		if err != nil {
			return nil, nil, err
		}
		if _, err := os.Stat(explicit); err != nil {
			return nil, nil, fmt.Errorf("stat config: %w", err)
		}
		candidates = append(candidates, explicit)
	}

	var applied []string
	for _, candidate := range candidates {
		ok, err := decodeFile(candidate, &cfg)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			applied = append(applied, candidate)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return &cfg, applied, nil
}

func searchPaths() ([]string, error) {
	userPath, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return []string{SystemConfigPath, userPath}, nil
}

func decodeFile(path string, cfg *Config) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("open config %s: %w", path, err)
	}
	defer file.Close()

	if info, err := file.Stat(); err == nil && info.IsDir() {
		return false, nil
	}
	decoder := toml.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		return false, fmt.Errorf("parse config %s: %w", path, err)
	}
	return true, nil
}

// EnsureDirectories creates the destination, state, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.Destination, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ReportsDir returns the directory run reports are written to.
func (c *Config) ReportsDir() string {
	return filepath.Join(c.Paths.Destination, "reports")
}

// RunLockPath returns the lock file guarding against concurrent runs.
func (c *Config) RunLockPath() string {
	return filepath.Join(c.Paths.StateDir, "dadcam.lock")
}

// LogFilePath returns the daily log file for the given day.
func (c *Config) LogFilePath(day time.Time) string {
	return filepath.Join(c.Paths.LogDir, "dadcam-"+day.Format("2006-01-02")+".log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// EnsureUserConfig writes the sample configuration to the per-user location
// when no file exists there yet. It reports whether a file was created.
func EnsureUserConfig() (string, bool, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", false, fmt.Errorf("stat user config: %w", err)
	}
	if err := CreateSample(path); err != nil {
		return "", false, err
	}
	return path, true, nil
}
