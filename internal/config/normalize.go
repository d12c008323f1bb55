package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.applyEnvOverrides()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDetection(); err != nil {
		return err
	}
	c.normalizeVideo()
	c.normalizeDevice()
	c.normalizeLogging()
	return nil
}

func (c *Config) applyEnvOverrides() {
	if value, ok := os.LookupEnv("DADCAM_DESTINATION"); ok && strings.TrimSpace(value) != "" {
		c.Paths.Destination = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("DADCAM_DETECTOR"); ok && strings.TrimSpace(value) != "" {
		c.Detection.Command = strings.TrimSpace(value)
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.Destination, err = expandPath(strings.TrimSpace(c.Paths.Destination)); err != nil {
		return fmt.Errorf("paths.destination: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.Whitelist) == "" {
		c.Paths.Whitelist = defaultWhitelistPath
	}
	if c.Paths.Whitelist, err = expandPath(c.Paths.Whitelist); err != nil {
		return fmt.Errorf("paths.whitelist: %w", err)
	}
	return nil
}

func (c *Config) normalizeDetection() error {
	c.Detection.Backend = strings.ToLower(strings.TrimSpace(c.Detection.Backend))
	if c.Detection.Backend == "" {
		c.Detection.Backend = defaultDetectionBackend
	}
	c.Detection.Command = strings.TrimSpace(c.Detection.Command)
	if c.Detection.Command == "" {
		c.Detection.Command = defaultDetectorCommand
	}
	c.Detection.Model = strings.TrimSpace(c.Detection.Model)
	if c.Detection.Model == "" {
		c.Detection.Model = defaultModel
	}
	c.Detection.FallbackModel = strings.TrimSpace(c.Detection.FallbackModel)
	if c.Detection.FallbackModel == c.Detection.Model {
		c.Detection.FallbackModel = ""
	}
	if strings.TrimSpace(c.Detection.ModelDir) == "" {
		c.Detection.ModelDir = defaultModelDir
	}
	var err error
	if c.Detection.ModelDir, err = expandPath(c.Detection.ModelDir); err != nil {
		return fmt.Errorf("detection.model_dir: %w", err)
	}
	if c.Detection.StartupTimeout <= 0 {
		c.Detection.StartupTimeout = defaultDetectorStartSeconds
	}

	seen := make(map[string]struct{}, len(c.Detection.ClassesOfInterest))
	classes := make([]string, 0, len(c.Detection.ClassesOfInterest))
	for _, class := range c.Detection.ClassesOfInterest {
		class = strings.ToLower(strings.TrimSpace(class))
		if class == "" {
			continue
		}
		if _, dup := seen[class]; dup {
			continue
		}
		seen[class] = struct{}{}
		classes = append(classes, class)
	}
	c.Detection.ClassesOfInterest = classes
	return nil
}

func (c *Config) normalizeVideo() {
	c.Video.FFmpeg = strings.TrimSpace(c.Video.FFmpeg)
	if c.Video.FFmpeg == "" {
		c.Video.FFmpeg = defaultFFmpegBinary
	}
	c.Video.FFprobe = strings.TrimSpace(c.Video.FFprobe)
	if c.Video.FFprobe == "" {
		c.Video.FFprobe = defaultFFprobeBinary
	}
}

func (c *Config) normalizeDevice() {
	c.Device.Udisksctl = strings.TrimSpace(c.Device.Udisksctl)
	if c.Device.Udisksctl == "" {
		c.Device.Udisksctl = defaultUdisksctlBinary
	}
	c.Device.Blkid = strings.TrimSpace(c.Device.Blkid)
	if c.Device.Blkid == "" {
		c.Device.Blkid = defaultBlkidBinary
	}
	c.Device.Udevadm = strings.TrimSpace(c.Device.Udevadm)
	if c.Device.Udevadm == "" {
		c.Device.Udevadm = defaultUdevadmBinary
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
