package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateVideo(); err != nil {
		return err
	}
	if c.Report.KeepReports < 0 {
		return errors.New("report.keep_reports must be zero (keep all) or positive")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.Destination == "" {
		return errors.New("paths.destination must be set")
	}
	return nil
}

func (c *Config) validateDetection() error {
	switch c.Detection.Backend {
	case BackendCommand, BackendNone:
	default:
		return fmt.Errorf("detection.backend: unsupported value %q (want %q or %q)", c.Detection.Backend, BackendCommand, BackendNone)
	}
	if c.Detection.ConfidenceThreshold < 0 || c.Detection.ConfidenceThreshold > 1 {
		return errors.New("detection.confidence_threshold must be between 0 and 1")
	}
	if len(c.Detection.ClassesOfInterest) == 0 {
		return errors.New("detection.classes_of_interest must list at least one label")
	}
	return nil
}

func (c *Config) validateVideo() error {
	if c.Video.FrameSampleInterval <= 0 {
		return errors.New("video.frame_sample_interval must be positive")
	}
	return nil
}
