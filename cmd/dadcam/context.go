package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/mesler1/dadcam/internal/config"
	"github.com/mesler1/dadcam/internal/device"
	"github.com/mesler1/dadcam/internal/logging"
	"github.com/mesler1/dadcam/internal/pipeline"
	"github.com/mesler1/dadcam/internal/whitelist"
)

type commandContext struct {
	configFlag   string
	logLevelFlag string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error

	// runner executes external device tools; tests replace it.
	runner device.Runner
}

func newCommandContext() *commandContext {
	return &commandContext{runner: device.ExecRunner}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := strings.TrimSpace(c.configFlag)
		if path == "" {
			if _, _, err := config.EnsureUserConfig(); err != nil {
				c.configErr = pipeline.Fatal(fmt.Errorf("bootstrap user config: %w", err))
				return
			}
		}
		cfg, _, err := config.Load(path)
		if err != nil {
			c.configErr = pipeline.Fatal(fmt.Errorf("load config: %w", err))
			return
		}
		if level := strings.TrimSpace(c.logLevelFlag); level != "" {
			cfg.Logging.Level = strings.ToLower(level)
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = pipeline.Fatal(err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// loggerFor builds the process logger once. Console output goes to the
// command's stderr; every record is also appended to today's JSON log file.
func (c *commandContext) loggerFor(cmd *cobra.Command) (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		now := time.Now()
		logger, err := logging.New(logging.Options{
			Level:    cfg.Logging.Level,
			Format:   cfg.Logging.Format,
			Console:  cmd.ErrOrStderr(),
			FilePath: cfg.LogFilePath(now),
		})
		if err != nil {
			c.loggerErr = pipeline.Fatal(err)
			return
		}
		logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
			Dir:     cfg.Paths.LogDir,
			Pattern: "dadcam-*.log",
			Exclude: []string{cfg.LogFilePath(now)},
		})
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) whitelist() (*whitelist.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return whitelist.New(afero.NewOsFs(), cfg.Paths.Whitelist), nil
}

func (c *commandContext) deviceTools() (*device.Tools, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return device.NewTools(cfg.Device, c.runner), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
