package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesler1/dadcam/internal/config"
	"github.com/mesler1/dadcam/internal/pipeline"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return pipeline.Fatal(fmt.Errorf("determine default config path: %w", err))
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return pipeline.Fatal(fmt.Errorf("resolve config path: %w", err))
				}
				target = expanded
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return pipeline.Fatal(fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target))
				} else if !errors.Is(err, fs.ErrNotExist) {
					return pipeline.Fatal(fmt.Errorf("check config path: %w", err))
				}
			}

			if err := config.CreateSample(target); err != nil {
				return pipeline.Fatal(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit paths.destination and [detection] before the first run, then whitelist your card with `dadcam whitelist learn`.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration files",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, applied, err := config.Load(strings.TrimSpace(ctx.configFlag))
			if err != nil {
				return pipeline.Fatal(fmt.Errorf("load config: %w", err))
			}
			out := cmd.OutOrStdout()
			if len(applied) == 0 {
				fmt.Fprintln(out, "No config files found; defaults were used")
			}
			for _, path := range applied {
				fmt.Fprintf(out, "Config path: %s\n", path)
			}
			fmt.Fprintf(out, "Destination: %s\n", cfg.Paths.Destination)
			fmt.Fprintf(out, "Detection: %s\n", detectionLabel(cfg))
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func detectionLabel(cfg *config.Config) string {
	if cfg.Detection.Backend == config.BackendNone {
		return "disabled"
	}
	return fmt.Sprintf("%s (model %s, fallback %s, threshold %.2f)",
		cfg.Detection.Command, cfg.Detection.Model, cfg.Detection.FallbackModel, cfg.Detection.ConfidenceThreshold)
}
