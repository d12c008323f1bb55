package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesler1/dadcam/internal/device"
	"github.com/mesler1/dadcam/internal/logging"
	"github.com/mesler1/dadcam/internal/pipeline"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Process whitelisted cards as they are inserted",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.loggerFor(cmd)
			if err != nil {
				return err
			}
			logger = logging.NewComponentLogger(logger, "watch")

			pending := make(chan string, 8)
			monitor := device.NewMonitor(logger, func(_ context.Context, dev string) {
				select {
				case pending <- dev:
				default:
					logging.WarnWithContext(logger, "insertion queue full; event dropped", "insertion_dropped",
						logging.String(logging.FieldDevice, dev),
						logging.String(logging.FieldErrorHint, "re-insert the card or run dadcam process --device"),
						logging.String(logging.FieldImpact, "card is not processed"),
					)
				}
			})
			if err := monitor.Start(cmd.Context()); err != nil {
				return pipeline.Fatal(fmt.Errorf("start udev monitor: %w", err))
			}
			defer monitor.Stop()

			fmt.Fprintln(cmd.OutOrStdout(), "Watching for camera cards; press Ctrl+C to stop.")
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case dev := <-pending:
					err := runProcess(cmd, ctx, processOptions{device: dev, dryRun: dryRun})
					switch {
					case err == nil:
					case errors.Is(err, device.ErrNotWhitelisted):
						logger.Info("ignoring device not on whitelist",
							logging.String(logging.FieldDevice, dev),
							logging.String(logging.FieldEventType, "device_ignored"),
						)
					case errors.Is(err, context.Canceled):
						return nil
					default:
						logging.WarnWithContext(logger, "card run failed", "card_run_failed",
							logging.String(logging.FieldDevice, dev),
							logging.Error(err),
							logging.String(logging.FieldErrorHint, "check the run report and log file"),
							logging.String(logging.FieldImpact, "files that failed stay on the card"),
						)
					}
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Detect and plan moves without copying or removing anything")
	return cmd
}
