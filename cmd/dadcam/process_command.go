package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/mesler1/dadcam/internal/config"
	"github.com/mesler1/dadcam/internal/device"
	"github.com/mesler1/dadcam/internal/logging"
	"github.com/mesler1/dadcam/internal/pipeline"
)

type processOptions struct {
	source string
	device string
	dryRun bool
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var opts processOptions

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Scan, detect, and sort one card or directory",
		Long: "Process every photo and video under --source, or mount a whitelisted\n" +
			"--device, process it, and unmount it again.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.source = strings.TrimSpace(opts.source)
			opts.device = strings.TrimSpace(opts.device)
			switch {
			case opts.source == "" && opts.device == "":
				return pipeline.Fatal(errors.New("one of --source or --device is required"))
			case opts.source != "" && opts.device != "":
				return pipeline.Fatal(errors.New("--source and --device are mutually exclusive"))
			}
			return runProcess(cmd, ctx, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.source, "source", "s", "", "Directory to ingest")
	cmd.Flags().StringVarP(&opts.device, "device", "d", "", "Block device to probe, mount, and ingest (e.g. /dev/sdb1)")
	cmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "Detect and plan moves without copying or removing anything")
	return cmd
}

// runProcess performs one run under the run lock and prints its summary.
func runProcess(cmd *cobra.Command, cmdCtx *commandContext, opts processOptions) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := cmdCtx.loggerFor(cmd)
	if err != nil {
		return err
	}

	lock := flock.New(cfg.RunLockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return pipeline.Fatal(fmt.Errorf("acquire run lock: %w", err))
	}
	if !ok {
		return pipeline.Fatal(fmt.Errorf("another dadcam run holds %s", cfg.RunLockPath()))
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release run lock", logging.Error(err))
		}
	}()

	runID := logging.NewRunID()
	ctx := logging.ContextWithRunID(cmd.Context(), runID)
	logger = logging.WithRun(logger, runID)

	progress := newProgress(cmd.ErrOrStderr())
	pipe := pipeline.New(cfg, logger, pipeline.WithObserver(progress.observer()))

	if opts.source != "" {
		source, err := config.ExpandPath(opts.source)
		if err != nil {
			return pipeline.Fatal(err)
		}
		outcome, err := pipe.Run(ctx, pipeline.Request{Source: source, DryRun: opts.dryRun})
		progress.finish()
		return finishRun(cmd.OutOrStdout(), outcome, err)
	}

	tools, err := cmdCtx.deviceTools()
	if err != nil {
		return err
	}
	store, err := cmdCtx.whitelist()
	if err != nil {
		return err
	}
	allow := func(info device.Info) (bool, error) {
		return store.Allowed(info.UUID, info.Serial)
	}

	var runErr error
	err = tools.WithMounted(ctx, opts.device, allow, logger, func(ctx context.Context, _ device.Info, mountPath string) error {
		outcome, err := pipe.Run(ctx, pipeline.Request{Source: mountPath, Device: opts.device, DryRun: opts.dryRun})
		progress.finish()
		runErr = finishRun(cmd.OutOrStdout(), outcome, err)
		return runErr
	})
	if err != nil && runErr == nil {
		return pipeline.Fatal(err)
	}
	return err
}

// finishRun prints the outcome and folds the run error and per-file status
// into the command's error.
func finishRun(out io.Writer, outcome *pipeline.Outcome, err error) error {
	printSummary(out, outcome)
	if err != nil {
		return err
	}
	return outcome.Err()
}
