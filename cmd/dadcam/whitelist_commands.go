package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesler1/dadcam/internal/device"
	"github.com/mesler1/dadcam/internal/pipeline"
	"github.com/mesler1/dadcam/internal/whitelist"
)

func newWhitelistCommand(ctx *commandContext) *cobra.Command {
	whitelistCmd := &cobra.Command{
		Use:   "whitelist",
		Short: "Manage the devices dadcam will ingest from",
	}

	whitelistCmd.AddCommand(newWhitelistListCommand(ctx))
	whitelistCmd.AddCommand(newWhitelistAddCommand(ctx))
	whitelistCmd.AddCommand(newWhitelistRemoveCommand(ctx))
	whitelistCmd.AddCommand(newWhitelistLearnCommand(ctx))

	return whitelistCmd
}

func newWhitelistListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show whitelisted devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.whitelist()
			if err != nil {
				return err
			}
			entries, err := store.Entries()
			if err != nil {
				return pipeline.Fatal(err)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintf(out, "Whitelist %s is empty\n", store.Path())
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{string(entry.Kind), entry.Value})
			}
			fmt.Fprintln(out, renderTable([]string{"Kind", "Value"}, rows))
			return nil
		},
	}
}

func newWhitelistAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <uuid|serial> <value>",
		Short: "Whitelist a device by filesystem UUID or serial",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, kind, err := whitelistArgs(ctx, args[0])
			if err != nil {
				return err
			}
			added, err := store.Add(kind, args[1])
			if err != nil {
				return pipeline.Fatal(err)
			}
			entry := whitelist.Entry{Kind: kind, Value: args[1]}
			if !added {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is already whitelisted\n", entry)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s to %s\n", entry, store.Path())
			return nil
		},
	}
}

func newWhitelistRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <uuid|serial> <value>",
		Short: "Remove a device from the whitelist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, kind, err := whitelistArgs(ctx, args[0])
			if err != nil {
				return err
			}
			removed, err := store.Remove(kind, args[1])
			if err != nil {
				return pipeline.Fatal(err)
			}
			entry := whitelist.Entry{Kind: kind, Value: args[1]}
			if !removed {
				return pipeline.Fatal(fmt.Errorf("%s is not whitelisted", entry))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", entry)
			return nil
		},
	}
}

func newWhitelistLearnCommand(ctx *commandContext) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "learn",
		Short: "Whitelist the next card that is inserted",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.loggerFor(cmd)
			if err != nil {
				return err
			}
			store, err := ctx.whitelist()
			if err != nil {
				return err
			}
			tools, err := ctx.deviceTools()
			if err != nil {
				return err
			}

			waitCtx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Insert the camera card now...")
			dev, err := device.WaitForInsertion(waitCtx, logger)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					return pipeline.Fatal(fmt.Errorf("no card inserted within %s", timeout))
				}
				return pipeline.Fatal(err)
			}
			info, err := tools.Probe(cmd.Context(), dev)
			if err != nil {
				return pipeline.Fatal(err)
			}
			entry, err := learnEntry(info)
			if err != nil {
				return pipeline.Fatal(err)
			}
			added, err := store.Add(entry.Kind, entry.Value)
			if err != nil {
				return pipeline.Fatal(err)
			}
			if !added {
				fmt.Fprintf(out, "%s (%s) is already whitelisted\n", entry, dev)
				return nil
			}
			fmt.Fprintf(out, "Added %s (%s) to %s\n", entry, dev, store.Path())
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "How long to wait for a card")
	return cmd
}

// learnEntry prefers the filesystem UUID and falls back to the serial.
func learnEntry(info device.Info) (whitelist.Entry, error) {
	switch {
	case info.UUID != "":
		return whitelist.Entry{Kind: whitelist.UUID, Value: info.UUID}, nil
	case info.Serial != "":
		return whitelist.Entry{Kind: whitelist.Serial, Value: info.Serial}, nil
	}
	return whitelist.Entry{}, fmt.Errorf("%s reports neither a UUID nor a serial", info.Device)
}

func whitelistArgs(ctx *commandContext, kindArg string) (*whitelist.Store, whitelist.Kind, error) {
	kind, err := whitelist.ParseKind(kindArg)
	if err != nil {
		return nil, "", pipeline.Fatal(err)
	}
	store, err := ctx.whitelist()
	if err != nil {
		return nil, "", err
	}
	return store, kind, nil
}
