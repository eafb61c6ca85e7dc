package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckpointCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect and remove run checkpoints",
		Long: `Inspect and remove run checkpoints.

A checkpoint is written for every feature run and updated after every item.
Checkpoints of interrupted, blocked or failed runs can be resumed by the agent
that owns them.

Examples:
  orchestra checkpoint list
  orchestra checkpoint show checkout-flow
  orchestra checkpoint delete checkout-flow`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newCheckpointListCommand(), newCheckpointShowCommand(), newCheckpointDeleteCommand())
	return cmd
}

func newCheckpointListCommand() *cobra.Command {
	var active, asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all checkpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			list := a.store.List
			if active {
				list = a.store.ListActive
			}
			cps, err := list(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list checkpoints: %w", err)
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), cps)
			}
			return writeCheckpointList(cmd.OutOrStdout(), cps, a.styles)
		},
	}
	cmd.Flags().BoolVar(&active, "active", false, "only list resumable checkpoints")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output checkpoints as JSON")
	return cmd
}

func newCheckpointShowCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <feature-id>",
		Short: "Show one checkpoint with item and gate state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cp, err := a.store.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to load checkpoint: %w", err)
			}
			if cp == nil {
				return checkpointNotFound(args[0])
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), cp)
			}
			return writeCheckpoint(cmd.OutOrStdout(), cp, a.styles)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output checkpoint as JSON")
	return cmd
}

func newCheckpointDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <feature-id>",
		Short: "Delete a checkpoint and its gate decisions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cp, err := a.store.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to load checkpoint: %w", err)
			}
			if cp == nil {
				return checkpointNotFound(args[0])
			}
			if err := a.store.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete checkpoint: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted checkpoint %s\n", args[0])
			return nil
		},
	}
}
