package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func (a *app) snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage the backup repository and index snapshots",
	}
	cmd.AddCommand(
		a.snapshotRegisterCmd(),
		a.snapshotCreateCmd(),
		a.snapshotListCmd(),
		a.snapshotStatusCmd(),
		a.snapshotDeleteCmd(),
		a.snapshotRestoreCmd(),
	)
	return cmd
}

func (a *app) snapshotRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Register the filesystem snapshot repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			if err := p.Snapshots().RegisterRepository(cmd.Context()); err != nil {
				return classify(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "repository %s registered at %s\n",
				p.Config().Snapshot.RepoName, p.Config().Snapshot.RepoPath)
			return nil
		},
	}
}

func (a *app) snapshotCreateCmd() *cobra.Command {
	var (
		name    string
		indices []string
		noWait  bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Take a snapshot of the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			snap, err := p.Snapshots().Create(cmd.Context(), name, indices, !noWait)
			if err != nil {
				return classify(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s: %s\n", snap.Name, snap.State)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "snapshot name (default: timestamped)")
	cmd.Flags().StringSliceVar(&indices, "indices", nil, "indices to snapshot (default: all)")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "return as soon as the snapshot is accepted")
	return cmd
}

func (a *app) snapshotListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snapshots in the repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			snaps, err := p.Snapshots().List(cmd.Context())
			if err != nil {
				return classify(err)
			}
			if len(snaps) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no snapshots")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSTATE\tINDICES\tSTARTED")
			for _, s := range snaps {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					s.Name, s.State, strings.Join(s.Indices, ","), formatTime(s.StartTime))
			}
			return tw.Flush()
		},
	}
}

func (a *app) snapshotStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <name>",
		Short: "Show the state of one snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			snap, err := p.Snapshots().Status(cmd.Context(), args[0])
			if err != nil {
				return classify(err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "snapshot: %s\nstate:    %s\nindices:  %s\n",
				snap.Name, snap.State, strings.Join(snap.Indices, ","))
			fmt.Fprintf(out, "started:  %s\n", formatTime(snap.StartTime))
			if snap.State.Terminal() {
				fmt.Fprintf(out, "ended:    %s\n", formatTime(snap.EndTime))
			}
			return nil
		},
	}
}

func (a *app) snapshotDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			if err := p.Snapshots().Delete(cmd.Context(), args[0]); err != nil {
				return classify(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s deleted\n", args[0])
			return nil
		},
	}
}

func (a *app) snapshotRestoreCmd() *cobra.Command {
	var (
		indices     []string
		pattern     string
		replacement string
		noWait      bool
	)
	cmd := &cobra.Command{
		Use:   "restore <name>",
		Short: "Restore an index from a snapshot under a renamed alias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			opts := p.Snapshots().DefaultRestoreOptions(!noWait)
			if len(indices) > 0 {
				opts.Indices = indices
			}
			if pattern != "" {
				opts.RenamePattern = pattern
			}
			if replacement != "" {
				opts.RenameReplacement = replacement
			}

			if err := p.Snapshots().Restore(cmd.Context(), args[0], opts); err != nil {
				return classify(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s as %s\n",
				strings.Join(opts.Indices, ","), opts.RenameReplacement)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&indices, "indices", nil, "indices to restore (default: the configured index)")
	cmd.Flags().StringVar(&pattern, "rename-pattern", "", "regex matched against restored index names")
	cmd.Flags().StringVar(&replacement, "rename-replacement", "", "replacement for renamed indices")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "return without waiting for the restore to finish")
	return cmd
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}
