package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/app"
)

func newSyncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "sync",
		GroupID: "sync",
		Short:   "Drain the pending queue to Supabase now",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				owner, err := a.RequireOwner()
				if err != nil {
					return err
				}
				result := a.Engine.Drain(ctx, owner)
				if opts.jsonOut {
					if err := printJSON(cmd.OutOrStdout(), result); err != nil {
						return err
					}
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Synced %d, failed %d, dropped %d in %s\n",
						result.Success, result.Failed, result.Dropped, result.Duration.Round(time.Millisecond))
				}
				return a.Engine.LastError()
			})
		},
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		GroupID: "sync",
		Short:   "Show queue and sync status",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				status := a.Scheduler.GetStatus(ctx)
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), status)
				}
				out := cmd.OutOrStdout()
				owner := status.OwnerID
				if owner == "" {
					owner = "(none)"
				}
				fmt.Fprintf(out, "User:          %s\n", owner)
				fmt.Fprintf(out, "Backend:       %s\n", backendLabel(a))
				fmt.Fprintf(out, "Pending items: %s\n", humanize.Comma(int64(status.PendingItems)))
				if status.LastDrainTime != nil {
					fmt.Fprintf(out, "Last drain:    %s\n", humanize.Time(*status.LastDrainTime))
				}
				return nil
			})
		},
	}
}

func backendLabel(a *app.App) string {
	if a.Supabase == nil {
		return "offline (supabase not configured)"
	}
	return a.Config.Supabase.URL
}
