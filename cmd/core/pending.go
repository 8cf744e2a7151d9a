package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/app"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/models"
)

func newPendingCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pending",
		GroupID: "queue",
		Short:   "Inspect and edit the pending write queue",
	}
	cmd.AddCommand(
		newPendingAddCmd(opts),
		newPendingListCmd(opts),
		newPendingStatsCmd(opts),
		newPendingRemoveCmd(opts),
		newPendingDeadCmd(opts),
		newPendingRetryCmd(opts),
	)
	return cmd
}

func newPendingAddCmd(opts *rootOptions) *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "add <json>",
		Short: "Queue a meal_record or gym_record write",
		Long: `Queue a write for the next drain. The payload is the row as JSON;
user_id defaults to the configured user.

  yanggaeng pending add --type gym_record '{"date":"2024-01-15","exercises":[]}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data map[string]interface{}
			if err := json.Unmarshal([]byte(args[0]), &data); err != nil {
				return errors.Wrap(errors.ErrInvalid, "payload is not a JSON object", err)
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if _, ok := data[models.FieldUserID]; !ok {
					owner, err := a.RequireOwner()
					if err != nil {
						return err
					}
					data[models.FieldUserID] = owner
				}
				localID, err := a.Queue.Enqueue(ctx, models.PendingType(typ), data)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), map[string]string{"localId": localID})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s %s\n", typ, localID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", string(models.PendingMealRecord), "item type: meal_record or gym_record")
	return cmd
}

func newPendingListCmd(opts *rootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued writes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				var (
					items []models.PendingItem
					err   error
				)
				if all {
					items, err = a.Queue.List(ctx)
				} else {
					owner, ownerErr := a.RequireOwner()
					if ownerErr != nil {
						return ownerErr
					}
					items, err = a.Queue.ListOwner(ctx, owner)
				}
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No pending writes")
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "LOCAL ID\tTYPE\tUSER\tQUEUED\tRETRIES")
				for _, item := range items {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
						item.LocalID, item.Type, item.OwnerID(), humanize.Time(item.CreatedAt), item.RetryCount)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include every user's writes")
	return cmd
}

func newPendingStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue counts by type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				stats, err := a.Queue.GetStats(ctx)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), stats)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Total:        %s\n", humanize.Comma(int64(stats.Total)))
				for typ, n := range stats.ByType {
					fmt.Fprintf(out, "  %-12s %s\n", typ, humanize.Comma(int64(n)))
				}
				fmt.Fprintf(out, "Retrying:     %d\n", stats.Retrying)
				fmt.Fprintf(out, "Dead letters: %d\n", stats.DeadLetters)
				return nil
			})
		},
	}
}

func newPendingRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <localId>",
		Short: "Drop a queued write without syncing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Queue.Dequeue(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			})
		},
	}
}

func newPendingDeadCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dead",
		Short: "List writes dropped after exhausting their retries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				dead, err := a.Queue.DeadLetters(ctx)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), dead)
				}
				if len(dead) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No dead letters")
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "LOCAL ID\tTYPE\tDROPPED\tLAST ERROR")
				for _, d := range dead {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
						d.Item.LocalID, d.Item.Type, humanize.Time(d.DroppedAt), d.LastError)
				}
				return tw.Flush()
			})
		},
	}
}

func newPendingRetryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Move the user's dead letters back into the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				owner, err := a.RequireOwner()
				if err != nil {
					return err
				}
				n, err := a.Queue.RetryDeadLetters(ctx, owner)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d %s\n", n, pluralize(n, "write", "writes"))
				return nil
			})
		},
	}
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
