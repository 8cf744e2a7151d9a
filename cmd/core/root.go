package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/app"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/config"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/logging"
)

type rootOptions struct {
	configFile string
	userID     string
	verbose    bool
	jsonOut    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "yanggaeng",
		Short:        "Offline sync client for 건강양갱 records",
		Version:      Version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "path to config file")
	root.PersistentFlags().StringVar(&opts.userID, "user", "", "user id, overrides user_id from config")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print results as JSON")

	root.AddGroup(
		&cobra.Group{ID: "queue", Title: "Pending queue:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "media", Title: "Images and analysis:"},
	)
	root.AddCommand(
		newPendingCmd(opts),
		newSyncCmd(opts),
		newStatusCmd(opts),
		newMigrateCmd(opts),
		newUploadCmd(opts),
		newAnalyzeCmd(opts),
	)
	return root
}

// withApp loads configuration, opens the app for the duration of fn and
// closes it afterwards.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return err
	}
	if o.userID != "" {
		cfg.UserID = o.userID
	}

	level := logging.ParseLevel(cfg.Log.Level)
	if o.verbose {
		level = logging.LevelDebug
	}
	logging.Init(cmd.ErrOrStderr(), level)

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// printJSON writes v indented. Used when --json is set and for results
// with no tabular form.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
