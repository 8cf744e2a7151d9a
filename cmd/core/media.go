package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/app"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/media"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/models"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "migrate",
		GroupID: "sync",
		Short:   "Upload legacy on-device records for the user once",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if a.Migrator == nil {
					return errors.New(errors.ErrSyncNotConfigured, "supabase is not configured")
				}
				owner, err := a.RequireOwner()
				if err != nil {
					return err
				}
				report, err := a.Migrator.MigrateUser(ctx, owner)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), report)
				}
				out := cmd.OutOrStdout()
				if report.AlreadyDone {
					fmt.Fprintln(out, "Legacy records were already migrated")
					return nil
				}
				fmt.Fprintf(out, "Uploaded %d meal and %d gym records\n", report.MealsUploaded, report.GymsUploaded)
				if report.MealsSkipped || report.GymsSkipped {
					fmt.Fprintln(out, "Skipped tables the server already had rows for")
				}
				return nil
			})
		},
	}
}

func newUploadCmd(opts *rootOptions) *cobra.Command {
	var bucket string
	cmd := &cobra.Command{
		Use:     "upload <file>...",
		GroupID: "media",
		Short:   "Upload images with thumbnails to a storage bucket",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := media.LookupBucket(bucket); err != nil {
				return err
			}
			sources, err := readFiles(args)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if a.Uploader == nil {
					return errors.New(errors.ErrSyncNotConfigured, "supabase is not configured")
				}
				owner, err := a.RequireOwner()
				if err != nil {
					return err
				}
				results := make([]media.UploadResult, 0, len(sources))
				for i, src := range sources {
					res, err := a.Uploader.UploadWithDerivative(ctx, bucket, owner, src)
					if err != nil {
						return errors.Wrap(errors.CodeOf(err), "upload "+args[i], err)
					}
					results = append(results, res)
					if !opts.jsonOut {
						fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) -> %s\n",
							args[i], humanize.Bytes(uint64(len(src))), res.OriginalPath)
					}
				}
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), results)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", media.BucketFoodLogs, "target bucket")
	return cmd
}

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "analyze",
		GroupID: "media",
		Short:   "Run AI analysis on sheets and diet data",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "inbody <image>",
			Short: "Extract body composition from an InBody sheet",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.analyze(cmd, args, func(ctx context.Context, an analyzer, images []string) (models.AnalysisResult, error) {
					return an.InBody(ctx, images[0])
				})
			},
		},
		&cobra.Command{
			Use:   "checkup <image>...",
			Short: "Read a health checkup report",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.analyze(cmd, args, func(ctx context.Context, an analyzer, images []string) (models.AnalysisResult, error) {
					return an.Checkup(ctx, images)
				})
			},
		},
		&cobra.Command{
			Use:   "diet <json-file>",
			Short: "Get feedback on a day's nutrition",
			Long: `Get feedback on a day's nutrition. The file holds
{"nutritionData": {...}, "userProfile": {...}}; userProfile is optional.`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				raw, err := os.ReadFile(args[0])
				if err != nil {
					return errors.Wrap(errors.ErrInvalid, "read diet input", err)
				}
				var req struct {
					NutritionData models.NutritionData `json:"nutritionData"`
					UserProfile   *models.UserProfile  `json:"userProfile"`
				}
				if err := json.Unmarshal(raw, &req); err != nil {
					return errors.Wrap(errors.ErrInvalid, "decode diet input", err)
				}
				return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
					if a.Analyzer == nil {
						return errors.New(errors.ErrAINotConfigured, "ai.endpoint and ai.api_key are required")
					}
					result, err := a.Analyzer.DietFeedback(ctx, req.NutritionData, req.UserProfile)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), result)
				})
			},
		},
	)
	return cmd
}

type analyzer interface {
	InBody(ctx context.Context, image string) (models.AnalysisResult, error)
	Checkup(ctx context.Context, images []string) (models.AnalysisResult, error)
}

// analyze inlines the image files as data URIs and prints the result.
func (o *rootOptions) analyze(cmd *cobra.Command, files []string, run func(context.Context, analyzer, []string) (models.AnalysisResult, error)) error {
	sources, err := readFiles(files)
	if err != nil {
		return err
	}
	images := make([]string, len(sources))
	for i, src := range sources {
		images[i] = media.EncodeDataURI(src)
	}
	return o.withApp(cmd, func(ctx context.Context, a *app.App) error {
		if a.Analyzer == nil {
			return errors.New(errors.ErrAINotConfigured, "ai.endpoint and ai.api_key are required")
		}
		result, err := run(ctx, a.Analyzer, images)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	})
}

func readFiles(paths []string) ([][]byte, error) {
	out := make([][]byte, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, errors.Wrap(errors.ErrInvalid, "read "+p, err)
		}
		if len(data) == 0 {
			return nil, errors.Newf(errors.ErrImageEmpty, "%s is empty", p)
		}
		out = append(out, data)
	}
	return out, nil
}
