// Package services composes the record, media and analysis layers into the
// user-facing flows that span more than one of them.
package services

import (
	"context"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/analysis"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/logging"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/media"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/models"
)

// ImageBatchUploader uploads several images, skipping the ones that fail.
type ImageBatchUploader interface {
	UploadMany(ctx context.Context, bucket, ownerID string, sources [][]byte) []media.UploadResult
}

// RowInserter inserts one row and decodes the stored row into out.
type RowInserter interface {
	Insert(ctx context.Context, table string, row, out interface{}) error
}

// CheckupSubmission is the outcome of SubmitCheckup.
type CheckupSubmission struct {
	Record models.HealthRecord `json:"record"`
	// AnalysisRequested is false when the record was stored but the
	// analysis request failed; the record can be resubmitted later.
	AnalysisRequested bool `json:"analysis_requested"`
	Skipped           int  `json:"skipped"` // images that failed to upload
}

// CheckupService uploads health checkup sheets and hands them to the
// backend for analysis.
type CheckupService struct {
	images  ImageBatchUploader
	rows    RowInserter
	invoker analysis.Invoker
}

// NewCheckupService creates a CheckupService.
func NewCheckupService(images ImageBatchUploader, rows RowInserter, invoker analysis.Invoker) *CheckupService {
	return &CheckupService{images: images, rows: rows, invoker: invoker}
}

// SubmitCheckup uploads the sheet images to the health-checkups bucket,
// creates the health record and requests server-side analysis. A sheet the
// backend does not recognize as a checkup is returned as
// ErrAINotHealthCheckup together with the stored record.
func (s *CheckupService) SubmitCheckup(ctx context.Context, ownerID string, images [][]byte) (CheckupSubmission, error) {
	var sub CheckupSubmission
	if ownerID == "" {
		return sub, errors.New(errors.ErrInvalid, "owner id is required")
	}
	if len(images) == 0 {
		return sub, errors.New(errors.ErrImageEmpty, "no checkup images")
	}

	uploaded := s.images.UploadMany(ctx, media.BucketHealthCheckups, ownerID, images)
	if len(uploaded) == 0 {
		return sub, errors.Newf(errors.ErrUploadFailed, "none of %d checkup images uploaded", len(images))
	}
	sub.Skipped = len(images) - len(uploaded)

	paths := make([]string, len(uploaded))
	for i, u := range uploaded {
		paths[i] = u.OriginalPath
	}

	row := models.HealthRecord{
		UserID:       ownerID,
		RawImageURLs: paths,
		Status:       models.HealthRecordUploading,
	}
	if err := s.rows.Insert(ctx, models.TableHealthRecords, row, &sub.Record); err != nil {
		return sub, err
	}

	_, err := analysis.RequestCheckupAnalysis(ctx, s.invoker, analysis.CheckupRequest{
		RecordID:  sub.Record.ID,
		ImageURLs: paths,
	})
	switch {
	case err == nil:
		sub.AnalysisRequested = true
	case errors.Is(err, errors.ErrAINotHealthCheckup):
		return sub, err
	default:
		logging.Warn("Checkup analysis request failed", map[string]interface{}{
			"record_id": sub.Record.ID,
			"error":     err.Error(),
		})
	}

	logging.Info("Health checkup submitted", map[string]interface{}{
		"record_id": sub.Record.ID,
		"images":    len(paths),
		"skipped":   sub.Skipped,
		"requested": sub.AnalysisRequested,
	})
	return sub, nil
}
