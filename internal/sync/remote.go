package sync

import (
	"context"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/media"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/models"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/supabase"
)

// ConflictKey is the unique key every synced row is upserted on.
const ConflictKey = "user_id,client_id"

// Remote is the table API the engine writes to. Upserts must be keyed on
// ConflictKey so that replaying a row is a no-op.
type Remote interface {
	UpsertMealRecords(ctx context.Context, rows []models.MealRecordRow) error
	UpsertGymRecords(ctx context.Context, rows []models.GymRecordRow) error
}

// ImageUploader stores an inline meal image under a caller-chosen name.
type ImageUploader interface {
	UploadNamed(ctx context.Context, bucket, ownerID, name string, src []byte) (media.UploadResult, error)
}

// SupabaseRemote implements Remote over PostgREST.
type SupabaseRemote struct {
	client *supabase.Client
}

// NewSupabaseRemote wraps client.
func NewSupabaseRemote(client *supabase.Client) *SupabaseRemote {
	return &SupabaseRemote{client: client}
}

func (r *SupabaseRemote) UpsertMealRecords(ctx context.Context, rows []models.MealRecordRow) error {
	if len(rows) == 0 {
		return nil
	}
	return r.client.Upsert(ctx, models.TableMealRecords, rows, supabase.UpsertOptions{OnConflict: ConflictKey})
}

func (r *SupabaseRemote) UpsertGymRecords(ctx context.Context, rows []models.GymRecordRow) error {
	if len(rows) == 0 {
		return nil
	}
	return r.client.Upsert(ctx, models.TableGymRecords, rows, supabase.UpsertOptions{OnConflict: ConflictKey})
}
