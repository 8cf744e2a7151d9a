package records

import (
	"context"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/models"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/supabase"
	syncpkg "github.com/youngukshin9402-code/cloud-sync-manager/internal/sync"
)

// Backend is the table API the record layer needs beyond the sync engine's
// upserts.
type Backend interface {
	// HasRows reports whether ownerID has any row in table.
	HasRows(ctx context.Context, table, ownerID string) (bool, error)
	// InsertMissing upserts rows keyed on (user_id, client_id), keeping rows
	// that already exist.
	InsertMissing(ctx context.Context, table string, rows interface{}) error
	// DeleteRow deletes the row (ownerID, clientID) from table.
	DeleteRow(ctx context.Context, table, ownerID, clientID string) error
	// GymRecords returns ownerID's gym rows.
	GymRecords(ctx context.Context, ownerID string) ([]models.GymRecordFull, error)
}

// SupabaseBackend implements Backend over PostgREST.
type SupabaseBackend struct {
	client *supabase.Client
}

// NewSupabaseBackend wraps client.
func NewSupabaseBackend(client *supabase.Client) *SupabaseBackend {
	return &SupabaseBackend{client: client}
}

func (b *SupabaseBackend) HasRows(ctx context.Context, table, ownerID string) (bool, error) {
	return b.client.From(table).Eq("user_id", ownerID).Exists(ctx)
}

func (b *SupabaseBackend) InsertMissing(ctx context.Context, table string, rows interface{}) error {
	return b.client.Upsert(ctx, table, rows, supabase.UpsertOptions{
		OnConflict:       syncpkg.ConflictKey,
		IgnoreDuplicates: true,
	})
}

func (b *SupabaseBackend) DeleteRow(ctx context.Context, table, ownerID, clientID string) error {
	return b.client.From(table).Eq("user_id", ownerID).Eq("client_id", clientID).Delete(ctx)
}

func (b *SupabaseBackend) GymRecords(ctx context.Context, ownerID string) ([]models.GymRecordFull, error) {
	var rows []gymRow
	err := b.client.From(models.TableGymRecords).
		Select("id,client_id,date,exercises,created_at").
		Eq("user_id", ownerID).
		Order("date", true).
		Execute(ctx, &rows)
	if err != nil {
		return nil, err
	}
	out := make([]models.GymRecordFull, len(rows))
	for i, r := range rows {
		out[i] = r.full()
	}
	return out, nil
}
