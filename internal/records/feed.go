package records

import (
	"context"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/logging"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/models"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/supabase"
)

// ChangeFeed delivers row changes until ctx is cancelled.
type ChangeFeed interface {
	Watch(ctx context.Context, channel string, subs []supabase.PostgresChanges, handler func(supabase.Change))
}

// WatchGymRecords keeps the gym cache in step with ownerID's gym rows,
// including writes made from other devices. It blocks until ctx is done.
func WatchGymRecords(ctx context.Context, feed ChangeFeed, ownerID string, cache *GymCache) {
	subs := []supabase.PostgresChanges{{
		Event:  "*",
		Schema: "public",
		Table:  models.TableGymRecords,
		Filter: supabase.OwnerFilter(ownerID),
	}}
	feed.Watch(ctx, "gym-records-"+ownerID, subs, func(change supabase.Change) {
		if err := cache.ApplyChange(ctx, change); err != nil {
			logging.Warn("Failed to apply gym record change", map[string]interface{}{
				"type":  change.Type,
				"error": err.Error(),
			})
		}
	})
}
