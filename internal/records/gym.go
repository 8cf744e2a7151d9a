// Package records holds the local-first record layer: the gym record
// cache, saving and deleting records through the pending queue, the
// one-time legacy upload and cache invalidation from the change feed.
package records

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/logging"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/models"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/store"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/supabase"
)

const (
	headersPrefix = "headers:"
	recordPrefix  = "record:"
)

func headersKey(month string) string { return headersPrefix + month }
func recordKey(date string) string { return recordPrefix + date }

// GymCache stores full gym records per date and a derived list of
// headers per month. Headers are rewritten whenever a record changes.
type GymCache struct {
	kv store.KV
	mu sync.Mutex
}

// NewGymCache creates a cache over the gym-records namespace.
func NewGymCache(kv store.KV) *GymCache {
	return &GymCache{kv: kv}
}

// MonthHeaders returns the headers of month (YYYY-MM) ordered by date.
func (c *GymCache) MonthHeaders(ctx context.Context, month string) ([]models.GymRecordHeader, error) {
	var headers []models.GymRecordHeader
	if _, err := store.GetJSON(ctx, c.kv, headersKey(month), &headers); err != nil {
		return nil, err
	}
	if headers == nil {
		headers = []models.GymRecordHeader{}
	}
	return headers, nil
}

// Record returns the full record of date (YYYY-MM-DD).
func (c *GymCache) Record(ctx context.Context, date string) (models.GymRecordFull, bool, error) {
	var rec models.GymRecordFull
	ok, err := store.GetJSON(ctx, c.kv, recordKey(date), &rec)
	return rec, ok, err
}

// Put stores rec and regenerates its header.
func (c *GymCache) Put(ctx context.Context, rec models.GymRecordFull) error {
	month := rec.Month()
	if month == "" {
		return errors.Newf(errors.ErrValidation, "gym record date %q is not YYYY-MM-DD", rec.Date)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := store.SetJSON(ctx, c.kv, recordKey(rec.Date), rec); err != nil {
		return err
	}
	return c.updateHeaders(ctx, month, func(headers []models.GymRecordHeader) []models.GymRecordHeader {
		out := removeDate(headers, rec.Date)
		return append(out, rec.Header())
	})
}

// Remove drops the record of date and its header.
func (c *GymCache) Remove(ctx context.Context, date string) error {
	if len(date) < 7 {
		return errors.Newf(errors.ErrValidation, "gym record date %q is not YYYY-MM-DD", date)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.kv.Delete(ctx, recordKey(date)); err != nil {
		return err
	}
	return c.updateHeaders(ctx, date[:7], func(headers []models.GymRecordHeader) []models.GymRecordHeader {
		return removeDate(headers, date)
	})
}

// DateOf finds the cached date of the record with id, scanning headers.
func (c *GymCache) DateOf(ctx context.Context, id string) (string, bool, error) {
	keys, err := c.kv.Keys(ctx, headersPrefix)
	if err != nil {
		return "", false, err
	}
	for _, k := range keys {
		var headers []models.GymRecordHeader
		if _, err := store.GetJSON(ctx, c.kv, k, &headers); err != nil {
			return "", false, err
		}
		for _, h := range headers {
			if h.ID == id {
				return h.Date, true, nil
			}
		}
	}
	return "", false, nil
}

// updateHeaders rewrites one month's header list. Caller holds c.mu.
func (c *GymCache) updateHeaders(ctx context.Context, month string, fn func([]models.GymRecordHeader) []models.GymRecordHeader) error {
	var headers []models.GymRecordHeader
	if _, err := store.GetJSON(ctx, c.kv, headersKey(month), &headers); err != nil {
		return err
	}
	headers = fn(headers)
	if len(headers) == 0 {
		return c.kv.Delete(ctx, headersKey(month))
	}
	sort.Slice(headers, func(i, j int) bool { return headers[i].Date < headers[j].Date })
	return store.SetJSON(ctx, c.kv, headersKey(month), headers)
}

func removeDate(headers []models.GymRecordHeader, date string) []models.GymRecordHeader {
	out := make([]models.GymRecordHeader, 0, len(headers))
	for _, h := range headers {
		if h.Date != date {
			out = append(out, h)
		}
	}
	return out
}

// ApplyChange folds a gym_records change from the feed into the cache.
// Inserts and updates overwrite the cached record; deletes drop it.
func (c *GymCache) ApplyChange(ctx context.Context, change supabase.Change) error {
	if change.Table != models.TableGymRecords {
		return nil
	}
	switch change.Type {
	case supabase.ChangeInsert, supabase.ChangeUpdate:
		rec, err := gymRecordFromRow(change.Record)
		if err != nil {
			return err
		}
		return c.Put(ctx, rec)
	case supabase.ChangeDelete:
		date, _ := change.OldRecord["date"].(string)
		if date == "" {
			id, _ := change.OldRecord["id"].(string)
			var ok bool
			var err error
			if date, ok, err = c.DateOf(ctx, id); err != nil || !ok {
				return err
			}
		}
		return c.Remove(ctx, date)
	}
	return nil
}

// gymRow is a gym_records row as returned by the backend.
type gymRow struct {
	ID        string            `json:"id"`
	ClientID  string            `json:"client_id"`
	Date      string            `json:"date"`
	Exercises []models.Exercise `json:"exercises"`
	CreatedAt time.Time         `json:"created_at"`
}

func (r gymRow) full() models.GymRecordFull {
	exercises := r.Exercises
	if exercises == nil {
		exercises = []models.Exercise{}
	}
	return models.GymRecordFull{
		ID:        r.ID,
		LocalID:   r.ClientID,
		Date:      r.Date,
		Exercises: exercises,
		CreatedAt: r.CreatedAt,
	}
}

func gymRecordFromRow(row map[string]interface{}) (models.GymRecordFull, error) {
	raw, err := json.Marshal(row)
	if err != nil {
		return models.GymRecordFull{}, errors.Wrap(errors.ErrInvalid, "encode gym row", err)
	}
	var r gymRow
	if err := json.Unmarshal(raw, &r); err != nil {
		return models.GymRecordFull{}, errors.Wrap(errors.ErrInvalid, "decode gym row", err)
	}
	if r.Date == "" {
		return models.GymRecordFull{}, errors.New(errors.ErrInvalid, "gym row without date")
	}
	return r.full(), nil
}

// months returns the distinct months of recs, for logging.
func months(recs []models.GymRecordFull) string {
	seen := map[string]bool{}
	var out []string
	for _, r := range recs {
		if m := r.Month(); m != "" && !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

// Refresh replaces cached records with server rows. Used after the
// server-wins branch of the legacy migration.
func (c *GymCache) Refresh(ctx context.Context, recs []models.GymRecordFull) error {
	for _, r := range recs {
		if err := c.Put(ctx, r); err != nil {
			return err
		}
	}
	if len(recs) > 0 {
		logging.Debug("Gym cache refreshed from server", map[string]interface{}{
			"records": len(recs),
			"months":  months(recs),
		})
	}
	return nil
}
