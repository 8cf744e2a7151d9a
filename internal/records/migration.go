package records

import (
	"context"
	"encoding/json"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/logging"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/models"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/store"
)

// MigratedPrefix prefixes the client id of rows uploaded from legacy
// local records, so re-running the upload is a no-op.
const MigratedPrefix = "migrated_"

const serverMigrationFlags = "server_migration"

// MigrationReport summarizes one MigrateUser call.
type MigrationReport struct {
	AlreadyDone   bool `json:"already_done"`
	MealsUploaded int  `json:"meals_uploaded"`
	GymsUploaded  int  `json:"gyms_uploaded"`
	MealsSkipped  bool `json:"meals_skipped"` // server already had meal rows
	GymsSkipped   bool `json:"gyms_skipped"`  // server already had gym rows
}

// Migrator uploads legacy local records for a user at most once.
type Migrator struct {
	meta    store.KV
	backend Backend
	gyms    *GymCache
}

// NewMigrator creates a Migrator. gyms may be nil.
func NewMigrator(meta store.KV, backend Backend, gyms *GymCache) *Migrator {
	return &Migrator{meta: meta, backend: backend, gyms: gyms}
}

// Migrated reports whether ownerID has already been migrated.
func (m *Migrator) Migrated(ctx context.Context, ownerID string) (bool, error) {
	flags, err := m.flags(ctx)
	if err != nil {
		return false, err
	}
	return flags[ownerID], nil
}

func (m *Migrator) flags(ctx context.Context) (map[string]bool, error) {
	flags := map[string]bool{}
	if _, err := store.GetJSON(ctx, m.meta, serverMigrationFlags, &flags); err != nil {
		return nil, err
	}
	if flags == nil {
		flags = map[string]bool{}
	}
	return flags, nil
}

// MigrateUser uploads the staged legacy meal and gym records for ownerID.
// Each table is uploaded only when the server has no rows for the user;
// otherwise the server wins and, for gym records, the local cache is
// rebuilt from the server. Rows use client id "migrated_<legacy id>" with
// ignore-duplicates, so an interrupted run can simply be repeated. The
// staged records are removed and the user is flagged only after every
// step succeeded.
func (m *Migrator) MigrateUser(ctx context.Context, ownerID string) (MigrationReport, error) {
	var report MigrationReport

	done, err := m.Migrated(ctx, ownerID)
	if err != nil {
		return report, err
	}
	if done {
		report.AlreadyDone = true
		// Leftover legacy blobs are only dead weight now.
		m.dropStaged(ctx)
		return report, nil
	}

	var meals []models.MealRecord
	if err := m.loadStaged(ctx, store.LegacyMealRecordsKey, &meals); err != nil {
		return report, err
	}
	var gyms []models.GymRecordFull
	if err := m.loadStaged(ctx, store.LegacyGymRecordsKey, &gyms); err != nil {
		return report, err
	}

	serverHasMeals, err := m.backend.HasRows(ctx, models.TableMealRecords, ownerID)
	if err != nil {
		return report, err
	}
	serverHasGyms, err := m.backend.HasRows(ctx, models.TableGymRecords, ownerID)
	if err != nil {
		return report, err
	}

	switch {
	case serverHasMeals:
		report.MealsSkipped = true
	case len(meals) > 0:
		rows := make([]models.MealRecordRow, 0, len(meals))
		for _, meal := range meals {
			rows = append(rows, legacyMealRow(ownerID, meal))
		}
		if err := m.backend.InsertMissing(ctx, models.TableMealRecords, rows); err != nil {
			return report, err
		}
		report.MealsUploaded = len(rows)
	}

	switch {
	case serverHasGyms:
		report.GymsSkipped = true
		if m.gyms != nil {
			recs, err := m.backend.GymRecords(ctx, ownerID)
			if err != nil {
				return report, err
			}
			if err := m.gyms.Refresh(ctx, recs); err != nil {
				return report, err
			}
		}
	case len(gyms) > 0:
		rows := make([]models.GymRecordRow, 0, len(gyms))
		for _, g := range gyms {
			rows = append(rows, models.GymRecordRow{
				UserID:    ownerID,
				ClientID:  MigratedPrefix + g.ID,
				Date:      g.Date,
				Exercises: g.Exercises,
			})
		}
		if err := m.backend.InsertMissing(ctx, models.TableGymRecords, rows); err != nil {
			return report, err
		}
		report.GymsUploaded = len(rows)
	}

	m.dropStaged(ctx)

	flags, err := m.flags(ctx)
	if err != nil {
		return report, err
	}
	flags[ownerID] = true
	if err := store.SetJSON(ctx, m.meta, serverMigrationFlags, flags); err != nil {
		return report, err
	}

	logging.Info("Legacy records migrated to server", map[string]interface{}{
		"owner_id":       ownerID,
		"meals_uploaded": report.MealsUploaded,
		"gyms_uploaded":  report.GymsUploaded,
		"meals_skipped":  report.MealsSkipped,
		"gyms_skipped":   report.GymsSkipped,
	})
	return report, nil
}

func legacyMealRow(ownerID string, meal models.MealRecord) models.MealRecordRow {
	var image *string
	if meal.ImageURL != nil && *meal.ImageURL != "" {
		image = meal.ImageURL
	}
	return models.MealRecordRow{
		UserID:        ownerID,
		ClientID:      MigratedPrefix + meal.ID,
		Date:          meal.Date,
		MealType:      meal.MealType,
		ImageURL:      image,
		Foods:         meal.Foods,
		TotalCalories: meal.TotalCalories,
	}
}

// loadStaged decodes a staged legacy blob. A corrupt blob is logged and
// treated as empty.
func (m *Migrator) loadStaged(ctx context.Context, key string, dst interface{}) error {
	raw, ok, err := m.meta.Get(ctx, store.LegacyStagePrefix+key)
	if err != nil || !ok {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		logging.Warn("Staged legacy records are corrupt, ignoring", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
	return nil
}

func (m *Migrator) dropStaged(ctx context.Context) {
	for _, key := range []string{store.LegacyMealRecordsKey, store.LegacyGymRecordsKey} {
		if err := m.meta.Delete(ctx, store.LegacyStagePrefix+key); err != nil {
			logging.Warn("Failed to drop staged legacy records", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}
}
