package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/models"
)

func writeLegacy(t *testing.T, data map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "localstorage.json")
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

// TestMigrateLegacy verifies the one-time import and cleanup.
func TestMigrateLegacy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	existing := []models.PendingItem{{LocalID: "1_a", Type: models.PendingGymRecord}}
	require.NoError(t, SetJSON(ctx, s.Pending, PendingQueueKey, existing))

	legacyQueue, _ := json.Marshal([]models.PendingItem{
		{LocalID: "1_a", Type: models.PendingGymRecord},
		{LocalID: "2_b", Type: models.PendingMealRecord, Data: map[string]interface{}{"user_id": "u1"}},
	})
	path := writeLegacy(t, map[string]string{
		LegacyPendingKey:              string(legacyQueue),
		LegacyMealRecordsKey:          `[{"id":"m1","date":"2024-01-01"}]`,
		LegacyGymRecordsKey:           `[{"id":"g1","date":"2024-01-02"}]`,
		LegacyGymRecordsKey + "_2024": `[]`,
		"unrelated":                   "keep",
	})
	src, err := OpenLegacyFile(path)
	require.NoError(t, err)

	report, err := MigrateLegacy(ctx, s, src)
	require.NoError(t, err)
	assert.False(t, report.AlreadyDone)
	assert.Equal(t, 1, report.PendingImported)
	assert.ElementsMatch(t, []string{LegacyMealRecordsKey, LegacyGymRecordsKey}, report.RecordsStaged)

	var queue []models.PendingItem
	_, err = GetJSON(ctx, s.Pending, PendingQueueKey, &queue)
	require.NoError(t, err)
	assert.Len(t, queue, 2)

	staged, ok, err := s.Meta.Get(ctx, LegacyStagePrefix+LegacyMealRecordsKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, string(staged), "m1")

	reopened, err := OpenLegacyFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"unrelated"}, reopened.Keys())

	again, err := MigrateLegacy(ctx, s, reopened)
	require.NoError(t, err)
	assert.True(t, again.AlreadyDone)
}

// TestMigrateLegacy_corruptQueue verifies a corrupt legacy queue is dropped
// without failing the migration.
func TestMigrateLegacy_corruptQueue(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	src, err := OpenLegacyFile(writeLegacy(t, map[string]string{LegacyPendingKey: "[{oops"}))
	require.NoError(t, err)

	report, err := MigrateLegacy(ctx, s, src)
	require.NoError(t, err)
	assert.Zero(t, report.PendingImported)
	assert.Equal(t, 1, report.KeysRemoved)
	assert.Empty(t, src.Keys())
}

// TestOpenLegacyFile_missing verifies a missing file is an empty source.
func TestOpenLegacyFile_missing(t *testing.T) {
	src, err := OpenLegacyFile(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, src.Keys())
	_, ok := src.Get("x")
	assert.False(t, ok)
}
