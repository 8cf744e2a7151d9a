package store

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/logging"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/models"
)

// Keys inside the pending namespace.
const (
	PendingQueueKey = "pending_queue"
	DeadLetterKey   = "dead_letters"
)

// Keys written by the previous storage generation.
const (
	LegacyPendingKey     = "yanggaeng_pending_queue"
	LegacyMealRecordsKey = "yanggaeng_meal_records"
	LegacyGymRecordsKey  = "yanggaeng_gym_records"

	// LegacyStagePrefix marks legacy record blobs kept in the meta namespace
	// until the per-user server migration consumes them.
	LegacyStagePrefix = "legacy:"

	legacyMigratedFlag = "legacy_store_migrated"
)

// LegacySource is a flat string key-value store from the previous
// storage generation.
type LegacySource interface {
	Get(key string) (string, bool)
	Keys() []string
	Remove(keys ...string) error
}

// LegacyFile is a LegacySource persisted as a single JSON object.
type LegacyFile struct {
	mu   sync.Mutex
	path string
	data map[string]string
}

// OpenLegacyFile loads path. A missing file is an empty source; an
// unreadable one is logged and treated as empty.
func OpenLegacyFile(path string) (*LegacyFile, error) {
	f := &LegacyFile{path: path, data: map[string]string{}}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "read legacy store", err)
	}
	if err := json.Unmarshal(raw, &f.data); err != nil {
		logging.Warn("Legacy store is corrupt, ignoring", map[string]interface{}{"path": path, "error": err.Error()})
		f.data = map[string]string{}
	}
	return f, nil
}

func (f *LegacyFile) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok
}

func (f *LegacyFile) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Remove deletes keys and rewrites the file.
func (f *LegacyFile) Remove(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	if len(f.data) == 0 {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(errors.ErrDatabase, "remove legacy store", err)
		}
		return nil
	}
	raw, err := json.Marshal(f.data)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "encode legacy store", err)
	}
	if err := os.WriteFile(f.path, raw, 0o600); err != nil {
		return errors.Wrap(errors.ErrDatabase, "write legacy store", err)
	}
	return nil
}

// LegacyReport summarizes one MigrateLegacy call.
type LegacyReport struct {
	AlreadyDone     bool
	PendingImported int
	RecordsStaged   []string
	KeysRemoved     int
}

// MigrateLegacy imports data from the previous storage generation at most
// once per installation. The legacy pending queue is merged into the
// pending namespace (deduplicated by local id); legacy meal and gym record
// lists are staged in the meta namespace for the per-user server migration;
// all consumed legacy keys are then removed. It must run before the
// pending queue is in use.
func MigrateLegacy(ctx context.Context, s *Store, src LegacySource) (LegacyReport, error) {
	var report LegacyReport

	var done bool
	if _, err := GetJSON(ctx, s.Meta, legacyMigratedFlag, &done); err != nil {
		return report, err
	}
	if done {
		report.AlreadyDone = true
		return report, nil
	}

	var remove []string

	if raw, ok := src.Get(LegacyPendingKey); ok {
		var legacy []models.PendingItem
		if err := json.Unmarshal([]byte(raw), &legacy); err != nil {
			logging.Warn("Legacy pending queue is corrupt, dropping", map[string]interface{}{"error": err.Error()})
		} else if len(legacy) > 0 {
			n, err := mergePending(ctx, s.Pending, legacy)
			if err != nil {
				return report, err
			}
			report.PendingImported = n
		}
		remove = append(remove, LegacyPendingKey)
	}

	for _, key := range []string{LegacyMealRecordsKey, LegacyGymRecordsKey} {
		raw, ok := src.Get(key)
		if !ok {
			continue
		}
		if strings.TrimSpace(raw) != "" {
			if err := s.Meta.Set(ctx, LegacyStagePrefix+key, []byte(raw)); err != nil {
				return report, err
			}
			report.RecordsStaged = append(report.RecordsStaged, key)
		}
	}

	// Per-month gym caches from the old generation are too large to keep.
	for _, k := range src.Keys() {
		if strings.HasPrefix(k, LegacyGymRecordsKey) || k == LegacyMealRecordsKey {
			remove = append(remove, k)
		}
	}

	if len(remove) > 0 {
		if err := src.Remove(remove...); err != nil {
			return report, err
		}
		report.KeysRemoved = len(remove)
	}

	if err := SetJSON(ctx, s.Meta, legacyMigratedFlag, true); err != nil {
		return report, err
	}

	logging.Info("Legacy store migrated", map[string]interface{}{
		"pending_imported": report.PendingImported,
		"records_staged":   report.RecordsStaged,
		"keys_removed":     report.KeysRemoved,
	})
	return report, nil
}

func mergePending(ctx context.Context, kv KV, legacy []models.PendingItem) (int, error) {
	var current []models.PendingItem
	if _, err := GetJSON(ctx, kv, PendingQueueKey, &current); err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(current))
	for _, it := range current {
		seen[it.LocalID] = true
	}
	added := 0
	for _, it := range legacy {
		if it.LocalID == "" || seen[it.LocalID] {
			continue
		}
		seen[it.LocalID] = true
		current = append(current, it)
		added++
	}
	if added == 0 {
		return 0, nil
	}
	return added, SetJSON(ctx, kv, PendingQueueKey, current)
}
