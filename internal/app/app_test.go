package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/config"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/models"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/records"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/store"
	syncpkg "github.com/youngukshin9402-code/cloud-sync-manager/internal/sync"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir: t.TempDir(),
		UserID:  "u1",
		Storage: config.StorageConfig{Backend: "supabase"},
		Sync: config.SyncConfig{
			MaxRetries:      3,
			MealConcurrency: 3,
			QueueInterval:   time.Minute,
			DrainTimeout:    time.Minute,
		},
	}
}

// TestBuild_offline verifies the app works without a backend and keeps
// writes queued.
func TestBuild_offline(t *testing.T) {
	ctx := context.Background()
	a, err := Build(ctx, testConfig(t), store.NewMemoryStore())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Supabase)
	assert.Nil(t, a.Migrator)
	assert.Nil(t, a.Analyzer)

	_, err = a.Records.SaveGym(ctx, "u1", "2024-01-15", nil)
	require.NoError(t, err)

	result := a.Engine.Drain(ctx, "u1")
	assert.Equal(t, 0, result.Success)
	assert.True(t, errors.Is(a.Engine.LastError(), errors.ErrSyncNotConfigured))

	n, err := a.Queue.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

type fakeBackend struct {
	mu   sync.Mutex
	rows map[string][]map[string]interface{}
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.Method != http.MethodPost {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("[]"))
		return
	}
	var rows []map[string]interface{}
	json.NewDecoder(r.Body).Decode(&rows)
	f.rows[r.URL.Path] = append(f.rows[r.URL.Path], rows...)
	w.WriteHeader(http.StatusCreated)
}

func (f *fakeBackend) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows[path])
}

func TestBuild_online(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{rows: map[string][]map[string]interface{}{}}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Supabase = config.SupabaseConfig{URL: srv.URL, AnonKey: "anon", Timeout: 5 * time.Second}
	cfg.AI = config.AIConfig{Endpoint: srv.URL, APIKey: "key"}

	a, err := Build(ctx, cfg, store.NewMemoryStore())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Supabase)
	require.NotNil(t, a.Uploader)
	require.NotNil(t, a.Migrator)
	require.NotNil(t, a.Checkups)
	require.NotNil(t, a.Analyzer)

	_, err = a.Records.SaveMeal(ctx, "u1", records.MealInput{Date: "2024-01-15", MealType: "lunch", TotalCalories: 500})
	require.NoError(t, err)

	var events []syncpkg.SyncEventType
	a.Engine.SetEventHandler(syncpkg.MultiHandler{a.Metrics, syncpkg.SyncEventHandlerFunc(func(ev syncpkg.SyncEvent) {
		events = append(events, ev.Type)
	})})

	result := a.Engine.Drain(ctx, "u1")
	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 1, backend.count("/rest/v1/"+models.TableMealRecords))
	assert.Equal(t, []syncpkg.SyncEventType{syncpkg.SyncEventStarted, syncpkg.SyncEventCompleted}, events)
}

func TestBuild_unknownStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Supabase = config.SupabaseConfig{URL: "http://127.0.0.1:1", AnonKey: "anon"}
	cfg.Storage.Backend = "ftp"

	_, err := Build(context.Background(), cfg, store.NewMemoryStore())
	assert.True(t, errors.Is(err, errors.ErrConfig))
}

// TestNew_importsLegacy verifies the legacy dump is imported on first open.
func TestNew_importsLegacy(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	pending := `[{"localId":"1700000000000_x","type":"gym_record","data":{"user_id":"u1","date":"2024-01-15"},"createdAt":"2024-01-15T00:00:00Z","retryCount":0}]`
	raw, err := json.Marshal(map[string]string{store.LegacyPendingKey: pending})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DataDir, LegacyFileName), raw, 0o600))

	a, err := New(ctx, cfg)
	require.NoError(t, err)
	n, err := a.Queue.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, a.Close())

	// Reopening does not import twice.
	a, err = New(ctx, cfg)
	require.NoError(t, err)
	defer a.Close()
	n, err = a.Queue.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRequireOwner(t *testing.T) {
	cfg := testConfig(t)
	cfg.UserID = ""
	a, err := Build(context.Background(), cfg, store.NewMemoryStore())
	require.NoError(t, err)
	defer a.Close()

	_, err = a.RequireOwner()
	assert.True(t, errors.Is(err, errors.ErrInvalid))

	a.Scheduler.SetOwner("u2")
	owner, err := a.RequireOwner()
	require.NoError(t, err)
	assert.Equal(t, "u2", owner)
}
