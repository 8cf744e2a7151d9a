// Package app assembles the sync core from configuration. Both binaries
// build on it.
package app

import (
	"context"
	"path/filepath"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/analysis"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/config"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/logging"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/media"
	s3store "github.com/youngukshin9402-code/cloud-sync-manager/internal/objectstore/s3"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/records"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/services"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/store"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/supabase"
	syncpkg "github.com/youngukshin9402-code/cloud-sync-manager/internal/sync"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/sync/queue"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/sync/scheduler"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/telemetry"
)

// LegacyFileName is the previous generation's key-value dump, looked up in
// the data dir.
const LegacyFileName = "legacy.json"

// App holds the wired components. Remote-backed fields are nil when the
// backend is not configured.
type App struct {
	Config    *config.Config
	Store     *store.Store
	Queue     *queue.Queue
	Engine    *syncpkg.Engine
	Scheduler *scheduler.Scheduler
	Gyms      *records.GymCache
	Records   *records.Service
	Metrics   *telemetry.Metrics

	Supabase *supabase.Client
	Uploader *media.Uploader
	Migrator *records.Migrator
	Checkups *services.CheckupService
	Analyzer *analysis.Analyzer
}

// New opens the local store under cfg.DataDir, imports legacy data once
// and wires everything on top.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	legacy, err := store.OpenLegacyFile(filepath.Join(cfg.DataDir, LegacyFileName))
	if err != nil {
		st.Close()
		return nil, err
	}
	if _, err := store.MigrateLegacy(ctx, st, legacy); err != nil {
		st.Close()
		return nil, err
	}

	a, err := Build(ctx, cfg, st)
	if err != nil {
		st.Close()
		return nil, err
	}
	return a, nil
}

// Build wires the components over an opened store.
func Build(ctx context.Context, cfg *config.Config, st *store.Store) (*App, error) {
	a := &App{
		Config:  cfg,
		Store:   st,
		Queue:   queue.New(st.Pending, queue.WithMaxRetries(cfg.Sync.MaxRetries)),
		Gyms:    records.NewGymCache(st.Records),
		Metrics: telemetry.New(),
	}

	var (
		remote  syncpkg.Remote
		backend records.Backend
		deleter records.ImageDeleter
	)
	engineOpts := []syncpkg.Option{syncpkg.WithMealConcurrency(cfg.Sync.MealConcurrency)}

	if cfg.SupabaseConfigured() {
		client, err := supabase.New(supabase.Config{
			URL:         cfg.Supabase.URL,
			AnonKey:     cfg.Supabase.AnonKey,
			AccessToken: cfg.Supabase.AccessToken,
			Timeout:     cfg.Supabase.Timeout,
		})
		if err != nil {
			return nil, err
		}
		objects, err := objectStore(ctx, cfg, client)
		if err != nil {
			return nil, err
		}

		a.Supabase = client
		a.Uploader = media.NewUploader(objects, nil)
		remote = syncpkg.NewSupabaseRemote(client)
		sb := records.NewSupabaseBackend(client)
		backend = sb
		deleter = a.Uploader
		a.Migrator = records.NewMigrator(st.Meta, sb, a.Gyms)
		a.Checkups = services.NewCheckupService(a.Uploader, client, client)
		engineOpts = append(engineOpts, syncpkg.WithImageUploader(a.Uploader))
	} else {
		logging.Warn("Supabase is not configured, writes stay queued locally", nil)
	}

	if cfg.AI.Endpoint != "" && cfg.AI.APIKey != "" {
		gw, err := analysis.NewGateway(analysis.GatewayConfig{
			Endpoint:          cfg.AI.Endpoint,
			APIKey:            cfg.AI.APIKey,
			Model:             cfg.AI.Model,
			RequestsPerMinute: cfg.AI.RequestsPerMinute,
		})
		if err != nil {
			return nil, err
		}
		a.Analyzer = analysis.NewAnalyzer(gw)
	}

	a.Engine = syncpkg.NewEngine(a.Queue, remote, engineOpts...)
	a.Records = records.NewService(a.Queue, a.Gyms, backend, deleter)
	a.Scheduler = scheduler.NewScheduler(a.Engine, &scheduler.SchedulerConfig{
		QueueInterval: cfg.Sync.QueueInterval,
		DrainTimeout:  cfg.Sync.DrainTimeout,
	})
	a.Scheduler.SetOwner(cfg.UserID)

	a.Engine.SetEventHandler(a.Metrics)
	a.Queue.Subscribe(a.Metrics.SetPending)
	return a, nil
}

// objectStore picks the media backend named by storage.backend.
func objectStore(ctx context.Context, cfg *config.Config, client *supabase.Client) (media.ObjectStore, error) {
	switch cfg.Storage.Backend {
	case "s3":
		return s3store.New(ctx, s3store.Options{
			Provider:      cfg.S3.Provider,
			Endpoint:      cfg.S3.Endpoint,
			Region:        cfg.S3.Region,
			AccountID:     cfg.S3.AccountID,
			UseSSL:        cfg.S3.UseSSL,
			AccessKey:     cfg.S3.AccessKey,
			SecretKey:     cfg.S3.SecretKey,
			BucketPrefix:  cfg.S3.BucketPrefix,
			PublicBaseURL: cfg.S3.PublicBaseURL,
		})
	case "supabase", "":
		return client.Storage(), nil
	}
	return nil, errors.Newf(errors.ErrConfig, "unknown storage.backend %q", cfg.Storage.Backend)
}

// RequireOwner returns the configured user or an error naming the flag.
func (a *App) RequireOwner() (string, error) {
	owner := a.Scheduler.Owner()
	if owner == "" {
		return "", errors.New(errors.ErrInvalid, "no user: set user_id or YANGGAENG_USER_ID")
	}
	return owner, nil
}

// Close stops the scheduler and closes the store.
func (a *App) Close() error {
	a.Scheduler.Stop()
	return a.Store.Close()
}
