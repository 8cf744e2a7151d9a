// Package main runs the desktop sync service: the background scheduler, the
// gym record change feed and a loopback REST/WebSocket API for the UI.
package main

import (
	"context"
	stderrors "errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/youngukshin9402-code/cloud-sync-manager/cmd/desktop/handlers"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/app"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/config"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/logging"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/records"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/supabase"
	syncpkg "github.com/youngukshin9402-code/cloud-sync-manager/internal/sync"
)

// Version is set at build time
var Version = "0.1.0"

func main() {
	configFile := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		logging.Error("Failed to load config", err)
		os.Exit(1)
	}
	initLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Error("Desktop server stopped with error", err)
		os.Exit(1)
	}
}

func initLogging(cfg *config.Config) {
	level := logging.ParseLevel(cfg.Log.Level)
	if cfg.Log.File == "" {
		logging.Init(os.Stdout, level)
		return
	}
	logging.InitFile(logging.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}, level, true)
}

func run(ctx context.Context, cfg *config.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	hub := NewWSHub()
	defer hub.Close()
	a.Engine.SetEventHandler(syncpkg.MultiHandler{a.Metrics, hub})
	a.Queue.Subscribe(hub.BroadcastQueueChanged)

	a.Scheduler.Start(ctx)
	if a.Supabase != nil {
		go watchGymRecords(ctx, a, hub)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newRouter(ctx, a, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logging.Info("Desktop server starting", map[string]interface{}{"addr": cfg.Server.Addr, "version": Version})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newRouter mounts the API under /api plus /metrics and /ws.
func newRouter(ctx context.Context, a *app.App, hub *WSHub) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/health", healthCheck).Methods(http.MethodGet)
	r.Handle("/metrics", a.Metrics.Handler()).Methods(http.MethodGet)
	if hub != nil {
		r.HandleFunc("/ws", HandleWebSocket(hub))
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(handlers.RequireLocalOrigin)
	handlers.NewSyncHandler(ctx, a.Queue, a.Scheduler).Register(api)
	handlers.NewRecordsHandler(a.Records, a.Gyms, a.Migrator, a.Scheduler.Owner).Register(api)

	// Typed nils would defeat the handler's not-configured checks.
	var analyzer handlers.Analyzer
	if a.Analyzer != nil {
		analyzer = a.Analyzer
	}
	var checkups handlers.CheckupSubmitter
	if a.Checkups != nil {
		checkups = a.Checkups
	}
	handlers.NewAIHandler(analyzer, checkups, a.Scheduler.Owner).Register(api)

	return a.Metrics.InstrumentHandler(r)
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok","service":"yanggaeng-desktop"}`))
}

// watchGymRecords follows the signed-in user's gym rows, restarting the
// feed whenever the owner changes.
func watchGymRecords(ctx context.Context, a *app.App, hub *WSHub) {
	rt := a.Supabase.Realtime()
	feed := records.ChangeFeed(feedFunc(func(ctx context.Context, channel string, subs []supabase.PostgresChanges, handler func(supabase.Change)) {
		rt.Watch(ctx, channel, subs, func(c supabase.Change) {
			handler(c)
			hub.BroadcastGymRecordChanged(c)
		})
	}))

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	var owner string
	stop := func() {}
	defer func() { stop() }()
	for {
		if current := a.Scheduler.Owner(); current != owner {
			stop()
			stop = func() {}
			owner = current
			if owner != "" {
				stop = startGymWatch(ctx, feed, owner, a.Gyms)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// startGymWatch runs the gym feed for owner until the returned func is called.
func startGymWatch(ctx context.Context, feed records.ChangeFeed, owner string, cache *records.GymCache) context.CancelFunc {
	watchCtx, cancel := context.WithCancel(ctx)
	go records.WatchGymRecords(watchCtx, feed, owner, cache)
	return cancel
}

type feedFunc func(ctx context.Context, channel string, subs []supabase.PostgresChanges, handler func(supabase.Change))

func (f feedFunc) Watch(ctx context.Context, channel string, subs []supabase.PostgresChanges, handler func(supabase.Change)) {
	f(ctx, channel, subs, handler)
}
