package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/logging"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/media"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/models"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/sync/queue"
)

// SyncStatus represents the current sync status.
type SyncStatus string

const (
	SyncStatusIdle    SyncStatus = "idle"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusFailed  SyncStatus = "failed"
)

// DefaultMealConcurrency is the meal batch size.
const DefaultMealConcurrency = 3

// DrainResult reports one drain pass. Failed counts every item whose
// attempt failed, including the Dropped ones that exhausted their retries.
type DrainResult struct {
	Success  int           `json:"success"`
	Failed   int           `json:"failed"`
	Dropped  int           `json:"dropped"`
	Skipped  bool          `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// Engine drains the pending queue. At most one drain runs at a time.
type Engine struct {
	queue           *queue.Queue
	remote          Remote
	images          ImageUploader
	mealConcurrency int
	now             func() time.Time

	running atomic.Bool

	mu       stdsync.RWMutex
	status   SyncStatus
	lastSync *time.Time
	lastErr  error
	handler  SyncEventHandler
}

// Option configures an Engine.
type Option func(*Engine)

// WithMealConcurrency sets the meal batch size.
func WithMealConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.mealConcurrency = n
		}
	}
}

// WithImageUploader enables upload of inline meal images.
func WithImageUploader(u ImageUploader) Option {
	return func(e *Engine) { e.images = u }
}

// NewEngine creates an Engine. With a nil remote every drain fails with
// ErrSyncNotConfigured and leaves the queue untouched.
func NewEngine(q *queue.Queue, remote Remote, opts ...Option) *Engine {
	e := &Engine{
		queue:           q,
		remote:          remote,
		mealConcurrency: DefaultMealConcurrency,
		now:             time.Now,
		status:          SyncStatusIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetEventHandler sets the event handler for sync notifications.
func (e *Engine) SetEventHandler(handler SyncEventHandler) {
	e.mu.Lock()
	e.handler = handler
	e.mu.Unlock()
}

func (e *Engine) emitEvent(event SyncEvent) {
	e.mu.RLock()
	h := e.handler
	e.mu.RUnlock()
	if h == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now()
	}
	h.OnSyncEvent(event)
}

// Status returns the current sync status.
func (e *Engine) Status() SyncStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// LastSync returns the timestamp of the last completed drain.
func (e *Engine) LastSync() *time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastSync
}

// LastError returns the last drain error.
func (e *Engine) LastError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastErr
}

// PendingChanges returns the number of writes queued for ownerID.
func (e *Engine) PendingChanges(ctx context.Context, ownerID string) (int, error) {
	return e.queue.Count(ctx, ownerID)
}

// IsDraining reports whether a drain is in progress.
func (e *Engine) IsDraining() bool {
	return e.running.Load()
}

// Drain pushes ownerID's pending writes to the remote backend.
//
// Meal items run in sequential batches of mealConcurrency, each item
// independently; gym items go in one batched upsert. Both strategies run
// concurrently. The queue is then settled in one critical section touching
// only the items this pass processed. A second call while a drain is in
// progress returns immediately with Skipped set.
func (e *Engine) Drain(ctx context.Context, ownerID string) DrainResult {
	if ownerID == "" {
		return DrainResult{}
	}
	if !e.running.CompareAndSwap(false, true) {
		logging.Debug("Drain already in progress, skipping", map[string]interface{}{"owner_id": ownerID})
		e.emitEvent(SyncEvent{Type: SyncEventSkipped, OwnerID: ownerID})
		return DrainResult{Skipped: true}
	}
	defer e.running.Store(false)

	start := e.now()
	e.setStatus(SyncStatusSyncing)
	e.emitEvent(SyncEvent{Type: SyncEventStarted, OwnerID: ownerID})

	if e.remote == nil {
		// Nothing is attempted, so no retry budget is spent.
		e.finish(ownerID, DrainResult{}, errors.New(errors.ErrSyncNotConfigured, "no remote backend configured"))
		return DrainResult{}
	}

	items, err := e.queue.ListOwner(ctx, ownerID)
	if err != nil {
		result := DrainResult{Duration: e.now().Sub(start)}
		e.finish(ownerID, result, err)
		return result
	}
	if len(items) == 0 {
		result := DrainResult{Duration: e.now().Sub(start)}
		e.finish(ownerID, result, nil)
		return result
	}

	col := newCollector()
	var meals, gyms []models.PendingItem
	for _, it := range items {
		switch it.Type {
		case models.PendingMealRecord:
			meals = append(meals, it)
		case models.PendingGymRecord:
			gyms = append(gyms, it)
		default:
			col.record(ctx, it.LocalID, errors.Newf(errors.ErrQueueItemInvalid, "unknown pending type %q", it.Type))
		}
	}

	var g errgroup.Group
	g.Go(func() error {
		e.drainMeals(ctx, ownerID, meals, col)
		return nil
	})
	g.Go(func() error {
		e.drainGyms(ctx, ownerID, gyms, col)
		return nil
	})
	g.Wait()

	outcome := col.outcome()
	// Acknowledged writes are recorded even when the caller gave up.
	settled, settleErr := e.queue.Settle(context.WithoutCancel(ctx), outcome)

	result := DrainResult{
		Success:  len(outcome.Succeeded),
		Failed:   len(outcome.Failed) + col.abandoned,
		Dropped:  len(settled.Dropped),
		Duration: e.now().Sub(start),
	}

	runErr := settleErr
	if runErr == nil && col.lastErr != nil && result.Success == 0 {
		runErr = col.lastErr
	}
	e.finish(ownerID, result, runErr)
	return result
}

func (e *Engine) setStatus(s SyncStatus) {
	e.mu.Lock()
	e.status = s
	e.mu.Unlock()
}

func (e *Engine) finish(ownerID string, result DrainResult, err error) {
	now := e.now()
	e.mu.Lock()
	e.lastErr = err
	if err != nil {
		e.status = SyncStatusFailed
	} else {
		e.status = SyncStatusIdle
		e.lastSync = &now
	}
	e.mu.Unlock()

	fields := map[string]interface{}{
		"owner_id":    ownerID,
		"success":     result.Success,
		"failed":      result.Failed,
		"dropped":     result.Dropped,
		"duration_ms": result.Duration.Milliseconds(),
	}
	if err != nil {
		logging.ErrorWithCode("Drain finished with errors", string(errors.CodeOf(err)), err, fields)
		e.emitEvent(SyncEvent{Type: SyncEventFailed, OwnerID: ownerID, Result: &result, Error: err.Error()})
		return
	}
	if result.Success > 0 || result.Failed > 0 {
		logging.Info("Drain completed", fields)
	}
	e.emitEvent(SyncEvent{Type: SyncEventCompleted, OwnerID: ownerID, Result: &result})
}

func (e *Engine) drainMeals(ctx context.Context, ownerID string, items []models.PendingItem, col *collector) {
	for start := 0; start < len(items); start += e.mealConcurrency {
		end := start + e.mealConcurrency
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		if ctx.Err() != nil {
			for _, it := range batch {
				col.record(ctx, it.LocalID, ctx.Err())
			}
			continue
		}

		var g errgroup.Group
		for _, it := range batch {
			it := it
			g.Go(func() error {
				col.record(ctx, it.LocalID, e.syncMeal(ctx, ownerID, it))
				return nil
			})
		}
		g.Wait()
	}
}

func (e *Engine) syncMeal(ctx context.Context, ownerID string, it models.PendingItem) error {
	imagePath, err := e.resolveMealImage(ctx, ownerID, it)
	if err != nil {
		return err
	}
	row := models.NewMealRecordRow(ownerID, it, imagePath)
	return e.remote.UpsertMealRecords(ctx, []models.MealRecordRow{row})
}

// resolveMealImage uploads an inline image under the item's local id, so a
// retried item overwrites its own earlier upload. Storage paths and URLs
// pass through.
func (e *Engine) resolveMealImage(ctx context.Context, ownerID string, it models.PendingItem) (*string, error) {
	raw := it.String("image_url")
	if raw == "" {
		return nil, nil
	}
	if !media.IsInlineImage(raw) {
		return &raw, nil
	}
	if e.images == nil {
		return nil, errors.New(errors.ErrSyncNotConfigured, "no image uploader for inline meal image")
	}
	_, data, err := media.ParseDataURI(raw)
	if err != nil {
		return nil, err
	}
	res, err := e.images.UploadNamed(ctx, media.BucketFoodLogs, ownerID, it.LocalID, data)
	if err != nil {
		return nil, err
	}
	return &res.OriginalPath, nil
}

func (e *Engine) drainGyms(ctx context.Context, ownerID string, items []models.PendingItem, col *collector) {
	if len(items) == 0 {
		return
	}
	rows := make([]models.GymRecordRow, len(items))
	for i, it := range items {
		rows[i] = models.NewGymRecordRow(ownerID, it)
	}
	err := e.remote.UpsertGymRecords(ctx, rows)
	for _, it := range items {
		col.record(ctx, it.LocalID, err)
	}
}

// collector gathers per-item results from concurrent strategies.
type collector struct {
	mu        stdsync.Mutex
	succeeded []string
	failed    map[string]string
	abandoned int
	lastErr   error
}

func newCollector() *collector {
	return &collector{failed: make(map[string]string)}
}

// record notes the result of one item. Failures after ctx is done are
// abandoned rather than failed: they do not consume a retry.
func (c *collector) record(ctx context.Context, localID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case err == nil:
		c.succeeded = append(c.succeeded, localID)
	case ctx.Err() != nil:
		c.abandoned++
		c.lastErr = err
	default:
		c.failed[localID] = err.Error()
		c.lastErr = err
	}
}

func (c *collector) outcome() queue.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return queue.Outcome{Succeeded: c.succeeded, Failed: c.failed}
}

func (r DrainResult) String() string {
	if r.Skipped {
		return "skipped"
	}
	return fmt.Sprintf("success=%d failed=%d dropped=%d", r.Success, r.Failed, r.Dropped)
}
