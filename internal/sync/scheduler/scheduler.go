// Package scheduler decides when the pending queue is drained: on
// connectivity recovery, when the app becomes visible, at startup and on
// a periodic tick while online.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/logging"
	syncpkg "github.com/youngukshin9402-code/cloud-sync-manager/internal/sync"
)

// Trigger names the event that requested a drain.
type Trigger string

const (
	TriggerOnline   Trigger = "online"
	TriggerVisible  Trigger = "visible"
	TriggerMount    Trigger = "mount"
	TriggerInterval Trigger = "interval"
	TriggerManual   Trigger = "manual"
)

// Valid reports whether t is a known trigger.
func (t Trigger) Valid() bool {
	switch t {
	case TriggerOnline, TriggerVisible, TriggerMount, TriggerInterval, TriggerManual:
		return true
	}
	return false
}

// Scheduler runs drains for the signed-in owner in the background.
type Scheduler struct {
	engine        syncpkg.SyncEngineInterface
	queueInterval time.Duration
	drainTimeout  time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
	mu            sync.RWMutex
	isRunning     bool
	stopped       bool
	isOnline      bool
	ownerID       string
	lastDrainTime time.Time
	lastResult    *syncpkg.DrainResult
	lastTrigger   Trigger
	inProgress    bool
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	QueueInterval time.Duration // Periodic drain while online (default: 1 minute)
	DrainTimeout  time.Duration // Upper bound of one triggered drain (default: 2 minutes)
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		QueueInterval: 1 * time.Minute,
		DrainTimeout:  2 * time.Minute,
	}
}

// NewScheduler creates a new Scheduler.
func NewScheduler(engine syncpkg.SyncEngineInterface, config *SchedulerConfig) *Scheduler {
	if config == nil {
		config = DefaultSchedulerConfig()
	}
	d := DefaultSchedulerConfig()
	if config.QueueInterval <= 0 {
		config.QueueInterval = d.QueueInterval
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = d.DrainTimeout
	}

	return &Scheduler{
		engine:        engine,
		queueInterval: config.QueueInterval,
		drainTimeout:  config.DrainTimeout,
		stopCh:        make(chan struct{}),
		isOnline:      true, // Assume online initially
	}
}

// SetOwner sets the user whose items are drained. An empty owner pauses
// draining.
func (s *Scheduler) SetOwner(ownerID string) {
	s.mu.Lock()
	s.ownerID = ownerID
	s.mu.Unlock()
}

// Owner returns the current owner.
func (s *Scheduler) Owner() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ownerID
}

// Start starts the periodic loop and requests a mount drain.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	if s.stopped {
		s.stopCh = make(chan struct{})
		s.stopped = false
	}
	s.isRunning = true
	stopCh := s.stopCh
	s.wg.Add(1)
	s.mu.Unlock()

	go s.periodicLoop(ctx, stopCh)

	logging.Info("Background sync scheduler started", map[string]interface{}{
		"queue_interval": s.queueInterval.String(),
	})
	s.TriggerDrain(ctx, TriggerMount)
}

// Stop stops the scheduler and waits for running drains to return. Drains
// are refused until the next Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.stopped = true
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()

	logging.Info("Background sync scheduler stopped")
}

// SetOnlineStatus changes the online status. Going from offline to online
// triggers a drain.
func (s *Scheduler) SetOnlineStatus(ctx context.Context, isOnline bool) {
	s.mu.Lock()
	wasOnline := s.isOnline
	s.isOnline = isOnline
	s.mu.Unlock()

	if wasOnline == isOnline {
		return
	}
	logging.Info("Online status changed", map[string]interface{}{
		"was_online": wasOnline,
		"is_online":  isOnline,
	})
	if isOnline {
		s.TriggerDrain(ctx, TriggerOnline)
	}
}

func (s *Scheduler) periodicLoop(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.queueInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.TriggerDrain(ctx, TriggerInterval)
		}
	}
}

// TriggerDrain starts a drain in the background. It returns false when the
// scheduler is stopped or offline, has no owner or a drain is already running.
func (s *Scheduler) TriggerDrain(ctx context.Context, trigger Trigger) bool {
	ownerID, stopCh, ok := s.begin(trigger)
	if !ok {
		return false
	}

	go func() {
		defer s.wg.Done()
		s.run(ctx, ownerID, trigger, stopCh)
	}()
	return true
}

// DrainNow runs a drain on the calling goroutine and returns its result.
func (s *Scheduler) DrainNow(ctx context.Context) (syncpkg.DrainResult, bool) {
	ownerID, stopCh, ok := s.begin(TriggerManual)
	if !ok {
		return syncpkg.DrainResult{Skipped: true}, false
	}
	defer s.wg.Done()
	return s.run(ctx, ownerID, TriggerManual, stopCh), true
}

// begin claims the single drain slot. On success the caller owns one wg
// count and must release it with wg.Done.
func (s *Scheduler) begin(trigger Trigger) (string, <-chan struct{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.stopped:
		logging.Debug("Skipping drain - scheduler is stopped", map[string]interface{}{"trigger": string(trigger)})
		return "", nil, false
	case !s.isOnline:
		logging.Debug("Skipping drain - scheduler is offline", map[string]interface{}{"trigger": string(trigger)})
		return "", nil, false
	case s.ownerID == "":
		return "", nil, false
	case s.inProgress:
		logging.Debug("Drain already in progress, skipping", map[string]interface{}{"trigger": string(trigger)})
		return "", nil, false
	}
	s.inProgress = true
	s.wg.Add(1)
	return s.ownerID, s.stopCh, true
}

func (s *Scheduler) run(ctx context.Context, ownerID string, trigger Trigger, stopCh <-chan struct{}) syncpkg.DrainResult {
	defer func() {
		s.mu.Lock()
		s.inProgress = false
		s.mu.Unlock()
	}()

	drainCtx, cancel := context.WithTimeout(ctx, s.drainTimeout)
	defer cancel()

	// Stop abandons the drain; unacknowledged items stay queued.
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-drainCtx.Done():
		}
	}()

	result := s.engine.Drain(drainCtx, ownerID)

	s.mu.Lock()
	if !result.Skipped {
		s.lastDrainTime = time.Now()
		s.lastResult = &result
		s.lastTrigger = trigger
	}
	s.mu.Unlock()

	logging.Debug("Triggered drain finished", map[string]interface{}{
		"trigger": string(trigger),
		"result":  result.String(),
	})
	return result
}

// SchedulerStatus is a snapshot of the scheduler.
type SchedulerStatus struct {
	IsRunning     bool                 `json:"is_running"`
	IsOnline      bool                 `json:"is_online"`
	OwnerID       string               `json:"owner_id"`
	InProgress    bool                 `json:"in_progress"`
	LastDrainTime *time.Time           `json:"last_drain_time,omitempty"`
	LastTrigger   Trigger              `json:"last_trigger,omitempty"`
	LastResult    *syncpkg.DrainResult `json:"last_result,omitempty"`
	EngineStatus  syncpkg.SyncStatus   `json:"engine_status"`
	PendingItems  int                  `json:"pending_items"`
}

// GetStatus returns the current status of the scheduler.
func (s *Scheduler) GetStatus(ctx context.Context) SchedulerStatus {
	s.mu.RLock()
	status := SchedulerStatus{
		IsRunning:   s.isRunning,
		IsOnline:    s.isOnline,
		OwnerID:     s.ownerID,
		InProgress:  s.inProgress,
		LastTrigger: s.lastTrigger,
		LastResult:  s.lastResult,
	}
	if !s.lastDrainTime.IsZero() {
		t := s.lastDrainTime
		status.LastDrainTime = &t
	}
	s.mu.RUnlock()

	status.EngineStatus = s.engine.Status()
	if status.OwnerID != "" {
		if n, err := s.engine.PendingChanges(ctx, status.OwnerID); err == nil {
			status.PendingItems = n
		} else {
			logging.Warn("Failed to count pending items", map[string]interface{}{"error": err.Error()})
		}
	}
	return status
}

// IsOnline returns whether the scheduler is in online mode.
func (s *Scheduler) IsOnline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isOnline
}

// IsRunning returns whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
