package sync

import "time"

// SyncEventType identifies a sync notification.
type SyncEventType string

const (
	SyncEventStarted   SyncEventType = "sync_started"
	SyncEventCompleted SyncEventType = "sync_completed"
	SyncEventFailed    SyncEventType = "sync_failed"
	SyncEventSkipped   SyncEventType = "sync_skipped"
)

// SyncEvent is emitted at drain boundaries.
type SyncEvent struct {
	Type      SyncEventType `json:"type"`
	OwnerID   string        `json:"owner_id"`
	Result    *DrainResult  `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// SyncEventHandler receives sync events. Handlers run on the draining
// goroutine and must not block.
type SyncEventHandler interface {
	OnSyncEvent(event SyncEvent)
}

// SyncEventHandlerFunc adapts a function to SyncEventHandler.
type SyncEventHandlerFunc func(SyncEvent)

func (f SyncEventHandlerFunc) OnSyncEvent(event SyncEvent) { f(event) }

// MultiHandler fans an event out to several handlers in order.
type MultiHandler []SyncEventHandler

func (m MultiHandler) OnSyncEvent(event SyncEvent) {
	for _, h := range m {
		if h != nil {
			h.OnSyncEvent(event)
		}
	}
}
