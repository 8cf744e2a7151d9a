// Package sync drains the pending-write queue to the remote backend.
package sync

import (
	"context"
	"time"
)

// SyncEngineInterface defines the interface for sync engine operations.
// This interface allows for mocking in tests and alternative implementations.
type SyncEngineInterface interface {
	// Drain pushes ownerID's pending writes to the remote backend. It never
	// returns an error; failures are reported as counts.
	Drain(ctx context.Context, ownerID string) DrainResult

	// SetEventHandler sets the event handler for sync notifications.
	SetEventHandler(handler SyncEventHandler)

	// Status returns the current sync status.
	Status() SyncStatus

	// LastSync returns the timestamp of the last completed drain.
	LastSync() *time.Time

	// PendingChanges returns the number of writes queued for ownerID.
	PendingChanges(ctx context.Context, ownerID string) (int, error)

	// LastError returns the last error that occurred during a drain.
	LastError() error
}
