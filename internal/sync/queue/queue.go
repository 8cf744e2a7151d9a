// Package queue provides the persisted pending-write queue for offline
// operations. The whole queue is stored as one list in the pending namespace;
// every read-modify-write of that list runs under a single mutex so
// concurrent writers never lose updates.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/logging"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/models"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/store"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/uuid"
)

// DefaultMaxRetries is the number of failed attempts after which an item
// leaves the auto-retry path.
const DefaultMaxRetries = 3

// Queue manages pending writes with bounded retry.
type Queue struct {
	kv         store.KV
	mu         sync.Mutex
	maxSize    int
	maxRetries int
	now        func() time.Time

	subMu       sync.RWMutex
	subscribers []func(total int)
}

// Option configures a Queue.
type Option func(*Queue)

// WithMaxRetries overrides DefaultMaxRetries.
func WithMaxRetries(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.maxRetries = n
		}
	}
}

// WithMaxSize caps the number of queued items; 0 means unbounded.
func WithMaxSize(n int) Option {
	return func(q *Queue) { q.maxSize = n }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// New creates a queue persisted in kv.
func New(kv store.KV, opts ...Option) *Queue {
	q := &Queue{
		kv:         kv,
		maxRetries: DefaultMaxRetries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// MaxRetries returns the retry bound.
func (q *Queue) MaxRetries() int { return q.maxRetries }

// Subscribe registers fn to be called with the queue length after every
// successful write.
func (q *Queue) Subscribe(fn func(total int)) {
	q.subMu.Lock()
	defer q.subMu.Unlock()
	q.subscribers = append(q.subscribers, fn)
}

func (q *Queue) notify(total int) {
	q.subMu.RLock()
	defer q.subMu.RUnlock()
	for _, fn := range q.subscribers {
		fn(total)
	}
}

// load reads the persisted list. Caller holds q.mu.
func (q *Queue) load(ctx context.Context) ([]models.PendingItem, error) {
	var items []models.PendingItem
	if _, err := store.GetJSON(ctx, q.kv, store.PendingQueueKey, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Update runs fn on the current list and persists its result as one
// critical section. If fn returns an error nothing is written.
func (q *Queue) Update(ctx context.Context, fn func(items []models.PendingItem) ([]models.PendingItem, error)) error {
	q.mu.Lock()
	items, err := q.load(ctx)
	if err != nil {
		q.mu.Unlock()
		return err
	}
	next, err := fn(items)
	if err != nil {
		q.mu.Unlock()
		return err
	}
	if next == nil {
		next = []models.PendingItem{}
	}
	err = store.SetJSON(ctx, q.kv, store.PendingQueueKey, next)
	q.mu.Unlock()
	if err != nil {
		return err
	}
	q.notify(len(next))
	return nil
}

// Enqueue appends a new item and returns its local id once the write has
// been persisted. data is copied and stamped with the id as both localId
// and client_id.
func (q *Queue) Enqueue(ctx context.Context, typ models.PendingType, data map[string]interface{}) (string, error) {
	if !typ.Valid() {
		return "", errors.Newf(errors.ErrQueueItemInvalid, "unknown pending type %q", typ)
	}

	now := q.now()
	localID := uuid.NewLocalID(now)
	payload := make(map[string]interface{}, len(data)+2)
	for k, v := range data {
		payload[k] = v
	}
	payload[models.FieldLocalID] = localID
	payload[models.FieldClientID] = localID

	item := models.PendingItem{
		LocalID:   localID,
		Type:      typ,
		Data:      payload,
		CreatedAt: now.UTC(),
	}

	err := q.Update(ctx, func(items []models.PendingItem) ([]models.PendingItem, error) {
		if q.maxSize > 0 && len(items) >= q.maxSize {
			return nil, errors.Newf(errors.ErrQueueItemInvalid, "queue is full (max size: %d)", q.maxSize)
		}
		return append(items, item), nil
	})
	if err != nil {
		return "", err
	}

	logging.Debug("Enqueued pending write", map[string]interface{}{
		"local_id": localID,
		"type":     string(typ),
	})
	return localID, nil
}

// Dequeue removes the item with localID. Absent ids are a no-op.
func (q *Queue) Dequeue(ctx context.Context, localID string) error {
	return q.Update(ctx, func(items []models.PendingItem) ([]models.PendingItem, error) {
		out := items[:0]
		for _, it := range items {
			if it.LocalID != localID {
				out = append(out, it)
			}
		}
		return out, nil
	})
}

// IsPending reports whether localID is still queued.
func (q *Queue) IsPending(ctx context.Context, localID string) (bool, error) {
	_, ok, err := q.Get(ctx, localID)
	return ok, err
}

// Get returns the queued item with localID.
func (q *Queue) Get(ctx context.Context, localID string) (models.PendingItem, bool, error) {
	items, err := q.List(ctx)
	if err != nil {
		return models.PendingItem{}, false, err
	}
	for _, it := range items {
		if it.LocalID == localID {
			return it, true, nil
		}
	}
	return models.PendingItem{}, false, nil
}

// List returns a snapshot of every queued item in insertion order.
func (q *Queue) List(ctx context.Context) ([]models.PendingItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load(ctx)
}

// ListOwner returns the queued items written for ownerID.
func (q *Queue) ListOwner(ctx context.Context, ownerID string) ([]models.PendingItem, error) {
	items, err := q.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.PendingItem, 0, len(items))
	for _, it := range items {
		if it.OwnerID() == ownerID {
			out = append(out, it)
		}
	}
	return out, nil
}

// Count returns the number of items queued for ownerID; an empty ownerID
// counts everything.
func (q *Queue) Count(ctx context.Context, ownerID string) (int, error) {
	if ownerID == "" {
		items, err := q.List(ctx)
		return len(items), err
	}
	items, err := q.ListOwner(ctx, ownerID)
	return len(items), err
}

// Clear removes every queued item. Dead letters are kept.
func (q *Queue) Clear(ctx context.Context) error {
	err := q.Update(ctx, func([]models.PendingItem) ([]models.PendingItem, error) {
		return nil, nil
	})
	if err == nil {
		logging.Info("Pending queue cleared")
	}
	return err
}

// Stats summarizes the queue.
type Stats struct {
	Total       int                        `json:"total"`
	ByType      map[models.PendingType]int `json:"by_type"`
	Retrying    int                        `json:"retrying"`
	DeadLetters int                        `json:"dead_letters"`
}

// GetStats returns queue statistics.
func (q *Queue) GetStats(ctx context.Context) (Stats, error) {
	items, err := q.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	dead, err := q.DeadLetters(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		Total:       len(items),
		ByType:      make(map[models.PendingType]int),
		DeadLetters: len(dead),
	}
	for _, it := range items {
		stats.ByType[it.Type]++
		if it.RetryCount > 0 {
			stats.Retrying++
		}
	}
	return stats, nil
}
