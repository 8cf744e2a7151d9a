// Package queue provides unit tests for the pending-write queue.
package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/models"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/store"
)

func newTestQueue(t *testing.T, opts ...Option) (*Queue, store.KV) {
	t.Helper()
	kv := store.NewMemory()
	return New(kv, opts...), kv
}

// =====================================================
// Enqueue / Dequeue
// =====================================================

// TestEnqueue verifies the item is persisted and stamped.
func TestEnqueue(t *testing.T) {
	ctx := context.Background()
	q, kv := newTestQueue(t)

	data := map[string]interface{}{"user_id": "u1", "date": "2024-01-15"}
	id, err := q.Enqueue(ctx, models.PendingGymRecord, data)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, present := data[models.FieldLocalID]
	assert.False(t, present, "caller's map must not be mutated")

	// Read straight from the store to prove the write completed.
	fresh := New(kv)
	item, ok, err := fresh.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.PendingGymRecord, item.Type)
	assert.Equal(t, id, item.Data[models.FieldLocalID])
	assert.Equal(t, id, item.Data[models.FieldClientID])
	assert.Equal(t, 0, item.RetryCount)
	assert.Equal(t, "u1", item.OwnerID())
}

// TestEnqueue_invalidType verifies unknown types are rejected.
func TestEnqueue_invalidType(t *testing.T) {
	q, _ := newTestQueue(t)
	_, err := q.Enqueue(context.Background(), models.PendingType("water"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrQueueItemInvalid))
}

// TestEnqueue_full verifies the size cap.
func TestEnqueue_full(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, WithMaxSize(2))

	for i := 0; i < 2; i++ {
		_, err := q.Enqueue(ctx, models.PendingGymRecord, nil)
		require.NoError(t, err)
	}
	_, err := q.Enqueue(ctx, models.PendingGymRecord, nil)
	require.Error(t, err)

	n, err := q.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

// TestEnqueue_concurrentNoLostUpdates verifies concurrent writers all land.
func TestEnqueue_concurrentNoLostUpdates(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	const writers = 50
	var wg sync.WaitGroup
	ids := make(chan string, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id, err := q.Enqueue(ctx, models.PendingMealRecord, map[string]interface{}{"user_id": "u1", "n": n})
			assert.NoError(t, err)
			ids <- id
		}(i)
	}
	wg.Wait()
	close(ids)

	items, err := q.List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, writers)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate local id %s", id)
		seen[id] = true
	}
}

// TestDequeue verifies removal and the absent-id no-op.
func TestDequeue(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	a, _ := q.Enqueue(ctx, models.PendingGymRecord, nil)
	b, _ := q.Enqueue(ctx, models.PendingGymRecord, nil)

	require.NoError(t, q.Dequeue(ctx, a))
	require.NoError(t, q.Dequeue(ctx, "does-not-exist"))

	pending, err := q.IsPending(ctx, a)
	require.NoError(t, err)
	assert.False(t, pending)
	pending, err = q.IsPending(ctx, b)
	require.NoError(t, err)
	assert.True(t, pending)
}

// TestListOwner verifies owner filtering.
func TestListOwner(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	q.Enqueue(ctx, models.PendingGymRecord, map[string]interface{}{"user_id": "u1"})
	q.Enqueue(ctx, models.PendingGymRecord, map[string]interface{}{"user_id": "u2"})
	q.Enqueue(ctx, models.PendingMealRecord, map[string]interface{}{"user_id": "u1"})

	mine, err := q.ListOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	n, _ := q.Count(ctx, "u2")
	assert.Equal(t, 1, n)
}

// TestQueue_corruptStoreIsEmpty verifies a corrupt persisted list reads as empty.
func TestQueue_corruptStoreIsEmpty(t *testing.T) {
	ctx := context.Background()
	q, kv := newTestQueue(t)
	require.NoError(t, kv.Set(ctx, store.PendingQueueKey, []byte("[{garbage")))

	items, err := q.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = q.Enqueue(ctx, models.PendingGymRecord, nil)
	require.NoError(t, err)
	n, _ := q.Count(ctx, "")
	assert.Equal(t, 1, n)
}

// TestSubscribe verifies subscribers see the new length.
func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	var got []int
	q.Subscribe(func(total int) { got = append(got, total) })

	id, _ := q.Enqueue(ctx, models.PendingGymRecord, nil)
	q.Enqueue(ctx, models.PendingGymRecord, nil)
	q.Dequeue(ctx, id)

	assert.Equal(t, []int{1, 2, 1}, got)
}

// =====================================================
// Settle / retry bound / dead letters
// =====================================================

// TestSettle verifies success removal, requeue and drop at the bound.
func TestSettle(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	q, _ := newTestQueue(t, WithClock(func() time.Time { return clock }))

	ok, _ := q.Enqueue(ctx, models.PendingGymRecord, map[string]interface{}{"user_id": "u1"})
	flaky, _ := q.Enqueue(ctx, models.PendingGymRecord, map[string]interface{}{"user_id": "u1"})
	untouched, _ := q.Enqueue(ctx, models.PendingGymRecord, map[string]interface{}{"user_id": "u1"})

	res, err := q.Settle(ctx, Outcome{
		Succeeded: []string{ok},
		Failed:    map[string]string{flaky: "503"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	require.Len(t, res.Requeued, 1)
	assert.Equal(t, 1, res.Requeued[0].RetryCount)
	assert.Empty(t, res.Dropped)

	item, present, _ := q.Get(ctx, flaky)
	require.True(t, present)
	assert.Equal(t, 1, item.RetryCount)

	item, present, _ = q.Get(ctx, untouched)
	require.True(t, present)
	assert.Equal(t, 0, item.RetryCount)
}

// TestSettle_retryBound verifies an item failing three times is dropped and
// not retried a fourth time.
func TestSettle_retryBound(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)
	id, _ := q.Enqueue(ctx, models.PendingMealRecord, map[string]interface{}{"user_id": "u1"})

	for attempt := 1; attempt <= 3; attempt++ {
		res, err := q.Settle(ctx, Outcome{Failed: map[string]string{id: fmt.Sprintf("fail %d", attempt)}})
		require.NoError(t, err)
		if attempt < 3 {
			assert.Len(t, res.Requeued, 1, "attempt %d", attempt)
		} else {
			assert.Len(t, res.Dropped, 1)
		}
	}

	pending, _ := q.IsPending(ctx, id)
	assert.False(t, pending)

	dead, err := q.DeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, id, dead[0].Item.LocalID)
	assert.Equal(t, 3, dead[0].Item.RetryCount)
	assert.Equal(t, "fail 3", dead[0].LastError)

	// A further outcome for the dropped id is ignored.
	res, err := q.Settle(ctx, Outcome{Failed: map[string]string{id: "late"}})
	require.NoError(t, err)
	assert.Empty(t, res.Dropped)
	assert.Empty(t, res.Requeued)
}

// TestSettle_customBound verifies WithMaxRetries.
func TestSettle_customBound(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, WithMaxRetries(1))
	id, _ := q.Enqueue(ctx, models.PendingGymRecord, nil)

	res, err := q.Settle(ctx, Outcome{Failed: map[string]string{id: "x"}})
	require.NoError(t, err)
	assert.Len(t, res.Dropped, 1)
	assert.Equal(t, 1, q.MaxRetries())
}

// TestRetryDeadLetters verifies requeue with a fresh budget per owner.
func TestRetryDeadLetters(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, WithMaxRetries(1))
	mine, _ := q.Enqueue(ctx, models.PendingGymRecord, map[string]interface{}{"user_id": "u1"})
	theirs, _ := q.Enqueue(ctx, models.PendingGymRecord, map[string]interface{}{"user_id": "u2"})
	q.Settle(ctx, Outcome{Failed: map[string]string{mine: "x", theirs: "y"}})

	moved, err := q.RetryDeadLetters(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	item, ok, _ := q.Get(ctx, mine)
	require.True(t, ok)
	assert.Equal(t, 0, item.RetryCount)

	dead, _ := q.DeadLetters(ctx)
	require.Len(t, dead, 1)
	assert.Equal(t, theirs, dead[0].Item.LocalID)
}

// TestGetStats verifies counts by type and retry state.
func TestGetStats(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)
	a, _ := q.Enqueue(ctx, models.PendingGymRecord, nil)
	q.Enqueue(ctx, models.PendingMealRecord, nil)
	q.Enqueue(ctx, models.PendingMealRecord, nil)
	q.Settle(ctx, Outcome{Failed: map[string]string{a: "x"}})

	stats, err := q.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByType[models.PendingMealRecord])
	assert.Equal(t, 1, stats.Retrying)
	assert.Equal(t, 0, stats.DeadLetters)
}

// TestClear verifies the queue empties but dead letters survive.
func TestClear(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, WithMaxRetries(1))
	a, _ := q.Enqueue(ctx, models.PendingGymRecord, nil)
	q.Enqueue(ctx, models.PendingGymRecord, nil)
	q.Settle(ctx, Outcome{Failed: map[string]string{a: "x"}})

	require.NoError(t, q.Clear(ctx))
	n, _ := q.Count(ctx, "")
	assert.Zero(t, n)
	dead, _ := q.DeadLetters(ctx)
	assert.Len(t, dead, 1)
}
