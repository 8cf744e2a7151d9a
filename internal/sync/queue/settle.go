package queue

import (
	"context"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/logging"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/models"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/store"
)

// Outcome is what one drain pass learned about the items it processed.
type Outcome struct {
	Succeeded []string
	// Failed maps local id to the error message of the failed attempt.
	Failed map[string]string
}

// SettleResult reports how an Outcome was applied.
type SettleResult struct {
	Removed  int
	Requeued []models.PendingItem
	Dropped  []models.PendingItem
}

// Settle applies a drain outcome in one critical section: succeeded items
// are removed, failed items have RetryCount incremented and either stay
// queued or, at the retry bound, move to the dead-letter list. Items the
// outcome does not mention, including ones enqueued while the drain ran,
// are left untouched.
func (q *Queue) Settle(ctx context.Context, outcome Outcome) (SettleResult, error) {
	var res SettleResult
	if len(outcome.Succeeded) == 0 && len(outcome.Failed) == 0 {
		return res, nil
	}

	succeeded := make(map[string]bool, len(outcome.Succeeded))
	for _, id := range outcome.Succeeded {
		succeeded[id] = true
	}

	var dead []models.DeadLetter
	err := q.Update(ctx, func(items []models.PendingItem) ([]models.PendingItem, error) {
		res = SettleResult{}
		dead = dead[:0]
		out := make([]models.PendingItem, 0, len(items))
		for _, it := range items {
			if succeeded[it.LocalID] {
				res.Removed++
				continue
			}
			msg, failed := outcome.Failed[it.LocalID]
			if !failed {
				out = append(out, it)
				continue
			}
			it.RetryCount++
			if it.RetryCount >= q.maxRetries {
				res.Dropped = append(res.Dropped, it)
				dead = append(dead, models.DeadLetter{Item: it, DroppedAt: q.now().UTC(), LastError: msg})
				continue
			}
			res.Requeued = append(res.Requeued, it)
			out = append(out, it)
		}
		// Written before the queue itself: a crash in between duplicates an
		// item, never loses it.
		if len(dead) > 0 {
			if err := q.appendDeadLetters(ctx, dead); err != nil {
				return nil, err
			}
		}
		return out, nil
	})
	if err != nil {
		return SettleResult{}, err
	}

	for _, it := range res.Dropped {
		logging.Warn("Pending write exhausted retries, moved to dead letters", map[string]interface{}{
			"local_id":    it.LocalID,
			"type":        string(it.Type),
			"retry_count": it.RetryCount,
			"last_error":  outcome.Failed[it.LocalID],
		})
	}
	return res, nil
}

// appendDeadLetters persists dead letters. Caller holds q.mu.
func (q *Queue) appendDeadLetters(ctx context.Context, dead []models.DeadLetter) error {
	var current []models.DeadLetter
	if _, err := store.GetJSON(ctx, q.kv, store.DeadLetterKey, &current); err != nil {
		return err
	}
	return store.SetJSON(ctx, q.kv, store.DeadLetterKey, append(current, dead...))
}

// DeadLetters returns items that exhausted their retries.
func (q *Queue) DeadLetters(ctx context.Context) ([]models.DeadLetter, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var dead []models.DeadLetter
	if _, err := store.GetJSON(ctx, q.kv, store.DeadLetterKey, &dead); err != nil {
		return nil, err
	}
	return dead, nil
}

// RetryDeadLetters moves dead letters for ownerID (all owners when empty)
// back into the queue with a fresh retry budget.
func (q *Queue) RetryDeadLetters(ctx context.Context, ownerID string) (int, error) {
	moved := 0
	err := q.Update(ctx, func(items []models.PendingItem) ([]models.PendingItem, error) {
		moved = 0
		var dead []models.DeadLetter
		if _, err := store.GetJSON(ctx, q.kv, store.DeadLetterKey, &dead); err != nil {
			return nil, err
		}
		queued := make(map[string]bool, len(items))
		for _, it := range items {
			queued[it.LocalID] = true
		}
		keep := dead[:0]
		for _, d := range dead {
			if ownerID != "" && d.Item.OwnerID() != ownerID {
				keep = append(keep, d)
				continue
			}
			if !queued[d.Item.LocalID] {
				it := d.Item
				it.RetryCount = 0
				items = append(items, it)
				queued[it.LocalID] = true
				moved++
			}
		}
		if err := store.SetJSON(ctx, q.kv, store.DeadLetterKey, keep); err != nil {
			return nil, err
		}
		return items, nil
	})
	if err != nil {
		return 0, err
	}
	if moved > 0 {
		logging.Info("Requeued dead letters", map[string]interface{}{"count": moved, "owner_id": ownerID})
	}
	return moved, nil
}
