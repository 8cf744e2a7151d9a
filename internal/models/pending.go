// Package models provides data model definitions for the offline sync core.
package models

import (
	"encoding/json"
	"time"
)

// PendingType selects the sync strategy for a queued write.
type PendingType string

const (
	PendingMealRecord PendingType = "meal_record"
	PendingGymRecord  PendingType = "gym_record"
)

// Valid reports whether t is a known pending type.
func (t PendingType) Valid() bool {
	return t == PendingMealRecord || t == PendingGymRecord
}

// Payload keys the queue stamps onto every item.
const (
	FieldLocalID  = "localId"
	FieldClientID = "client_id"
	FieldUserID   = "user_id"
)

// PendingItem is a local mutation not yet acknowledged by the remote backend.
type PendingItem struct {
	LocalID    string                 `json:"localId"`
	Type       PendingType            `json:"type"`
	Data       map[string]interface{} `json:"data"`
	CreatedAt  time.Time              `json:"createdAt"`
	RetryCount int                    `json:"retryCount"`
}

// OwnerID returns the user the item was written for, or "" when unset.
func (p PendingItem) OwnerID() string {
	return p.String(FieldUserID)
}

// String returns Data[key] when it holds a string.
func (p PendingItem) String(key string) string {
	s, _ := p.Data[key].(string)
	return s
}

// Clone returns a copy whose Data map can be mutated independently.
func (p PendingItem) Clone() PendingItem {
	out := p
	out.Data = make(map[string]interface{}, len(p.Data))
	for k, v := range p.Data {
		out.Data[k] = v
	}
	return out
}

// Number coerces a JSON-ish numeric value to float64.
func Number(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}

// DeadLetter is an item removed from the auto-retry path after exhausting
// its retry budget. It is kept for inspection and manual requeue.
type DeadLetter struct {
	Item      PendingItem `json:"item"`
	DroppedAt time.Time   `json:"droppedAt"`
	LastError string      `json:"lastError,omitempty"`
}
