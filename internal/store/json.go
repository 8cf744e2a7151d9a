package store

import (
	"context"
	"encoding/json"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/logging"
)

// GetJSON decodes key into dst. A missing key and a corrupt value both
// report false; a corrupt value is logged and otherwise treated as absent.
// Only storage failures are returned as errors.
func GetJSON(ctx context.Context, kv KV, key string, dst interface{}) (bool, error) {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		logging.Warn("Discarding corrupt store entry", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
			"bytes": len(raw),
		})
		return false, nil
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, kv KV, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(errors.ErrInvalid, "encode "+key, err)
	}
	return kv.Set(ctx, key, raw)
}
