// Package store provides the namespaced local key-value store that holds the
// pending queue, cached records and migration metadata across restarts.
package store

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/db"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
)

// KV is an asynchronous-safe key-value namespace.
type KV interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key; absent keys are not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists keys with the given prefix in ascending order.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// SQLiteKV is a KV backed by one SQLite file.
type SQLiteKV struct {
	db        *db.DB
	namespace string
}

// OpenKV opens the namespace file under dataDir.
func OpenKV(dataDir, namespace string) (*SQLiteKV, error) {
	conn, err := db.Open(dataDir, namespace)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "open namespace "+namespace, err)
	}
	return &SQLiteKV{db: conn, namespace: namespace}, nil
}

// Namespace returns the namespace name.
func (s *SQLiteKV) Namespace() string { return s.namespace }

func (s *SQLiteKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrDatabase, "get "+s.namespace+"/"+key, err)
	}
	return value, true, nil
}

func (s *SQLiteKV) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "set "+s.namespace+"/"+key, err)
	}
	return nil
}

func (s *SQLiteKV) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return errors.Wrap(errors.ErrDatabase, "delete "+s.namespace+"/"+key, err)
	}
	return nil
}

func (s *SQLiteKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key FROM kv WHERE substr(key, 1, ?) = ? ORDER BY key", len(prefix), prefix)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "keys "+s.namespace, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.Wrap(errors.ErrDatabase, "scan key", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteKV) Close() error {
	return s.db.Close()
}

// MemoryKV is an in-process KV, used in tests and as a scratch store.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty MemoryKV.
func NewMemory() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (m *MemoryKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryKV) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryKV) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
