package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kvImplementations(t *testing.T) map[string]KV {
	t.Helper()
	sqlite, err := OpenKV(t.TempDir(), "test-ns")
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	return map[string]KV{
		"sqlite": sqlite,
		"memory": NewMemory(),
	}
}

// TestKV_roundTrip verifies Get/Set/Delete semantics for every implementation.
func TestKV_roundTrip(t *testing.T) {
	ctx := context.Background()
	for name, kv := range kvImplementations(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := kv.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, kv.Set(ctx, "a", []byte("1")))
			require.NoError(t, kv.Set(ctx, "a", []byte("2")))
			v, ok, err := kv.Get(ctx, "a")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "2", string(v))

			require.NoError(t, kv.Delete(ctx, "a"))
			require.NoError(t, kv.Delete(ctx, "a"), "deleting an absent key is not an error")
			_, ok, _ = kv.Get(ctx, "a")
			assert.False(t, ok)
		})
	}
}

// TestKV_Keys verifies prefix listing is ordered and exact.
func TestKV_Keys(t *testing.T) {
	ctx := context.Background()
	for name, kv := range kvImplementations(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"headers:2024-02", "headers:2024-01", "record:2024-01-15", "headers_x"} {
				require.NoError(t, kv.Set(ctx, k, []byte("{}")))
			}
			keys, err := kv.Keys(ctx, "headers:")
			require.NoError(t, err)
			assert.Equal(t, []string{"headers:2024-01", "headers:2024-02"}, keys)

			all, err := kv.Keys(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 4)
		})
	}
}

// TestSQLiteKV_concurrentWriters verifies writers on one namespace serialize.
func TestSQLiteKV_concurrentWriters(t *testing.T) {
	ctx := context.Background()
	kv, err := OpenKV(t.TempDir(), "pending-queue")
	require.NoError(t, err)
	defer kv.Close()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, kv.Set(ctx, fmt.Sprintf("k%02d", n), []byte("v")))
		}(i)
	}
	wg.Wait()

	keys, err := kv.Keys(ctx, "k")
	require.NoError(t, err)
	assert.Len(t, keys, 25)
}

// TestGetJSON_corruptIsAbsent verifies corrupt entries read as absent.
func TestGetJSON_corruptIsAbsent(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	require.NoError(t, kv.Set(ctx, "bad", []byte("{not json")))

	var dst map[string]int
	ok, err := GetJSON(ctx, kv, "bad", &dst)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, SetJSON(ctx, kv, "good", map[string]int{"n": 1}))
	ok, err = GetJSON(ctx, kv, "good", &dst)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, dst["n"])
}

// TestStore_Open verifies namespaces are isolated.
func TestStore_Open(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Pending.Set(ctx, "k", []byte("pending")))
	_, ok, err := s.Records.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
