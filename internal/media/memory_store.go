package media

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process ObjectStore for tests and offline runs.
type MemoryStore struct {
	mu          sync.Mutex
	objects     map[string][]byte
	failUploads map[string]error
	failRemove  error
	uploads     int
	signs       int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects:     make(map[string][]byte),
		failUploads: make(map[string]error),
	}
}

func objectKey(bucket, path string) string { return bucket + "/" + path }

// Upload stores a copy of data.
func (m *MemoryStore) Upload(ctx context.Context, bucket, path string, data []byte, contentType string, upsert bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.uploads++
	for substr, err := range m.failUploads {
		if strings.Contains(path, substr) {
			return err
		}
	}
	key := objectKey(bucket, path)
	if _, exists := m.objects[key]; exists && !upsert {
		return fmt.Errorf("object %s already exists", key)
	}
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

// Remove deletes paths, ignoring missing ones.
func (m *MemoryStore) Remove(ctx context.Context, bucket string, paths []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRemove != nil {
		return m.failRemove
	}
	for _, p := range paths {
		delete(m.objects, objectKey(bucket, p))
	}
	return nil
}

func (m *MemoryStore) PublicURL(bucket, path string) string {
	return "memory://public/" + objectKey(bucket, path)
}

func (m *MemoryStore) SignedURL(ctx context.Context, bucket, path string, expiresIn time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signs++
	return fmt.Sprintf("memory://signed/%s?expires=%d&n=%d", objectKey(bucket, path), int(expiresIn.Seconds()), m.signs), nil
}

// FailUploads makes every upload whose path contains substr fail with err.
// A nil err clears the rule.
func (m *MemoryStore) FailUploads(substr string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failUploads, substr)
		return
	}
	m.failUploads[substr] = err
}

// FailRemove makes Remove return err.
func (m *MemoryStore) FailRemove(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRemove = err
}

// Object returns the stored bytes at bucket/path.
func (m *MemoryStore) Object(bucket, path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[objectKey(bucket, path)]
	return data, ok
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// UploadCount returns the number of Upload calls.
func (m *MemoryStore) UploadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploads
}

// SignCount returns the number of SignedURL calls.
func (m *MemoryStore) SignCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signs
}
