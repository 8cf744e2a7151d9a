package store

import (
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/logging"
)

// Namespace names. Each is a separate file on disk.
const (
	NamespacePending = "pending-queue"
	NamespaceRecords = "gym-records"
	NamespaceMeta    = "meta"
)

// Store groups the namespaces the application uses.
type Store struct {
	Pending KV
	Records KV
	Meta    KV

	closers []func() error
}

// Open opens every namespace under dataDir.
func Open(dataDir string) (*Store, error) {
	s := &Store{}
	for _, ns := range []struct {
		name string
		dst  *KV
	}{
		{NamespacePending, &s.Pending},
		{NamespaceRecords, &s.Records},
		{NamespaceMeta, &s.Meta},
	} {
		kv, err := OpenKV(dataDir, ns.name)
		if err != nil {
			s.Close()
			return nil, err
		}
		*ns.dst = kv
		s.closers = append(s.closers, kv.Close)
	}

	logging.Debug("Local store opened", map[string]interface{}{"data_dir": dataDir})
	return s, nil
}

// NewMemoryStore returns a Store whose namespaces live in memory.
func NewMemoryStore() *Store {
	return &Store{Pending: NewMemory(), Records: NewMemory(), Meta: NewMemory()}
}

// Close closes all opened namespaces, returning the first error.
func (s *Store) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}
