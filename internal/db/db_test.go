// Package db tests for database connection management.
package db

import (
	"os"
	"path/filepath"
	"testing"
)

// TestOpen verifies database opening with proper configuration.
func TestOpen(t *testing.T) {
	tmpDir := t.TempDir()

	db, err := Open(tmpDir, "pending-queue")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer db.Close()

	dbPath := filepath.Join(tmpDir, "pending-queue.db")
	if db.Path != dbPath {
		t.Errorf("Path = %q, want %q", db.Path, dbPath)
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}

	var walMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&walMode); err != nil {
		t.Fatalf("Failed to check WAL mode: %v", err)
	}
	if walMode != "wal" {
		t.Errorf("WAL mode not enabled, got: %s", walMode)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM kv").Scan(&count); err != nil {
		t.Errorf("kv table missing after Open(): %v", err)
	}
}

// TestOpen_namespacesAreSeparateFiles verifies namespace isolation on disk.
func TestOpen_namespacesAreSeparateFiles(t *testing.T) {
	tmpDir := t.TempDir()

	a, err := Open(tmpDir, "gym-records")
	if err != nil {
		t.Fatalf("Open(gym-records) failed: %v", err)
	}
	defer a.Close()
	b, err := Open(tmpDir, "pending-queue")
	if err != nil {
		t.Fatalf("Open(pending-queue) failed: %v", err)
	}
	defer b.Close()

	if _, err := a.Exec("INSERT INTO kv (key, value, updated_at) VALUES ('k', 'v', 1)"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	var count int
	if err := b.QueryRow("SELECT COUNT(*) FROM kv").Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("write to one namespace leaked into another: count = %d", count)
	}
}

// TestOpen_reopen verifies reopening does not re-run migrations.
func TestOpen_reopen(t *testing.T) {
	tmpDir := t.TempDir()

	db, err := Open(tmpDir, "meta")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := db.Exec("INSERT INTO kv (key, value, updated_at) VALUES ('k', 'v', 1)"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	db.Close()

	db, err = Open(tmpDir, "meta")
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer db.Close()

	var value string
	if err := db.QueryRow("SELECT value FROM kv WHERE key = 'k'").Scan(&value); err != nil {
		t.Fatalf("value lost after reopen: %v", err)
	}
}

// TestOpen_invalidNamespace verifies namespace validation.
func TestOpen_invalidNamespace(t *testing.T) {
	for _, ns := range []string{"", "../escape", "Upper", "a b"} {
		if db, err := Open(t.TempDir(), ns); err == nil {
			db.Close()
			t.Errorf("Open(%q) should fail", ns)
		}
	}
}
