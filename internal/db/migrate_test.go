// Package db tests for database migration management.
package db

import (
	"database/sql"
	"testing"
	"testing/fstest"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"m/V1__create_a.up.sql":   {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"m/V1__create_a.down.sql": {Data: []byte("DROP TABLE a;")},
		"m/V2__create_b.up.sql":   {Data: []byte("CREATE TABLE b (id INTEGER);")},
		"m/V2__create_b.down.sql": {Data: []byte("DROP TABLE b;")},
		"m/README.md":             {Data: []byte("ignored")},
		"m/Vx__bad.up.sql":        {Data: []byte("ignored")},
	}
}

// TestMigrator_Up verifies pending migrations apply in order.
func TestMigrator_Up(t *testing.T) {
	db := openMemory(t)
	m := NewMigrator(db, testMigrations(), "m")

	if err := m.Initialize(); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}

	version, err := m.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion() failed: %v", err)
	}
	if version != 2 {
		t.Errorf("CurrentVersion() = %d, want 2", version)
	}

	applied, err := m.GetAppliedMigrations()
	if err != nil {
		t.Fatalf("GetAppliedMigrations() failed: %v", err)
	}
	if len(applied) != 2 || applied[0].Description != "create_a" || len(applied[1].Checksum) != 64 {
		t.Errorf("applied = %+v", applied)
	}

	// Idempotent
	if err := m.Up(); err != nil {
		t.Fatalf("second Up() failed: %v", err)
	}
}

// TestMigrator_checksumMismatch verifies edited migrations are rejected.
func TestMigrator_checksumMismatch(t *testing.T) {
	db := openMemory(t)
	fsys := testMigrations()
	m := NewMigrator(db, fsys, "m")
	if err := m.Initialize(); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}

	fsys["m/V1__create_a.up.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE a (id TEXT);")}
	if err := m.Up(); err == nil {
		t.Error("Up() should fail when an applied migration changed")
	}
}

// TestMigrator_Down verifies the latest migration rolls back.
func TestMigrator_Down(t *testing.T) {
	db := openMemory(t)
	m := NewMigrator(db, testMigrations(), "m")
	if err := m.Initialize(); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}

	if err := m.Down(); err != nil {
		t.Fatalf("Down() failed: %v", err)
	}
	if v, _ := m.CurrentVersion(); v != 1 {
		t.Errorf("CurrentVersion() after Down = %d, want 1", v)
	}
	var name string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='b'").Scan(&name)
	if err != sql.ErrNoRows {
		t.Errorf("table b should be dropped, got err=%v", err)
	}

	if err := m.Down(); err != nil {
		t.Fatalf("second Down() failed: %v", err)
	}
	if err := m.Down(); err == nil {
		t.Error("Down() with nothing applied should fail")
	}
}

// TestMigrator_CurrentVersion_uninitialized verifies errors before Initialize.
func TestMigrator_CurrentVersion_uninitialized(t *testing.T) {
	m := NewMigrator(openMemory(t), testMigrations(), "m")
	if _, err := m.CurrentVersion(); err == nil {
		t.Error("CurrentVersion() should fail before Initialize()")
	}
}
