// Package db provides SQLite connection management for the local durable store.
package db

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var namespacePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// DB wraps the sql.DB for a single store namespace.
type DB struct {
	*sql.DB
	Path string
}

// Open opens (creating if needed) the SQLite file backing one namespace and
// brings its schema up to date. Each namespace lives in its own file so a
// large write in one cannot block or corrupt another.
// The database is opened with:
// - WAL mode for concurrent reads/writes
// - a busy timeout so writers wait instead of failing
func Open(dataDir, namespace string) (*DB, error) {
	if !namespacePattern.MatchString(namespace) {
		return nil, fmt.Errorf("invalid namespace %q", namespace)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, namespace+".db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't support multiple writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA synchronous=NORMAL;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	m := NewMigrator(db, migrationFiles, "migrations")
	if err := m.Initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}
	if err := m.Up(); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{DB: db, Path: dbPath}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
