// Package testutil provides test utilities for query-console tests.
package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/johan-st/query-console/internal/fixtures"
	_ "modernc.org/sqlite"
)

// PatientDB creates a temporary database seeded with the demo patients.
// Returns the path and a cleanup function.
func PatientDB(t *testing.T) (string, func()) {
	t.Helper()

	dbPath, cleanup := EmptyDB(t)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer db.Close()

	if _, err := fixtures.Seed(context.Background(), db); err != nil {
		t.Fatalf("failed to seed patients: %v", err)
	}

	return dbPath, cleanup
}

// EmptyDB creates a new empty database for testing.
func EmptyDB(t *testing.T) (string, func()) {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "empty.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("failed to create empty db: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Fatalf("failed to create empty db: %v", err)
	}
	db.Close()

	cleanup := func() {
		os.Remove(dbPath)
		os.Remove(dbPath + "-shm")
		os.Remove(dbPath + "-wal")
	}

	return dbPath, cleanup
}

// MustExec executes SQL against the database at path or fails the test.
func MustExec(t *testing.T, dbPath string, query string, args ...any) {
	t.Helper()

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("MustExec failed: %v\nQuery: %s", err, query)
	}
}

// OutputCapture is a helper for capturing CLI output.
type OutputCapture struct {
	Out bytes.Buffer
	Err bytes.Buffer
}

// Stdout returns captured stdout as string.
func (c *OutputCapture) Stdout() string {
	return c.Out.String()
}

// Stderr returns captured stderr as string.
func (c *OutputCapture) Stderr() string {
	return c.Err.String()
}
