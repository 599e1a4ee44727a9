// Package database handles the SQLite connection behind the query console.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Connection wraps a database connection with metadata.
type Connection struct {
	DB       *sql.DB
	Path     string
	ReadOnly bool
	mu       sync.Mutex
}

// OpenOptions configures how a database connection is opened.
type OpenOptions struct {
	ReadOnly    bool
	BusyTimeout int // milliseconds
}

// DefaultOpenOptions returns sensible defaults for opening a database.
func DefaultOpenOptions() OpenOptions {
	return OpenOptions{
		ReadOnly:    false,
		BusyTimeout: 5000, // 5 seconds
	}
}

// DSN builds the modernc.org/sqlite data source name for path.
func DSN(path string, opts OpenOptions) string {
	if opts.ReadOnly {
		// Read-only connections cannot switch the journal mode.
		return fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(%d)&_pragma=foreign_keys(ON)",
			path, opts.BusyTimeout)
	}
	return fmt.Sprintf("file:%s?mode=rwc&_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		path, opts.BusyTimeout)
}

// Open opens a database connection with the given options.
func Open(ctx context.Context, path string, opts OpenOptions) (*Connection, error) {
	db, err := sql.Open("sqlite", DSN(path, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool for SQLite
	db.SetMaxOpenConns(1) // SQLite doesn't handle concurrent writes well
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0) // Don't close idle connections

	return &Connection{
		DB:       db,
		Path:     path,
		ReadOnly: opts.ReadOnly,
	}, nil
}

// Close closes the database connection.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// Execute runs a statement that doesn't return rows (INSERT, UPDATE, DELETE).
func (c *Connection) Execute(ctx context.Context, query string, args ...any) (sql.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.DB.ExecContext(ctx, query, args...)
}

// Query runs a query that returns rows.
func (c *Connection) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.DB.QueryContext(ctx, query, args...)
}

// Ping checks that the database answers.
func (c *Connection) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.DB.PingContext(ctx)
}
