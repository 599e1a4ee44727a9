package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/johan-st/query-console/internal/console"
)

// DefaultQueryTimeout bounds a single query when no timeout is configured.
const DefaultQueryTimeout = 30 * time.Second

// Service executes console queries against a SQLite connection.
type Service struct {
	conn    *Connection
	logger  *log.Logger
	timeout time.Duration
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Logger  *log.Logger
	Timeout time.Duration
}

// NewService creates a Service over conn.
func NewService(conn *Connection, opts ServiceOptions) *Service {
	s := &Service{
		conn:    conn,
		logger:  opts.Logger,
		timeout: opts.Timeout,
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	if s.timeout <= 0 {
		s.timeout = DefaultQueryTimeout
	}
	return s
}

// Execute implements console.Service. SQL errors become failed results
// carrying the driver's message.
func (s *Service) Execute(ctx context.Context, query string) (*console.QueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := Query(ctx, s.conn, query)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.logger.Warn("query timed out", "timeout", s.timeout)
			return console.Failure(fmt.Sprintf("query timed out after %s", s.timeout)), nil
		}
		if IsBusyError(err) {
			s.logger.Warn("database busy", "path", s.conn.Path, "error", err)
		} else {
			s.logger.Debug("query error", "error", err)
		}
		return console.Failure(err.Error()), nil
	}

	s.logger.Debug("query finished",
		"select", res.IsSelect,
		"rows", len(res.Rows),
		"duration", res.Duration)
	return console.Success(res.Rows), nil
}

// Ping reports whether the database is ready to serve queries.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.conn.Ping(ctx); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	return nil
}

// IsBusyError reports whether err comes from SQLite's own locking, which
// happens when another process holds a write lock on the file.
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED")
}

// Path returns the database file path.
func (s *Service) Path() string {
	return s.conn.Path
}
