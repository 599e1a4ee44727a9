package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/johan-st/query-console/internal/console"
)

// Column names of the single row reported for statements without rows.
const (
	ColumnRowsAffected = "rows_affected"
	ColumnLastInsertID = "last_insert_id"
)

// Result holds the rows of one statement execution.
type Result struct {
	Columns      []string
	Rows         []console.Row
	RowsAffected int64
	LastInsertID int64
	Duration     time.Duration
	IsSelect     bool
}

var rowPrefixes = []string{"SELECT", "PRAGMA", "EXPLAIN", "WITH", "VALUES"}

// ReturnsRows reports whether a statement produces a result set, judged by
// its first keyword after leading comments or a RETURNING clause.
func ReturnsRows(query string) bool {
	trimmed := strings.ToUpper(skipLeadingComments(query))
	trimmed = strings.TrimLeft(trimmed, "(")
	for _, p := range rowPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return hasReturning(query)
}

// hasReturning looks for a bare RETURNING keyword outside of literals,
// quoted identifiers and comments.
func hasReturning(query string) bool {
	for i := 0; i < len(query); {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := strings.IndexByte(query[i+1:], c)
			if end < 0 {
				return false
			}
			i += end + 2
		case c == '[':
			end := strings.IndexByte(query[i+1:], ']')
			if end < 0 {
				return false
			}
			i += end + 2
		case strings.HasPrefix(query[i:], "--"):
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				return false
			}
			i += end + 1
		case strings.HasPrefix(query[i:], "/*"):
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				return false
			}
			i += end + 4
		case isWordByte(c):
			j := i
			for j < len(query) && isWordByte(query[j]) {
				j++
			}
			if strings.EqualFold(query[i:j], "RETURNING") {
				return true
			}
			i = j
		default:
			i++
		}
	}
	return false
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

func skipLeadingComments(query string) string {
	s := strings.TrimSpace(query)
	for {
		switch {
		case strings.HasPrefix(s, "--"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return ""
			}
			s = strings.TrimSpace(s[i+1:])
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s, "*/")
			if i < 0 {
				return ""
			}
			s = strings.TrimSpace(s[i+2:])
		default:
			return s
		}
	}
}

// Query executes a statement and returns its rows.
func Query(ctx context.Context, conn *Connection, query string, args ...any) (*Result, error) {
	start := time.Now()
	if ReturnsRows(query) {
		return executeSelect(ctx, conn, query, args, start)
	}
	return executeExec(ctx, conn, query, args, start)
}

// executeSelect runs a query that returns rows.
func executeSelect(ctx context.Context, conn *Connection, query string, args []any, start time.Time) (*Result, error) {
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	result := &Result{
		Columns:  columns,
		Rows:     make([]console.Row, 0),
		IsSelect: true,
	}

	for rows.Next() {
		// Create scan destinations
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		// Convert []byte to string for readability
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, console.NewRow(columns, values))
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	return result, nil
}

// executeExec runs a statement that modifies data and reports it as a
// single row.
func executeExec(ctx context.Context, conn *Connection, query string, args []any, start time.Time) (*Result, error) {
	sqlResult, err := conn.Execute(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Columns: []string{ColumnRowsAffected, ColumnLastInsertID},
	}
	result.RowsAffected, _ = sqlResult.RowsAffected()
	result.LastInsertID, _ = sqlResult.LastInsertId()
	result.Rows = []console.Row{
		console.NewRow(result.Columns, []any{result.RowsAffected, result.LastInsertID}),
	}
	result.Duration = time.Since(start)

	return result, nil
}
