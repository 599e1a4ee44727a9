// Package console implements the query console core: the execution
// lifecycle, the normalized result model, view projection and export.
package console

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DefaultErrorMessage is shown when a failed execution carries no message.
const DefaultErrorMessage = "An error occurred while executing the query"

// Row is an ordered mapping from column name to value.
type Row struct {
	columns []string
	values  map[string]any
}

// NewRow builds a row from parallel column and value slices.
// A repeated column keeps its first position and takes the last value.
func NewRow(columns []string, values []any) Row {
	r := Row{
		columns: make([]string, 0, len(columns)),
		values:  make(map[string]any, len(columns)),
	}
	for i, col := range columns {
		var v any
		if i < len(values) {
			v = values[i]
		}
		r.Set(col, v)
	}
	return r
}

// Set assigns a value, appending the column if it is new.
func (r *Row) Set(column string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[column]; !ok {
		r.columns = append(r.columns, column)
	}
	r.values[column] = value
}

// Columns returns the row's keys in order.
func (r Row) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

// Get looks up a column.
func (r Row) Get(column string) (any, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Len returns the number of columns.
func (r Row) Len() int {
	return len(r.columns)
}

// MarshalJSON encodes the row as an object with keys in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalJSON(col, "")
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := marshalJSON(r.values[col], "")
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// sameKeys reports whether the row has exactly the given key set.
func (r Row) sameKeys(columns []string) bool {
	if len(r.columns) != len(columns) {
		return false
	}
	for _, col := range columns {
		if _, ok := r.values[col]; !ok {
			return false
		}
	}
	return true
}

// QueryResult is the normalized outcome of one execution.
// When Success is false Data is empty; when true Error is empty.
type QueryResult struct {
	Success bool
	Data    []Row
	Error   string
}

// Success builds a successful result.
func Success(rows []Row) *QueryResult {
	if rows == nil {
		rows = []Row{}
	}
	return &QueryResult{Success: true, Data: rows}
}

// Failure builds a failed result, falling back to DefaultErrorMessage.
func Failure(message string) *QueryResult {
	if message == "" {
		message = DefaultErrorMessage
	}
	return &QueryResult{Success: false, Data: []Row{}, Error: message}
}

// Normalize enforces the result invariants on a value produced elsewhere.
// A nil result is treated as a failure without a message.
func Normalize(r *QueryResult) *QueryResult {
	if r == nil {
		return Failure("")
	}
	if !r.Success {
		return Failure(r.Error)
	}
	return Success(r.Data)
}

// Columns returns the header set: the keys of the first row.
func (r *QueryResult) Columns() []string {
	if r == nil || len(r.Data) == 0 {
		return nil
	}
	return r.Data[0].Columns()
}

// RowCount returns the number of rows.
func (r *QueryResult) RowCount() int {
	if r == nil {
		return 0
	}
	return len(r.Data)
}

// Exportable reports whether the result can be copied or downloaded.
func (r *QueryResult) Exportable() bool {
	return r != nil && r.Success && len(r.Data) > 0
}

// SchemaMismatchError reports a row whose key set differs from the first row.
type SchemaMismatchError struct {
	Row      int
	Expected []string
	Got      []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("row %d has columns %v, expected %v", e.Row, e.Got, e.Expected)
}

// CheckHomogeneous verifies that every row has the first row's key set.
func (r *QueryResult) CheckHomogeneous() error {
	if r == nil {
		return nil
	}
	cols := r.Columns()
	for i, row := range r.Data {
		if !row.sameKeys(cols) {
			return &SchemaMismatchError{Row: i, Expected: cols, Got: row.Columns()}
		}
	}
	return nil
}

type resultJSON struct {
	Success bool    `json:"success"`
	Data    []Row   `json:"data"`
	Error   *string `json:"error"`
}

// MarshalJSON encodes the result with a null error on success.
func (r QueryResult) MarshalJSON() ([]byte, error) {
	out := resultJSON{Success: r.Success, Data: r.Data}
	if out.Data == nil {
		out.Data = []Row{}
	}
	if r.Error != "" {
		msg := r.Error
		out.Error = &msg
	}
	return marshalJSON(out, "")
}

// marshalJSON encodes v without escaping HTML characters, indenting
// nested values with indent when it is not empty.
func marshalJSON(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
