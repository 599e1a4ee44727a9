package console

import (
	"fmt"
	"strconv"
	"time"
)

const (
	// NullText is the display text of a NULL value.
	NullText = "null"
	// MissingText is the display text of a column absent from a row.
	MissingText = "undefined"
	// EmptyMessage is shown for a successful result without rows.
	EmptyMessage = "No results found"
)

// ViewKind selects how the result panel is drawn.
type ViewKind int

const (
	ViewNone ViewKind = iota
	ViewError
	ViewEmpty
	ViewTable
)

// View is the projection of a result for display.
type View struct {
	Kind       ViewKind
	Busy       bool
	Message    string
	Headers    []string
	Rows       [][]string
	Mismatched []int
	CanExport  bool
}

// Project derives the view for a result and execution state.
func Project(result *QueryResult, state ExecutionState) View {
	v := View{Busy: state == Executing}
	if result == nil {
		return v
	}

	if !result.Success {
		v.Kind = ViewError
		v.Message = result.Error
		if v.Message == "" {
			v.Message = DefaultErrorMessage
		}
		return v
	}

	if len(result.Data) == 0 {
		v.Kind = ViewEmpty
		v.Message = EmptyMessage
		return v
	}

	v.Kind = ViewTable
	v.CanExport = true
	v.Headers = result.Columns()
	v.Rows = make([][]string, len(result.Data))
	for i, row := range result.Data {
		cells := make([]string, len(v.Headers))
		for j, col := range v.Headers {
			if val, ok := row.Get(col); ok {
				cells[j] = DisplayValue(val)
			} else {
				cells[j] = MissingText
			}
		}
		v.Rows[i] = cells
		if !row.sameKeys(v.Headers) {
			v.Mismatched = append(v.Mismatched, i)
		}
	}
	return v
}

// DisplayValue formats a value for a table cell.
func DisplayValue(v any) string {
	if v == nil {
		return NullText
	}
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.Format(time.RFC3339)
	case map[string]any, []any:
		data, err := marshalJSON(val, "")
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
