// Package request provides a read-only, defensively parsed view over
// the grid widget's server-side request payload. Missing or malformed
// fragments degrade to safe defaults; nothing here ever fails.
package request

import (
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

// UnboundedLength is the sentinel the widget sends for "no limit". It
// is distinct from zero, which means "return nothing".
const UnboundedLength = -1

// SortDirection mirrors the widget's order directions.
type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

// Column is one column descriptor from the request.
type Column struct {
	Data        string
	Searchable  bool
	Orderable   bool
	SearchValue string
	SearchRegex bool
}

// SortKey pairs a column index with a direction.
type SortKey struct {
	ColumnIndex int
	Direction   SortDirection
}

// View is the parsed snapshot of one grid request.
type View struct {
	Draw        int
	Start       int
	Length      int // UnboundedLength means no limit
	SearchValue string
	SearchRegex bool
	Columns     []Column
	SortKeys    []SortKey
}

// Parse builds a View from the decoded request body. Every accessor
// applies the defaults of a well-formed empty request: draw 1, start 0,
// unbounded length, no columns, no ordering.
func Parse(raw map[string]any) *View {
	v := &View{
		Draw:   1,
		Start:  0,
		Length: UnboundedLength,
	}
	if raw == nil {
		return v
	}

	if draw, ok := asInt(raw["draw"]); ok && draw > 0 {
		v.Draw = draw
	}
	if start, ok := asInt(raw["start"]); ok && start > 0 {
		v.Start = start
	}
	if length, ok := asInt(raw["length"]); ok && length >= 0 {
		v.Length = length
	}

	if searchMap, ok := raw["search"].(map[string]any); ok {
		v.SearchValue, _ = searchMap["value"].(string)
		v.SearchRegex, _ = searchMap["regex"].(bool)
	}

	if columns, ok := raw["columns"].([]any); ok {
		v.Columns = make([]Column, 0, len(columns))
		for _, entry := range columns {
			colMap, ok := entry.(map[string]any)
			if !ok {
				v.Columns = append(v.Columns, Column{})
				continue
			}
			col := Column{}
			col.Data, _ = colMap["data"].(string)
			col.Searchable = asBool(colMap["searchable"], true)
			col.Orderable = asBool(colMap["orderable"], true)
			if searchMap, ok := colMap["search"].(map[string]any); ok {
				col.SearchValue, _ = searchMap["value"].(string)
				col.SearchRegex, _ = searchMap["regex"].(bool)
			}
			v.Columns = append(v.Columns, col)
		}
	}

	if order, ok := raw["order"].([]any); ok {
		for _, entry := range order {
			orderMap, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			idx, ok := asInt(orderMap["column"])
			if !ok {
				continue
			}
			dir := Ascending
			if d, _ := orderMap["dir"].(string); d == string(Descending) {
				dir = Descending
			}
			v.SortKeys = append(v.SortKeys, SortKey{ColumnIndex: idx, Direction: dir})
		}
	}

	return v
}

// Unbounded reports whether the request asked for all rows.
func (v *View) Unbounded() bool {
	return v.Length == UnboundedLength
}

// RequestedColumns returns the data attribute of every column, in
// request order.
func (v *View) RequestedColumns() []string {
	paths := make([]string, 0, len(v.Columns))
	for _, col := range v.Columns {
		if col.Data != "" {
			paths = append(paths, col.Data)
		}
	}
	return paths
}

// SearchableColumns returns the data attribute of every searchable
// column, in request order.
func (v *View) SearchableColumns() []string {
	paths := make([]string, 0, len(v.Columns))
	for _, col := range v.Columns {
		if col.Searchable && col.Data != "" {
			paths = append(paths, col.Data)
		}
	}
	return paths
}

// asInt accepts the numeric shapes a JSON decode can produce, plus
// numeric strings, since form-encoded frontends send everything as
// text.
func asInt(value any) (int, bool) {
	switch n := value.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case jsoniter.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil {
			return int(f), true
		}
		return 0, false
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func asBool(value any, fallback bool) bool {
	switch b := value.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(b); err == nil {
			return parsed
		}
		return fallback
	default:
		return fallback
	}
}
