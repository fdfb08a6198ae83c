// Package plan turns a parsed grid request into the sort, paging and
// projection stages of a query.
package plan

import (
	"strings"

	"grid-tools/internal/request"
	"grid-tools/internal/schema"
)

// IDField is the primary identifier key of every stored document.
const IDField = "_id"

// SortKey is one resolved ordering criterion.
type SortKey struct {
	Field     string `json:"field"`
	Direction string `json:"direction"` // "asc" or "desc"
}

// Page holds the resolved paging window. A nil Limit means unbounded;
// a zero Limit means zero rows.
type Page struct {
	Skip  int
	Limit *int
}

// Sort resolves the request's order list against its column list.
// Invalid column indices and non-orderable columns are skipped. When
// nothing usable remains the defaultField (if any) sorts ascending. The
// primary identifier is always appended ascending as a stable-paging
// tiebreaker unless the explicit keys already include it.
func Sort(view *request.View, fs *schema.FieldSchema, defaultField string, trace func(event string, fields map[string]any)) []SortKey {
	var keys []SortKey
	idSorted := false
	for _, sk := range view.SortKeys {
		if sk.ColumnIndex < 0 || sk.ColumnIndex >= len(view.Columns) {
			continue
		}
		col := view.Columns[sk.ColumnIndex]
		if col.Data == "" || !col.Orderable {
			continue
		}
		path := fs.ResolveAlias(col.Data)
		keys = append(keys, SortKey{Field: path, Direction: string(sk.Direction)})
		if path == IDField {
			idSorted = true
		}
	}

	if len(keys) == 0 && defaultField != "" {
		keys = append(keys, SortKey{Field: fs.ResolveAlias(defaultField), Direction: string(request.Ascending)})
	}
	if !idSorted {
		keys = append(keys, SortKey{Field: IDField, Direction: string(request.Ascending)})
	}

	if trace != nil {
		trace("sort_plan", map[string]any{"keys": keys})
	}
	return keys
}

// Paging computes the skip/limit window. The unbounded sentinel yields
// a nil limit; an explicit zero stays zero.
func Paging(view *request.View) Page {
	p := Page{Skip: view.Start}
	if p.Skip < 0 {
		p.Skip = 0
	}
	if !view.Unbounded() {
		limit := view.Length
		p.Limit = &limit
	}
	return p
}

// Projection lists the storage paths to return. The primary identifier
// is always included, and every parent prefix of a nested path is added
// so partial parent objects survive the projection.
func Projection(view *request.View, fs *schema.FieldSchema) []string {
	seen := map[string]bool{IDField: true}
	fields := []string{IDField}

	add := func(path string) {
		if path == "" || seen[path] {
			return
		}
		seen[path] = true
		fields = append(fields, path)
	}

	for _, data := range view.RequestedColumns() {
		path := fs.ResolveAlias(data)
		segments := strings.Split(path, ".")
		for i := 1; i < len(segments); i++ {
			add(strings.Join(segments[:i], "."))
		}
		add(path)
	}
	return fields
}
