// Package result reshapes stored documents into the response rows the
// grid widget consumes: the primary identifier moves to the widget's
// row-id key and every date or identifier value becomes a stable
// string, recursively through nested objects and arrays.
package result

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"grid-tools/internal/plan"
)

// RowID is the response key the widget uses to track rows.
const RowID = "DT_RowId"

// Normalize converts one stored document into a response row. The
// input is not modified.
func Normalize(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}
	row := make(map[string]any, len(doc))
	for key, value := range doc {
		if key == plan.IDField {
			row[RowID] = identifierString(value)
			continue
		}
		row[key] = normalizeValue(value)
	}
	return row
}

func normalizeValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		nested := make(map[string]any, len(v))
		for key, inner := range v {
			nested[key] = normalizeValue(inner)
		}
		return nested
	case []any:
		items := make([]any, len(v))
		for i, inner := range v {
			items[i] = normalizeValue(inner)
		}
		return items
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case jsoniter.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	default:
		return v
	}
}

// identifierString renders the primary identifier in response-safe
// form regardless of its stored type.
func identifierString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
