// Package editor applies the grid widget's row-level create, edit and
// remove payloads to a collection, normalizing identifiers and scalar
// types on the way in and out.
package editor

import (
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"grid-tools/internal/filter"
	"grid-tools/internal/grid"
	"grid-tools/internal/plan"
	"grid-tools/internal/result"
	"grid-tools/internal/schema"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Supported action verbs.
const (
	ActionCreate = "create"
	ActionEdit   = "edit"
	ActionRemove = "remove"
)

// Processor handles one editor request against one collection.
type Processor struct {
	col grid.Collection
	fs  *schema.FieldSchema
}

// New builds an editor processor. The schema may be nil, in which case
// date coercion falls back to a field-name heuristic.
func New(col grid.Collection, fs *schema.FieldSchema) *Processor {
	return &Processor{col: col, fs: fs}
}

// Apply dispatches one editor payload. idList is the out-of-band
// comma-separated row-id list for edit and remove.
//
// An unsupported action or a structurally unusable payload returns an
// error (a caller mistake); failures of the store itself come back as
// an {"error": message} body so the widget can display them.
func (p *Processor) Apply(payload map[string]any, idList string) (map[string]any, error) {
	action, _ := payload["action"].(string)
	switch action {
	case ActionCreate:
		return p.create(payload)
	case ActionEdit:
		return p.edit(payload, idList)
	case ActionRemove:
		return p.remove(idList)
	default:
		return nil, fmt.Errorf("unsupported editor action: %q", action)
	}
}

func (p *Processor) create(payload map[string]any) (map[string]any, error) {
	data := dataMap(payload)
	fields, ok := data["0"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("create payload must carry row data under key \"0\"")
	}

	id, err := p.col.Insert(p.preprocess(fields))
	if err != nil {
		return errorBody(err), nil
	}
	row, err := p.fetch(id)
	if err != nil {
		return errorBody(err), nil
	}
	return map[string]any{"data": []map[string]any{row}}, nil
}

func (p *Processor) edit(payload map[string]any, idList string) (map[string]any, error) {
	ids := splitIDs(idList)
	if len(ids) == 0 {
		return nil, fmt.Errorf("edit requires at least one document id")
	}
	data := dataMap(payload)

	rows := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		fields, ok := data[id].(map[string]any)
		if !ok {
			// The widget may submit ids it has no changes for; skip.
			continue
		}
		if err := p.col.UpdateOne(id, p.preprocess(fields)); err != nil {
			return errorBody(err), nil
		}
		row, err := p.fetch(id)
		if err != nil {
			return errorBody(err), nil
		}
		if row != nil {
			rows = append(rows, row)
		}
	}
	return map[string]any{"data": rows}, nil
}

func (p *Processor) remove(idList string) (map[string]any, error) {
	ids := splitIDs(idList)
	if len(ids) == 0 {
		return nil, fmt.Errorf("remove requires at least one document id")
	}
	for _, id := range ids {
		if err := p.col.DeleteOne(id); err != nil {
			return errorBody(err), nil
		}
	}
	return map[string]any{}, nil
}

// preprocess readies submitted fields for storage: nils are dropped so
// they never overwrite stored values, embedded JSON strings become
// structured values, and date-typed fields parse into instants.
func (p *Processor) preprocess(fields map[string]any) map[string]any {
	doc := make(map[string]any, len(fields))
	for key, value := range fields {
		if value == nil {
			continue
		}
		if s, ok := value.(string); ok {
			value = p.coerceString(key, s)
		}
		doc[key] = value
	}
	return doc
}

func (p *Processor) coerceString(key, s string) any {
	if p.isDateField(key) {
		if t, err := parseInstant(s); err == nil {
			return t
		}
	}
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var parsed any
		if err := json.UnmarshalFromString(trimmed, &parsed); err == nil {
			return parsed
		}
	}
	return s
}

// isDateField prefers the schema declaration; without one the original
// widget convention applies: field names ending in date, time or at.
func (p *Processor) isDateField(key string) bool {
	if p.fs != nil {
		if p.fs.TypeOf(p.fs.ResolveAlias(key)) == schema.TypeDate {
			return true
		}
	}
	lowered := strings.ToLower(key)
	return strings.HasSuffix(lowered, "date") ||
		strings.HasSuffix(lowered, "time") ||
		strings.HasSuffix(lowered, "at")
}

func parseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// fetch reads one document back for the response. A missing document
// yields nil, not an error: drivers report zero-matched, not failure.
func (p *Processor) fetch(id string) (map[string]any, error) {
	one := 1
	docs, err := p.col.Query(
		filter.Leaf(plan.IDField, filter.OpEqual, id),
		nil, 0, &one, nil,
	)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return result.Normalize(docs[0]), nil
}

func dataMap(payload map[string]any) map[string]any {
	if data, ok := payload["data"].(map[string]any); ok {
		return data
	}
	return map[string]any{}
}

func splitIDs(idList string) []string {
	var ids []string
	for _, id := range strings.Split(idList, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func errorBody(err error) map[string]any {
	return map[string]any{"error": err.Error()}
}
