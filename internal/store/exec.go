package store

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"grid-tools/internal/filter"
	"grid-tools/internal/plan"
)

// Count returns how many documents match the expression. An empty
// expression counts everything.
func (c *Collection) Count(expr filter.Expr) (int, error) {
	candidates, narrowed, remaining := c.analyze(expr)
	count := 0
	var snap map[string][]byte
	if narrowed {
		snap = c.snapshot(candidates)
	} else {
		snap = c.snapshot(nil)
	}
	for id, value := range snap {
		doc := decodeDocument(value)
		if doc == nil {
			slog.Warn("Skipping undecodable document", "collection", c.name, "id", id)
			continue
		}
		if c.matchNode(doc, remaining) {
			count++
		}
	}
	return count, nil
}

// Query executes one match/sort/page/project plan. A nil limit means
// unbounded; a zero limit returns no rows.
func (c *Collection) Query(expr filter.Expr, sortKeys []plan.SortKey, skip int, limit *int, projection []string) ([]map[string]any, error) {
	if limit != nil && *limit == 0 {
		return []map[string]any{}, nil
	}

	candidates, narrowed, remaining := c.analyze(expr)
	var snap map[string][]byte
	if narrowed {
		slog.Debug("Query narrowed by index", "collection", c.name, "candidates", len(candidates))
		snap = c.snapshot(candidates)
	} else {
		snap = c.snapshot(nil)
	}

	results := make([]map[string]any, 0, len(snap))
	for id, value := range snap {
		doc := decodeDocument(value)
		if doc == nil {
			slog.Warn("Skipping undecodable document", "collection", c.name, "id", id)
			continue
		}
		if c.matchNode(doc, remaining) {
			results = append(results, doc)
		}
	}

	sortDocuments(results, sortKeys)

	if skip < 0 {
		skip = 0
	}
	if skip > len(results) {
		skip = len(results)
	}
	results = results[skip:]
	if limit != nil && *limit < len(results) {
		results = results[:*limit]
	}

	if len(projection) > 0 {
		for i, doc := range results {
			results[i] = projectDocument(doc, projection)
		}
	}
	return results, nil
}

// analyze splits an expression into an index-answerable part and a
// remainder that must be evaluated per document. When no index applies
// the whole expression is the remainder.
func (c *Collection) analyze(expr filter.Expr) (candidates []string, narrowed bool, remaining filter.Expr) {
	if len(expr) == 0 {
		return nil, false, expr
	}

	if conds, ok := expr[filter.KeyAnd].([]any); ok {
		var idSets [][]string
		var leftover []any
		for _, raw := range conds {
			cond, isMap := raw.(map[string]any)
			if !isMap {
				leftover = append(leftover, raw)
				continue
			}
			if ids, ok := c.condCandidates(cond); ok {
				idSets = append(idSets, ids)
				// Text conditions stay in the remainder: the posting
				// union is a superset that needs verification.
				if _, isText := cond[filter.KeyText]; isText {
					leftover = append(leftover, cond)
				}
				continue
			}
			leftover = append(leftover, cond)
		}
		if len(idSets) == 0 {
			return nil, false, expr
		}
		remaining = filter.Expr{}
		if len(leftover) > 0 {
			remaining = filter.Expr{filter.KeyAnd: leftover}
		}
		return intersect(idSets), true, remaining
	}

	if ids, ok := c.condCandidates(expr); ok {
		if _, isText := expr[filter.KeyText]; isText {
			return ids, true, expr
		}
		return ids, true, filter.Expr{}
	}
	return nil, false, expr
}

// condCandidates answers a single condition from an index, when one
// exists for it.
func (c *Collection) condCandidates(cond map[string]any) ([]string, bool) {
	if textNode, ok := cond[filter.KeyText].(map[string]any); ok {
		raw, _ := textNode["search"].(string)
		var ids []string
		matched := false
		c.withTextIndex(func(t *textIndex) {
			ids = t.candidates(parseTextQuery(raw))
			matched = true
		})
		return ids, matched
	}

	field, fieldOk := cond[filter.KeyField].(string)
	op, opOk := cond[filter.KeyOp].(string)
	if !fieldOk || !opOk || !c.indexes.has(field) {
		return nil, false
	}
	value := cond[filter.KeyValue]

	switch op {
	case filter.OpEqual:
		return resolved(c.indexes.lookup(field, value))
	case filter.OpGreaterThan:
		return resolved(c.indexes.lookupRange(field, value, nil, false, false))
	case filter.OpGreaterThanOrEqual:
		return resolved(c.indexes.lookupRange(field, value, nil, true, false))
	case filter.OpLessThan:
		return resolved(c.indexes.lookupRange(field, nil, value, false, false))
	case filter.OpLessThanOrEqual:
		return resolved(c.indexes.lookupRange(field, nil, value, false, true))
	case filter.OpBetween:
		bounds, ok := value.([]any)
		if !ok || len(bounds) != 2 {
			return nil, false
		}
		return resolved(c.indexes.lookupRange(field, bounds[0], bounds[1], true, true))
	default:
		return nil, false
	}
}

// intersect folds candidate id sets into the ids present in all of
// them. The result is never nil so callers can distinguish "narrowed to
// nothing" from "not narrowed".
func intersect(idSets [][]string) []string {
	counts := make(map[string]int)
	for _, ids := range idSets {
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			counts[id]++
		}
	}
	out := make([]string, 0)
	for id, n := range counts {
		if n == len(idSets) {
			out = append(out, id)
		}
	}
	return out
}

func resolved(ids []string, ok bool) ([]string, bool) {
	if !ok {
		return nil, false
	}
	return ids, true
}

// matchNode evaluates one expression node against a decoded document.
// An empty node matches.
func (c *Collection) matchNode(doc map[string]any, expr filter.Expr) bool {
	if len(expr) == 0 {
		return true
	}

	if conds, ok := expr[filter.KeyAnd].([]any); ok {
		for _, raw := range conds {
			cond, isMap := raw.(map[string]any)
			if !isMap || !c.matchNode(doc, cond) {
				return false
			}
		}
		return true
	}

	if conds, ok := expr[filter.KeyOr].([]any); ok {
		for _, raw := range conds {
			if cond, isMap := raw.(map[string]any); isMap && c.matchNode(doc, cond) {
				return true
			}
		}
		return false
	}

	if cond, ok := expr["not"].(map[string]any); ok {
		return !c.matchNode(doc, cond)
	}

	if textNode, ok := expr[filter.KeyText].(map[string]any); ok {
		raw, _ := textNode["search"].(string)
		matched := false
		c.withTextIndex(func(t *textIndex) {
			matched = t.matches(doc, parseTextQuery(raw))
		})
		return matched
	}

	return c.matchLeaf(doc, expr)
}

func (c *Collection) matchLeaf(doc map[string]any, cond filter.Expr) bool {
	field, fieldOk := cond[filter.KeyField].(string)
	op, opOk := cond[filter.KeyOp].(string)
	if !fieldOk || !opOk {
		slog.Warn("Ignoring malformed filter condition", "condition", cond)
		return false
	}
	value := cond[filter.KeyValue]

	docValue, exists := valueAtPath(doc, field)

	switch op {
	case filter.OpEqual:
		return exists && compareValues(docValue, value) == 0
	case filter.OpNotEqual:
		return !exists || compareValues(docValue, value) != 0
	case filter.OpGreaterThan:
		return exists && compareValues(docValue, value) > 0
	case filter.OpGreaterThanOrEqual:
		return exists && compareValues(docValue, value) >= 0
	case filter.OpLessThan:
		return exists && compareValues(docValue, value) < 0
	case filter.OpLessThanOrEqual:
		return exists && compareValues(docValue, value) <= 0
	case filter.OpLike:
		if !exists {
			return false
		}
		needle, _ := value.(string)
		return containsFold(stringForm(docValue), needle)
	case filter.OpRegex:
		if !exists {
			return false
		}
		pattern, _ := value.(string)
		matched, err := regexp.MatchString("(?i)"+pattern, stringForm(docValue))
		if err != nil {
			slog.Warn("Invalid filter regex", "pattern", pattern, "error", err)
			return false
		}
		return matched
	case filter.OpBetween:
		bounds, ok := value.([]any)
		if !ok || len(bounds) != 2 || !exists {
			return false
		}
		return compareValues(docValue, bounds[0]) >= 0 && compareValues(docValue, bounds[1]) <= 0
	default:
		slog.Warn("Unsupported filter operator", "op", op)
		return false
	}
}

// containsFold reports case-insensitive substring containment. Callers
// pass non-string values through their printed form, so arrays and
// objects match on that rendering.
func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// compareValues orders two values: numerically when both sides convert
// the way the index trees do (numeric strings included), lexically on
// their string forms otherwise.
func compareValues(a, b any) int {
	if fa, okA := asFloat64(a); okA {
		if fb, okB := asFloat64(b); okB {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(stringForm(a), stringForm(b))
}

// stringForm renders a value for textual comparison. Instants use
// RFC 3339 so they collate chronologically against stored date strings.
func stringForm(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// sortDocuments orders in place by the given keys. Documents missing a
// key's field sort ahead of documents carrying it.
func sortDocuments(docs []map[string]any, keys []plan.SortKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, key := range keys {
			a, okA := valueAtPath(docs[i], key.Field)
			b, okB := valueAtPath(docs[j], key.Field)
			if !okA && !okB {
				continue
			}
			if !okA {
				return true
			}
			if !okB {
				return false
			}
			cmp := compareValues(a, b)
			if cmp == 0 {
				continue
			}
			if key.Direction == "desc" {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

// projectDocument copies only the listed storage paths. A path whose
// ancestor is already included is covered by the ancestor's subtree.
func projectDocument(doc map[string]any, fields []string) map[string]any {
	included := make(map[string]bool, len(fields))
	for _, f := range fields {
		included[f] = true
	}

	out := make(map[string]any, len(fields))
	for _, field := range fields {
		if ancestorIncluded(field, included) {
			continue
		}
		if value, ok := valueAtPath(doc, field); ok {
			setAtPath(out, field, value)
		}
	}
	return out
}

func ancestorIncluded(field string, included map[string]bool) bool {
	for idx := strings.LastIndexByte(field, '.'); idx > 0; idx = strings.LastIndexByte(field[:idx], '.') {
		if included[field[:idx]] {
			return true
		}
	}
	return false
}

// valueAtPath walks dot-separated segments through nested objects.
func valueAtPath(doc map[string]any, path string) (any, bool) {
	if doc == nil {
		return nil, false
	}
	current := any(doc)
	for _, segment := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func setAtPath(doc map[string]any, path string, value any) {
	segments := strings.Split(path, ".")
	current := doc
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[segment] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
}
