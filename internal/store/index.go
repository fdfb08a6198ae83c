package store

import (
	"log/slog"
	"reflect"
	"strconv"
	"sync"

	"github.com/google/btree"
	jsoniter "github.com/json-iterator/go"
)

const btreeDegree = 32

// numericKey and stringKey are the B-Tree items: one indexed value and
// the ids of every document carrying it.
type numericKey struct {
	value float64
	ids   map[string]struct{}
}

type stringKey struct {
	value string
	ids   map[string]struct{}
}

func numericLess(a, b numericKey) bool { return a.value < b.value }
func stringLess(a, b stringKey) bool   { return a.value < b.value }

// fieldIndex keeps one tree per value family so mixed-type fields stay
// searchable.
type fieldIndex struct {
	numericTree *btree.BTreeG[numericKey]
	stringTree  *btree.BTreeG[stringKey]
}

func newFieldIndex() *fieldIndex {
	return &fieldIndex{
		numericTree: btree.NewG(btreeDegree, numericLess),
		stringTree:  btree.NewG(btreeDegree, stringLess),
	}
}

// indexManager owns every field index of one collection. Field names
// are dot-separated storage paths.
type indexManager struct {
	mu      sync.RWMutex
	indexes map[string]*fieldIndex
}

func newIndexManager() *indexManager {
	return &indexManager{indexes: make(map[string]*fieldIndex)}
}

func (im *indexManager) create(field string) {
	im.mu.Lock()
	defer im.mu.Unlock()
	if _, exists := im.indexes[field]; !exists {
		im.indexes[field] = newFieldIndex()
		slog.Info("B-Tree index created", "field", field)
	}
}

func (im *indexManager) has(field string) bool {
	im.mu.RLock()
	defer im.mu.RUnlock()
	_, exists := im.indexes[field]
	return exists
}

func (im *indexManager) list() []string {
	im.mu.RLock()
	defer im.mu.RUnlock()
	fields := make([]string, 0, len(im.indexes))
	for field := range im.indexes {
		fields = append(fields, field)
	}
	return fields
}

func (im *indexManager) add(idx *fieldIndex, id string, value any) {
	if f, ok := asFloat64(value); ok {
		key := numericKey{value: f}
		item, found := idx.numericTree.Get(key)
		if !found {
			item = numericKey{value: f, ids: make(map[string]struct{})}
		}
		item.ids[id] = struct{}{}
		idx.numericTree.ReplaceOrInsert(item)
	} else if s, ok := value.(string); ok {
		key := stringKey{value: s}
		item, found := idx.stringTree.Get(key)
		if !found {
			item = stringKey{value: s, ids: make(map[string]struct{})}
		}
		item.ids[id] = struct{}{}
		idx.stringTree.ReplaceOrInsert(item)
	}
}

func (im *indexManager) del(idx *fieldIndex, id string, value any) {
	if f, ok := asFloat64(value); ok {
		if item, found := idx.numericTree.Get(numericKey{value: f}); found {
			delete(item.ids, id)
			if len(item.ids) == 0 {
				idx.numericTree.Delete(item)
			} else {
				idx.numericTree.ReplaceOrInsert(item)
			}
		}
	} else if s, ok := value.(string); ok {
		if item, found := idx.stringTree.Get(stringKey{value: s}); found {
			delete(item.ids, id)
			if len(item.ids) == 0 {
				idx.stringTree.Delete(item)
			} else {
				idx.stringTree.ReplaceOrInsert(item)
			}
		}
	}
}

// update refreshes every index touched by a document change. Paths are
// resolved through nested objects.
func (im *indexManager) update(id string, oldDoc, newDoc map[string]any) {
	im.mu.Lock()
	defer im.mu.Unlock()
	if len(im.indexes) == 0 {
		return
	}
	for field, idx := range im.indexes {
		oldVal, oldOk := valueAtPath(oldDoc, field)
		newVal, newOk := valueAtPath(newDoc, field)
		// Decoded values can be arrays or objects, which == panics on.
		if oldOk && newOk && reflect.DeepEqual(oldVal, newVal) {
			continue
		}
		if oldOk {
			im.del(idx, id, oldVal)
		}
		if newOk {
			im.add(idx, id, newVal)
		}
	}
}

func (im *indexManager) remove(id string, doc map[string]any) {
	im.mu.Lock()
	defer im.mu.Unlock()
	if doc == nil || len(im.indexes) == 0 {
		return
	}
	for field, idx := range im.indexes {
		if value, ok := valueAtPath(doc, field); ok {
			im.del(idx, id, value)
		}
	}
}

// lookup finds the ids carrying an exact value on an indexed field.
func (im *indexManager) lookup(field string, value any) ([]string, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()

	idx, exists := im.indexes[field]
	if !exists {
		return nil, false
	}

	var ids map[string]struct{}
	if f, ok := asFloat64(value); ok {
		if item, found := idx.numericTree.Get(numericKey{value: f}); found {
			ids = item.ids
		}
	} else if s, ok := value.(string); ok {
		if item, found := idx.stringTree.Get(stringKey{value: s}); found {
			ids = item.ids
		}
	}
	return setToSlice(ids), true
}

// lookupRange scans an indexed field between optional bounds.
func (im *indexManager) lookupRange(field string, low, high any, lowInclusive, highInclusive bool) ([]string, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()

	idx, exists := im.indexes[field]
	if !exists {
		return nil, false
	}

	numeric := false
	if low != nil {
		_, numeric = asFloat64(low)
	} else if high != nil {
		_, numeric = asFloat64(high)
	}

	matched := make(map[string]struct{})
	if numeric {
		var lowKey, highKey numericKey
		hasLow, hasHigh := low != nil, high != nil
		if hasLow {
			lowKey.value, _ = asFloat64(low)
		}
		if hasHigh {
			highKey.value, _ = asFloat64(high)
		}
		start := lowKey
		if !hasLow {
			min, ok := idx.numericTree.Min()
			if !ok {
				return nil, true
			}
			start = min
		}
		idx.numericTree.AscendGreaterOrEqual(start, func(item numericKey) bool {
			if hasHigh && (item.value > highKey.value || (!highInclusive && item.value == highKey.value)) {
				return false
			}
			if hasLow && !lowInclusive && item.value == lowKey.value {
				return true
			}
			for id := range item.ids {
				matched[id] = struct{}{}
			}
			return true
		})
	} else {
		var lowKey, highKey stringKey
		hasLow, hasHigh := low != nil, high != nil
		if hasLow {
			lowKey.value, _ = low.(string)
		}
		if hasHigh {
			highKey.value, _ = high.(string)
		}
		start := lowKey
		if !hasLow {
			min, ok := idx.stringTree.Min()
			if !ok {
				return nil, true
			}
			start = min
		}
		idx.stringTree.AscendGreaterOrEqual(start, func(item stringKey) bool {
			if hasHigh && (item.value > highKey.value || (!highInclusive && item.value == highKey.value)) {
				return false
			}
			if hasLow && !lowInclusive && item.value == lowKey.value {
				return true
			}
			for id := range item.ids {
				matched[id] = struct{}{}
			}
			return true
		})
	}
	return setToSlice(matched), true
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// asFloat64 converts the numeric shapes JSON decoding produces, plus
// numeric strings. The index trees and the scan comparator must agree
// on what counts as a number, or creating an index would change which
// documents a filter matches.
func asFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case jsoniter.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
