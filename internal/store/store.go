// Package store is an in-memory document store with collection
// semantics: uuid-keyed JSON documents across hashed shards, B-Tree
// field indexes for equality and range lookups, and an optional
// inverted text index backing full-text search.
package store

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"grid-tools/internal/plan"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultNumShards is used when the caller does not size the store.
const DefaultNumShards = 16

type shard struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// Collection holds the documents of one named collection.
type Collection struct {
	name      string
	shards    []*shard
	numShards int
	indexes   *indexManager
	text      *textIndex
	textMu    sync.RWMutex
}

// NewCollection creates an empty collection with the given shard count.
func NewCollection(name string, numShards int) *Collection {
	if numShards <= 0 {
		numShards = DefaultNumShards
	}
	c := &Collection{
		name:      name,
		shards:    make([]*shard, numShards),
		numShards: numShards,
		indexes:   newIndexManager(),
	}
	for i := range c.shards {
		c.shards[i] = &shard{data: make(map[string][]byte)}
	}
	slog.Info("Collection initialized", "name", name, "num_shards", numShards)
	return c
}

func (c *Collection) shardFor(key string) *shard {
	h := fnv.New64a()
	h.Write([]byte(key))
	return c.shards[h.Sum64()%uint64(c.numShards)]
}

// Insert stores a new document. A missing or empty _id gets a
// generated uuid. The generated identifier is returned.
func (c *Collection) Insert(doc map[string]any) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("cannot insert a nil document")
	}
	id, _ := doc[plan.IDField].(string)
	if id == "" {
		id = uuid.New().String()
	}
	stored := make(map[string]any, len(doc)+1)
	for k, v := range doc {
		stored[k] = v
	}
	stored[plan.IDField] = id

	value, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}
	c.put(id, value)
	return id, nil
}

// UpdateOne merges the given fields into the identified document. A
// missing document is a no-op, matching driver zero-matched semantics.
func (c *Collection) UpdateOne(id string, fields map[string]any) error {
	s := c.shardFor(id)
	s.mu.Lock()
	existing, found := s.data[id]
	s.mu.Unlock()
	if !found {
		return nil
	}

	doc := decodeDocument(existing)
	if doc == nil {
		return fmt.Errorf("stored document %q is not a JSON object", id)
	}
	for k, v := range fields {
		if k == plan.IDField {
			continue
		}
		doc[k] = v
	}
	value, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal updated document: %w", err)
	}
	c.put(id, value)
	return nil
}

// DeleteOne removes the identified document. Missing ids are no-ops.
func (c *Collection) DeleteOne(id string) error {
	s := c.shardFor(id)
	s.mu.Lock()
	existing, found := s.data[id]
	if found {
		delete(s.data, id)
	}
	s.mu.Unlock()
	if !found {
		return nil
	}

	if doc := decodeDocument(existing); doc != nil {
		c.indexes.remove(id, doc)
		c.withTextIndex(func(t *textIndex) { t.remove(id, doc) })
	}
	slog.Debug("Document deleted", "collection", c.name, "id", id)
	return nil
}

// Get returns the decoded document for an id.
func (c *Collection) Get(id string) (map[string]any, bool) {
	s := c.shardFor(id)
	s.mu.RLock()
	value, found := s.data[id]
	s.mu.RUnlock()
	if !found {
		return nil, false
	}
	doc := decodeDocument(value)
	return doc, doc != nil
}

// put commits raw bytes and refreshes both index kinds.
func (c *Collection) put(id string, value []byte) {
	s := c.shardFor(id)
	s.mu.Lock()
	old, existed := s.data[id]
	s.data[id] = value
	s.mu.Unlock()

	var oldDoc map[string]any
	if existed {
		oldDoc = decodeDocument(old)
	}
	newDoc := decodeDocument(value)
	c.indexes.update(id, oldDoc, newDoc)
	c.withTextIndex(func(t *textIndex) {
		if oldDoc != nil {
			t.remove(id, oldDoc)
		}
		if newDoc != nil {
			t.add(id, newDoc)
		}
	})
	slog.Debug("Document stored", "collection", c.name, "id", id, "is_update", existed)
}

// snapshot returns the raw value of every document, or only the given
// candidate keys when a previous index pass narrowed the search.
func (c *Collection) snapshot(candidates []string) map[string][]byte {
	if candidates != nil {
		out := make(map[string][]byte, len(candidates))
		for _, key := range candidates {
			s := c.shardFor(key)
			s.mu.RLock()
			if value, found := s.data[key]; found {
				out[key] = value
			}
			s.mu.RUnlock()
		}
		return out
	}

	out := make(map[string][]byte)
	for _, s := range c.shards {
		s.mu.RLock()
		for key, value := range s.data {
			out[key] = value
		}
		s.mu.RUnlock()
	}
	return out
}

// Size returns the number of stored documents.
func (c *Collection) Size() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += len(s.data)
		s.mu.RUnlock()
	}
	return total
}

// CreateIndex builds a B-Tree index on a field path and backfills it.
func (c *Collection) CreateIndex(field string) {
	if c.indexes.has(field) {
		return
	}
	c.indexes.create(field)
	count := 0
	for id, value := range c.snapshot(nil) {
		if doc := decodeDocument(value); doc != nil {
			c.indexes.update(id, nil, doc)
			count++
		}
	}
	slog.Info("Index backfilled", "collection", c.name, "field", field, "documents", count)
}

// HasIndex reports whether a field index exists.
func (c *Collection) HasIndex(field string) bool {
	return c.indexes.has(field)
}

// ListIndexes names the indexed field paths.
func (c *Collection) ListIndexes() []string {
	return c.indexes.list()
}

// EnsureTextIndex builds (or rebuilds) the inverted text index over the
// given field paths and backfills it from stored documents.
func (c *Collection) EnsureTextIndex(fields ...string) {
	t := newTextIndex(fields)
	for id, value := range c.snapshot(nil) {
		if doc := decodeDocument(value); doc != nil {
			t.add(id, doc)
		}
	}
	c.textMu.Lock()
	c.text = t
	c.textMu.Unlock()
	slog.Info("Text index ready", "collection", c.name, "fields", fields)
}

// HasTextIndex is the capability probe the query pipeline consults
// before choosing a full-text strategy.
func (c *Collection) HasTextIndex() bool {
	c.textMu.RLock()
	defer c.textMu.RUnlock()
	return c.text != nil
}

func (c *Collection) withTextIndex(f func(*textIndex)) {
	c.textMu.RLock()
	t := c.text
	c.textMu.RUnlock()
	if t != nil {
		f(t)
	}
}

// decodeDocument unmarshals stored bytes, converting JSON numbers to
// float64 so index and comparison behavior stays uniform.
func decodeDocument(value []byte) map[string]any {
	var doc map[string]any
	if err := json.Unmarshal(value, &doc); err != nil {
		return nil
	}
	return doc
}

// Manager hands out collections by name, creating them on first use.
type Manager struct {
	mu          sync.RWMutex
	collections map[string]*Collection
	numShards   int
}

// NewManager creates a collection manager.
func NewManager(numShards int) *Manager {
	return &Manager{
		collections: make(map[string]*Collection),
		numShards:   numShards,
	}
}

// Collection returns the named collection, creating it when absent.
func (m *Manager) Collection(name string) *Collection {
	m.mu.RLock()
	col, found := m.collections[name]
	m.mu.RUnlock()
	if found {
		return col
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Double-check: another goroutine may have created it meanwhile.
	if col, found = m.collections[name]; found {
		return col
	}
	col = NewCollection(name, m.numShards)
	m.collections[name] = col
	return col
}

// Exists reports whether a collection has been created.
func (m *Manager) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, found := m.collections[name]
	return found
}

// List names every collection.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	return names
}
