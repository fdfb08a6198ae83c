// Package schema declares the field layout a grid exposes over a
// collection: storage paths, semantic types and display aliases.
package schema

import (
	"fmt"
	"strings"
)

// FieldType is the closed set of semantic types a field can declare.
type FieldType string

const (
	TypeText       FieldType = "text"
	TypeNumber     FieldType = "number"
	TypeDate       FieldType = "date"
	TypeBoolean    FieldType = "boolean"
	TypeArray      FieldType = "array"
	TypeObject     FieldType = "object"
	TypeIdentifier FieldType = "identifier"
)

var validTypes = map[FieldType]struct{}{
	TypeText:       {},
	TypeNumber:     {},
	TypeDate:       {},
	TypeBoolean:    {},
	TypeArray:      {},
	TypeObject:     {},
	TypeIdentifier: {},
}

// ErrInvalidSchema reports a declaration problem. It is a configuration
// error: callers are expected to build schemas at startup and abort.
type ErrInvalidSchema struct {
	Path   string
	Reason string
}

func (e *ErrInvalidSchema) Error() string {
	return fmt.Sprintf("invalid field declaration for %q: %s", e.Path, e.Reason)
}

// FieldDeclaration describes one field. Alias defaults to the last
// dot-segment of StoragePath when left empty.
type FieldDeclaration struct {
	StoragePath string    `json:"path"`
	Type        FieldType `json:"type"`
	Alias       string    `json:"alias,omitempty"`
}

// FieldSchema is an ordered, path-deduplicated set of declarations with
// derived lookup tables. Immutable after New; safe to share across
// requests.
type FieldSchema struct {
	fields      []FieldDeclaration
	aliasToPath map[string]string
	pathToType  map[string]FieldType
}

// New validates and registers the given declarations in order.
// A duplicate storage path keeps the first declaration; an alias
// collision keeps the last registration.
func New(decls ...FieldDeclaration) (*FieldSchema, error) {
	s := &FieldSchema{
		aliasToPath: make(map[string]string, len(decls)),
		pathToType:  make(map[string]FieldType, len(decls)),
	}
	for _, d := range decls {
		if err := s.register(d); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *FieldSchema) register(d FieldDeclaration) error {
	if d.StoragePath == "" {
		return &ErrInvalidSchema{Path: d.StoragePath, Reason: "empty storage path"}
	}
	if _, ok := validTypes[d.Type]; !ok {
		return &ErrInvalidSchema{Path: d.StoragePath, Reason: fmt.Sprintf("unknown semantic type %q", d.Type)}
	}
	if _, dup := s.pathToType[d.StoragePath]; dup {
		return nil
	}
	if d.Alias == "" {
		segments := strings.Split(d.StoragePath, ".")
		d.Alias = segments[len(segments)-1]
	}
	s.fields = append(s.fields, d)
	s.aliasToPath[d.Alias] = d.StoragePath
	s.pathToType[d.StoragePath] = d.Type
	return nil
}

// ResolveAlias maps a display alias to its storage path. Unregistered
// names come back unchanged so callers may address fields by path
// directly.
func (s *FieldSchema) ResolveAlias(name string) string {
	if s == nil {
		return name
	}
	if path, ok := s.aliasToPath[name]; ok {
		return path
	}
	return name
}

// TypeOf returns the declared semantic type for a storage path.
// Undeclared paths are plain text.
func (s *FieldSchema) TypeOf(path string) FieldType {
	if s == nil {
		return TypeText
	}
	if t, ok := s.pathToType[path]; ok {
		return t
	}
	return TypeText
}

// Fields returns the declarations in registration order.
func (s *FieldSchema) Fields() []FieldDeclaration {
	if s == nil {
		return nil
	}
	out := make([]FieldDeclaration, len(s.fields))
	copy(out, s.fields)
	return out
}
