// Package mapstorage implements a transactional key/value storage
// abstraction with optimistic locking and criteria based querying, backed by
// pluggable storage backends.
package mapstorage

import (
	"encoding/json"
	"fmt"
)

const pkgName = "github.com/uselagoon/keycloak-authz/internal/mapstorage"

// Meta holds the storage metadata of an entity. It is embedded in every
// stored entity type.
type Meta struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
}

// Metadata returns a pointer to the receiver, which allows any struct
// embedding Meta to satisfy Entity.
func (m *Meta) Metadata() *Meta {
	return m
}

// Entity is a value which can be stored in a map storage.
type Entity interface {
	Metadata() *Meta
}

// Field identifies a searchable field of an entity.
type Field string

// FieldFunc extracts the values of a searchable field from an entity. Single
// valued fields return a one element slice, unset fields return nil.
// Supported value types are string, bool, and the integer types.
type FieldFunc[V Entity] func(V) []any

// Schema describes how a particular entity type is stored and searched.
type Schema[V Entity] struct {
	// Name of the entity type. Backends use it to name tables and keys.
	Name string
	// New returns a new zero value entity.
	New func() V
	// Fields maps searchable fields to their extractors.
	Fields map[Field]FieldFunc[V]
}

// Values returns the values of the given field for v.
func (s *Schema[V]) Values(v V, f Field) ([]any, error) {
	fn, ok := s.Fields[f]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, s.Name, f)
	}
	return fn(v), nil
}

// Clone returns a deep copy of v by round-tripping it through JSON, which is
// also the encoding every backend uses for persistence.
func (s *Schema[V]) Clone(v V) (V, error) {
	data, err := s.Encode(v)
	if err != nil {
		var zero V
		return zero, err
	}
	return s.Decode(data)
}

// Encode marshals v for persistence.
func (s *Schema[V]) Encode(v V) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("couldn't marshal %s: %v", s.Name, err)
	}
	return data, nil
}

// Decode unmarshals data into a new entity.
func (s *Schema[V]) Decode(data []byte) (V, error) {
	v := s.New()
	if err := json.Unmarshal(data, v); err != nil {
		var zero V
		return zero, fmt.Errorf("couldn't unmarshal %s: %v", s.Name, err)
	}
	return v, nil
}

// Strings is a helper for FieldFuncs which converts a string slice to a
// slice of values.
func Strings(ss []string) []any {
	values := make([]any, 0, len(ss))
	for _, s := range ss {
		values = append(values, s)
	}
	return values
}

// String is a helper for FieldFuncs returning a single string value. Empty
// strings are treated as unset.
func String(s string) []any {
	if s == "" {
		return nil
	}
	return []any{s}
}
