// Package chm implements an in-process map storage backend.
package chm

import (
	"context"
	"fmt"
	"sync"

	"github.com/uselagoon/keycloak-authz/internal/mapstorage"
)

type record struct {
	data    []byte
	version int
}

// Backend is a thread-safe, in-memory mapstorage.Backend. Entities are stored
// JSON encoded so that callers never share memory with the store.
type Backend[V mapstorage.Entity] struct {
	schema  *mapstorage.Schema[V]
	records map[string]record
	mu      sync.RWMutex
}

// New returns an empty Backend for the given schema.
func New[V mapstorage.Entity](schema *mapstorage.Schema[V]) *Backend[V] {
	return &Backend[V]{
		schema:  schema,
		records: map[string]record{},
	}
}

// NewStorage is a convenience function returning a mapstorage.Storage
// backed by a new in-memory Backend.
func NewStorage[V mapstorage.Entity](
	schema *mapstorage.Schema[V],
) *mapstorage.Storage[V] {
	return mapstorage.NewStorage(schema, New(schema))
}

func (b *Backend[V]) decode(r record) (V, error) {
	return b.schema.Decode(r.data)
}

// Read implements mapstorage.Backend.
func (b *Backend[V]) Read(_ context.Context, id string) (V, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.records[id]
	if !ok {
		var zero V
		return zero, mapstorage.ErrNotFound
	}
	return b.decode(r)
}

// matching returns every stored entity matching c.
func (b *Backend[V]) matching(c mapstorage.Criteria) ([]V, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var result []V
	for _, r := range b.records {
		v, err := b.decode(r)
		if err != nil {
			return nil, err
		}
		ok, err := mapstorage.Match(b.schema, c, v)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, v)
		}
	}
	return result, nil
}

// Query implements mapstorage.Backend.
func (b *Backend[V]) Query(
	_ context.Context,
	qp mapstorage.QueryParameters,
) ([]V, error) {
	if err := qp.Criteria.Validate(); err != nil {
		return nil, err
	}
	vs, err := b.matching(qp.Criteria)
	if err != nil {
		return nil, err
	}
	return mapstorage.SortAndPage(b.schema, qp, vs)
}

// Count implements mapstorage.Backend.
func (b *Backend[V]) Count(_ context.Context, c mapstorage.Criteria) (int, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	vs, err := b.matching(c)
	if err != nil {
		return 0, err
	}
	return len(vs), nil
}

// Apply implements mapstorage.Backend. All changes are validated before any
// is applied.
func (b *Backend[V]) Apply(_ context.Context, changes []mapstorage.Change[V]) error {
	encoded := make([][]byte, len(changes))
	for i, c := range changes {
		if c.Op == mapstorage.OpDelete {
			continue
		}
		data, err := b.schema.Encode(c.Value)
		if err != nil {
			return err
		}
		encoded[i] = data
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range changes {
		r, exists := b.records[c.ID]
		switch c.Op {
		case mapstorage.OpCreate:
			if exists {
				return fmt.Errorf("%w: %s %s", mapstorage.ErrDuplicate, b.schema.Name, c.ID)
			}
		case mapstorage.OpUpdate, mapstorage.OpDelete:
			if !exists || r.version != c.ExpectedVersion {
				return fmt.Errorf("%w: %s %s", mapstorage.ErrConcurrentModification,
					b.schema.Name, c.ID)
			}
		default:
			return fmt.Errorf("unknown change op %v", c.Op)
		}
	}
	for i, c := range changes {
		switch c.Op {
		case mapstorage.OpCreate, mapstorage.OpUpdate:
			b.records[c.ID] = record{data: encoded[i], version: c.Value.Metadata().Version}
		case mapstorage.OpDelete:
			delete(b.records, c.ID)
		}
	}
	return nil
}

// Close implements mapstorage.Backend.
func (b *Backend[V]) Close() error {
	return nil
}
