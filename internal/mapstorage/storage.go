package mapstorage

import (
	"context"
	"errors"
	"fmt"
)

// Storage is the map storage of a single entity type.
type Storage[V Entity] struct {
	schema  *Schema[V]
	backend Backend[V]
}

// NewStorage returns a Storage for the given schema, persisted in backend.
func NewStorage[V Entity](schema *Schema[V], backend Backend[V]) *Storage[V] {
	return &Storage[V]{
		schema:  schema,
		backend: backend,
	}
}

// Schema returns the storage's entity schema.
func (s *Storage[V]) Schema() *Schema[V] {
	return s.schema
}

// Begin starts a new transaction.
func (s *Storage[V]) Begin() *Transaction[V] {
	return newTransaction(s)
}

// Read returns the committed entity with the given ID, outside of any
// transaction.
func (s *Storage[V]) Read(ctx context.Context, id string) (V, error) {
	return s.backend.Read(ctx, id)
}

// Query returns the committed entities matching qp, outside of any
// transaction.
func (s *Storage[V]) Query(ctx context.Context, qp QueryParameters) ([]V, error) {
	return s.backend.Query(ctx, qp)
}

// Count returns the number of committed entities matching c, outside of any
// transaction.
func (s *Storage[V]) Count(ctx context.Context, c Criteria) (int, error) {
	return s.backend.Count(ctx, c)
}

// Close closes the underlying backend.
func (s *Storage[V]) Close() error {
	return s.backend.Close()
}

// InTransaction runs fn in a new transaction, committing it if fn returns nil
// and rolling it back otherwise.
func (s *Storage[V]) InTransaction(
	ctx context.Context,
	fn func(*Transaction[V]) error,
) error {
	tx := s.Begin()
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit(ctx)
}

// Enlistable is a transaction which can be managed by a Manager.
type Enlistable interface {
	Commit(context.Context) error
	Rollback()
}

// Manager groups transactions over several storages so that they are
// committed or rolled back together.
//
// Each enlisted transaction commits atomically, but the group does not: if a
// later transaction fails to commit, earlier ones stay committed. Enlist the
// transactions most likely to conflict first.
type Manager struct {
	txs    []Enlistable
	closed bool
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Enlist adds tx to the managed set.
func (m *Manager) Enlist(tx Enlistable) {
	m.txs = append(m.txs, tx)
}

// Commit commits the enlisted transactions in order. On the first failure
// the remaining transactions are rolled back and the error is returned.
func (m *Manager) Commit(ctx context.Context) error {
	if m.closed {
		return ErrTransactionClosed
	}
	m.closed = true
	for i, tx := range m.txs {
		if err := tx.Commit(ctx); err != nil {
			for _, rest := range m.txs[i+1:] {
				rest.Rollback()
			}
			if i > 0 {
				return fmt.Errorf("partial commit, %d of %d transactions committed: %w",
					i, len(m.txs), err)
			}
			return err
		}
	}
	return nil
}

// Rollback rolls back every enlisted transaction.
func (m *Manager) Rollback() {
	if m.closed {
		return
	}
	m.closed = true
	for _, tx := range m.txs {
		tx.Rollback()
	}
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
