package mapstorage

import "context"

// ChangeOp is the type of a change applied to a Backend.
type ChangeOp int

const (
	// OpCreate inserts a new entity.
	OpCreate ChangeOp = iota + 1
	// OpUpdate replaces an existing entity.
	OpUpdate
	// OpDelete removes an existing entity.
	OpDelete
)

func (o ChangeOp) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Change is a single modification of a Backend.
//
// For OpCreate and OpUpdate, Value carries the new entity with its Version
// already set to the new version. For OpUpdate and OpDelete,
// ExpectedVersion is the version the stored entity must have for the change
// to be applied.
type Change[V Entity] struct {
	Op              ChangeOp
	ID              string
	Value           V
	ExpectedVersion int
}

// Backend is a storage backend for a single entity type.
type Backend[V Entity] interface {
	// Read returns the entity with the given ID, or ErrNotFound.
	Read(ctx context.Context, id string) (V, error)
	// Query returns the entities matching qp, ordered and paged.
	Query(ctx context.Context, qp QueryParameters) ([]V, error)
	// Count returns the number of entities matching c.
	Count(ctx context.Context, c Criteria) (int, error)
	// Apply atomically applies all changes. It returns ErrDuplicate if a
	// created ID exists, and ErrConcurrentModification if an updated or
	// deleted entity is missing or has an unexpected version. In both cases
	// no change is applied.
	Apply(ctx context.Context, changes []Change[V]) error
	// Close releases any resources held by the backend.
	Close() error
}
