package mapstorage

import "errors"

var (
	// ErrNotFound is returned when the requested entity doesn't exist.
	ErrNotFound = errors.New("entity not found")
	// ErrDuplicate is returned when creating an entity with an ID which is
	// already in use.
	ErrDuplicate = errors.New("duplicate entity ID")
	// ErrConcurrentModification is returned by Commit when an entity was
	// changed by another transaction after it was read.
	ErrConcurrentModification = errors.New("concurrent modification")
	// ErrTransactionClosed is returned when using a transaction after Commit or
	// Rollback.
	ErrTransactionClosed = errors.New("transaction closed")
	// ErrUnknownField is returned when criteria reference a field which is not
	// searchable.
	ErrUnknownField = errors.New("unknown searchable field")
	// ErrInvalidCriteria is returned for malformed criteria.
	ErrInvalidCriteria = errors.New("invalid criteria")
)
