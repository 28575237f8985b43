package mapstorage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

type taskOp int

const (
	taskCreate taskOp = iota + 1
	taskUpdate
	taskDelete
)

// task is a pending change to a single entity.
type task[V Entity] struct {
	op    taskOp
	value V
	// expected is the stored version the change was based on. Unused for
	// creates.
	expected int
}

// Transaction buffers changes to a Storage until Commit. Reads observe the
// transaction's own pending changes. A Transaction is safe for concurrent use,
// but is intended to be used by a single request.
type Transaction[V Entity] struct {
	storage *Storage[V]
	tasks   map[string]*task[V]
	// order of first modification, so that changes are applied
	// deterministically
	order      []string
	bulkDelete []Criteria
	closed     bool
	mu         sync.Mutex
}

func newTransaction[V Entity](s *Storage[V]) *Transaction[V] {
	return &Transaction[V]{
		storage: s,
		tasks:   map[string]*task[V]{},
	}
}

// Schema returns the schema of the transaction's storage.
func (tx *Transaction[V]) Schema() *Schema[V] {
	return tx.storage.schema
}

func (tx *Transaction[V]) setTask(id string, t *task[V]) {
	if _, ok := tx.tasks[id]; !ok {
		tx.order = append(tx.order, id)
	}
	tx.tasks[id] = t
}

func (tx *Transaction[V]) removeTask(id string) {
	delete(tx.tasks, id)
	for i, oid := range tx.order {
		if oid == id {
			tx.order = append(tx.order[:i], tx.order[i+1:]...)
			return
		}
	}
}

// bulkDeleted reports whether v matches any pending bulk delete.
func (tx *Transaction[V]) bulkDeleted(v V) (bool, error) {
	for _, c := range tx.bulkDelete {
		ok, err := Match(tx.storage.schema, c, v)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// readStored reads the entity from the backend, hiding entities which match
// a pending bulk delete. The second return value reports whether the stored
// entity was hidden by a bulk delete.
func (tx *Transaction[V]) readStored(ctx context.Context, id string) (V, bool, error) {
	var zero V
	v, err := tx.storage.backend.Read(ctx, id)
	if err != nil {
		return zero, false, err
	}
	deleted, err := tx.bulkDeleted(v)
	if err != nil {
		return zero, false, err
	}
	if deleted {
		return v, true, ErrNotFound
	}
	return v, false, nil
}

// Create stages a new entity. If the entity has no ID a random UUID is
// assigned. The returned value is a copy of the staged entity carrying the
// version it has once committed, so it can be updated after Commit.
func (tx *Transaction[V]) Create(ctx context.Context, v V) (V, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	var zero V
	if tx.closed {
		return zero, ErrTransactionClosed
	}
	v, err := tx.storage.schema.Clone(v)
	if err != nil {
		return zero, err
	}
	meta := v.Metadata()
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if t, ok := tx.tasks[meta.ID]; ok {
		if t.op != taskDelete {
			return zero, fmt.Errorf("%w: %s %s", ErrDuplicate, tx.storage.schema.Name, meta.ID)
		}
		// re-creating an entity deleted in this transaction replaces it
		meta.Version = t.expected + 1
		tx.tasks[meta.ID] = &task[V]{op: taskUpdate, value: v, expected: t.expected}
		return tx.storage.schema.Clone(v)
	}
	stored, hidden, err := tx.readStored(ctx, meta.ID)
	switch {
	case err == nil:
		return zero, fmt.Errorf("%w: %s %s", ErrDuplicate, tx.storage.schema.Name, meta.ID)
	case errors.Is(err, ErrNotFound) && hidden:
		expected := stored.Metadata().Version
		meta.Version = expected + 1
		tx.setTask(meta.ID, &task[V]{op: taskUpdate, value: v, expected: expected})
	case errors.Is(err, ErrNotFound):
		meta.Version = 1
		tx.setTask(meta.ID, &task[V]{op: taskCreate, value: v})
	default:
		return zero, fmt.Errorf("couldn't check for existing %s: %v", tx.storage.schema.Name, err)
	}
	return tx.storage.schema.Clone(v)
}

// Read returns a copy of the entity with the given ID, or ErrNotFound.
func (tx *Transaction[V]) Read(ctx context.Context, id string) (V, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	var zero V
	if tx.closed {
		return zero, ErrTransactionClosed
	}
	if t, ok := tx.tasks[id]; ok {
		if t.op == taskDelete {
			return zero, ErrNotFound
		}
		return tx.storage.schema.Clone(t.value)
	}
	v, _, err := tx.readStored(ctx, id)
	if err != nil {
		return zero, err
	}
	return v, nil
}

// Exists reports whether an entity with the given ID is visible in the
// transaction.
func (tx *Transaction[V]) Exists(ctx context.Context, id string) (bool, error) {
	_, err := tx.Read(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Update stages a full replacement of the entity. The entity's Version must
// be the version it was read with. Commit fails with
// ErrConcurrentModification if the stored version has changed since.
func (tx *Transaction[V]) Update(ctx context.Context, v V) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.closed {
		return ErrTransactionClosed
	}
	v, err := tx.storage.schema.Clone(v)
	if err != nil {
		return err
	}
	id := v.Metadata().ID
	if t, ok := tx.tasks[id]; ok {
		if t.op == taskDelete {
			return fmt.Errorf("%w: %s %s", ErrNotFound, tx.storage.schema.Name, id)
		}
		t.value = v
		return nil
	}
	if _, _, err := tx.readStored(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: %s %s", ErrNotFound, tx.storage.schema.Name, id)
		}
		return fmt.Errorf("couldn't read %s %s: %v", tx.storage.schema.Name, id, err)
	}
	tx.setTask(id, &task[V]{op: taskUpdate, value: v, expected: v.Metadata().Version})
	return nil
}

// Delete stages the removal of the entity with the given ID and reports
// whether it existed.
func (tx *Transaction[V]) Delete(ctx context.Context, id string) (bool, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.closed {
		return false, ErrTransactionClosed
	}
	if t, ok := tx.tasks[id]; ok {
		switch t.op {
		case taskCreate:
			tx.removeTask(id)
		case taskUpdate:
			tx.tasks[id] = &task[V]{op: taskDelete, expected: t.expected}
		case taskDelete:
			return false, nil
		}
		return true, nil
	}
	v, _, err := tx.readStored(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("couldn't read %s %s: %v", tx.storage.schema.Name, id, err)
	}
	tx.setTask(id, &task[V]{op: taskDelete, expected: v.Metadata().Version})
	return true, nil
}

// DeleteMatching stages the removal of every entity matching c and returns
// the number of entities visible in the transaction which matched.
func (tx *Transaction[V]) DeleteMatching(ctx context.Context, c Criteria) (int, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	matched, err := tx.Query(ctx, Where(c))
	if err != nil {
		return 0, err
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.closed {
		return 0, ErrTransactionClosed
	}
	for _, id := range append([]string(nil), tx.order...) {
		t := tx.tasks[id]
		if t.op == taskDelete {
			continue
		}
		ok, err := Match(tx.storage.schema, c, t.value)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		if t.op == taskCreate {
			tx.removeTask(id)
		} else {
			tx.tasks[id] = &task[V]{op: taskDelete, expected: t.expected}
		}
	}
	tx.bulkDelete = append(tx.bulkDelete, c)
	return len(matched), nil
}

// clean reports whether the transaction has no pending changes.
func (tx *Transaction[V]) clean() bool {
	return len(tx.tasks) == 0 && len(tx.bulkDelete) == 0
}

// Query returns copies of the entities matching qp, including the
// transaction's pending changes.
func (tx *Transaction[V]) Query(ctx context.Context, qp QueryParameters) ([]V, error) {
	if err := qp.Criteria.Validate(); err != nil {
		return nil, err
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.closed {
		return nil, ErrTransactionClosed
	}
	if tx.clean() {
		return tx.storage.backend.Query(ctx, qp)
	}
	stored, err := tx.storage.backend.Query(ctx, qp.Unpaged())
	if err != nil {
		return nil, err
	}
	var result []V
	for _, v := range stored {
		if _, ok := tx.tasks[v.Metadata().ID]; ok {
			continue
		}
		deleted, err := tx.bulkDeleted(v)
		if err != nil {
			return nil, err
		}
		if !deleted {
			result = append(result, v)
		}
	}
	for _, id := range tx.order {
		t := tx.tasks[id]
		if t.op == taskDelete {
			continue
		}
		ok, err := Match(tx.storage.schema, qp.Criteria, t.value)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		v, err := tx.storage.schema.Clone(t.value)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return SortAndPage(tx.storage.schema, qp, result)
}

// Count returns the number of entities matching c, including the
// transaction's pending changes.
func (tx *Transaction[V]) Count(ctx context.Context, c Criteria) (int, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	tx.mu.Lock()
	if tx.closed {
		tx.mu.Unlock()
		return 0, ErrTransactionClosed
	}
	if tx.clean() {
		defer tx.mu.Unlock()
		return tx.storage.backend.Count(ctx, c)
	}
	tx.mu.Unlock()
	vs, err := tx.Query(ctx, Where(c))
	if err != nil {
		return 0, err
	}
	return len(vs), nil
}

// changes converts the pending tasks and bulk deletes into backend changes.
func (tx *Transaction[V]) changes(ctx context.Context) ([]Change[V], error) {
	var changes []Change[V]
	if len(tx.bulkDelete) > 0 {
		matched, err := tx.storage.backend.Query(ctx, Where(Or(tx.bulkDelete...)))
		if err != nil {
			return nil, fmt.Errorf("couldn't resolve bulk delete: %v", err)
		}
		for _, v := range matched {
			meta := v.Metadata()
			if _, ok := tx.tasks[meta.ID]; ok {
				continue
			}
			changes = append(changes, Change[V]{
				Op: OpDelete, ID: meta.ID, ExpectedVersion: meta.Version})
		}
	}
	for _, id := range tx.order {
		t := tx.tasks[id]
		switch t.op {
		case taskCreate:
			t.value.Metadata().Version = 1
			changes = append(changes, Change[V]{Op: OpCreate, ID: id, Value: t.value})
		case taskUpdate:
			t.value.Metadata().Version = t.expected + 1
			changes = append(changes, Change[V]{
				Op: OpUpdate, ID: id, Value: t.value, ExpectedVersion: t.expected})
		case taskDelete:
			changes = append(changes, Change[V]{
				Op: OpDelete, ID: id, ExpectedVersion: t.expected})
		}
	}
	return changes, nil
}

// Commit atomically applies the pending changes. The transaction is closed
// afterwards, whether or not Commit succeeds.
func (tx *Transaction[V]) Commit(ctx context.Context) error {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "Commit")
	defer span.End()
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.closed {
		return ErrTransactionClosed
	}
	tx.closed = true
	name := tx.storage.schema.Name
	changes, err := tx.changes(ctx)
	if err != nil {
		rollbacksTotal.WithLabelValues(name).Inc()
		return err
	}
	if len(changes) > 0 {
		if err := tx.storage.backend.Apply(ctx, changes); err != nil {
			rollbacksTotal.WithLabelValues(name).Inc()
			if errors.Is(err, ErrConcurrentModification) {
				conflictsTotal.WithLabelValues(name).Inc()
			}
			return fmt.Errorf("couldn't commit %s changes: %w", name, err)
		}
	}
	commitsTotal.WithLabelValues(name).Inc()
	return nil
}

// Rollback discards pending changes and closes the transaction. It is safe
// to call Rollback after Commit.
func (tx *Transaction[V]) Rollback() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.closed {
		return
	}
	tx.closed = true
	tx.tasks = nil
	tx.order = nil
	tx.bulkDelete = nil
	rollbacksTotal.WithLabelValues(tx.storage.schema.Name).Inc()
}

// Unique returns ErrDuplicate if an entity other than the one with the given
// ID matches c. The what argument describes the conflicting value in the
// error.
func (tx *Transaction[V]) Unique(ctx context.Context, c Criteria, id, what string) error {
	vs, err := tx.Query(ctx, Where(c))
	if err != nil {
		return err
	}
	for _, v := range vs {
		if v.Metadata().ID != id {
			return fmt.Errorf("%w: %s %s", ErrDuplicate, tx.storage.schema.Name, what)
		}
	}
	return nil
}
