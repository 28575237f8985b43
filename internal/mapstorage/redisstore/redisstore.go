// Package redisstore implements a Redis map storage backend.
//
// Entities are stored JSON encoded at <prefix>:<name>:<id>, and the IDs of
// all stored entities in a set at <prefix>:<name>:ids. Criteria are evaluated
// client side.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/uselagoon/keycloak-authz/internal/mapstorage"
	"go.opentelemetry.io/otel"
)

const pkgName = "github.com/uselagoon/keycloak-authz/internal/mapstorage/redisstore"

// Backend is a Redis mapstorage.Backend.
type Backend[V mapstorage.Entity] struct {
	schema *mapstorage.Schema[V]
	client *redis.Client
	prefix string
}

// New returns a Backend storing entities of the given schema under the given
// key prefix. The client is shared and not closed by the Backend.
func New[V mapstorage.Entity](
	schema *mapstorage.Schema[V],
	client *redis.Client,
	prefix string,
) *Backend[V] {
	return &Backend[V]{
		schema: schema,
		client: client,
		prefix: prefix + ":" + schema.Name,
	}
}

func (b *Backend[V]) key(id string) string {
	return b.prefix + ":" + id
}

func (b *Backend[V]) idsKey() string {
	return b.prefix + ":ids"
}

// Read implements mapstorage.Backend.
func (b *Backend[V]) Read(ctx context.Context, id string) (V, error) {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "Read")
	defer span.End()
	var zero V
	data, err := b.client.Get(ctx, b.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, mapstorage.ErrNotFound
		}
		return zero, fmt.Errorf("couldn't get %s %s: %v", b.schema.Name, id, err)
	}
	return b.schema.Decode(data)
}

// all returns every stored entity.
func (b *Backend[V]) all(ctx context.Context) ([]V, error) {
	ids, err := b.client.SMembers(ctx, b.idsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("couldn't list %s ids: %v", b.schema.Name, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = b.key(id)
	}
	values, err := b.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("couldn't get %s values: %v", b.schema.Name, err)
	}
	vs := make([]V, 0, len(values))
	for _, value := range values {
		s, ok := value.(string)
		if !ok {
			// deleted between SMEMBERS and MGET
			continue
		}
		v, err := b.schema.Decode([]byte(s))
		if err != nil {
			return nil, err
		}
		vs = append(vs, v)
	}
	return vs, nil
}

func (b *Backend[V]) matching(ctx context.Context, c mapstorage.Criteria) ([]V, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	vs, err := b.all(ctx)
	if err != nil {
		return nil, err
	}
	var result []V
	for _, v := range vs {
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
	ctx context.Context,
	qp mapstorage.QueryParameters,
) ([]V, error) {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "Query")
	defer span.End()
	vs, err := b.matching(ctx, qp.Criteria)
	if err != nil {
		return nil, err
	}
	return mapstorage.SortAndPage(b.schema, qp, vs)
}

// Count implements mapstorage.Backend.
func (b *Backend[V]) Count(ctx context.Context, c mapstorage.Criteria) (int, error) {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "Count")
	defer span.End()
	vs, err := b.matching(ctx, c)
	if err != nil {
		return 0, err
	}
	return len(vs), nil
}

// Apply implements mapstorage.Backend. The keys of all changed entities are
// watched while their stored versions are checked, so a concurrent write
// aborts the transaction.
func (b *Backend[V]) Apply(ctx context.Context, changes []mapstorage.Change[V]) error {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "Apply")
	defer span.End()
	keys := make([]string, len(changes))
	encoded := make([][]byte, len(changes))
	for i, c := range changes {
		keys[i] = b.key(c.ID)
		if c.Op == mapstorage.OpDelete {
			continue
		}
		data, err := b.schema.Encode(c.Value)
		if err != nil {
			return err
		}
		encoded[i] = data
	}
	err := b.client.Watch(ctx, func(tx *redis.Tx) error {
		if err := b.check(ctx, tx, keys, changes); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, c := range changes {
				switch c.Op {
				case mapstorage.OpCreate, mapstorage.OpUpdate:
					pipe.Set(ctx, keys[i], encoded[i], 0)
					pipe.SAdd(ctx, b.idsKey(), c.ID)
				case mapstorage.OpDelete:
					pipe.Del(ctx, keys[i])
					pipe.SRem(ctx, b.idsKey(), c.ID)
				}
			}
			return nil
		})
		return err
	}, keys...)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: %s", mapstorage.ErrConcurrentModification, b.schema.Name)
	}
	return err
}

// check validates the changes against the currently stored versions.
func (b *Backend[V]) check(
	ctx context.Context,
	tx *redis.Tx,
	keys []string,
	changes []mapstorage.Change[V],
) error {
	if len(keys) == 0 {
		return nil
	}
	current, err := tx.MGet(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("couldn't get current %s values: %v", b.schema.Name, err)
	}
	for i, c := range changes {
		s, exists := current[i].(string)
		switch c.Op {
		case mapstorage.OpCreate:
			if exists {
				return fmt.Errorf("%w: %s %s", mapstorage.ErrDuplicate, b.schema.Name, c.ID)
			}
		case mapstorage.OpUpdate, mapstorage.OpDelete:
			if !exists {
				return fmt.Errorf("%w: %s %s", mapstorage.ErrConcurrentModification,
					b.schema.Name, c.ID)
			}
			stored, err := b.schema.Decode([]byte(s))
			if err != nil {
				return err
			}
			if stored.Metadata().Version != c.ExpectedVersion {
				return fmt.Errorf("%w: %s %s", mapstorage.ErrConcurrentModification,
					b.schema.Name, c.ID)
			}
		default:
			return fmt.Errorf("unknown change op %v", c.Op)
		}
	}
	return nil
}

// Close implements mapstorage.Backend. The shared client is left open.
func (b *Backend[V]) Close() error {
	return nil
}
