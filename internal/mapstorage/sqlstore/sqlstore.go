// Package sqlstore implements a MySQL map storage backend.
//
// Each entity type is stored in a document table holding the JSON encoded
// entity and its version, and an index table holding one row per searchable
// field value.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/uselagoon/keycloak-authz/internal/mapstorage"
	"go.opentelemetry.io/otel"
)

const pkgName = "github.com/uselagoon/keycloak-authz/internal/mapstorage/sqlstore"

// mysqlDuplicateEntry is the MySQL error number of a unique key violation.
const mysqlDuplicateEntry = 1062

// Backend is a MySQL mapstorage.Backend.
type Backend[V mapstorage.Entity] struct {
	schema *mapstorage.Schema[V]
	db     *sqlx.DB
	table  string
	index  string
}

// Connect opens a MySQL connection pool.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "mysql", dsn)
	if err != nil {
		return nil, err
	}
	// https://github.com/go-sql-driver/mysql#important-settings
	db.SetConnMaxLifetime(4 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	return db, nil
}

// New returns a Backend storing entities of the given schema in tables named
// after the schema. The db is shared and not closed by the Backend.
func New[V mapstorage.Entity](
	schema *mapstorage.Schema[V],
	db *sqlx.DB,
) *Backend[V] {
	return &Backend[V]{
		schema: schema,
		db:     db,
		table:  "`" + schema.Name + "`",
		index:  "`" + schema.Name + "_index`",
	}
}

// Migrate creates the backend's tables if they don't exist.
func (b *Backend[V]) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + b.table + ` (
		id VARCHAR(255) NOT NULL PRIMARY KEY,
		version INT NOT NULL,
		data JSON NOT NULL
	) DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`,
		`CREATE TABLE IF NOT EXISTS ` + b.index + ` (
		entity_id VARCHAR(255) NOT NULL,
		field VARCHAR(64) NOT NULL,
		kind CHAR(1) NOT NULL,
		value_str VARCHAR(1024),
		value_num BIGINT,
		KEY entity (entity_id),
		KEY field_str (field, value_str(255)),
		KEY field_num (field, value_num)
	) DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`,
	}
	for _, stmt := range stmts {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("couldn't migrate %s: %v", b.schema.Name, err)
		}
	}
	return nil
}

// Read implements mapstorage.Backend.
func (b *Backend[V]) Read(ctx context.Context, id string) (V, error) {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "Read")
	defer span.End()
	var zero V
	var data []byte
	err := b.db.GetContext(ctx, &data,
		`SELECT data FROM `+b.table+` WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, mapstorage.ErrNotFound
		}
		return zero, fmt.Errorf("couldn't read %s %s: %v", b.schema.Name, id, err)
	}
	return b.schema.Decode(data)
}

// Query implements mapstorage.Backend.
func (b *Backend[V]) Query(
	ctx context.Context,
	qp mapstorage.QueryParameters,
) ([]V, error) {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "Query")
	defer span.End()
	where, args, err := b.where(qp.Criteria)
	if err != nil {
		return nil, err
	}
	query := `SELECT d.data FROM ` + b.table + ` d WHERE ` + where
	order, orderArgs, err := b.orderBy(qp.OrderBy)
	if err != nil {
		return nil, err
	}
	query += ` ORDER BY ` + order
	args = append(args, orderArgs...)
	switch {
	case qp.Limit > 0:
		query += ` LIMIT ? OFFSET ?`
		args = append(args, qp.Limit, qp.Offset)
	case qp.Offset > 0:
		// MySQL has no OFFSET without LIMIT
		query += ` LIMIT 18446744073709551615 OFFSET ?`
		args = append(args, qp.Offset)
	}
	var rows [][]byte
	if err = b.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("couldn't query %s: %v", b.schema.Name, err)
	}
	vs := make([]V, 0, len(rows))
	for _, data := range rows {
		v, err := b.schema.Decode(data)
		if err != nil {
			return nil, err
		}
		vs = append(vs, v)
	}
	return vs, nil
}

// Count implements mapstorage.Backend.
func (b *Backend[V]) Count(ctx context.Context, c mapstorage.Criteria) (int, error) {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "Count")
	defer span.End()
	where, args, err := b.where(c)
	if err != nil {
		return 0, err
	}
	var n int
	err = b.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM `+b.table+` d WHERE `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("couldn't count %s: %v", b.schema.Name, err)
	}
	return n, nil
}

// Apply implements mapstorage.Backend. The changes are applied in a single
// database transaction.
func (b *Backend[V]) Apply(
	ctx context.Context,
	changes []mapstorage.Change[V],
) (err error) {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "Apply")
	defer span.End()
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("couldn't begin transaction: %v", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, c := range changes {
		switch c.Op {
		case mapstorage.OpCreate:
			err = b.create(ctx, tx, c)
		case mapstorage.OpUpdate:
			err = b.update(ctx, tx, c)
		case mapstorage.OpDelete:
			err = b.delete(ctx, tx, c)
		default:
			err = fmt.Errorf("unknown change op %v", c.Op)
		}
		if err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("couldn't commit transaction: %v", err)
	}
	return nil
}

func (b *Backend[V]) create(
	ctx context.Context,
	tx *sqlx.Tx,
	c mapstorage.Change[V],
) error {
	data, err := b.schema.Encode(c.Value)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO `+b.table+` (id, version, data) VALUES (?, ?, ?)`,
		c.ID, c.Value.Metadata().Version, data)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return fmt.Errorf("%w: %s %s", mapstorage.ErrDuplicate, b.schema.Name, c.ID)
		}
		return fmt.Errorf("couldn't insert %s %s: %v", b.schema.Name, c.ID, err)
	}
	return b.insertIndex(ctx, tx, c.ID, c.Value)
}

func (b *Backend[V]) update(
	ctx context.Context,
	tx *sqlx.Tx,
	c mapstorage.Change[V],
) error {
	data, err := b.schema.Encode(c.Value)
	if err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx,
		`UPDATE `+b.table+` SET version = ?, data = ? WHERE id = ? AND version = ?`,
		c.Value.Metadata().Version, data, c.ID, c.ExpectedVersion)
	if err != nil {
		return fmt.Errorf("couldn't update %s %s: %v", b.schema.Name, c.ID, err)
	}
	if err = b.checkAffected(result, c.ID); err != nil {
		return err
	}
	if err = b.deleteIndex(ctx, tx, c.ID); err != nil {
		return err
	}
	return b.insertIndex(ctx, tx, c.ID, c.Value)
}

func (b *Backend[V]) delete(
	ctx context.Context,
	tx *sqlx.Tx,
	c mapstorage.Change[V],
) error {
	result, err := tx.ExecContext(ctx,
		`DELETE FROM `+b.table+` WHERE id = ? AND version = ?`,
		c.ID, c.ExpectedVersion)
	if err != nil {
		return fmt.Errorf("couldn't delete %s %s: %v", b.schema.Name, c.ID, err)
	}
	if err = b.checkAffected(result, c.ID); err != nil {
		return err
	}
	return b.deleteIndex(ctx, tx, c.ID)
}

// checkAffected maps an update or delete which touched no rows to an
// optimistic lock failure.
func (b *Backend[V]) checkAffected(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("couldn't get affected rows: %v", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", mapstorage.ErrConcurrentModification,
			b.schema.Name, id)
	}
	return nil
}

func (b *Backend[V]) deleteIndex(ctx context.Context, tx *sqlx.Tx, id string) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM `+b.index+` WHERE entity_id = ?`, id)
	if err != nil {
		return fmt.Errorf("couldn't delete %s index %s: %v", b.schema.Name, id, err)
	}
	return nil
}

// indexRow is a single row of the index table.
type indexRow struct {
	EntityID string         `db:"entity_id"`
	Field    string         `db:"field"`
	Kind     string         `db:"kind"`
	ValueStr sql.NullString `db:"value_str"`
	ValueNum sql.NullInt64  `db:"value_num"`
}

// indexRows returns the index rows of v, ordered by field name.
func (b *Backend[V]) indexRows(id string, v V) ([]indexRow, error) {
	fields := make([]string, 0, len(b.schema.Fields))
	for f := range b.schema.Fields {
		fields = append(fields, string(f))
	}
	slices.Sort(fields)
	var rows []indexRow
	for _, f := range fields {
		values, err := b.schema.Values(v, mapstorage.Field(f))
		if err != nil {
			return nil, err
		}
		for _, value := range values {
			kind, str, num, err := encodeValue(value)
			if err != nil {
				return nil, fmt.Errorf("couldn't index %s.%s: %v", b.schema.Name, f, err)
			}
			rows = append(rows, indexRow{
				EntityID: id,
				Field:    f,
				Kind:     kind,
				ValueStr: str,
				ValueNum: num,
			})
		}
	}
	return rows, nil
}

func (b *Backend[V]) insertIndex(
	ctx context.Context,
	tx *sqlx.Tx,
	id string,
	v V,
) error {
	rows, err := b.indexRows(id, v)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	_, err = tx.NamedExecContext(ctx,
		`INSERT INTO `+b.index+` (entity_id, field, kind, value_str, value_num) `+
			`VALUES (:entity_id, :field, :kind, :value_str, :value_num)`, rows)
	if err != nil {
		return fmt.Errorf("couldn't insert %s index %s: %v", b.schema.Name, id, err)
	}
	return nil
}

// Close implements mapstorage.Backend. The shared database is left open.
func (b *Backend[V]) Close() error {
	return nil
}
