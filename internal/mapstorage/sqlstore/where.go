package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/uselagoon/keycloak-authz/internal/mapstorage"
)

// index value kinds
const (
	kindString = "s"
	kindNumber = "n"
	kindBool   = "b"
)

var sqlOperators = map[mapstorage.Operator]string{
	mapstorage.EQ: "=",
	mapstorage.LT: "<",
	mapstorage.LE: "<=",
	mapstorage.GT: ">",
	mapstorage.GE: ">=",
}

// encodeValue maps a field value onto the index table's columns.
func encodeValue(v any) (string, sql.NullString, sql.NullInt64, error) {
	switch value := v.(type) {
	case string:
		return kindString, sql.NullString{String: value, Valid: true}, sql.NullInt64{}, nil
	case bool:
		var n int64
		if value {
			n = 1
		}
		return kindBool, sql.NullString{}, sql.NullInt64{Int64: n, Valid: true}, nil
	}
	if n, ok := mapstorage.ToInt64(v); ok {
		return kindNumber, sql.NullString{}, sql.NullInt64{Int64: n, Valid: true}, nil
	}
	return "", sql.NullString{}, sql.NullInt64{}, fmt.Errorf("unsupported value type %T", v)
}

// escapeLike escapes the characters which are special in a MySQL LIKE
// pattern, other than the % wildcard.
func escapeLike(pattern string) string {
	return strings.NewReplacer(`\`, `\\`, `_`, `\_`).Replace(pattern)
}

// where translates c into a SQL boolean expression over the document table
// aliased as d.
func (b *Backend[V]) where(c mapstorage.Criteria) (string, []any, error) {
	if err := c.Validate(); err != nil {
		return "", nil, err
	}
	return b.expr(c)
}

func (b *Backend[V]) expr(c mapstorage.Criteria) (string, []any, error) {
	switch c.Kind() {
	case mapstorage.KindAll:
		return "TRUE", nil, nil
	case mapstorage.KindAnd:
		return b.join(c.Children(), " AND ", "TRUE")
	case mapstorage.KindOr:
		return b.join(c.Children(), " OR ", "FALSE")
	case mapstorage.KindNot:
		inner, args, err := b.expr(c.Children()[0])
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + inner + ")", args, nil
	case mapstorage.KindCompare:
		return b.compare(c)
	default:
		return "", nil, fmt.Errorf("%w: unknown kind %v", mapstorage.ErrInvalidCriteria, c.Kind())
	}
}

func (b *Backend[V]) join(
	cs []mapstorage.Criteria,
	sep, empty string,
) (string, []any, error) {
	if len(cs) == 0 {
		return empty, nil, nil
	}
	var exprs []string
	var args []any
	for _, child := range cs {
		e, a, err := b.expr(child)
		if err != nil {
			return "", nil, err
		}
		exprs = append(exprs, e)
		args = append(args, a...)
	}
	return "(" + strings.Join(exprs, sep) + ")", args, nil
}

// exists wraps a condition on the index row i in a correlated subquery.
func (b *Backend[V]) exists(
	field mapstorage.Field,
	cond string,
	args []any,
) (string, []any) {
	query := "EXISTS (SELECT 1 FROM " + b.index +
		" i WHERE i.entity_id = d.id AND i.field = ?"
	if cond != "" {
		query += " AND " + cond
	}
	return query + ")", append([]any{string(field)}, args...)
}

// valueCond returns a condition comparing the index row i with value.
func valueCond(op string, value any) (string, []any, error) {
	kind, str, num, err := encodeValue(value)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", mapstorage.ErrInvalidCriteria, err)
	}
	if kind == kindString {
		return "(i.kind = ? AND i.value_str " + op + " ?)",
			[]any{kind, str.String}, nil
	}
	return "(i.kind = ? AND i.value_num " + op + " ?)",
		[]any{kind, num.Int64}, nil
}

func (b *Backend[V]) compare(c mapstorage.Criteria) (string, []any, error) {
	if _, ok := b.schema.Fields[c.Field()]; !ok {
		return "", nil, fmt.Errorf("%w: %s.%s",
			mapstorage.ErrUnknownField, b.schema.Name, c.Field())
	}
	values := c.Values()
	switch c.Op() {
	case mapstorage.EXISTS:
		query, args := b.exists(c.Field(), "", nil)
		return query, args, nil
	case mapstorage.NOT_EXISTS:
		query, args := b.exists(c.Field(), "", nil)
		return "NOT " + query, args, nil
	case mapstorage.NE:
		query, args, err := b.compare(mapstorage.Compare(c.Field(), mapstorage.EQ, values...))
		if err != nil {
			return "", nil, err
		}
		return "NOT " + query, args, nil
	case mapstorage.IN:
		if len(values) == 0 {
			return "FALSE", nil, nil
		}
		var conds []string
		var args []any
		for _, value := range values {
			cond, a, err := valueCond("=", value)
			if err != nil {
				return "", nil, err
			}
			conds = append(conds, cond)
			args = append(args, a...)
		}
		query, args := b.exists(c.Field(), "("+strings.Join(conds, " OR ")+")", args)
		return query, args, nil
	case mapstorage.LIKE:
		query, args := b.exists(c.Field(), "i.kind = ? AND i.value_str LIKE ?",
			[]any{kindString, escapeLike(values[0].(string))})
		return query, args, nil
	case mapstorage.ILIKE:
		query, args := b.exists(c.Field(), "i.kind = ? AND LOWER(i.value_str) LIKE LOWER(?)",
			[]any{kindString, escapeLike(values[0].(string))})
		return query, args, nil
	}
	op, ok := sqlOperators[c.Op()]
	if !ok {
		return "", nil, fmt.Errorf("%w: unknown operator %v", mapstorage.ErrInvalidCriteria, c.Op())
	}
	cond, args, err := valueCond(op, values[0])
	if err != nil {
		return "", nil, err
	}
	query, args := b.exists(c.Field(), cond, args)
	return query, args, nil
}

// orderBy translates the sort order, ordering by the lowest value of each
// field. Ties are broken by ID.
func (b *Backend[V]) orderBy(orders []mapstorage.Order) (string, []any, error) {
	var terms []string
	var args []any
	for _, o := range orders {
		if _, ok := b.schema.Fields[o.Field]; !ok {
			return "", nil, fmt.Errorf("%w: %s.%s",
				mapstorage.ErrUnknownField, b.schema.Name, o.Field)
		}
		dir := "ASC"
		if o.Descending {
			dir = "DESC"
		}
		for _, column := range []string{"value_num", "value_str"} {
			terms = append(terms, "(SELECT MIN(i."+column+") FROM "+b.index+
				" i WHERE i.entity_id = d.id AND i.field = ?) "+dir)
			args = append(args, string(o.Field))
		}
	}
	terms = append(terms, "d.id ASC")
	return strings.Join(terms, ", "), args, nil
}
