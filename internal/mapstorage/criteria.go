package mapstorage

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Operator is a comparison operator used in Criteria.
type Operator int

const (
	// EQ matches if any field value equals the criteria value.
	EQ Operator = iota + 1
	// NE matches if no field value equals the criteria value.
	NE
	// EXISTS matches if the field has at least one value.
	EXISTS
	// NOT_EXISTS matches if the field has no values.
	NOT_EXISTS //nolint:revive
	// IN matches if any field value equals any of the criteria values.
	IN
	// LT matches if any field value is less than the criteria value.
	LT
	// LE matches if any field value is less than or equal to the criteria
	// value.
	LE
	// GT matches if any field value is greater than the criteria value.
	GT
	// GE matches if any field value is greater than or equal to the criteria
	// value.
	GE
	// LIKE matches strings against a pattern where % matches any sequence of
	// characters.
	LIKE
	// ILIKE is a case-insensitive LIKE.
	ILIKE
)

var operatorNames = map[Operator]string{
	EQ:         "EQ",
	NE:         "NE",
	EXISTS:     "EXISTS",
	NOT_EXISTS: "NOT_EXISTS",
	IN:         "IN",
	LT:         "LT",
	LE:         "LE",
	GT:         "GT",
	GE:         "GE",
	LIKE:       "LIKE",
	ILIKE:      "ILIKE",
}

func (o Operator) String() string {
	if name, ok := operatorNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// Kind is the type of a Criteria node.
type Kind int

const (
	// KindAll is the zero Criteria, which matches everything.
	KindAll Kind = iota
	// KindCompare is a field comparison.
	KindCompare
	// KindAnd matches if all children match.
	KindAnd
	// KindOr matches if any child matches.
	KindOr
	// KindNot matches if its single child doesn't match.
	KindNot
)

// Criteria is an immutable tree of conditions on searchable fields. The zero
// value matches every entity.
type Criteria struct {
	kind     Kind
	field    Field
	op       Operator
	values   []any
	children []Criteria
}

// Compare returns a Criteria comparing the field with the given values.
func Compare(field Field, op Operator, values ...any) Criteria {
	return Criteria{kind: KindCompare, field: field, op: op, values: values}
}

// And returns a Criteria matching when all the given criteria match. And
// with no arguments matches everything.
func And(cs ...Criteria) Criteria {
	return Criteria{kind: KindAnd, children: cs}
}

// Or returns a Criteria matching when any of the given criteria match. Or
// with no arguments matches nothing.
func Or(cs ...Criteria) Criteria {
	return Criteria{kind: KindOr, children: cs}
}

// Not returns the negation of c.
func Not(c Criteria) Criteria {
	return Criteria{kind: KindNot, children: []Criteria{c}}
}

// And is a chaining shorthand for And(c, cs...).
func (c Criteria) And(cs ...Criteria) Criteria {
	if c.kind == KindAll {
		return And(cs...)
	}
	return And(append([]Criteria{c}, cs...)...)
}

// Kind returns the node type.
func (c Criteria) Kind() Kind { return c.kind }

// Field returns the compared field of a KindCompare node.
func (c Criteria) Field() Field { return c.field }

// Op returns the operator of a KindCompare node.
func (c Criteria) Op() Operator { return c.op }

// Values returns the criteria values of a KindCompare node.
func (c Criteria) Values() []any { return c.values }

// Children returns the child nodes of And, Or and Not nodes.
func (c Criteria) Children() []Criteria { return c.children }

// Validate checks the structure of the criteria tree.
func (c Criteria) Validate() error {
	switch c.kind {
	case KindAll:
		return nil
	case KindCompare:
		return validateCompare(c)
	case KindNot:
		if len(c.children) != 1 {
			return fmt.Errorf("%w: NOT requires exactly one child", ErrInvalidCriteria)
		}
		return c.children[0].Validate()
	case KindAnd, KindOr:
		for _, child := range c.children {
			if err := child.Validate(); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidCriteria, c.kind)
	}
}

func validateCompare(c Criteria) error {
	switch c.op {
	case EXISTS, NOT_EXISTS:
		if len(c.values) != 0 {
			return fmt.Errorf("%w: %v takes no values", ErrInvalidCriteria, c.op)
		}
	case IN:
	case LIKE, ILIKE:
		if len(c.values) != 1 {
			return fmt.Errorf("%w: %v takes one value", ErrInvalidCriteria, c.op)
		}
		if _, ok := c.values[0].(string); !ok {
			return fmt.Errorf("%w: %v requires a string pattern", ErrInvalidCriteria, c.op)
		}
	case EQ, NE, LT, LE, GT, GE:
		if len(c.values) != 1 {
			return fmt.Errorf("%w: %v takes one value", ErrInvalidCriteria, c.op)
		}
	default:
		return fmt.Errorf("%w: unknown operator %v", ErrInvalidCriteria, c.op)
	}
	if c.field == "" {
		return fmt.Errorf("%w: empty field", ErrInvalidCriteria)
	}
	return nil
}

// Match evaluates the criteria against v using the schema's field
// extractors.
func Match[V Entity](s *Schema[V], c Criteria, v V) (bool, error) {
	switch c.kind {
	case KindAll:
		return true, nil
	case KindAnd:
		for _, child := range c.children {
			ok, err := Match(s, child, v)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case KindOr:
		for _, child := range c.children {
			ok, err := Match(s, child, v)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case KindNot:
		if len(c.children) != 1 {
			return false, fmt.Errorf("%w: NOT requires exactly one child", ErrInvalidCriteria)
		}
		ok, err := Match(s, c.children[0], v)
		return !ok, err
	case KindCompare:
		if err := validateCompare(c); err != nil {
			return false, err
		}
		fieldValues, err := s.Values(v, c.field)
		if err != nil {
			return false, err
		}
		return compare(fieldValues, c.op, c.values)
	default:
		return false, fmt.Errorf("%w: unknown kind %d", ErrInvalidCriteria, c.kind)
	}
}

func compare(fieldValues []any, op Operator, values []any) (bool, error) {
	switch op {
	case EXISTS:
		return len(fieldValues) > 0, nil
	case NOT_EXISTS:
		return len(fieldValues) == 0, nil
	case NE:
		ok, err := compare(fieldValues, EQ, values)
		return !ok, err
	case IN:
		for _, value := range values {
			if ok, _ := compare(fieldValues, EQ, []any{value}); ok {
				return true, nil
			}
		}
		return false, nil
	case LIKE, ILIKE:
		re, err := likeRegexp(values[0].(string), op == ILIKE)
		if err != nil {
			return false, err
		}
		for _, fv := range fieldValues {
			if s, ok := fv.(string); ok && re.MatchString(s) {
				return true, nil
			}
		}
		return false, nil
	}
	for _, fv := range fieldValues {
		cmp, ok := CompareValues(fv, values[0])
		if !ok {
			continue
		}
		var match bool
		switch op {
		case EQ:
			match = cmp == 0
		case LT:
			match = cmp < 0
		case LE:
			match = cmp <= 0
		case GT:
			match = cmp > 0
		case GE:
			match = cmp >= 0
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

// likeRegexp converts a LIKE pattern into an anchored regular expression.
func likeRegexp(pattern string, caseInsensitive bool) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "%")
	for i := range parts {
		parts[i] = regexp.QuoteMeta(parts[i])
	}
	expr := "^" + strings.Join(parts, ".*") + "$"
	if caseInsensitive {
		expr = "(?is)" + expr
	} else {
		expr = "(?s)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: bad LIKE pattern %q: %v", ErrInvalidCriteria, pattern, err)
	}
	return re, nil
}

// CompareValues compares two field values. The second return value is false
// if the values are of incomparable types.
func CompareValues(a, b any) (int, bool) {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(as, bs), true
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case ab == bb:
			return 0, true
		case !ab:
			return -1, true
		default:
			return 1, true
		}
	}
	ai, ok := ToInt64(a)
	if !ok {
		return 0, false
	}
	bi, ok := ToInt64(b)
	if !ok {
		return 0, false
	}
	switch {
	case ai < bi:
		return -1, true
	case ai > bi:
		return 1, true
	default:
		return 0, true
	}
}

// ToInt64 converts integer typed values to int64. Unsigned values above
// math.MaxInt64 are rejected.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}
