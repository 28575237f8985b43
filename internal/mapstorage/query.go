package mapstorage

import (
	"slices"
)

// Order defines sort order on a searchable field.
type Order struct {
	Field      Field
	Descending bool
}

// QueryParameters selects, orders and pages entities.
type QueryParameters struct {
	Criteria Criteria
	// Offset skips the given number of results.
	Offset int
	// Limit caps the number of results. Zero means no limit.
	Limit   int
	OrderBy []Order
}

// Where returns QueryParameters selecting entities matching c.
func Where(c Criteria) QueryParameters {
	return QueryParameters{Criteria: c}
}

// Paged reports whether offset or limit are set.
func (qp QueryParameters) Paged() bool {
	return qp.Offset > 0 || qp.Limit > 0
}

// Unpaged returns a copy of qp with paging and ordering removed.
func (qp QueryParameters) Unpaged() QueryParameters {
	return QueryParameters{Criteria: qp.Criteria}
}

// sortKey returns the lowest value of the field, or nil if unset.
func sortKey[V Entity](s *Schema[V], v V, f Field) (any, error) {
	values, err := s.Values(v, f)
	if err != nil {
		return nil, err
	}
	var lowest any
	for _, value := range values {
		if lowest == nil {
			lowest = value
			continue
		}
		if cmp, ok := CompareValues(value, lowest); ok && cmp < 0 {
			lowest = value
		}
	}
	return lowest, nil
}

// SortAndPage orders the entities according to qp.OrderBy, then applies
// qp.Offset and qp.Limit. Unset sort keys order first, and ties are broken by
// ID so that results are deterministic.
func SortAndPage[V Entity](s *Schema[V], qp QueryParameters, vs []V) ([]V, error) {
	keys := make(map[string][]any, len(vs))
	for _, v := range vs {
		var k []any
		for _, o := range qp.OrderBy {
			key, err := sortKey(s, v, o.Field)
			if err != nil {
				return nil, err
			}
			k = append(k, key)
		}
		keys[v.Metadata().ID] = k
	}
	slices.SortStableFunc(vs, func(a, b V) int {
		ka, kb := keys[a.Metadata().ID], keys[b.Metadata().ID]
		for i, o := range qp.OrderBy {
			cmp := compareSortKeys(ka[i], kb[i])
			if o.Descending {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp
			}
		}
		switch {
		case a.Metadata().ID < b.Metadata().ID:
			return -1
		case a.Metadata().ID > b.Metadata().ID:
			return 1
		default:
			return 0
		}
	})
	return page(qp, vs), nil
}

func compareSortKeys(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	cmp, _ := CompareValues(a, b)
	return cmp
}

func page[V any](qp QueryParameters, vs []V) []V {
	if qp.Offset > 0 {
		if qp.Offset >= len(vs) {
			return nil
		}
		vs = vs[qp.Offset:]
	}
	if qp.Limit > 0 && qp.Limit < len(vs) {
		vs = vs[:qp.Limit]
	}
	return vs
}
