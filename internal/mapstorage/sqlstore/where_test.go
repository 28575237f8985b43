package sqlstore

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/uselagoon/keycloak-authz/internal/mapstorage"
)

type item struct {
	mapstorage.Meta
	Name    string   `json:"name"`
	Count   int      `json:"count"`
	Enabled bool     `json:"enabled"`
	Tags    []string `json:"tags,omitempty"`
}

var itemSchema = &mapstorage.Schema[*item]{
	Name: "item",
	New:  func() *item { return &item{} },
	Fields: map[mapstorage.Field]mapstorage.FieldFunc[*item]{
		"name":    func(i *item) []any { return mapstorage.String(i.Name) },
		"count":   func(i *item) []any { return []any{i.Count} },
		"enabled": func(i *item) []any { return []any{i.Enabled} },
		"tags":    func(i *item) []any { return mapstorage.Strings(i.Tags) },
	},
}

const existsPrefix = "EXISTS (SELECT 1 FROM `item_index` i WHERE i.entity_id = d.id AND i.field = ?"

func TestWhere(t *testing.T) {
	var testCases = map[string]struct {
		criteria    mapstorage.Criteria
		expectSQL   string
		expectArgs  []any
		expectError error
	}{
		"all": {
			criteria:  mapstorage.Criteria{},
			expectSQL: "TRUE",
		},
		"eq string": {
			criteria:   mapstorage.Compare("name", mapstorage.EQ, "a"),
			expectSQL:  existsPrefix + " AND (i.kind = ? AND i.value_str = ?))",
			expectArgs: []any{"name", "s", "a"},
		},
		"ge number": {
			criteria:   mapstorage.Compare("count", mapstorage.GE, 3),
			expectSQL:  existsPrefix + " AND (i.kind = ? AND i.value_num >= ?))",
			expectArgs: []any{"count", "n", int64(3)},
		},
		"ne bool": {
			criteria:   mapstorage.Compare("enabled", mapstorage.NE, true),
			expectSQL:  "NOT " + existsPrefix + " AND (i.kind = ? AND i.value_num = ?))",
			expectArgs: []any{"enabled", "b", int64(1)},
		},
		"in": {
			criteria: mapstorage.Compare("tags", mapstorage.IN, "x", "y"),
			expectSQL: existsPrefix +
				" AND ((i.kind = ? AND i.value_str = ?) OR (i.kind = ? AND i.value_str = ?)))",
			expectArgs: []any{"tags", "s", "x", "s", "y"},
		},
		"empty in": {
			criteria:  mapstorage.Compare("tags", mapstorage.IN),
			expectSQL: "FALSE",
		},
		"not exists": {
			criteria:   mapstorage.Compare("tags", mapstorage.NOT_EXISTS),
			expectSQL:  "NOT " + existsPrefix + ")",
			expectArgs: []any{"tags"},
		},
		"like escapes underscore": {
			criteria:   mapstorage.Compare("name", mapstorage.LIKE, "a_b%"),
			expectSQL:  existsPrefix + " AND i.kind = ? AND i.value_str LIKE ?)",
			expectArgs: []any{"name", "s", `a\_b%`},
		},
		"ilike": {
			criteria:   mapstorage.Compare("name", mapstorage.ILIKE, "A%"),
			expectSQL:  existsPrefix + " AND i.kind = ? AND LOWER(i.value_str) LIKE LOWER(?))",
			expectArgs: []any{"name", "s", "A%"},
		},
		"and or not": {
			criteria: mapstorage.And(
				mapstorage.Or(),
				mapstorage.Not(mapstorage.Compare("tags", mapstorage.EXISTS)),
			),
			expectSQL:  "(FALSE AND NOT (" + existsPrefix + ")))",
			expectArgs: []any{"tags"},
		},
		"unknown field": {
			criteria:    mapstorage.Compare("colour", mapstorage.EQ, "red"),
			expectError: mapstorage.ErrUnknownField,
		},
		"invalid": {
			criteria:    mapstorage.Compare("name", mapstorage.EQ),
			expectError: mapstorage.ErrInvalidCriteria,
		},
	}
	b := New(itemSchema, nil)
	for name, tc := range testCases {
		t.Run(name, func(tt *testing.T) {
			query, args, err := b.where(tc.criteria)
			if tc.expectError != nil {
				assert.True(tt, errors.Is(err, tc.expectError), name)
				return
			}
			assert.NoError(tt, err, name)
			assert.Equal(tt, tc.expectSQL, query, name)
			assert.Equal(tt, tc.expectArgs, args, name)
		})
	}
}

func TestIndexRows(t *testing.T) {
	b := New(itemSchema, nil)
	rows, err := b.indexRows("i1", &item{
		Name:    "a",
		Count:   2,
		Enabled: true,
		Tags:    []string{"x", "y"},
	})
	assert.NoError(t, err)
	var fields []string
	for _, r := range rows {
		fields = append(fields, r.Field)
		assert.Equal(t, "i1", r.EntityID)
	}
	assert.Equal(t, []string{"count", "enabled", "name", "tags", "tags"}, fields)
	assert.Equal(t, "n", rows[0].Kind)
	assert.Equal(t, int64(2), rows[0].ValueNum.Int64)
	assert.Equal(t, "y", rows[4].ValueStr.String)
}
