package mapstorage_test

import (
	"github.com/uselagoon/keycloak-authz/internal/mapstorage"
)

// widget is a test entity.
type widget struct {
	mapstorage.Meta
	Name  string   `json:"name"`
	Size  int      `json:"size"`
	Tags  []string `json:"tags,omitempty"`
	Owner string   `json:"owner,omitempty"`
}

const (
	fieldName  mapstorage.Field = "name"
	fieldSize  mapstorage.Field = "size"
	fieldTags  mapstorage.Field = "tags"
	fieldOwner mapstorage.Field = "owner"
)

var widgetSchema = &mapstorage.Schema[*widget]{
	Name: "widget",
	New:  func() *widget { return &widget{} },
	Fields: map[mapstorage.Field]mapstorage.FieldFunc[*widget]{
		fieldName:  func(w *widget) []any { return mapstorage.String(w.Name) },
		fieldSize:  func(w *widget) []any { return []any{w.Size} },
		fieldTags:  func(w *widget) []any { return mapstorage.Strings(w.Tags) },
		fieldOwner: func(w *widget) []any { return mapstorage.String(w.Owner) },
	},
}

func names(ws []*widget) []string {
	var ns []string
	for _, w := range ws {
		ns = append(ns, w.Name)
	}
	return ns
}
