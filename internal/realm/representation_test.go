package realm_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/uselagoon/keycloak-authz/internal/authz"
	"github.com/uselagoon/keycloak-authz/internal/mapstorage"
	"github.com/uselagoon/keycloak-authz/internal/realm"
)

const acmeExport = `{
  "realm": "acme",
  "enabled": true,
  "roles": {
    "realm": [
      {
        "name": "default-roles-acme",
        "composites": {"realm": ["reader"], "client": {"web-app": ["editor"]}}
      },
      {"name": "reader", "composites": {"realm": ["x"]}},
      {"name": "staff"},
      {"name": "x"}
    ],
    "client": {
      "web-app": [{"name": "editor"}]
    }
  },
  "clients": [{"clientId": "web-app", "enabled": true}],
  "groups": [
    {
      "name": "staff",
      "realmRoles": ["staff"],
      "subGroups": [{"name": "dev", "clientRoles": {"web-app": ["editor"]}}]
    }
  ],
  "users": [
    {
      "username": "alice",
      "email": "alice@example.com",
      "enabled": true,
      "attributes": {"team": ["blue"]},
      "realmRoles": ["reader"],
      "groups": ["/staff/dev"]
    }
  ]
}`

func TestImport(t *testing.T) {
	ctx := context.Background()
	var rep realm.RealmRepresentation
	assert.NoError(t, json.Unmarshal([]byte(acmeExport), &rep))
	s := realm.NewInMemory()
	r, err := s.Import(ctx, &rep)
	assert.NoError(t, err)
	assert.Equal(t, "acme", r.Name)
	alice, err := s.UserByUsername(ctx, r.ID, "alice")
	assert.NoError(t, err)
	identity, err := s.Identity(ctx, r.ID, alice.ID, "web-app")
	assert.NoError(t, err)
	assert.Equal(t, []string{"reader", "staff", "x"}, identity.RealmRoles)
	assert.Equal(t, map[string][]string{"web-app": {"editor"}}, identity.ClientRoles)
	assert.Equal(t, []string{"/staff/dev"}, identity.Groups)
	assert.Equal[any](t, []string{"blue"}, identity.Claims["team"])
	// composites referring to roles defined later in the export are set
	defaults, err := s.RoleByName(ctx, r.ID, "", "default-roles-acme")
	assert.NoError(t, err)
	assert.Equal(t, 2, len(defaults.Composite))
	assert.Equal(t, 2, defaults.Version)
	// importing the realm again conflicts on its name
	_, err = s.Import(ctx, &rep)
	assert.IsError(t, err, mapstorage.ErrDuplicate)
}

func TestImportUnresolved(t *testing.T) {
	var testCases = map[string]struct {
		rep realm.RealmRepresentation
	}{
		"composite of unknown role": {
			rep: realm.RealmRepresentation{
				Realm: "acme",
				Roles: realm.RolesRepresentation{
					Realm: []realm.RoleRepresentation{{
						Name:       "reader",
						Composites: &realm.CompositesReferences{Realm: []string{"x"}},
					}},
				},
			},
		},
		"role of unknown client": {
			rep: realm.RealmRepresentation{
				Realm: "acme",
				Roles: realm.RolesRepresentation{
					Client: map[string][]realm.RoleRepresentation{
						"web-app": {{Name: "editor"}},
					},
				},
			},
		},
		"group with unknown role": {
			rep: realm.RealmRepresentation{
				Realm: "acme",
				Groups: []realm.GroupRepresentation{
					{Name: "staff", RealmRoles: []string{"staff"}},
				},
			},
		},
		"user in unknown group": {
			rep: realm.RealmRepresentation{
				Realm:  "acme",
				Groups: []realm.GroupRepresentation{{Name: "staff"}},
				Users: []realm.UserRepresentation{
					{Username: "alice", Groups: []string{"/dev"}},
				},
			},
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(tt *testing.T) {
			_, err := realm.NewInMemory().Import(context.Background(), &tc.rep)
			assert.IsError(tt, err, realm.ErrNotFound, name)
		})
	}
}

// TestImportedDirectory checks that group paths of an imported realm resolve
// through the authz.Directory implementation.
func TestImportedDirectory(t *testing.T) {
	ctx := context.Background()
	var rep realm.RealmRepresentation
	assert.NoError(t, json.Unmarshal([]byte(acmeExport), &rep))
	s := realm.NewInMemory()
	r, err := s.Import(ctx, &rep)
	assert.NoError(t, err)
	dev, err := s.GroupByPath(ctx, r.ID, "/staff/dev")
	assert.NoError(t, err)
	var dir authz.Directory = s
	path, err := dir.GroupPathByID(ctx, dev.ID)
	assert.NoError(t, err)
	assert.Equal(t, "/staff/dev", path)
}
