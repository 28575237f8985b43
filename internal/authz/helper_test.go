package authz_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/uselagoon/keycloak-authz/internal/authz"
	"github.com/uselagoon/keycloak-authz/internal/authzstore"
)

// photoz is the authorization settings fixture used by the evaluator tests.
const photoz = `{
  "policyEnforcementMode": "ENFORCING",
  "decisionStrategy": "AFFIRMATIVE",
  "scopes": [
    {"name": "view"},
    {"name": "edit"},
    {"name": "delete"}
  ],
  "resources": [
    {
      "name": "Album",
      "type": "urn:photoz:album",
      "uris": ["/album/*"],
      "scopes": [{"name": "view"}, {"name": "edit"}, {"name": "delete"}]
    },
    {
      "name": "Admin",
      "uris": ["/admin/*"]
    },
    {
      "name": "Profile",
      "uris": ["/profile/{id}"],
      "scopes": [{"name": "view"}]
    }
  ],
  "policies": [
    {
      "name": "Only Users",
      "type": "role",
      "config": {"roles": "[{\"id\":\"user\",\"required\":false}]"}
    },
    {
      "name": "Only Admins",
      "type": "role",
      "config": {"roles": "[{\"id\":\"role-admin\"}]"}
    },
    {
      "name": "Only Alice",
      "type": "user",
      "config": {"users": "[\"alice\"]"}
    },
    {
      "name": "Staff Group",
      "type": "group",
      "config": {"groups": "[{\"id\":\"group-staff\",\"extendChildren\":true}]"}
    },
    {
      "name": "Web Client",
      "type": "client",
      "config": {"clients": "[\"client-web\"]"}
    },
    {
      "name": "Admin Or Alice",
      "type": "aggregate",
      "decisionStrategy": "AFFIRMATIVE",
      "config": {"applyPolicies": "[\"Only Admins\",\"Only Alice\"]"}
    },
    {
      "name": "Album View Permission",
      "type": "scope",
      "config": {
        "scopes": "[\"view\"]",
        "applyPolicies": "[\"Only Users\"]"
      }
    },
    {
      "name": "Album Delete Permission",
      "type": "scope",
      "config": {
        "resources": "[\"Album\"]",
        "scopes": "[\"delete\"]",
        "applyPolicies": "[\"Admin Or Alice\"]"
      }
    },
    {
      "name": "Album Type Permission",
      "type": "resource",
      "config": {
        "defaultResourceType": "urn:photoz:album",
        "applyPolicies": "[\"Staff Group\"]"
      }
    },
    {
      "name": "Admin Permission",
      "type": "resource",
      "decisionStrategy": "UNANIMOUS",
      "config": {
        "resources": "[\"Admin\"]",
        "applyPolicies": "[\"Only Admins\",\"Web Client\"]"
      }
    }
  ]
}`

// directory is a static authz.Directory.
type directory struct {
	roles   map[string]*authz.RoleInfo
	groups  map[string]string
	clients map[string]string
}

func (d *directory) RoleByID(_ context.Context, id string) (*authz.RoleInfo, error) {
	if r, ok := d.roles[id]; ok {
		return r, nil
	}
	return nil, authz.ErrNotFound
}

func (d *directory) GroupPathByID(_ context.Context, id string) (string, error) {
	if p, ok := d.groups[id]; ok {
		return p, nil
	}
	return "", authz.ErrNotFound
}

func (d *directory) ClientIDByID(_ context.Context, id string) (string, error) {
	if c, ok := d.clients[id]; ok {
		return c, nil
	}
	return "", authz.ErrNotFound
}

var testDirectory = &directory{
	roles:   map[string]*authz.RoleInfo{"role-admin": {Name: "admin"}},
	groups:  map[string]string{"group-staff": "/staff"},
	clients: map[string]string{"client-web": "web-app"},
}

// loadSettings imports settings JSON into a new in-memory store and
// returns the store and resource server.
func loadSettings(
	tt *testing.T,
	settings string,
	mutate func(*authz.ResourceServerRepresentation),
) (*authzstore.Store, *authz.ResourceServer) {
	var rep authz.ResourceServerRepresentation
	assert.NoError(tt, json.Unmarshal([]byte(settings), &rep))
	if mutate != nil {
		mutate(&rep)
	}
	objs, err := rep.Objects("photoz-uuid", authz.DefaultProviders())
	assert.NoError(tt, err)
	store := authzstore.NewInMemory()
	rs, err := store.Import(context.Background(), objs)
	assert.NoError(tt, err)
	return store, rs
}

func testLog() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, nil))
}
