package realm

import (
	"strings"

	"github.com/uselagoon/keycloak-authz/internal/mapstorage"
)

// Searchable fields.
const (
	FieldRealmID  mapstorage.Field = "realmId"
	FieldName     mapstorage.Field = "name"
	FieldClientID mapstorage.Field = "clientId"
	FieldParentID mapstorage.Field = "parentId"
	FieldUsername mapstorage.Field = "username"
	FieldEmail    mapstorage.Field = "email"
	FieldRoleID   mapstorage.Field = "roleId"
	FieldGroupID  mapstorage.Field = "groupId"
	FieldEnabled  mapstorage.Field = "enabled"
)

// RealmSchema is the map storage schema of realms.
var RealmSchema = &mapstorage.Schema[*Realm]{
	Name: "realm",
	New:  func() *Realm { return &Realm{} },
	Fields: map[mapstorage.Field]mapstorage.FieldFunc[*Realm]{
		FieldName:    func(r *Realm) []any { return mapstorage.String(r.Name) },
		FieldEnabled: func(r *Realm) []any { return []any{r.Enabled} },
	},
}

// RoleSchema is the map storage schema of roles. The roleId field holds
// the IDs of composite children.
var RoleSchema = &mapstorage.Schema[*Role]{
	Name: "realm_role",
	New:  func() *Role { return &Role{} },
	Fields: map[mapstorage.Field]mapstorage.FieldFunc[*Role]{
		FieldRealmID:  func(r *Role) []any { return mapstorage.String(r.RealmID) },
		FieldName:     func(r *Role) []any { return mapstorage.String(r.Name) },
		FieldClientID: func(r *Role) []any { return mapstorage.String(r.ClientID) },
		FieldRoleID:   func(r *Role) []any { return mapstorage.Strings(r.Composite) },
	},
}

// ClientSchema is the map storage schema of clients.
var ClientSchema = &mapstorage.Schema[*Client]{
	Name: "realm_client",
	New:  func() *Client { return &Client{} },
	Fields: map[mapstorage.Field]mapstorage.FieldFunc[*Client]{
		FieldRealmID:  func(c *Client) []any { return mapstorage.String(c.RealmID) },
		FieldClientID: func(c *Client) []any { return mapstorage.String(c.ClientID) },
		FieldEnabled:  func(c *Client) []any { return []any{c.Enabled} },
	},
}

// GroupSchema is the map storage schema of groups.
var GroupSchema = &mapstorage.Schema[*Group]{
	Name: "realm_group",
	New:  func() *Group { return &Group{} },
	Fields: map[mapstorage.Field]mapstorage.FieldFunc[*Group]{
		FieldRealmID:  func(g *Group) []any { return mapstorage.String(g.RealmID) },
		FieldName:     func(g *Group) []any { return mapstorage.String(g.Name) },
		FieldParentID: func(g *Group) []any { return mapstorage.String(g.ParentID) },
		FieldRoleID:   func(g *Group) []any { return mapstorage.Strings(g.RoleIDs) },
	},
}

// UserSchema is the map storage schema of users. Email is indexed in lower
// case.
var UserSchema = &mapstorage.Schema[*User]{
	Name: "realm_user",
	New:  func() *User { return &User{} },
	Fields: map[mapstorage.Field]mapstorage.FieldFunc[*User]{
		FieldRealmID:  func(u *User) []any { return mapstorage.String(u.RealmID) },
		FieldUsername: func(u *User) []any { return mapstorage.String(u.Username) },
		FieldEmail: func(u *User) []any {
			return mapstorage.String(strings.ToLower(u.Email))
		},
		FieldEnabled: func(u *User) []any { return []any{u.Enabled} },
		FieldGroupID: func(u *User) []any { return mapstorage.Strings(u.GroupIDs) },
		FieldRoleID:  func(u *User) []any { return mapstorage.Strings(u.RoleIDs) },
	},
}
