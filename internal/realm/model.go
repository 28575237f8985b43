// Package realm implements the realm model: realms and the users, groups,
// roles and clients they contain, stored in map storage. It resolves stored
// users to authorization identities.
package realm

import (
	"errors"

	"github.com/uselagoon/keycloak-authz/internal/mapstorage"
)

var (
	// ErrNotFound is returned when a realm object doesn't exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalid is returned when a realm object fails validation.
	ErrInvalid = errors.New("invalid realm object")
	// ErrUserDisabled is returned when building an identity for a disabled
	// user or a user of a disabled realm.
	ErrUserDisabled = errors.New("user disabled")
)

// Realm is a tenant boundary containing users, clients and roles.
type Realm struct {
	mapstorage.Meta
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// Role is a realm role, or a client role if ClientID is set.
type Role struct {
	mapstorage.Meta
	RealmID string `json:"realmId"`
	Name    string `json:"name"`
	// ClientID is the ID of the owning client, empty for realm roles.
	ClientID    string `json:"clientId,omitempty"`
	Description string `json:"description,omitempty"`
	// Composite holds the IDs of the roles this role includes.
	Composite []string `json:"composite,omitempty"`
}

// Client is an application registered in a realm.
type Client struct {
	mapstorage.Meta
	RealmID  string `json:"realmId"`
	ClientID string `json:"clientId"`
	Name     string `json:"name,omitempty"`
	Enabled  bool   `json:"enabled"`
}

// Group is a node of a realm's group tree.
type Group struct {
	mapstorage.Meta
	RealmID string `json:"realmId"`
	Name    string `json:"name"`
	// ParentID is empty for top level groups.
	ParentID string   `json:"parentId,omitempty"`
	RoleIDs  []string `json:"roleIds,omitempty"`
}

// User is a realm user.
type User struct {
	mapstorage.Meta
	RealmID    string              `json:"realmId"`
	Username   string              `json:"username"`
	Email      string              `json:"email,omitempty"`
	Enabled    bool                `json:"enabled"`
	Attributes map[string][]string `json:"attributes,omitempty"`
	GroupIDs   []string            `json:"groupIds,omitempty"`
	RoleIDs    []string            `json:"roleIds,omitempty"`
}
