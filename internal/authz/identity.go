package authz

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// Well known context attributes.
const (
	AttrDateTime  = "kc.time.date_time"
	AttrClientIP  = "kc.client.network.ip_address"
	AttrClientUA  = "kc.client.user_agent"
	AttrRealmName = "kc.realm.name"
)

// DateTimeLayout is the layout of time values in policy configuration and
// the kc.time.date_time attribute.
const DateTimeLayout = "2006-01-02 15:04:05"

// Identity is the subject of an evaluation.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	// RealmRoles are role names.
	RealmRoles []string `json:"realmRoles,omitempty"`
	// ClientRoles maps clientId to role names.
	ClientRoles map[string][]string `json:"clientRoles,omitempty"`
	// Groups are full group paths.
	Groups []string `json:"groups,omitempty"`
	// ClientID is the clientId the identity authenticated through.
	ClientID string `json:"clientId,omitempty"`
	// Scopes are the granted client scope names.
	Scopes []string       `json:"scopes,omitempty"`
	Claims map[string]any `json:"claims,omitempty"`
}

// LogValue implements the slog.LogValuer interface.
func (i *Identity) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", i.ID),
		slog.String("username", i.Username),
		slog.String("clientID", i.ClientID),
	)
}

// HasRealmRole reports whether the identity has the named realm role.
func (i *Identity) HasRealmRole(name string) bool {
	return slices.Contains(i.RealmRoles, name)
}

// HasClientRole reports whether the identity has the named role of the
// client with the given clientId.
func (i *Identity) HasClientRole(clientID, name string) bool {
	return slices.Contains(i.ClientRoles[clientID], name)
}

// InGroup reports whether the identity is a member of the group with the
// given path. If children is true membership of a descendant group counts.
func (i *Identity) InGroup(path string, children bool) bool {
	for _, g := range i.Groups {
		if g == path {
			return true
		}
		if children && strings.HasPrefix(g, strings.TrimSuffix(path, "/")+"/") {
			return true
		}
	}
	return false
}

// HasScope reports whether the named client scope was granted.
func (i *Identity) HasScope(name string) bool {
	return slices.Contains(i.Scopes, name)
}

// Context is the environment a policy is evaluated in.
type Context struct {
	Identity *Identity
	// Time is the evaluation time.
	Time       time.Time
	Attributes map[string][]string
}

// NewContext returns a Context for the given identity evaluated at now.
// The kc.time.date_time attribute is set from now unless present in attrs.
func NewContext(identity *Identity, now time.Time, attrs map[string][]string) *Context {
	attributes := map[string][]string{}
	for k, v := range attrs {
		attributes[k] = slices.Clone(v)
	}
	if _, ok := attributes[AttrDateTime]; !ok {
		attributes[AttrDateTime] = []string{now.Format(DateTimeLayout)}
	}
	return &Context{
		Identity:   identity,
		Time:       now,
		Attributes: attributes,
	}
}

// Now returns the evaluation time, taken from the kc.time.date_time
// attribute if it is set and valid.
func (c *Context) Now() time.Time {
	if v := c.Attributes[AttrDateTime]; len(v) > 0 {
		if t, err := time.ParseInLocation(DateTimeLayout, v[0], c.location()); err == nil {
			return t
		}
	}
	return c.Time
}

func (c *Context) location() *time.Location {
	if c.Time.IsZero() {
		return time.Local
	}
	return c.Time.Location()
}

// RoleInfo describes a role resolved by ID.
type RoleInfo struct {
	Name string
	// ClientID is the clientId of the owning client, or empty for realm
	// roles.
	ClientID string
}

// Directory resolves the identifiers found in policy configuration.
// Implementations return ErrNotFound for unknown identifiers.
type Directory interface {
	RoleByID(ctx context.Context, id string) (*RoleInfo, error)
	GroupPathByID(ctx context.Context, id string) (string, error)
	ClientIDByID(ctx context.Context, id string) (string, error)
}
