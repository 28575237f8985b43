package keycloak

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/uselagoon/keycloak-authz/internal/authz"
	"go.opentelemetry.io/otel"
)

// Role is a Keycloak role representation.
type Role struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Composite  bool   `json:"composite"`
	ClientRole bool   `json:"clientRole"`
	// ContainerID is the realm ID of realm roles, or the client UUID of
	// client roles.
	ContainerID string `json:"containerId"`
}

// Group is a Keycloak group representation.
type Group struct {
	ID         string              `json:"id"`
	ParentID   string              `json:"parentId,omitempty"`
	Name       string              `json:"name"`
	Attributes map[string][]string `json:"attributes,omitempty"`
	RealmRoles []string            `json:"realmRoles,omitempty"`
}

// ClientRepresentation is a Keycloak client representation.
type ClientRepresentation struct {
	ID       string `json:"id"`
	ClientID string `json:"clientId"`
	Enabled  bool   `json:"enabled"`
}

// Role returns the role with the given ID.
func (c *Client) Role(ctx context.Context, id string) (*Role, error) {
	if role, ok := c.roleCache.Get(id); ok {
		return &role, nil
	}
	var role Role
	if err := c.getAdmin(ctx, "role", nil, &role, "roles-by-id", id); err != nil {
		return nil, err
	}
	c.roleCache.Set(id, role)
	return &role, nil
}

// Group returns the group with the given ID.
func (c *Client) Group(ctx context.Context, id string) (*Group, error) {
	if group, ok := c.groupCache.Get(id); ok {
		return &group, nil
	}
	var group Group
	if err := c.getAdmin(ctx, "group", nil, &group, "groups", id); err != nil {
		return nil, err
	}
	if group.ID == "" {
		return nil, fmt.Errorf("group with empty ID: %v", group)
	}
	c.groupCache.Set(id, group)
	return &group, nil
}

// ClientByID returns the client with the given UUID.
func (c *Client) ClientByID(
	ctx context.Context,
	id string,
) (*ClientRepresentation, error) {
	if cr, ok := c.clientCache.Get(id); ok {
		return &cr, nil
	}
	var cr ClientRepresentation
	if err := c.getAdmin(ctx, "client", nil, &cr, "clients", id); err != nil {
		return nil, err
	}
	c.clientCache.Set(id, cr)
	return &cr, nil
}

// TopLevelGroups returns every top-level group of the realm, scrolling
// through the paged listing.
func (c *Client) TopLevelGroups(ctx context.Context) ([]Group, error) {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "TopLevelGroups")
	defer span.End()
	// prefer to use cached value
	if groups, ok := c.topLevelGroups.Get(); ok {
		return groups, nil
	}
	var groups []Group
	var first int
	for {
		var page []Group
		q := url.Values{}
		q.Add("briefRepresentation", "true")
		q.Add("first", strconv.Itoa(first))
		q.Add("max", strconv.Itoa(c.pageSize))
		if err := c.getAdmin(ctx, "groups", q, &page, "groups"); err != nil {
			return nil, fmt.Errorf("couldn't get groups from Keycloak API: %v", err)
		}
		groups = append(groups, page...)
		if len(page) < c.pageSize {
			break // reached last page
		}
		first += c.pageSize
	}
	for _, group := range groups {
		c.groupCache.Set(group.ID, group)
	}
	c.topLevelGroups.Set(groups)
	return groups, nil
}

// ancestorGroups returns the chain of ancestors of the given group, parent
// first.
func (c *Client) ancestorGroups(ctx context.Context, g *Group) ([]*Group, error) {
	var ancestors []*Group
	seen := map[string]bool{g.ID: true}
	for id := g.ParentID; id != ""; {
		if seen[id] {
			return nil, fmt.Errorf("group %s has a parent cycle", g.ID)
		}
		seen[id] = true
		parent, err := c.Group(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("couldn't get ancestor %s of %s: %w", id, g.ID, err)
		}
		ancestors = append(ancestors, parent)
		id = parent.ParentID
	}
	return ancestors, nil
}

// GroupPath returns the full path of the group with the given ID, such as
// /parent/child.
func (c *Client) GroupPath(ctx context.Context, id string) (string, error) {
	g, err := c.Group(ctx, id)
	if err != nil {
		return "", err
	}
	ancestors, err := c.ancestorGroups(ctx, g)
	if err != nil {
		return "", err
	}
	names := []string{g.Name}
	for _, a := range ancestors {
		names = append(names, a.Name)
	}
	slices.Reverse(names)
	return "/" + strings.Join(names, "/"), nil
}

// RoleByID implements authz.Directory.
func (c *Client) RoleByID(ctx context.Context, id string) (*authz.RoleInfo, error) {
	role, err := c.Role(ctx, id)
	if err != nil {
		return nil, err
	}
	info := &authz.RoleInfo{Name: role.Name}
	if role.ClientRole {
		cr, err := c.ClientByID(ctx, role.ContainerID)
		if err != nil {
			return nil, fmt.Errorf("couldn't get client of role %s: %w", role.Name, err)
		}
		info.ClientID = cr.ClientID
	}
	return info, nil
}

// GroupPathByID implements authz.Directory.
func (c *Client) GroupPathByID(ctx context.Context, id string) (string, error) {
	return c.GroupPath(ctx, id)
}

// ClientIDByID implements authz.Directory.
func (c *Client) ClientIDByID(ctx context.Context, id string) (string, error) {
	cr, err := c.ClientByID(ctx, id)
	if err != nil {
		return "", err
	}
	return cr.ClientID, nil
}

// Realm returns the name of the Client's realm.
func (c *Client) Realm() string {
	return c.realm
}

// ClientUUID returns the UUID of the client with the given clientId.
func (c *Client) ClientUUID(ctx context.Context, clientID string) (string, error) {
	// prefer to use cached value
	if id, ok := c.clientUUIDCache.Get(clientID); ok {
		return id, nil
	}
	var crs []ClientRepresentation
	q := url.Values{}
	q.Add("clientId", clientID)
	if err := c.getAdmin(ctx, "clients", q, &crs, "clients"); err != nil {
		return "", err
	}
	for _, cr := range crs {
		if cr.ClientID == clientID {
			c.clientCache.Set(cr.ID, cr)
			c.clientUUIDCache.Set(clientID, cr.ID)
			return cr.ID, nil
		}
	}
	return "", fmt.Errorf("%w: client %s", authz.ErrNotFound, clientID)
}
