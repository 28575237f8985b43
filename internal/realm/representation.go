package realm

import (
	"context"
	"fmt"
	"maps"
	"slices"
)

// RealmRepresentation is the JSON representation of a realm and its
// contents, in the shape of a Keycloak realm export. Objects refer to each
// other by name: roles by name and owning clientId, groups by path.
type RealmRepresentation struct {
	Realm       string                 `json:"realm"`
	DisplayName string                 `json:"displayName,omitempty"`
	Enabled     bool                   `json:"enabled"`
	Roles       RolesRepresentation    `json:"roles"`
	Clients     []ClientRepresentation `json:"clients,omitempty"`
	Groups      []GroupRepresentation  `json:"groups,omitempty"`
	Users       []UserRepresentation   `json:"users,omitempty"`
}

// RolesRepresentation holds the realm roles, and the client roles by
// clientId.
type RolesRepresentation struct {
	Realm  []RoleRepresentation            `json:"realm,omitempty"`
	Client map[string][]RoleRepresentation `json:"client,omitempty"`
}

// RoleRepresentation is the JSON representation of a role.
type RoleRepresentation struct {
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Composites  *CompositesReferences `json:"composites,omitempty"`
}

// CompositesReferences refers to realm roles by name and client roles by
// clientId and name.
type CompositesReferences struct {
	Realm  []string            `json:"realm,omitempty"`
	Client map[string][]string `json:"client,omitempty"`
}

// ClientRepresentation is the JSON representation of a client.
type ClientRepresentation struct {
	ClientID string `json:"clientId"`
	Name     string `json:"name,omitempty"`
	Enabled  bool   `json:"enabled"`
}

// GroupRepresentation is the JSON representation of a group and its
// subgroups.
type GroupRepresentation struct {
	Name        string                `json:"name"`
	RealmRoles  []string              `json:"realmRoles,omitempty"`
	ClientRoles map[string][]string   `json:"clientRoles,omitempty"`
	SubGroups   []GroupRepresentation `json:"subGroups,omitempty"`
}

// UserRepresentation is the JSON representation of a user. Groups are
// full group paths.
type UserRepresentation struct {
	Username    string              `json:"username"`
	Email       string              `json:"email,omitempty"`
	Enabled     bool                `json:"enabled"`
	Attributes  map[string][]string `json:"attributes,omitempty"`
	RealmRoles  []string            `json:"realmRoles,omitempty"`
	ClientRoles map[string][]string `json:"clientRoles,omitempty"`
	Groups      []string            `json:"groups,omitempty"`
}

// roleKey identifies a role by clientId and name. The clientId is empty for
// realm roles.
type roleKey struct {
	clientID string
	name     string
}

// importer holds the name to ID mappings of a realm being imported.
type importer struct {
	s       *Store
	realm   *Realm
	clients map[string]*Client
	roles   map[roleKey]*Role
	groups  map[string]string
}

func (im *importer) roleIDs(realmRoles []string, clientRoles map[string][]string) ([]string, error) {
	var ids []string
	for _, name := range realmRoles {
		r, ok := im.roles[roleKey{name: name}]
		if !ok {
			return nil, fmt.Errorf("%w: realm role %s", ErrNotFound, name)
		}
		ids = append(ids, r.ID)
	}
	for _, clientID := range slices.Sorted(maps.Keys(clientRoles)) {
		for _, name := range clientRoles[clientID] {
			r, ok := im.roles[roleKey{clientID: clientID, name: name}]
			if !ok {
				return nil, fmt.Errorf("%w: role %s of client %s",
					ErrNotFound, name, clientID)
			}
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

func (im *importer) createRoles(ctx context.Context, rep *RolesRepresentation) error {
	create := func(clientID string, rr RoleRepresentation) error {
		role := &Role{
			RealmID:     im.realm.ID,
			Name:        rr.Name,
			Description: rr.Description,
		}
		if clientID != "" {
			c, ok := im.clients[clientID]
			if !ok {
				return fmt.Errorf("%w: client %s of role %s", ErrNotFound, clientID, rr.Name)
			}
			role.ClientID = c.ID
		}
		created, err := im.s.CreateRole(ctx, role)
		if err != nil {
			return fmt.Errorf("couldn't create role %s: %w", rr.Name, err)
		}
		im.roles[roleKey{clientID: clientID, name: rr.Name}] = created
		return nil
	}
	for _, rr := range rep.Realm {
		if err := create("", rr); err != nil {
			return err
		}
	}
	clientIDs := slices.Sorted(maps.Keys(rep.Client))
	for _, clientID := range clientIDs {
		for _, rr := range rep.Client[clientID] {
			if err := create(clientID, rr); err != nil {
				return err
			}
		}
	}
	// composites may refer to any role so are set once every role exists
	setComposites := func(clientID string, rr RoleRepresentation) error {
		if rr.Composites == nil {
			return nil
		}
		ids, err := im.roleIDs(rr.Composites.Realm, rr.Composites.Client)
		if err != nil {
			return fmt.Errorf("composites of role %s: %w", rr.Name, err)
		}
		role := im.roles[roleKey{clientID: clientID, name: rr.Name}]
		role.Composite = ids
		return im.s.UpdateRole(ctx, role)
	}
	for _, rr := range rep.Realm {
		if err := setComposites("", rr); err != nil {
			return err
		}
	}
	for _, clientID := range clientIDs {
		for _, rr := range rep.Client[clientID] {
			if err := setComposites(clientID, rr); err != nil {
				return err
			}
		}
	}
	return nil
}

func (im *importer) createGroups(
	ctx context.Context,
	parentID,
	parentPath string,
	reps []GroupRepresentation,
) error {
	for _, gr := range reps {
		roleIDs, err := im.roleIDs(gr.RealmRoles, gr.ClientRoles)
		if err != nil {
			return fmt.Errorf("roles of group %s: %w", gr.Name, err)
		}
		g, err := im.s.CreateGroup(ctx, &Group{
			RealmID:  im.realm.ID,
			Name:     gr.Name,
			ParentID: parentID,
			RoleIDs:  roleIDs,
		})
		if err != nil {
			return fmt.Errorf("couldn't create group %s: %w", gr.Name, err)
		}
		path := parentPath + "/" + gr.Name
		im.groups[path] = g.ID
		if err = im.createGroups(ctx, g.ID, path, gr.SubGroups); err != nil {
			return err
		}
	}
	return nil
}

// Import creates the realm described by rep. References are resolved by
// name, and unknown references fail the import. Objects are created one at a
// time, so a failed import leaves the objects created before the failure in
// place.
func (s *Store) Import(ctx context.Context, rep *RealmRepresentation) (*Realm, error) {
	r, err := s.CreateRealm(ctx, &Realm{
		Name:        rep.Realm,
		DisplayName: rep.DisplayName,
		Enabled:     rep.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't create realm %s: %w", rep.Realm, err)
	}
	im := importer{
		s:       s,
		realm:   r,
		clients: map[string]*Client{},
		roles:   map[roleKey]*Role{},
		groups:  map[string]string{},
	}
	for _, cr := range rep.Clients {
		c, err := s.CreateClient(ctx, &Client{
			RealmID:  r.ID,
			ClientID: cr.ClientID,
			Name:     cr.Name,
			Enabled:  cr.Enabled,
		})
		if err != nil {
			return nil, fmt.Errorf("couldn't create client %s: %w", cr.ClientID, err)
		}
		im.clients[cr.ClientID] = c
	}
	if err = im.createRoles(ctx, &rep.Roles); err != nil {
		return nil, err
	}
	if err = im.createGroups(ctx, "", "", rep.Groups); err != nil {
		return nil, err
	}
	for _, ur := range rep.Users {
		roleIDs, err := im.roleIDs(ur.RealmRoles, ur.ClientRoles)
		if err != nil {
			return nil, fmt.Errorf("roles of user %s: %w", ur.Username, err)
		}
		var groupIDs []string
		for _, path := range ur.Groups {
			id, ok := im.groups[path]
			if !ok {
				return nil, fmt.Errorf("%w: group %s of user %s",
					ErrNotFound, path, ur.Username)
			}
			groupIDs = append(groupIDs, id)
		}
		_, err = s.CreateUser(ctx, &User{
			RealmID:    r.ID,
			Username:   ur.Username,
			Email:      ur.Email,
			Enabled:    ur.Enabled,
			Attributes: ur.Attributes,
			GroupIDs:   groupIDs,
			RoleIDs:    roleIDs,
		})
		if err != nil {
			return nil, fmt.Errorf("couldn't create user %s: %w", ur.Username, err)
		}
	}
	return r, nil
}
