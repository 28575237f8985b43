package realm

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/uselagoon/keycloak-authz/internal/authz"
)

// GroupPath returns the full path of the group, such as /parent/child.
func (s *Store) GroupPath(ctx context.Context, g *Group) (string, error) {
	names := []string{g.Name}
	seen := map[string]bool{g.ID: true}
	for id := g.ParentID; id != ""; {
		if seen[id] {
			return "", fmt.Errorf("%w: group %s has a parent cycle", ErrInvalid, g.Name)
		}
		seen[id] = true
		parent, err := s.Group(ctx, id)
		if err != nil {
			return "", err
		}
		names = append(names, parent.Name)
		id = parent.ParentID
	}
	slices.Reverse(names)
	return "/" + strings.Join(names, "/"), nil
}

// EffectiveRoles returns the roles granted to the user directly, through
// its groups and their ancestors, and through composite roles, ordered by
// client and name. Roles which no longer exist are skipped.
func (s *Store) EffectiveRoles(ctx context.Context, u *User) ([]*Role, error) {
	queue := slices.Clone(u.RoleIDs)
	seenGroups := map[string]bool{}
	for _, id := range u.GroupIDs {
		for id != "" && !seenGroups[id] {
			seenGroups[id] = true
			g, err := s.Group(ctx, id)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					break
				}
				return nil, err
			}
			queue = append(queue, g.RoleIDs...)
			id = g.ParentID
		}
	}
	seen := map[string]bool{}
	var roles []*Role
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		r, err := s.Role(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		roles = append(roles, r)
		queue = append(queue, r.Composite...)
	}
	slices.SortFunc(roles, func(a, b *Role) int {
		return cmp.Or(cmp.Compare(a.ClientID, b.ClientID), cmp.Compare(a.Name, b.Name))
	})
	return roles, nil
}

// Identity builds the authorization identity of a stored user
// authenticating through the client with the given clientId.
func (s *Store) Identity(
	ctx context.Context,
	realmID, userID, clientID string,
) (*authz.Identity, error) {
	r, err := s.Realm(ctx, realmID)
	if err != nil {
		return nil, err
	}
	u, err := s.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.RealmID != realmID {
		return nil, fmt.Errorf("%w: user %s in realm %s", ErrNotFound, userID, r.Name)
	}
	if !r.Enabled || !u.Enabled {
		return nil, fmt.Errorf("%w: %s in realm %s", ErrUserDisabled, u.Username, r.Name)
	}
	roles, err := s.EffectiveRoles(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("couldn't get effective roles: %v", err)
	}
	identity := &authz.Identity{
		ID:       u.ID,
		Username: u.Username,
		ClientID: clientID,
		Claims: map[string]any{
			"sub":                u.ID,
			"preferred_username": u.Username,
		},
	}
	if u.Email != "" {
		identity.Claims["email"] = u.Email
	}
	for name, values := range u.Attributes {
		if _, ok := identity.Claims[name]; !ok {
			identity.Claims[name] = slices.Clone(values)
		}
	}
	clientIDs := map[string]string{}
	for _, role := range roles {
		if role.ClientID == "" {
			identity.RealmRoles = append(identity.RealmRoles, role.Name)
			continue
		}
		cid, ok := clientIDs[role.ClientID]
		if !ok {
			c, err := s.Client(ctx, role.ClientID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return nil, err
			}
			cid = c.ClientID
			clientIDs[role.ClientID] = cid
		}
		if identity.ClientRoles == nil {
			identity.ClientRoles = map[string][]string{}
		}
		identity.ClientRoles[cid] = append(identity.ClientRoles[cid], role.Name)
	}
	for _, id := range u.GroupIDs {
		g, err := s.Group(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		path, err := s.GroupPath(ctx, g)
		if err != nil {
			return nil, err
		}
		identity.Groups = append(identity.Groups, path)
	}
	slices.Sort(identity.Groups)
	return identity, nil
}

// RoleByID implements authz.Directory.
func (s *Store) RoleByID(ctx context.Context, id string) (*authz.RoleInfo, error) {
	r, err := s.Role(ctx, id)
	if err != nil {
		return nil, directoryError(err)
	}
	info := &authz.RoleInfo{Name: r.Name}
	if r.ClientID != "" {
		c, err := s.Client(ctx, r.ClientID)
		if err != nil {
			return nil, directoryError(err)
		}
		info.ClientID = c.ClientID
	}
	return info, nil
}

// GroupPathByID implements authz.Directory.
func (s *Store) GroupPathByID(ctx context.Context, id string) (string, error) {
	g, err := s.Group(ctx, id)
	if err != nil {
		return "", directoryError(err)
	}
	path, err := s.GroupPath(ctx, g)
	if err != nil {
		return "", directoryError(err)
	}
	return path, nil
}

// ClientIDByID implements authz.Directory.
func (s *Store) ClientIDByID(ctx context.Context, id string) (string, error) {
	c, err := s.Client(ctx, id)
	if err != nil {
		return "", directoryError(err)
	}
	return c.ClientID, nil
}

// directoryError maps ErrNotFound to authz.ErrNotFound.
func directoryError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %v", authz.ErrNotFound, err)
	}
	return err
}
