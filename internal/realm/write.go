package realm

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/uselagoon/keycloak-authz/internal/mapstorage"
)

// CreateRealm stores a new realm. Realm names are unique.
func (s *Store) CreateRealm(ctx context.Context, r *Realm) (*Realm, error) {
	var created *Realm
	err := s.inTransaction(ctx, "CreateRealm", func(tx *txSet) error {
		if err := checkRealm(ctx, tx, r); err != nil {
			return err
		}
		var err error
		created, err = tx.realms.Create(ctx, r)
		return err
	})
	return created, err
}

// UpdateRealm replaces a realm.
func (s *Store) UpdateRealm(ctx context.Context, r *Realm) error {
	return s.inTransaction(ctx, "UpdateRealm", func(tx *txSet) error {
		if err := checkRealm(ctx, tx, r); err != nil {
			return err
		}
		return tx.realms.Update(ctx, r)
	})
}

func checkRealm(ctx context.Context, tx *txSet, r *Realm) error {
	if r.Name == "" {
		return fmt.Errorf("%w: realm without name", ErrInvalid)
	}
	return tx.realms.Unique(ctx,
		mapstorage.Compare(FieldName, mapstorage.EQ, r.Name), r.ID, "name "+r.Name)
}

// DeleteRealm deletes a realm and everything in it.
func (s *Store) DeleteRealm(ctx context.Context, id string) error {
	return s.inTransaction(ctx, "DeleteRealm", func(tx *txSet) error {
		ok, err := tx.realms.Delete(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: realm %s", ErrNotFound, id)
		}
		if _, err = tx.roles.DeleteMatching(ctx, inRealm(id)); err != nil {
			return err
		}
		if _, err = tx.clients.DeleteMatching(ctx, inRealm(id)); err != nil {
			return err
		}
		if _, err = tx.groups.DeleteMatching(ctx, inRealm(id)); err != nil {
			return err
		}
		_, err = tx.users.DeleteMatching(ctx, inRealm(id))
		return err
	})
}

func checkRealmExists(ctx context.Context, tx *txSet, id string) error {
	ok, err := tx.realms.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: realm %s", ErrNotFound, id)
	}
	return nil
}

func checkRole(ctx context.Context, tx *txSet, r *Role) error {
	if r.Name == "" {
		return fmt.Errorf("%w: role without name", ErrInvalid)
	}
	if err := checkRealmExists(ctx, tx, r.RealmID); err != nil {
		return err
	}
	if r.ClientID != "" {
		if err := inRealmTx(ctx, tx.clients, r.RealmID, []string{r.ClientID}, realmOfClient); err != nil {
			return err
		}
	}
	err := tx.roles.Unique(ctx, inRealm(r.RealmID).And(
		equalOrUnset(FieldClientID, r.ClientID),
		mapstorage.Compare(FieldName, mapstorage.EQ, r.Name)),
		r.ID, "name "+r.Name)
	if err != nil {
		return err
	}
	if r.ID != "" && slices.Contains(r.Composite, r.ID) {
		return fmt.Errorf("%w: role %s includes itself", ErrInvalid, r.Name)
	}
	return inRealmTx(ctx, tx.roles, r.RealmID, r.Composite, realmOfRole)
}

// CreateRole stores a new realm or client role. Role names are unique per
// realm and client, and composite children must exist in the realm.
func (s *Store) CreateRole(ctx context.Context, r *Role) (*Role, error) {
	var created *Role
	err := s.inTransaction(ctx, "CreateRole", func(tx *txSet) error {
		if err := checkRole(ctx, tx, r); err != nil {
			return err
		}
		var err error
		created, err = tx.roles.Create(ctx, r)
		return err
	})
	return created, err
}

// UpdateRole replaces a role.
func (s *Store) UpdateRole(ctx context.Context, r *Role) error {
	return s.inTransaction(ctx, "UpdateRole", func(tx *txSet) error {
		if err := checkRole(ctx, tx, r); err != nil {
			return err
		}
		return tx.roles.Update(ctx, r)
	})
}

// DeleteRole deletes a role and removes it from composite roles, groups and
// users.
func (s *Store) DeleteRole(ctx context.Context, id string) error {
	return s.inTransaction(ctx, "DeleteRole", func(tx *txSet) error {
		return deleteRoles(ctx, tx, []string{id}, true)
	})
}

// deleteRoles deletes the roles and every reference to them. If strict is
// true a missing role is an error.
func deleteRoles(ctx context.Context, tx *txSet, ids []string, strict bool) error {
	for _, id := range ids {
		ok, err := tx.roles.Delete(ctx, id)
		if err != nil {
			return err
		}
		if !ok && strict {
			return fmt.Errorf("%w: role %s", ErrNotFound, id)
		}
		err = detach(ctx, tx.roles, FieldRoleID, id,
			func(r *Role) *[]string { return &r.Composite })
		if err != nil {
			return err
		}
		err = detach(ctx, tx.groups, FieldRoleID, id,
			func(g *Group) *[]string { return &g.RoleIDs })
		if err != nil {
			return err
		}
		err = detach(ctx, tx.users, FieldRoleID, id,
			func(u *User) *[]string { return &u.RoleIDs })
		if err != nil {
			return err
		}
	}
	return nil
}

// detach removes id from the reference list of every entity whose field
// contains it.
func detach[V mapstorage.Entity](
	ctx context.Context,
	tx *mapstorage.Transaction[V],
	field mapstorage.Field,
	id string,
	refs func(V) *[]string,
) error {
	vs, err := tx.Query(ctx, mapstorage.Where(
		mapstorage.Compare(field, mapstorage.EQ, id)))
	if err != nil {
		return err
	}
	for _, v := range vs {
		ids := refs(v)
		*ids = slices.DeleteFunc(*ids, func(ref string) bool { return ref == id })
		if err = tx.Update(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

func checkClient(ctx context.Context, tx *txSet, c *Client) error {
	if c.ClientID == "" {
		return fmt.Errorf("%w: client without clientId", ErrInvalid)
	}
	if err := checkRealmExists(ctx, tx, c.RealmID); err != nil {
		return err
	}
	return tx.clients.Unique(ctx, inRealm(c.RealmID).And(
		mapstorage.Compare(FieldClientID, mapstorage.EQ, c.ClientID)),
		c.ID, "clientId "+c.ClientID)
}

// CreateClient stores a new client. The clientId is unique per realm.
func (s *Store) CreateClient(ctx context.Context, c *Client) (*Client, error) {
	var created *Client
	err := s.inTransaction(ctx, "CreateClient", func(tx *txSet) error {
		if err := checkClient(ctx, tx, c); err != nil {
			return err
		}
		var err error
		created, err = tx.clients.Create(ctx, c)
		return err
	})
	return created, err
}

// UpdateClient replaces a client.
func (s *Store) UpdateClient(ctx context.Context, c *Client) error {
	return s.inTransaction(ctx, "UpdateClient", func(tx *txSet) error {
		if err := checkClient(ctx, tx, c); err != nil {
			return err
		}
		return tx.clients.Update(ctx, c)
	})
}

// DeleteClient deletes a client and its roles.
func (s *Store) DeleteClient(ctx context.Context, id string) error {
	return s.inTransaction(ctx, "DeleteClient", func(tx *txSet) error {
		ok, err := tx.clients.Delete(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: client %s", ErrNotFound, id)
		}
		roles, err := tx.roles.Query(ctx, mapstorage.Where(
			mapstorage.Compare(FieldClientID, mapstorage.EQ, id)))
		if err != nil {
			return err
		}
		ids := make([]string, len(roles))
		for i, r := range roles {
			ids[i] = r.ID
		}
		return deleteRoles(ctx, tx, ids, false)
	})
}

func checkGroup(ctx context.Context, tx *txSet, g *Group) error {
	if g.Name == "" || strings.Contains(g.Name, "/") {
		return fmt.Errorf("%w: group name %q", ErrInvalid, g.Name)
	}
	if err := checkRealmExists(ctx, tx, g.RealmID); err != nil {
		return err
	}
	if g.ParentID != "" {
		if err := inRealmTx(ctx, tx.groups, g.RealmID, []string{g.ParentID}, realmOfGroup); err != nil {
			return err
		}
		// the new parent must not be the group itself or a descendant
		for id := g.ParentID; id != ""; {
			if id == g.ID {
				return fmt.Errorf("%w: group %s would be its own ancestor", ErrInvalid, g.Name)
			}
			parent, err := tx.groups.Read(ctx, id)
			if err != nil {
				return err
			}
			id = parent.ParentID
		}
	}
	err := tx.groups.Unique(ctx, inRealm(g.RealmID).And(
		equalOrUnset(FieldParentID, g.ParentID),
		mapstorage.Compare(FieldName, mapstorage.EQ, g.Name)),
		g.ID, "name "+g.Name)
	if err != nil {
		return err
	}
	return inRealmTx(ctx, tx.roles, g.RealmID, g.RoleIDs, realmOfRole)
}

// CreateGroup stores a new group. Group names are unique among siblings.
func (s *Store) CreateGroup(ctx context.Context, g *Group) (*Group, error) {
	var created *Group
	err := s.inTransaction(ctx, "CreateGroup", func(tx *txSet) error {
		if err := checkGroup(ctx, tx, g); err != nil {
			return err
		}
		var err error
		created, err = tx.groups.Create(ctx, g)
		return err
	})
	return created, err
}

// UpdateGroup replaces a group. Moving a group below one of its descendants
// is rejected.
func (s *Store) UpdateGroup(ctx context.Context, g *Group) error {
	return s.inTransaction(ctx, "UpdateGroup", func(tx *txSet) error {
		if err := checkGroup(ctx, tx, g); err != nil {
			return err
		}
		return tx.groups.Update(ctx, g)
	})
}

// DeleteGroup deletes a group and its subgroups, and removes them from
// their members.
func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	return s.inTransaction(ctx, "DeleteGroup", func(tx *txSet) error {
		ok, err := tx.groups.Exists(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: group %s", ErrNotFound, id)
		}
		return deleteGroup(ctx, tx, id)
	})
}

func deleteGroup(ctx context.Context, tx *txSet, id string) error {
	children, err := tx.groups.Query(ctx, mapstorage.Where(
		mapstorage.Compare(FieldParentID, mapstorage.EQ, id)))
	if err != nil {
		return err
	}
	for _, child := range children {
		if err = deleteGroup(ctx, tx, child.ID); err != nil {
			return err
		}
	}
	if _, err = tx.groups.Delete(ctx, id); err != nil {
		return err
	}
	return detach(ctx, tx.users, FieldGroupID, id,
		func(u *User) *[]string { return &u.GroupIDs })
}

func checkUser(ctx context.Context, tx *txSet, u *User) error {
	u.Username = strings.ToLower(u.Username)
	if u.Username == "" {
		return fmt.Errorf("%w: user without username", ErrInvalid)
	}
	if err := checkRealmExists(ctx, tx, u.RealmID); err != nil {
		return err
	}
	err := tx.users.Unique(ctx, inRealm(u.RealmID).And(
		mapstorage.Compare(FieldUsername, mapstorage.EQ, u.Username)),
		u.ID, "username "+u.Username)
	if err != nil {
		return err
	}
	if err = inRealmTx(ctx, tx.groups, u.RealmID, u.GroupIDs, realmOfGroup); err != nil {
		return err
	}
	return inRealmTx(ctx, tx.roles, u.RealmID, u.RoleIDs, realmOfRole)
}

// CreateUser stores a new user. Usernames are stored in lower case and are
// unique per realm.
func (s *Store) CreateUser(ctx context.Context, u *User) (*User, error) {
	var created *User
	err := s.inTransaction(ctx, "CreateUser", func(tx *txSet) error {
		if err := checkUser(ctx, tx, u); err != nil {
			return err
		}
		var err error
		created, err = tx.users.Create(ctx, u)
		return err
	})
	return created, err
}

// UpdateUser replaces a user.
func (s *Store) UpdateUser(ctx context.Context, u *User) error {
	return s.inTransaction(ctx, "UpdateUser", func(tx *txSet) error {
		if err := checkUser(ctx, tx, u); err != nil {
			return err
		}
		return tx.users.Update(ctx, u)
	})
}

// DeleteUser deletes a user.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.inTransaction(ctx, "DeleteUser", func(tx *txSet) error {
		ok, err := tx.users.Delete(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: user %s", ErrNotFound, id)
		}
		return nil
	})
}
