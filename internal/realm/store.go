package realm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/uselagoon/keycloak-authz/internal/mapstorage"
	"github.com/uselagoon/keycloak-authz/internal/mapstorage/chm"
	"go.opentelemetry.io/otel"
)

const pkgName = "github.com/uselagoon/keycloak-authz/internal/realm"

// Store holds realms and their contents.
type Store struct {
	realms  *mapstorage.Storage[*Realm]
	roles   *mapstorage.Storage[*Role]
	clients *mapstorage.Storage[*Client]
	groups  *mapstorage.Storage[*Group]
	users   *mapstorage.Storage[*User]
}

// New returns a Store persisted in the given backends.
func New(
	realms mapstorage.Backend[*Realm],
	roles mapstorage.Backend[*Role],
	clients mapstorage.Backend[*Client],
	groups mapstorage.Backend[*Group],
	users mapstorage.Backend[*User],
) *Store {
	return &Store{
		realms:  mapstorage.NewStorage(RealmSchema, realms),
		roles:   mapstorage.NewStorage(RoleSchema, roles),
		clients: mapstorage.NewStorage(ClientSchema, clients),
		groups:  mapstorage.NewStorage(GroupSchema, groups),
		users:   mapstorage.NewStorage(UserSchema, users),
	}
}

// NewInMemory returns a Store persisted in memory.
func NewInMemory() *Store {
	return New(
		chm.New(RealmSchema),
		chm.New(RoleSchema),
		chm.New(ClientSchema),
		chm.New(GroupSchema),
		chm.New(UserSchema))
}

// Close closes the underlying storages.
func (s *Store) Close() error {
	return errors.Join(
		s.realms.Close(),
		s.roles.Close(),
		s.clients.Close(),
		s.groups.Close(),
		s.users.Close())
}

func inRealm(realmID string) mapstorage.Criteria {
	return mapstorage.Compare(FieldRealmID, mapstorage.EQ, realmID)
}

// equalOrUnset matches entities whose field equals value, or which don't
// have the field if value is empty.
func equalOrUnset(f mapstorage.Field, value string) mapstorage.Criteria {
	if value == "" {
		return mapstorage.Compare(f, mapstorage.NOT_EXISTS)
	}
	return mapstorage.Compare(f, mapstorage.EQ, value)
}

func read[V mapstorage.Entity](
	ctx context.Context,
	s *mapstorage.Storage[V],
	id string,
) (V, error) {
	v, err := s.Read(ctx, id)
	if err != nil {
		var zero V
		if mapstorage.IsNotFound(err) {
			return zero, fmt.Errorf("%w: %s %s", ErrNotFound, s.Schema().Name, id)
		}
		return zero, fmt.Errorf("couldn't read %s %s: %v", s.Schema().Name, id, err)
	}
	return v, nil
}

func first[V mapstorage.Entity](
	ctx context.Context,
	s *mapstorage.Storage[V],
	c mapstorage.Criteria,
	what string,
) (V, error) {
	var zero V
	vs, err := s.Query(ctx, mapstorage.QueryParameters{Criteria: c, Limit: 1})
	if err != nil {
		return zero, fmt.Errorf("couldn't query %s: %v", s.Schema().Name, err)
	}
	if len(vs) == 0 {
		return zero, fmt.Errorf("%w: %s %s", ErrNotFound, s.Schema().Name, what)
	}
	return vs[0], nil
}

func list[V mapstorage.Entity](
	ctx context.Context,
	s *mapstorage.Storage[V],
	qp mapstorage.QueryParameters,
) ([]V, error) {
	vs, err := s.Query(ctx, qp)
	if err != nil {
		return nil, fmt.Errorf("couldn't query %s: %v", s.Schema().Name, err)
	}
	return vs, nil
}

// Realm returns the realm with the given ID.
func (s *Store) Realm(ctx context.Context, id string) (*Realm, error) {
	return read(ctx, s.realms, id)
}

// RealmByName returns the named realm.
func (s *Store) RealmByName(ctx context.Context, name string) (*Realm, error) {
	return first(ctx, s.realms, mapstorage.Compare(FieldName, mapstorage.EQ, name), name)
}

// Realms returns every realm ordered by name.
func (s *Store) Realms(ctx context.Context) ([]*Realm, error) {
	return list(ctx, s.realms, mapstorage.QueryParameters{
		OrderBy: []mapstorage.Order{{Field: FieldName}},
	})
}

// Role returns the role with the given ID.
func (s *Store) Role(ctx context.Context, id string) (*Role, error) {
	return read(ctx, s.roles, id)
}

// RoleByName returns the named role of the realm, or of the client with the
// given ID if clientID is not empty.
func (s *Store) RoleByName(ctx context.Context, realmID, clientID, name string) (*Role, error) {
	return first(ctx, s.roles, inRealm(realmID).And(
		equalOrUnset(FieldClientID, clientID),
		mapstorage.Compare(FieldName, mapstorage.EQ, name)), name)
}

// Roles returns the realm roles, or the roles of the client with the given
// ID if clientID is not empty, ordered by name.
func (s *Store) Roles(ctx context.Context, realmID, clientID string) ([]*Role, error) {
	return list(ctx, s.roles, mapstorage.QueryParameters{
		Criteria: inRealm(realmID).And(equalOrUnset(FieldClientID, clientID)),
		OrderBy:  []mapstorage.Order{{Field: FieldName}},
	})
}

// Client returns the client with the given ID.
func (s *Store) Client(ctx context.Context, id string) (*Client, error) {
	return read(ctx, s.clients, id)
}

// ClientByClientID returns the realm's client with the given clientId.
func (s *Store) ClientByClientID(ctx context.Context, realmID, clientID string) (*Client, error) {
	return first(ctx, s.clients, inRealm(realmID).And(
		mapstorage.Compare(FieldClientID, mapstorage.EQ, clientID)), clientID)
}

// Clients returns the realm's clients ordered by clientId.
func (s *Store) Clients(ctx context.Context, realmID string) ([]*Client, error) {
	return list(ctx, s.clients, mapstorage.QueryParameters{
		Criteria: inRealm(realmID),
		OrderBy:  []mapstorage.Order{{Field: FieldClientID}},
	})
}

// Group returns the group with the given ID.
func (s *Store) Group(ctx context.Context, id string) (*Group, error) {
	return read(ctx, s.groups, id)
}

// Groups returns the children of the group with the given ID, or the top
// level groups if parentID is empty, ordered by name.
func (s *Store) Groups(ctx context.Context, realmID, parentID string) ([]*Group, error) {
	return list(ctx, s.groups, mapstorage.QueryParameters{
		Criteria: inRealm(realmID).And(equalOrUnset(FieldParentID, parentID)),
		OrderBy:  []mapstorage.Order{{Field: FieldName}},
	})
}

// GroupByPath returns the group with the given path, such as /parent/child.
func (s *Store) GroupByPath(ctx context.Context, realmID, path string) (*Group, error) {
	var g *Group
	parentID := ""
	for name := range strings.SplitSeq(strings.Trim(path, "/"), "/") {
		var err error
		g, err = first(ctx, s.groups, inRealm(realmID).And(
			equalOrUnset(FieldParentID, parentID),
			mapstorage.Compare(FieldName, mapstorage.EQ, name)), path)
		if err != nil {
			return nil, err
		}
		parentID = g.ID
	}
	return g, nil
}

// User returns the user with the given ID.
func (s *Store) User(ctx context.Context, id string) (*User, error) {
	return read(ctx, s.users, id)
}

// UserByUsername returns the realm's user with the given username. Usernames
// are case insensitive.
func (s *Store) UserByUsername(ctx context.Context, realmID, username string) (*User, error) {
	username = strings.ToLower(username)
	return first(ctx, s.users, inRealm(realmID).And(
		mapstorage.Compare(FieldUsername, mapstorage.EQ, username)), username)
}

// UserByEmail returns the realm's user with the given email address.
func (s *Store) UserByEmail(ctx context.Context, realmID, email string) (*User, error) {
	email = strings.ToLower(email)
	return first(ctx, s.users, inRealm(realmID).And(
		mapstorage.Compare(FieldEmail, mapstorage.EQ, email)), email)
}

// Users returns a page of the realm's users ordered by username. A search
// string matches usernames and email addresses case insensitively.
func (s *Store) Users(
	ctx context.Context,
	realmID, search string,
	offset, limit int,
) ([]*User, error) {
	c := inRealm(realmID)
	if search != "" {
		pattern := "%" + escapeLike(search) + "%"
		c = c.And(mapstorage.Or(
			mapstorage.Compare(FieldUsername, mapstorage.ILIKE, pattern),
			mapstorage.Compare(FieldEmail, mapstorage.ILIKE, pattern)))
	}
	return list(ctx, s.users, mapstorage.QueryParameters{
		Criteria: c,
		Offset:   offset,
		Limit:    limit,
		OrderBy:  []mapstorage.Order{{Field: FieldUsername}},
	})
}

// GroupMembers returns the users directly in the group, ordered by
// username.
func (s *Store) GroupMembers(ctx context.Context, groupID string) ([]*User, error) {
	return list(ctx, s.users, mapstorage.QueryParameters{
		Criteria: mapstorage.Compare(FieldGroupID, mapstorage.EQ, groupID),
		OrderBy:  []mapstorage.Order{{Field: FieldUsername}},
	})
}

// CountUsers returns the number of users in the realm.
func (s *Store) CountUsers(ctx context.Context, realmID string) (int, error) {
	n, err := s.users.Count(ctx, inRealm(realmID))
	if err != nil {
		return 0, fmt.Errorf("couldn't count users: %v", err)
	}
	return n, nil
}

// escapeLike escapes the LIKE wildcards in s.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// txSet is a set of transactions over every storage of the Store, committed
// together.
type txSet struct {
	realms  *mapstorage.Transaction[*Realm]
	roles   *mapstorage.Transaction[*Role]
	clients *mapstorage.Transaction[*Client]
	groups  *mapstorage.Transaction[*Group]
	users   *mapstorage.Transaction[*User]
}

// inTransaction runs fn in a new txSet, committing it if fn returns nil.
func (s *Store) inTransaction(ctx context.Context, name string, fn func(*txSet) error) error {
	ctx, span := otel.Tracer(pkgName).Start(ctx, name)
	defer span.End()
	tx := &txSet{
		realms:  s.realms.Begin(),
		roles:   s.roles.Begin(),
		clients: s.clients.Begin(),
		groups:  s.groups.Begin(),
		users:   s.users.Begin(),
	}
	m := mapstorage.NewManager()
	m.Enlist(tx.realms)
	m.Enlist(tx.clients)
	m.Enlist(tx.roles)
	m.Enlist(tx.groups)
	m.Enlist(tx.users)
	if err := fn(tx); err != nil {
		m.Rollback()
		return err
	}
	return m.Commit(ctx)
}

// inRealmTx checks that every id refers to an entity of the realm.
func inRealmTx[V mapstorage.Entity](
	ctx context.Context,
	tx *mapstorage.Transaction[V],
	realmID string,
	ids []string,
	realm func(V) string,
) error {
	for _, id := range ids {
		v, err := tx.Read(ctx, id)
		if err != nil {
			if mapstorage.IsNotFound(err) {
				return fmt.Errorf("%w: %s %s", ErrNotFound, tx.Schema().Name, id)
			}
			return err
		}
		if realm(v) != realmID {
			return fmt.Errorf("%w: %s %s in realm %s",
				ErrNotFound, tx.Schema().Name, id, realmID)
		}
	}
	return nil
}

func realmOfRole(r *Role) string     { return r.RealmID }
func realmOfClient(c *Client) string { return c.RealmID }
func realmOfGroup(g *Group) string   { return g.RealmID }
