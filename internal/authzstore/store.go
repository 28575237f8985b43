// Package authzstore implements authz.Store over map storage.
package authzstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/uselagoon/keycloak-authz/internal/authz"
	"github.com/uselagoon/keycloak-authz/internal/mapstorage"
	"github.com/uselagoon/keycloak-authz/internal/mapstorage/chm"
	"go.opentelemetry.io/otel"
)

const pkgName = "github.com/uselagoon/keycloak-authz/internal/authzstore"

// Store holds the authorization objects of every resource server.
type Store struct {
	servers   *mapstorage.Storage[*authz.ResourceServer]
	resources *mapstorage.Storage[*authz.Resource]
	scopes    *mapstorage.Storage[*authz.Scope]
	policies  *mapstorage.Storage[*authz.Policy]
	providers authz.Providers
}

// New returns a Store persisted in the given backends. Policies are
// validated against the default provider registry.
func New(
	servers mapstorage.Backend[*authz.ResourceServer],
	resources mapstorage.Backend[*authz.Resource],
	scopes mapstorage.Backend[*authz.Scope],
	policies mapstorage.Backend[*authz.Policy],
) *Store {
	return &Store{
		servers:   mapstorage.NewStorage(ResourceServerSchema, servers),
		resources: mapstorage.NewStorage(ResourceSchema, resources),
		scopes:    mapstorage.NewStorage(ScopeSchema, scopes),
		policies:  mapstorage.NewStorage(PolicySchema, policies),
		providers: authz.DefaultProviders(),
	}
}

// NewInMemory returns a Store persisted in memory.
func NewInMemory() *Store {
	return New(
		chm.New(ResourceServerSchema),
		chm.New(ResourceSchema),
		chm.New(ScopeSchema),
		chm.New(PolicySchema))
}

// Close closes the underlying storages.
func (s *Store) Close() error {
	return errors.Join(
		s.servers.Close(),
		s.resources.Close(),
		s.scopes.Close(),
		s.policies.Close())
}

func byServer(serverID string) mapstorage.Criteria {
	return mapstorage.Compare(FieldResourceServerID, mapstorage.EQ, serverID)
}

var byName = []mapstorage.Order{{Field: FieldName}}

// notFound maps mapstorage.ErrNotFound to authz.ErrNotFound.
func notFound(err error, kind, id string) error {
	if errors.Is(err, mapstorage.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", authz.ErrNotFound, kind, id)
	}
	return fmt.Errorf("couldn't read %s %s: %v", kind, id, err)
}

func read[V mapstorage.Entity](
	ctx context.Context,
	s *mapstorage.Storage[V],
	id string,
) (V, error) {
	v, err := s.Read(ctx, id)
	if err != nil {
		var zero V
		return zero, notFound(err, s.Schema().Name, id)
	}
	return v, nil
}

func first[V mapstorage.Entity](
	ctx context.Context,
	s *mapstorage.Storage[V],
	c mapstorage.Criteria,
) (V, error) {
	var zero V
	vs, err := s.Query(ctx, mapstorage.QueryParameters{Criteria: c, Limit: 1})
	if err != nil {
		return zero, fmt.Errorf("couldn't query %s: %v", s.Schema().Name, err)
	}
	if len(vs) == 0 {
		return zero, fmt.Errorf("%w: %s", authz.ErrNotFound, s.Schema().Name)
	}
	return vs[0], nil
}

func list[V mapstorage.Entity](
	ctx context.Context,
	s *mapstorage.Storage[V],
	c mapstorage.Criteria,
	order []mapstorage.Order,
) ([]V, error) {
	vs, err := s.Query(ctx, mapstorage.QueryParameters{Criteria: c, OrderBy: order})
	if err != nil {
		return nil, fmt.Errorf("couldn't query %s: %v", s.Schema().Name, err)
	}
	return vs, nil
}

// ResourceServer implements authz.Store.
func (s *Store) ResourceServer(ctx context.Context, id string) (*authz.ResourceServer, error) {
	return read(ctx, s.servers, id)
}

// ResourceServerByClientID implements authz.Store.
func (s *Store) ResourceServerByClientID(
	ctx context.Context,
	clientID string,
) (*authz.ResourceServer, error) {
	return first(ctx, s.servers,
		mapstorage.Compare(FieldClientID, mapstorage.EQ, clientID))
}

// ResourceServers returns every resource server.
func (s *Store) ResourceServers(ctx context.Context) ([]*authz.ResourceServer, error) {
	return list(ctx, s.servers, mapstorage.Criteria{},
		[]mapstorage.Order{{Field: FieldClientID}})
}

// Resource implements authz.Store.
func (s *Store) Resource(ctx context.Context, id string) (*authz.Resource, error) {
	return read(ctx, s.resources, id)
}

// ResourceByName implements authz.Store.
func (s *Store) ResourceByName(
	ctx context.Context,
	serverID, name string,
) (*authz.Resource, error) {
	return first(ctx, s.resources, byServer(serverID).And(
		mapstorage.Compare(FieldName, mapstorage.EQ, name)))
}

// Resources implements authz.Store.
func (s *Store) Resources(ctx context.Context, serverID string) ([]*authz.Resource, error) {
	return list(ctx, s.resources, byServer(serverID), byName)
}

// ResourcesByType returns the resources of the given type.
func (s *Store) ResourcesByType(
	ctx context.Context,
	serverID, resourceType string,
) ([]*authz.Resource, error) {
	return list(ctx, s.resources, byServer(serverID).And(
		mapstorage.Compare(FieldType, mapstorage.EQ, resourceType)), byName)
}

// ResourcesByOwner returns the resources owned by the given owner.
func (s *Store) ResourcesByOwner(
	ctx context.Context,
	serverID, owner string,
) ([]*authz.Resource, error) {
	return list(ctx, s.resources, byServer(serverID).And(
		mapstorage.Compare(FieldOwner, mapstorage.EQ, owner)), byName)
}

// ResourcesByURI returns the resources with the given URI pattern.
func (s *Store) ResourcesByURI(
	ctx context.Context,
	serverID, uri string,
) ([]*authz.Resource, error) {
	return list(ctx, s.resources, byServer(serverID).And(
		mapstorage.Compare(FieldURI, mapstorage.EQ, uri)), byName)
}

// ResourcesByScope returns the resources with the given scope.
func (s *Store) ResourcesByScope(
	ctx context.Context,
	serverID, scopeID string,
) ([]*authz.Resource, error) {
	return list(ctx, s.resources, byServer(serverID).And(
		mapstorage.Compare(FieldScopeID, mapstorage.EQ, scopeID)), byName)
}

// Scope implements authz.Store.
func (s *Store) Scope(ctx context.Context, id string) (*authz.Scope, error) {
	return read(ctx, s.scopes, id)
}

// ScopeByName implements authz.Store.
func (s *Store) ScopeByName(ctx context.Context, serverID, name string) (*authz.Scope, error) {
	return first(ctx, s.scopes, byServer(serverID).And(
		mapstorage.Compare(FieldName, mapstorage.EQ, name)))
}

// Scopes implements authz.Store.
func (s *Store) Scopes(ctx context.Context, serverID string) ([]*authz.Scope, error) {
	return list(ctx, s.scopes, byServer(serverID), byName)
}

// Policy implements authz.Store.
func (s *Store) Policy(ctx context.Context, id string) (*authz.Policy, error) {
	return read(ctx, s.policies, id)
}

// PolicyByName returns the named policy.
func (s *Store) PolicyByName(ctx context.Context, serverID, name string) (*authz.Policy, error) {
	return first(ctx, s.policies, byServer(serverID).And(
		mapstorage.Compare(FieldName, mapstorage.EQ, name)))
}

// Policies implements authz.Store.
func (s *Store) Policies(ctx context.Context, serverID string) ([]*authz.Policy, error) {
	return list(ctx, s.policies, byServer(serverID), byName)
}

// PoliciesByType returns the policies of the given type.
func (s *Store) PoliciesByType(
	ctx context.Context,
	serverID, policyType string,
) ([]*authz.Policy, error) {
	return list(ctx, s.policies, byServer(serverID).And(
		mapstorage.Compare(FieldType, mapstorage.EQ, policyType)), byName)
}

// PoliciesByResource implements authz.Store.
func (s *Store) PoliciesByResource(
	ctx context.Context,
	serverID, resourceID string,
) ([]*authz.Policy, error) {
	return list(ctx, s.policies, byServer(serverID).And(
		mapstorage.Compare(FieldResourceID, mapstorage.EQ, resourceID)), byName)
}

// PoliciesByResourceType implements authz.Store.
func (s *Store) PoliciesByResourceType(
	ctx context.Context,
	serverID, resourceType string,
) ([]*authz.Policy, error) {
	return list(ctx, s.policies, byServer(serverID).And(
		mapstorage.Compare(FieldType, mapstorage.EQ, authz.TypeResource),
		mapstorage.Compare(FieldDefaultResourceType, mapstorage.EQ, resourceType)), byName)
}

// PoliciesByScopes implements authz.Store.
func (s *Store) PoliciesByScopes(
	ctx context.Context,
	serverID string,
	scopeIDs []string,
) ([]*authz.Policy, error) {
	values := make([]any, len(scopeIDs))
	for i, id := range scopeIDs {
		values[i] = id
	}
	return list(ctx, s.policies, byServer(serverID).And(
		mapstorage.Compare(FieldScopeID, mapstorage.IN, values...)), byName)
}

// DependentPolicies returns the policies which associate the given policy.
func (s *Store) DependentPolicies(
	ctx context.Context,
	serverID, policyID string,
) ([]*authz.Policy, error) {
	return list(ctx, s.policies, byServer(serverID).And(
		mapstorage.Compare(FieldAssociatedPolicyID, mapstorage.EQ, policyID)), byName)
}

// txSet is a set of transactions over every storage of the Store, committed
// together.
type txSet struct {
	servers   *mapstorage.Transaction[*authz.ResourceServer]
	resources *mapstorage.Transaction[*authz.Resource]
	scopes    *mapstorage.Transaction[*authz.Scope]
	policies  *mapstorage.Transaction[*authz.Policy]
}

// inTransaction runs fn in a new txSet, committing it if fn returns nil.
func (s *Store) inTransaction(ctx context.Context, name string, fn func(*txSet) error) error {
	ctx, span := otel.Tracer(pkgName).Start(ctx, name)
	defer span.End()
	tx := &txSet{
		servers:   s.servers.Begin(),
		resources: s.resources.Begin(),
		scopes:    s.scopes.Begin(),
		policies:  s.policies.Begin(),
	}
	m := mapstorage.NewManager()
	m.Enlist(tx.servers)
	m.Enlist(tx.scopes)
	m.Enlist(tx.resources)
	m.Enlist(tx.policies)
	if err := fn(tx); err != nil {
		m.Rollback()
		return err
	}
	return m.Commit(ctx)
}

// belongs checks that every id refers to an entity of the resource server.
func belongs[V mapstorage.Entity](
	ctx context.Context,
	tx *mapstorage.Transaction[V],
	serverID string,
	ids []string,
	server func(V) string,
) error {
	for _, id := range ids {
		v, err := tx.Read(ctx, id)
		if err != nil {
			return notFound(err, tx.Schema().Name, id)
		}
		if server(v) != serverID {
			return fmt.Errorf("%w: %s %s in resource server %s",
				authz.ErrNotFound, tx.Schema().Name, id, serverID)
		}
	}
	return nil
}
