package authzstore

import (
	"context"
	"fmt"
	"slices"

	"github.com/uselagoon/keycloak-authz/internal/authz"
	"github.com/uselagoon/keycloak-authz/internal/mapstorage"
)

func resourceServerOf(r *authz.Resource) string { return r.ResourceServerID }
func scopeServerOf(s *authz.Scope) string        { return s.ResourceServerID }
func policyServerOf(p *authz.Policy) string      { return p.ResourceServerID }

// CreateResourceServer stores a new resource server. The clientId must be
// unique.
func (s *Store) CreateResourceServer(
	ctx context.Context,
	rs *authz.ResourceServer,
) (*authz.ResourceServer, error) {
	var created *authz.ResourceServer
	err := s.inTransaction(ctx, "CreateResourceServer", func(tx *txSet) error {
		err := tx.servers.Unique(ctx,
			mapstorage.Compare(FieldClientID, mapstorage.EQ, rs.ClientID),
			rs.ID, "clientId "+rs.ClientID)
		if err != nil {
			return err
		}
		created, err = tx.servers.Create(ctx, rs)
		return err
	})
	return created, err
}

// UpdateResourceServer replaces the settings of a resource server.
func (s *Store) UpdateResourceServer(ctx context.Context, rs *authz.ResourceServer) error {
	return s.inTransaction(ctx, "UpdateResourceServer", func(tx *txSet) error {
		err := tx.servers.Unique(ctx,
			mapstorage.Compare(FieldClientID, mapstorage.EQ, rs.ClientID),
			rs.ID, "clientId "+rs.ClientID)
		if err != nil {
			return err
		}
		return tx.servers.Update(ctx, rs)
	})
}

// DeleteResourceServer deletes a resource server and every resource, scope
// and policy it holds.
func (s *Store) DeleteResourceServer(ctx context.Context, id string) error {
	return s.inTransaction(ctx, "DeleteResourceServer", func(tx *txSet) error {
		return deleteServer(ctx, tx, id)
	})
}

func deleteServer(ctx context.Context, tx *txSet, id string) error {
	ok, err := tx.servers.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: resource server %s", authz.ErrNotFound, id)
	}
	if _, err = tx.resources.DeleteMatching(ctx, byServer(id)); err != nil {
		return err
	}
	if _, err = tx.scopes.DeleteMatching(ctx, byServer(id)); err != nil {
		return err
	}
	_, err = tx.policies.DeleteMatching(ctx, byServer(id))
	return err
}

func (s *Store) checkServer(ctx context.Context, tx *txSet, id string) error {
	ok, err := tx.servers.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: resource server %s", authz.ErrNotFound, id)
	}
	return nil
}

func (s *Store) checkResource(ctx context.Context, tx *txSet, r *authz.Resource) error {
	if r.Name == "" {
		return fmt.Errorf("%w: resource without name", authz.ErrInvalidRepresentation)
	}
	if err := s.checkServer(ctx, tx, r.ResourceServerID); err != nil {
		return err
	}
	err := tx.resources.Unique(ctx, byServer(r.ResourceServerID).And(
		mapstorage.Compare(FieldName, mapstorage.EQ, r.Name)),
		r.ID, "name "+r.Name)
	if err != nil {
		return err
	}
	return belongs(ctx, tx.scopes, r.ResourceServerID, r.ScopeIDs, scopeServerOf)
}

// CreateResource stores a new resource. Its name must be unique within the
// resource server and its scopes must exist.
func (s *Store) CreateResource(ctx context.Context, r *authz.Resource) (*authz.Resource, error) {
	var created *authz.Resource
	err := s.inTransaction(ctx, "CreateResource", func(tx *txSet) error {
		if err := s.checkResource(ctx, tx, r); err != nil {
			return err
		}
		var err error
		created, err = tx.resources.Create(ctx, r)
		return err
	})
	return created, err
}

// UpdateResource replaces a resource.
func (s *Store) UpdateResource(ctx context.Context, r *authz.Resource) error {
	return s.inTransaction(ctx, "UpdateResource", func(tx *txSet) error {
		if err := s.checkResource(ctx, tx, r); err != nil {
			return err
		}
		return tx.resources.Update(ctx, r)
	})
}

// DeleteResource deletes a resource and removes it from the policies bound
// to it.
func (s *Store) DeleteResource(ctx context.Context, id string) error {
	return s.inTransaction(ctx, "DeleteResource", func(tx *txSet) error {
		ok, err := tx.resources.Delete(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: resource %s", authz.ErrNotFound, id)
		}
		return detach(ctx, tx.policies, FieldResourceID, id,
			func(p *authz.Policy) *[]string { return &p.ResourceIDs })
	})
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

func (s *Store) checkScope(ctx context.Context, tx *txSet, sc *authz.Scope) error {
	if sc.Name == "" {
		return fmt.Errorf("%w: scope without name", authz.ErrInvalidRepresentation)
	}
	if err := s.checkServer(ctx, tx, sc.ResourceServerID); err != nil {
		return err
	}
	return tx.scopes.Unique(ctx, byServer(sc.ResourceServerID).And(
		mapstorage.Compare(FieldName, mapstorage.EQ, sc.Name)),
		sc.ID, "name "+sc.Name)
}

// CreateScope stores a new scope. Its name must be unique within the
// resource server.
func (s *Store) CreateScope(ctx context.Context, sc *authz.Scope) (*authz.Scope, error) {
	var created *authz.Scope
	err := s.inTransaction(ctx, "CreateScope", func(tx *txSet) error {
		if err := s.checkScope(ctx, tx, sc); err != nil {
			return err
		}
		var err error
		created, err = tx.scopes.Create(ctx, sc)
		return err
	})
	return created, err
}

// UpdateScope replaces a scope.
func (s *Store) UpdateScope(ctx context.Context, sc *authz.Scope) error {
	return s.inTransaction(ctx, "UpdateScope", func(tx *txSet) error {
		if err := s.checkScope(ctx, tx, sc); err != nil {
			return err
		}
		return tx.scopes.Update(ctx, sc)
	})
}

// DeleteScope deletes a scope and removes it from resources and policies.
func (s *Store) DeleteScope(ctx context.Context, id string) error {
	return s.inTransaction(ctx, "DeleteScope", func(tx *txSet) error {
		ok, err := tx.scopes.Delete(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: scope %s", authz.ErrNotFound, id)
		}
		err = detach(ctx, tx.resources, FieldScopeID, id,
			func(r *authz.Resource) *[]string { return &r.ScopeIDs })
		if err != nil {
			return err
		}
		return detach(ctx, tx.policies, FieldScopeID, id,
			func(p *authz.Policy) *[]string { return &p.ScopeIDs })
	})
}

func (s *Store) checkPolicy(ctx context.Context, tx *txSet, p *authz.Policy) error {
	if p.Name == "" {
		return fmt.Errorf("%w: policy without name", authz.ErrInvalidPolicy)
	}
	if err := s.providers.Validate(p); err != nil {
		return err
	}
	if err := s.checkServer(ctx, tx, p.ResourceServerID); err != nil {
		return err
	}
	err := tx.policies.Unique(ctx, byServer(p.ResourceServerID).And(
		mapstorage.Compare(FieldName, mapstorage.EQ, p.Name)),
		p.ID, "name "+p.Name)
	if err != nil {
		return err
	}
	if err = belongs(ctx, tx.resources, p.ResourceServerID, p.ResourceIDs, resourceServerOf); err != nil {
		return err
	}
	if err = belongs(ctx, tx.scopes, p.ResourceServerID, p.ScopeIDs, scopeServerOf); err != nil {
		return err
	}
	if slices.Contains(p.AssociatedPolicyIDs, p.ID) {
		return fmt.Errorf("%w: %s", authz.ErrPolicyCycle, p.Name)
	}
	return belongs(ctx, tx.policies, p.ResourceServerID, p.AssociatedPolicyIDs, policyServerOf)
}

// checkCycles checks the resource server's policies for association
// cycles, with p replacing its stored version.
func checkCycles(ctx context.Context, tx *txSet, p *authz.Policy) error {
	policies, err := tx.policies.Query(ctx, mapstorage.Where(byServer(p.ResourceServerID)))
	if err != nil {
		return err
	}
	policies = slices.DeleteFunc(policies, func(stored *authz.Policy) bool {
		return stored.ID == p.ID
	})
	return authz.CheckCycles(append(policies, p))
}

// CreatePolicy stores a new policy or permission. Its type must be
// supported, its name unique within the resource server and its references
// must exist.
func (s *Store) CreatePolicy(ctx context.Context, p *authz.Policy) (*authz.Policy, error) {
	var created *authz.Policy
	err := s.inTransaction(ctx, "CreatePolicy", func(tx *txSet) error {
		if err := s.checkPolicy(ctx, tx, p); err != nil {
			return err
		}
		if err := checkCycles(ctx, tx, p); err != nil {
			return err
		}
		var err error
		created, err = tx.policies.Create(ctx, p)
		return err
	})
	return created, err
}

// UpdatePolicy replaces a policy. Association cycles are rejected with
// authz.ErrPolicyCycle.
func (s *Store) UpdatePolicy(ctx context.Context, p *authz.Policy) error {
	return s.inTransaction(ctx, "UpdatePolicy", func(tx *txSet) error {
		if err := s.checkPolicy(ctx, tx, p); err != nil {
			return err
		}
		if err := checkCycles(ctx, tx, p); err != nil {
			return err
		}
		return tx.policies.Update(ctx, p)
	})
}

// DeletePolicy deletes a policy and removes it from the policies which
// associate it.
func (s *Store) DeletePolicy(ctx context.Context, id string) error {
	return s.inTransaction(ctx, "DeletePolicy", func(tx *txSet) error {
		ok, err := tx.policies.Delete(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: policy %s", authz.ErrNotFound, id)
		}
		return detach(ctx, tx.policies, FieldAssociatedPolicyID, id,
			func(p *authz.Policy) *[]string { return &p.AssociatedPolicyIDs })
	})
}

// Import stores the objects, replacing any existing settings of the same
// client, in a single transaction set.
func (s *Store) Import(ctx context.Context, objs *authz.Objects) (*authz.ResourceServer, error) {
	var server *authz.ResourceServer
	err := s.inTransaction(ctx, "Import", func(tx *txSet) error {
		existing, err := tx.servers.Query(ctx, mapstorage.Where(
			mapstorage.Compare(FieldClientID, mapstorage.EQ, objs.Server.ClientID)))
		if err != nil {
			return err
		}
		for _, rs := range existing {
			if err = deleteServer(ctx, tx, rs.ID); err != nil {
				return err
			}
		}
		if server, err = tx.servers.Create(ctx, objs.Server); err != nil {
			return err
		}
		for _, sc := range objs.Scopes {
			if _, err = tx.scopes.Create(ctx, sc); err != nil {
				return fmt.Errorf("couldn't create scope %s: %w", sc.Name, err)
			}
		}
		for _, r := range objs.Resources {
			if _, err = tx.resources.Create(ctx, r); err != nil {
				return fmt.Errorf("couldn't create resource %s: %w", r.Name, err)
			}
		}
		for _, p := range objs.Policies {
			if err = s.providers.Validate(p); err != nil {
				return fmt.Errorf("policy %s: %w", p.Name, err)
			}
			if _, err = tx.policies.Create(ctx, p); err != nil {
				return fmt.Errorf("couldn't create policy %s: %w", p.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't import settings of client %s: %w",
			objs.Server.ClientID, err)
	}
	return server, nil
}
