package authz

import "context"

// Store provides read access to authorization objects. Implementations
// return ErrNotFound, possibly wrapped, for unknown objects.
type Store interface {
	ResourceServer(ctx context.Context, id string) (*ResourceServer, error)
	ResourceServerByClientID(ctx context.Context, clientID string) (*ResourceServer, error)
	Resource(ctx context.Context, id string) (*Resource, error)
	ResourceByName(ctx context.Context, serverID, name string) (*Resource, error)
	Resources(ctx context.Context, serverID string) ([]*Resource, error)
	Scope(ctx context.Context, id string) (*Scope, error)
	ScopeByName(ctx context.Context, serverID, name string) (*Scope, error)
	Scopes(ctx context.Context, serverID string) ([]*Scope, error)
	Policy(ctx context.Context, id string) (*Policy, error)
	Policies(ctx context.Context, serverID string) ([]*Policy, error)
	// PoliciesByResource returns the policies bound to the resource.
	PoliciesByResource(ctx context.Context, serverID, resourceID string) ([]*Policy, error)
	// PoliciesByResourceType returns the resource permissions targeting the
	// resource type.
	PoliciesByResourceType(ctx context.Context, serverID, resourceType string) ([]*Policy, error)
	// PoliciesByScopes returns the policies bound to any of the scopes.
	PoliciesByScopes(ctx context.Context, serverID string, scopeIDs []string) ([]*Policy, error)
}
