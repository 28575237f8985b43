package authzstore

import (
	"github.com/uselagoon/keycloak-authz/internal/authz"
	"github.com/uselagoon/keycloak-authz/internal/mapstorage"
)

// Searchable fields.
const (
	FieldResourceServerID    mapstorage.Field = "resourceServerId"
	FieldClientID            mapstorage.Field = "clientId"
	FieldName                mapstorage.Field = "name"
	FieldType                mapstorage.Field = "type"
	FieldOwner               mapstorage.Field = "owner"
	FieldURI                 mapstorage.Field = "uri"
	FieldScopeID             mapstorage.Field = "scopeId"
	FieldResourceID          mapstorage.Field = "resourceId"
	FieldAssociatedPolicyID  mapstorage.Field = "associatedPolicyId"
	FieldDefaultResourceType mapstorage.Field = "defaultResourceType"
)

// ResourceServerSchema is the map storage schema of resource servers.
var ResourceServerSchema = &mapstorage.Schema[*authz.ResourceServer]{
	Name: "authz_resource_server",
	New:  func() *authz.ResourceServer { return &authz.ResourceServer{} },
	Fields: map[mapstorage.Field]mapstorage.FieldFunc[*authz.ResourceServer]{
		FieldClientID: func(rs *authz.ResourceServer) []any {
			return mapstorage.String(rs.ClientID)
		},
	},
}

// ResourceSchema is the map storage schema of resources.
var ResourceSchema = &mapstorage.Schema[*authz.Resource]{
	Name: "authz_resource",
	New:  func() *authz.Resource { return &authz.Resource{} },
	Fields: map[mapstorage.Field]mapstorage.FieldFunc[*authz.Resource]{
		FieldResourceServerID: func(r *authz.Resource) []any {
			return mapstorage.String(r.ResourceServerID)
		},
		FieldName:    func(r *authz.Resource) []any { return mapstorage.String(r.Name) },
		FieldType:    func(r *authz.Resource) []any { return mapstorage.String(r.Type) },
		FieldOwner:   func(r *authz.Resource) []any { return mapstorage.String(r.Owner) },
		FieldURI:     func(r *authz.Resource) []any { return mapstorage.Strings(r.URIs) },
		FieldScopeID: func(r *authz.Resource) []any { return mapstorage.Strings(r.ScopeIDs) },
	},
}

// ScopeSchema is the map storage schema of scopes.
var ScopeSchema = &mapstorage.Schema[*authz.Scope]{
	Name: "authz_scope",
	New:  func() *authz.Scope { return &authz.Scope{} },
	Fields: map[mapstorage.Field]mapstorage.FieldFunc[*authz.Scope]{
		FieldResourceServerID: func(s *authz.Scope) []any {
			return mapstorage.String(s.ResourceServerID)
		},
		FieldName: func(s *authz.Scope) []any { return mapstorage.String(s.Name) },
	},
}

// PolicySchema is the map storage schema of policies and permissions.
var PolicySchema = &mapstorage.Schema[*authz.Policy]{
	Name: "authz_policy",
	New:  func() *authz.Policy { return &authz.Policy{} },
	Fields: map[mapstorage.Field]mapstorage.FieldFunc[*authz.Policy]{
		FieldResourceServerID: func(p *authz.Policy) []any {
			return mapstorage.String(p.ResourceServerID)
		},
		FieldName:       func(p *authz.Policy) []any { return mapstorage.String(p.Name) },
		FieldType:       func(p *authz.Policy) []any { return mapstorage.String(p.Type) },
		FieldOwner:      func(p *authz.Policy) []any { return mapstorage.String(p.Owner) },
		FieldResourceID: func(p *authz.Policy) []any { return mapstorage.Strings(p.ResourceIDs) },
		FieldScopeID:    func(p *authz.Policy) []any { return mapstorage.Strings(p.ScopeIDs) },
		FieldAssociatedPolicyID: func(p *authz.Policy) []any {
			return mapstorage.Strings(p.AssociatedPolicyIDs)
		},
		FieldDefaultResourceType: func(p *authz.Policy) []any {
			return mapstorage.String(p.DefaultResourceType())
		},
	},
}
