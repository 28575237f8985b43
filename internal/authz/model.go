package authz

import (
	"github.com/uselagoon/keycloak-authz/internal/mapstorage"
)

// Policy types with built-in providers.
const (
	TypeRole        = "role"
	TypeUser        = "user"
	TypeGroup       = "group"
	TypeClient      = "client"
	TypeTime        = "time"
	TypeRegex       = "regex"
	TypeClientScope = "client-scope"
	TypeAggregate   = "aggregate"
	TypeResource    = "resource"
	TypeScope       = "scope"
	TypeJS          = "js"
)

// ResourceServer holds the authorization settings of a client.
type ResourceServer struct {
	mapstorage.Meta
	// ClientID is the UUID of the client in its realm.
	ClientID         string           `json:"clientId"`
	Realm            string           `json:"realm,omitempty"`
	EnforcementMode  EnforcementMode  `json:"policyEnforcementMode"`
	DecisionStrategy DecisionStrategy `json:"decisionStrategy"`
}

// Resource is a protected object.
type Resource struct {
	mapstorage.Meta
	ResourceServerID string              `json:"resourceServerId"`
	Name             string              `json:"name"`
	DisplayName      string              `json:"displayName,omitempty"`
	Type             string              `json:"type,omitempty"`
	URIs             []string            `json:"uris,omitempty"`
	ScopeIDs         []string            `json:"scopeIds,omitempty"`
	Owner            string              `json:"owner,omitempty"`
	Attributes       map[string][]string `json:"attributes,omitempty"`
}

// Scope is an action which can be performed on resources.
type Scope struct {
	mapstorage.Meta
	ResourceServerID string `json:"resourceServerId"`
	Name             string `json:"name"`
	DisplayName      string `json:"displayName,omitempty"`
}

// Policy is a condition evaluated against an evaluation context. Policies of
// type resource or scope are permissions.
type Policy struct {
	mapstorage.Meta
	ResourceServerID    string            `json:"resourceServerId"`
	Name                string            `json:"name"`
	Description         string            `json:"description,omitempty"`
	Type                string            `json:"type"`
	DecisionStrategy    DecisionStrategy  `json:"decisionStrategy"`
	Logic               Logic             `json:"logic"`
	Config              map[string]string `json:"config,omitempty"`
	ResourceIDs         []string          `json:"resourceIds,omitempty"`
	ScopeIDs            []string          `json:"scopeIds,omitempty"`
	AssociatedPolicyIDs []string          `json:"associatedPolicyIds,omitempty"`
	Owner               string            `json:"owner,omitempty"`
}

// IsPermission reports whether the policy is a resource or scope
// permission.
func (p *Policy) IsPermission() bool {
	return p.Type == TypeResource || p.Type == TypeScope
}

// DefaultResourceType returns the resource type a resource permission
// applies to, if any.
func (p *Policy) DefaultResourceType() string {
	return p.Config[ConfigDefaultResourceType]
}

// ConfigDefaultResourceType is the Policy.Config key of a resource
// permission targeting every resource of a type.
const ConfigDefaultResourceType = "defaultResourceType"

// PermissionRequest requests access to a resource. Resource is a resource
// ID or name; alternatively Path is matched against resource URIs. Empty
// Scopes requests every scope of the resource.
type PermissionRequest struct {
	Resource string   `json:"resource,omitempty"`
	Path     string   `json:"path,omitempty"`
	Scopes   []string `json:"scopes,omitempty"`
}

// GrantedPermission is a resource and the scopes granted on it.
type GrantedPermission struct {
	ResourceID   string   `json:"rsid"`
	ResourceName string   `json:"rsname"`
	Scopes       []string `json:"scopes,omitempty"`
}

// Decision is the result of an evaluation.
type Decision struct {
	// Granted is true if every requested permission was granted at least
	// one scope, or the resource itself if it has no scopes.
	Granted     bool                `json:"granted"`
	Permissions []GrantedPermission `json:"permissions"`
}
