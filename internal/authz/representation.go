package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/uselagoon/keycloak-authz/internal/mapstorage"
)

// Policy config keys which hold references to other objects.
const (
	configResources     = "resources"
	configScopes        = "scopes"
	configApplyPolicies = "applyPolicies"
)

// ResourceServerRepresentation is the JSON representation of a resource
// server's authorization settings, as exported by Keycloak.
type ResourceServerRepresentation struct {
	ID                            string                   `json:"id,omitempty"`
	ClientID                      string                   `json:"clientId,omitempty"`
	Name                          string                   `json:"name,omitempty"`
	AllowRemoteResourceManagement bool                     `json:"allowRemoteResourceManagement"`
	PolicyEnforcementMode         EnforcementMode          `json:"policyEnforcementMode"`
	DecisionStrategy              DecisionStrategy         `json:"decisionStrategy"`
	Resources                     []ResourceRepresentation `json:"resources"`
	Policies                      []PolicyRepresentation   `json:"policies"`
	Scopes                        []ScopeRepresentation    `json:"scopes"`
}

// ResourceRepresentation is the JSON representation of a resource.
type ResourceRepresentation struct {
	ID                 string                `json:"_id,omitempty"`
	Name               string                `json:"name"`
	DisplayName        string                `json:"displayName,omitempty"`
	Type               string                `json:"type,omitempty"`
	URIs               []string              `json:"uris,omitempty"`
	Scopes             []ScopeRepresentation `json:"scopes,omitempty"`
	Owner              *OwnerRepresentation  `json:"owner,omitempty"`
	OwnerManagedAccess bool                  `json:"ownerManagedAccess"`
	Attributes         map[string][]string   `json:"attributes,omitempty"`
}

// OwnerRepresentation is the owner of a resource. It is exported as an
// object, but may be given as a plain ID string.
type OwnerRepresentation struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *OwnerRepresentation) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		o.ID = id
		return nil
	}
	type plain OwnerRepresentation
	return json.Unmarshal(data, (*plain)(o))
}

// ScopeRepresentation is the JSON representation of a scope.
type ScopeRepresentation struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	IconURI     string `json:"iconUri,omitempty"`
}

// PolicyRepresentation is the JSON representation of a policy or
// permission. References to resources, scopes and associated policies are
// JSON encoded arrays of names in Config.
type PolicyRepresentation struct {
	ID               string            `json:"id,omitempty"`
	Name             string            `json:"name"`
	Description      string            `json:"description,omitempty"`
	Type             string            `json:"type"`
	Logic            Logic             `json:"logic"`
	DecisionStrategy DecisionStrategy  `json:"decisionStrategy"`
	Config           map[string]string `json:"config"`
}

// Objects are the authorization objects of a single resource server.
type Objects struct {
	Server    *ResourceServer
	Resources []*Resource
	Scopes    []*Scope
	Policies  []*Policy
}

// namedIDs maps names to IDs, also accepting IDs.
type namedIDs map[string]string

func (n namedIDs) resolve(kind, ref string) (string, error) {
	if id, ok := n[ref]; ok {
		return id, nil
	}
	for _, id := range n {
		if id == ref {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: unknown %s %q", ErrInvalidRepresentation, kind, ref)
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

// Objects converts the representation into authorization objects for the
// client with the given UUID, assigning IDs where the representation has
// none. References by name are resolved, and policies are validated against
// the provider registry.
func (rep *ResourceServerRepresentation) Objects(clientID string, ps Providers) (*Objects, error) {
	if clientID == "" {
		clientID = rep.ClientID
	}
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing clientId", ErrInvalidRepresentation)
	}
	server := &ResourceServer{
		Meta:             mapstorage.Meta{ID: newID(rep.ID)},
		ClientID:         clientID,
		EnforcementMode:  rep.PolicyEnforcementMode,
		DecisionStrategy: rep.DecisionStrategy,
	}
	objs := &Objects{Server: server}
	scopeIDs := namedIDs{}
	addScope := func(s ScopeRepresentation) (string, error) {
		if s.Name == "" {
			return "", fmt.Errorf("%w: scope without name", ErrInvalidRepresentation)
		}
		if id, ok := scopeIDs[s.Name]; ok {
			return id, nil
		}
		scope := &Scope{
			Meta:             mapstorage.Meta{ID: newID(s.ID)},
			ResourceServerID: server.ID,
			Name:             s.Name,
			DisplayName:      s.DisplayName,
		}
		scopeIDs[s.Name] = scope.ID
		objs.Scopes = append(objs.Scopes, scope)
		return scope.ID, nil
	}
	for _, s := range rep.Scopes {
		if _, ok := scopeIDs[s.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate scope %q", ErrInvalidRepresentation, s.Name)
		}
		if _, err := addScope(s); err != nil {
			return nil, err
		}
	}
	resourceIDs := namedIDs{}
	for _, r := range rep.Resources {
		if r.Name == "" {
			return nil, fmt.Errorf("%w: resource without name", ErrInvalidRepresentation)
		}
		if _, ok := resourceIDs[r.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate resource %q", ErrInvalidRepresentation, r.Name)
		}
		resource := &Resource{
			Meta:             mapstorage.Meta{ID: newID(r.ID)},
			ResourceServerID: server.ID,
			Name:             r.Name,
			DisplayName:      r.DisplayName,
			Type:             r.Type,
			URIs:             r.URIs,
			Attributes:       r.Attributes,
		}
		if r.Owner != nil {
			resource.Owner = r.Owner.ID
		}
		for _, s := range r.Scopes {
			// scopes only referenced by resources are created implicitly
			id, err := addScope(s)
			if err != nil {
				return nil, err
			}
			resource.ScopeIDs = append(resource.ScopeIDs, id)
		}
		resourceIDs[r.Name] = resource.ID
		objs.Resources = append(objs.Resources, resource)
	}
	policyIDs := namedIDs{}
	for _, p := range rep.Policies {
		if p.Name == "" {
			return nil, fmt.Errorf("%w: policy without name", ErrInvalidRepresentation)
		}
		if _, ok := policyIDs[p.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate policy %q", ErrInvalidRepresentation, p.Name)
		}
		policyIDs[p.Name] = newID(p.ID)
	}
	for _, p := range rep.Policies {
		policy := &Policy{
			Meta:             mapstorage.Meta{ID: policyIDs[p.Name]},
			ResourceServerID: server.ID,
			Name:             p.Name,
			Description:      p.Description,
			Type:             p.Type,
			Logic:            p.Logic,
			DecisionStrategy: p.DecisionStrategy,
			Config:           map[string]string{},
		}
		for k, v := range p.Config {
			switch k {
			case configResources, configScopes, configApplyPolicies:
			default:
				policy.Config[k] = v
			}
		}
		var err error
		if policy.ResourceIDs, err = resolveRefs(p, configResources, "resource", resourceIDs); err != nil {
			return nil, err
		}
		if policy.ScopeIDs, err = resolveRefs(p, configScopes, "scope", scopeIDs); err != nil {
			return nil, err
		}
		if policy.AssociatedPolicyIDs, err = resolveRefs(p, configApplyPolicies, "policy", policyIDs); err != nil {
			return nil, err
		}
		if err = ps.Validate(policy); err != nil {
			return nil, fmt.Errorf("policy %q: %w", p.Name, err)
		}
		objs.Policies = append(objs.Policies, policy)
	}
	if err := CheckCycles(objs.Policies); err != nil {
		return nil, err
	}
	return objs, nil
}

// resolveRefs resolves the JSON encoded array of names at the config key.
func resolveRefs(p PolicyRepresentation, key, kind string, ids namedIDs) ([]string, error) {
	raw := p.Config[key]
	if raw == "" {
		return nil, nil
	}
	var refs []string
	if err := json.Unmarshal([]byte(raw), &refs); err != nil {
		return nil, fmt.Errorf("%w: policy %q config %s: %v",
			ErrInvalidRepresentation, p.Name, key, err)
	}
	var resolved []string
	for _, ref := range refs {
		id, err := ids.resolve(kind, ref)
		if err != nil {
			return nil, fmt.Errorf("policy %q: %w", p.Name, err)
		}
		resolved = append(resolved, id)
	}
	return resolved, nil
}

// CheckCycles returns ErrPolicyCycle if any policy transitively associates
// itself. Associated policies not in the given set are ignored.
func CheckCycles(policies []*Policy) error {
	byID := map[string]*Policy{}
	for _, p := range policies {
		byID[p.ID] = p
	}
	const (
		unvisited = iota
		visiting
		done
	)
	state := map[string]int{}
	var visit func(p *Policy) error
	visit = func(p *Policy) error {
		switch state[p.ID] {
		case visiting:
			return fmt.Errorf("%w: %s", ErrPolicyCycle, p.Name)
		case done:
			return nil
		}
		state[p.ID] = visiting
		for _, id := range p.AssociatedPolicyIDs {
			if ap, ok := byID[id]; ok {
				if err := visit(ap); err != nil {
					return err
				}
			}
		}
		state[p.ID] = done
		return nil
	}
	for _, p := range policies {
		if err := visit(p); err != nil {
			return err
		}
	}
	return nil
}

// Export returns the representation of the resource server's settings,
// referring to related objects by name.
func Export(ctx context.Context, store Store, rs *ResourceServer) (*ResourceServerRepresentation, error) {
	scopes, err := store.Scopes(ctx, rs.ID)
	if err != nil {
		return nil, fmt.Errorf("couldn't list scopes: %v", err)
	}
	resources, err := store.Resources(ctx, rs.ID)
	if err != nil {
		return nil, fmt.Errorf("couldn't list resources: %v", err)
	}
	policies, err := store.Policies(ctx, rs.ID)
	if err != nil {
		return nil, fmt.Errorf("couldn't list policies: %v", err)
	}
	rep := &ResourceServerRepresentation{
		ID:                    rs.ID,
		ClientID:              rs.ClientID,
		PolicyEnforcementMode: rs.EnforcementMode,
		DecisionStrategy:      rs.DecisionStrategy,
		Resources:             []ResourceRepresentation{},
		Policies:              []PolicyRepresentation{},
		Scopes:                []ScopeRepresentation{},
	}
	scopeNames := map[string]string{}
	for _, s := range scopes {
		scopeNames[s.ID] = s.Name
		rep.Scopes = append(rep.Scopes, ScopeRepresentation{
			ID:          s.ID,
			Name:        s.Name,
			DisplayName: s.DisplayName,
		})
	}
	resourceNames := map[string]string{}
	for _, r := range resources {
		resourceNames[r.ID] = r.Name
		rr := ResourceRepresentation{
			ID:          r.ID,
			Name:        r.Name,
			DisplayName: r.DisplayName,
			Type:        r.Type,
			URIs:        r.URIs,
			Attributes:  r.Attributes,
		}
		if r.Owner != "" {
			rr.Owner = &OwnerRepresentation{ID: r.Owner}
		}
		for _, id := range r.ScopeIDs {
			if name, ok := scopeNames[id]; ok {
				rr.Scopes = append(rr.Scopes, ScopeRepresentation{Name: name})
			}
		}
		rep.Resources = append(rep.Resources, rr)
	}
	policyNames := map[string]string{}
	for _, p := range policies {
		policyNames[p.ID] = p.Name
	}
	for _, p := range policies {
		config := maps.Clone(p.Config)
		if config == nil {
			config = map[string]string{}
		}
		setRefs(config, configResources, p.ResourceIDs, resourceNames)
		setRefs(config, configScopes, p.ScopeIDs, scopeNames)
		setRefs(config, configApplyPolicies, p.AssociatedPolicyIDs, policyNames)
		rep.Policies = append(rep.Policies, PolicyRepresentation{
			ID:               p.ID,
			Name:             p.Name,
			Description:      p.Description,
			Type:             p.Type,
			Logic:            p.Logic,
			DecisionStrategy: p.DecisionStrategy,
			Config:           config,
		})
	}
	// permissions follow the policies they reference
	slices.SortStableFunc(rep.Policies, func(a, b PolicyRepresentation) int {
		return strings.Compare(policyRank(a.Type), policyRank(b.Type))
	})
	return rep, nil
}

func policyRank(policyType string) string {
	switch policyType {
	case TypeResource, TypeScope:
		return "2"
	case TypeAggregate:
		return "1"
	default:
		return "0"
	}
}

// setRefs stores the names of the referenced objects as a JSON array.
func setRefs(config map[string]string, key string, ids []string, names map[string]string) {
	if len(ids) == 0 {
		return
	}
	var refs []string
	for _, id := range ids {
		if name, ok := names[id]; ok {
			refs = append(refs, name)
		}
	}
	data, _ := json.Marshal(refs)
	config[key] = string(data)
}
