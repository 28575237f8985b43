package authz

import (
	"context"
	"errors"
	"slices"
	"strings"
)

// requirement is an entry of a role or client scope policy.
type requirement struct {
	ID       string `json:"id"`
	Required bool   `json:"required,omitempty"`
}

// evaluateRequirements grants if has is true for at least one entry and for
// every required entry.
func evaluateRequirements(
	reqs []requirement,
	has func(id string) (bool, error),
) (bool, error) {
	var matched bool
	for _, r := range reqs {
		ok, err := has(r.ID)
		if err != nil {
			return false, err
		}
		if r.Required && !ok {
			return false, nil
		}
		matched = matched || ok
	}
	return matched, nil
}

type roleProvider struct{}

func (roleProvider) Validate(p *Policy) error {
	var roles []requirement
	return configJSON(p, "roles", &roles)
}

func (roleProvider) Evaluate(ctx context.Context, e *Evaluation, p *Policy) (bool, error) {
	var roles []requirement
	if err := configJSON(p, "roles", &roles); err != nil {
		return false, err
	}
	identity := e.Context().Identity
	if identity == nil {
		return false, nil
	}
	return evaluateRequirements(roles, func(id string) (bool, error) {
		role, err := e.role(ctx, id)
		if err != nil {
			return false, err
		}
		if role.ClientID == "" {
			return identity.HasRealmRole(role.Name), nil
		}
		return identity.HasClientRole(role.ClientID, role.Name), nil
	})
}

type clientScopeProvider struct{}

func (clientScopeProvider) Validate(p *Policy) error {
	var scopes []requirement
	return configJSON(p, "clientScopes", &scopes)
}

func (clientScopeProvider) Evaluate(_ context.Context, e *Evaluation, p *Policy) (bool, error) {
	var scopes []requirement
	if err := configJSON(p, "clientScopes", &scopes); err != nil {
		return false, err
	}
	identity := e.Context().Identity
	if identity == nil {
		return false, nil
	}
	return evaluateRequirements(scopes, func(id string) (bool, error) {
		return identity.HasScope(id), nil
	})
}

type userProvider struct{}

func (userProvider) Validate(p *Policy) error {
	var users []string
	return configJSON(p, "users", &users)
}

func (userProvider) Evaluate(_ context.Context, e *Evaluation, p *Policy) (bool, error) {
	var users []string
	if err := configJSON(p, "users", &users); err != nil {
		return false, err
	}
	identity := e.Context().Identity
	if identity == nil {
		return false, nil
	}
	for _, u := range users {
		if u == identity.ID || (identity.Username != "" && u == identity.Username) {
			return true, nil
		}
	}
	return false, nil
}

// groupDefinition is an entry of a group policy.
type groupDefinition struct {
	ID             string `json:"id,omitempty"`
	Path           string `json:"path,omitempty"`
	ExtendChildren bool   `json:"extendChildren,omitempty"`
}

type groupProvider struct{}

func (groupProvider) Validate(p *Policy) error {
	var groups []groupDefinition
	return configJSON(p, "groups", &groups)
}

func (groupProvider) Evaluate(ctx context.Context, e *Evaluation, p *Policy) (bool, error) {
	var groups []groupDefinition
	if err := configJSON(p, "groups", &groups); err != nil {
		return false, err
	}
	identity := e.Context().Identity
	if identity == nil {
		return false, nil
	}
	// groupsClaim names a token claim holding the group paths
	if claim := p.Config["groupsClaim"]; claim != "" {
		identity = &Identity{Groups: claimStrings(identity.Claims, claim)}
	}
	for _, g := range groups {
		path, err := e.groupPath(ctx, g)
		if err != nil {
			return false, err
		}
		if path != "" && identity.InGroup(path, g.ExtendChildren) {
			return true, nil
		}
	}
	return false, nil
}

type clientProvider struct{}

func (clientProvider) Validate(p *Policy) error {
	var clients []string
	return configJSON(p, "clients", &clients)
}

func (clientProvider) Evaluate(ctx context.Context, e *Evaluation, p *Policy) (bool, error) {
	var clients []string
	if err := configJSON(p, "clients", &clients); err != nil {
		return false, err
	}
	identity := e.Context().Identity
	if identity == nil {
		return false, nil
	}
	if identity.ClientID == "" {
		return false, nil
	}
	for _, c := range clients {
		clientID, err := e.clientID(ctx, c)
		if err != nil {
			return false, err
		}
		if clientID == identity.ClientID {
			return true, nil
		}
	}
	return false, nil
}

// role resolves a role policy entry. Entries which the directory doesn't
// know are interpreted as "roleName" or "clientId/roleName", which is how
// exported settings refer to roles.
func (e *Evaluation) role(ctx context.Context, id string) (*RoleInfo, error) {
	if e.directory != nil {
		role, err := e.directory.RoleByID(ctx, id)
		if err == nil {
			return role, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	if clientID, name, ok := strings.Cut(id, "/"); ok {
		return &RoleInfo{Name: name, ClientID: clientID}, nil
	}
	return &RoleInfo{Name: id}, nil
}

// groupPath resolves a group policy entry to a group path.
func (e *Evaluation) groupPath(ctx context.Context, g groupDefinition) (string, error) {
	if g.ID != "" && e.directory != nil {
		path, err := e.directory.GroupPathByID(ctx, g.ID)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return g.Path, nil
}

// clientID resolves a client policy entry, a client UUID or clientId, to a
// clientId.
func (e *Evaluation) clientID(ctx context.Context, id string) (string, error) {
	if e.directory != nil {
		clientID, err := e.directory.ClientIDByID(ctx, id)
		if err == nil {
			return clientID, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return id, nil
}

// claimStrings returns the string values of the claim at the given dotted
// path.
func claimStrings(claims map[string]any, path string) []string {
	v, ok := claimValue(claims, path)
	if !ok {
		return nil
	}
	return stringValues(v)
}

// claimValue walks a dotted claim path through nested claim objects. A
// claim whose name itself contains dots takes precedence.
func claimValue(claims map[string]any, path string) (any, bool) {
	if v, ok := claims[path]; ok {
		return v, true
	}
	head, rest, ok := strings.Cut(path, ".")
	if !ok {
		return nil, false
	}
	nested, ok := claims[head].(map[string]any)
	if !ok {
		return nil, false
	}
	return claimValue(nested, rest)
}

func stringValues(v any) []string {
	switch value := v.(type) {
	case nil:
		return nil
	case string:
		return []string{value}
	case []string:
		return slices.Clone(value)
	case []any:
		var ss []string
		for _, item := range value {
			ss = append(ss, stringValues(item)...)
		}
		return ss
	case map[string]any:
		return nil
	default:
		return []string{jsonString(value)}
	}
}
