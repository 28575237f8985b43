package authz

import (
	"context"
	"encoding/json"
	"fmt"
)

// Provider evaluates policies of a single type.
type Provider interface {
	// Validate checks the policy's configuration.
	Validate(p *Policy) error
	// Evaluate returns true if the policy permits, before its logic is
	// applied.
	Evaluate(ctx context.Context, e *Evaluation, p *Policy) (bool, error)
}

// Providers is a registry of policy providers keyed by policy type.
type Providers map[string]Provider

// DefaultProviders returns a registry containing every built-in provider.
// Policies of type js have no provider.
func DefaultProviders() Providers {
	return Providers{
		TypeRole:        roleProvider{},
		TypeUser:        userProvider{},
		TypeGroup:       groupProvider{},
		TypeClient:      clientProvider{},
		TypeTime:        timeProvider{},
		TypeRegex:       regexProvider{},
		TypeClientScope: clientScopeProvider{},
		TypeAggregate:   associatedProvider{},
		TypeResource:    associatedProvider{},
		TypeScope:       associatedProvider{},
	}
}

// Provider returns the provider for the given policy type.
func (ps Providers) Provider(policyType string) (Provider, error) {
	p, ok := ps[policyType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPolicyType, policyType)
	}
	return p, nil
}

// Validate checks that the policy's type is supported and that its
// configuration is valid.
func (ps Providers) Validate(p *Policy) error {
	provider, err := ps.Provider(p.Type)
	if err != nil {
		return err
	}
	return provider.Validate(p)
}

// configJSON unmarshals the JSON encoded config value at key into v. A
// missing key leaves v untouched.
func configJSON(p *Policy, key string, v any) error {
	raw, ok := p.Config[key]
	if !ok || raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: policy %q config %s: %v", ErrInvalidPolicy, p.Name, key, err)
	}
	return nil
}
