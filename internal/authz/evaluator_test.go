package authz_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/uselagoon/keycloak-authz/internal/authz"
	"github.com/uselagoon/keycloak-authz/internal/authzstore"
	"github.com/uselagoon/keycloak-authz/internal/mapstorage"
)

var (
	bob = &authz.Identity{
		ID:         "u-bob",
		Username:   "bob",
		RealmRoles: []string{"user"},
		ClientID:   "cli",
	}
	alice = &authz.Identity{
		ID:         "u-alice",
		Username:   "alice",
		RealmRoles: []string{"user"},
		ClientID:   "cli",
	}
	carol = &authz.Identity{
		ID:       "u-carol",
		Username: "carol",
		Groups:   []string{"/staff/dev"},
		ClientID: "cli",
	}
	webAdmin = &authz.Identity{
		ID:         "u-admin",
		Username:   "admin",
		RealmRoles: []string{"admin"},
		ClientID:   "web-app",
	}
	cliAdmin = &authz.Identity{
		ID:         "u-admin",
		Username:   "admin",
		RealmRoles: []string{"admin"},
		ClientID:   "cli",
	}
)

// granted summarises a decision as resource name to granted scopes.
func granted(d *authz.Decision) map[string][]string {
	result := map[string][]string{}
	for _, p := range d.Permissions {
		result[p.ResourceName] = p.Scopes
	}
	return result
}

func TestEvaluate(t *testing.T) {
	var testCases = map[string]struct {
		identity      *authz.Identity
		requests      []authz.PermissionRequest
		expectGranted bool
		expectScopes  map[string][]string
	}{
		"user views album": {
			identity:      bob,
			requests:      []authz.PermissionRequest{{Resource: "Album"}},
			expectGranted: true,
			expectScopes:  map[string][]string{"Album": {"view"}},
		},
		"alice deletes album": {
			identity:      alice,
			requests:      []authz.PermissionRequest{{Resource: "Album"}},
			expectGranted: true,
			expectScopes:  map[string][]string{"Album": {"view", "delete"}},
		},
		"staff subgroup gets every album scope": {
			identity:      carol,
			requests:      []authz.PermissionRequest{{Resource: "Album"}},
			expectGranted: true,
			expectScopes:  map[string][]string{"Album": {"view", "edit", "delete"}},
		},
		"admin through web client": {
			identity:      webAdmin,
			requests:      []authz.PermissionRequest{{Resource: "Admin"}},
			expectGranted: true,
			expectScopes:  map[string][]string{"Admin": nil},
		},
		"admin through other client": {
			identity:     cliAdmin,
			requests:     []authz.PermissionRequest{{Resource: "Admin"}},
			expectScopes: map[string][]string{},
		},
		"path with parameter": {
			identity:      bob,
			requests:      []authz.PermissionRequest{{Path: "/profile/42"}},
			expectGranted: true,
			expectScopes:  map[string][]string{"Profile": {"view"}},
		},
		"path without role": {
			identity:     carol,
			requests:     []authz.PermissionRequest{{Path: "/profile/42"}},
			expectScopes: map[string][]string{},
		},
		"wildcard path with scope": {
			identity:      bob,
			requests:      []authz.PermissionRequest{{Path: "/album/1/photo", Scopes: []string{"view"}}},
			expectGranted: true,
			expectScopes:  map[string][]string{"Album": {"view"}},
		},
		"denied scope": {
			identity:     bob,
			requests:     []authz.PermissionRequest{{Resource: "Album", Scopes: []string{"edit"}}},
			expectScopes: map[string][]string{},
		},
		"scope not on resource": {
			identity:     bob,
			requests:     []authz.PermissionRequest{{Resource: "Album", Scopes: []string{"share"}}},
			expectScopes: map[string][]string{},
		},
		"unknown resource": {
			identity:     webAdmin,
			requests:     []authz.PermissionRequest{{Resource: "Nothing"}},
			expectScopes: map[string][]string{},
		},
		"partially granted": {
			identity: bob,
			requests: []authz.PermissionRequest{
				{Resource: "Album"},
				{Resource: "Admin"},
			},
			expectScopes: map[string][]string{"Album": {"view"}},
		},
		"every resource": {
			identity:      alice,
			expectGranted: true,
			expectScopes: map[string][]string{
				"Album":   {"view", "delete"},
				"Profile": {"view"},
			},
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(tt *testing.T) {
			ctx := context.Background()
			store, rs := loadSettings(tt, photoz, nil)
			ev := authz.NewEvaluator(testLog(), store, authz.WithDirectory(testDirectory))
			decision, err := ev.Evaluate(ctx, rs,
				authz.NewContext(tc.identity, time.Now(), nil), tc.requests)
			assert.NoError(tt, err, name)
			assert.Equal(tt, tc.expectGranted, decision.Granted, name)
			assert.Equal(tt, tc.expectScopes, granted(decision), name)
		})
	}
}

func TestEnforcementMode(t *testing.T) {
	var testCases = map[string]struct {
		mode          authz.EnforcementMode
		noPolicies    bool
		identity      *authz.Identity
		expectGranted bool
		expectScopes  map[string][]string
	}{
		"enforcing without permissions": {
			mode:         authz.Enforcing,
			noPolicies:   true,
			identity:     bob,
			expectScopes: map[string][]string{},
		},
		"permissive without permissions": {
			mode:          authz.Permissive,
			noPolicies:    true,
			identity:      bob,
			expectGranted: true,
			expectScopes:  map[string][]string{"Profile": {"view"}},
		},
		"permissive with denying permission": {
			mode:         authz.Permissive,
			identity:     carol,
			expectScopes: map[string][]string{},
		},
		"disabled": {
			mode:          authz.Disabled,
			identity:      carol,
			expectGranted: true,
			expectScopes:  map[string][]string{"Profile": {"view"}},
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(tt *testing.T) {
			store, rs := loadSettings(tt, photoz, func(rep *authz.ResourceServerRepresentation) {
				rep.PolicyEnforcementMode = tc.mode
				if tc.noPolicies {
					rep.Policies = nil
				}
			})
			ev := authz.NewEvaluator(testLog(), store, authz.WithDirectory(testDirectory))
			decision, err := ev.Evaluate(context.Background(), rs,
				authz.NewContext(tc.identity, time.Now(), nil),
				[]authz.PermissionRequest{{Resource: "Profile"}})
			assert.NoError(tt, err, name)
			assert.Equal(tt, tc.expectGranted, decision.Granted, name)
			assert.Equal(tt, tc.expectScopes, granted(decision), name)
		})
	}
}

func TestNegativeLogic(t *testing.T) {
	store, rs := loadSettings(t, photoz, func(rep *authz.ResourceServerRepresentation) {
		for i := range rep.Policies {
			if rep.Policies[i].Name == "Only Users" {
				rep.Policies[i].Logic = authz.Negative
			}
		}
	})
	ev := authz.NewEvaluator(testLog(), store, authz.WithDirectory(testDirectory))
	for identity, expect := range map[*authz.Identity]bool{bob: false, carol: true} {
		decision, err := ev.Evaluate(context.Background(), rs,
			authz.NewContext(identity, time.Now(), nil),
			[]authz.PermissionRequest{{Resource: "Profile"}})
		assert.NoError(t, err)
		assert.Equal(t, expect, decision.Granted, identity.Username)
	}
}

// countingProvider permits every request and counts its evaluations.
type countingProvider struct {
	evaluations int
}

func (*countingProvider) Validate(*authz.Policy) error { return nil }

func (c *countingProvider) Evaluate(context.Context, *authz.Evaluation, *authz.Policy) (bool, error) {
	c.evaluations++
	return true, nil
}

func TestPolicyMemoization(t *testing.T) {
	ctx := context.Background()
	counter := &countingProvider{}
	providers := authz.DefaultProviders()
	providers["counting"] = counter
	var rep authz.ResourceServerRepresentation
	assert.NoError(t, json.Unmarshal([]byte(`{
		"scopes": [{"name": "view"}, {"name": "edit"}],
		"resources": [{"name": "Album", "scopes": [{"name": "view"}, {"name": "edit"}]}],
		"policies": [
			{"name": "Counted", "type": "counting", "config": {}},
			{
				"name": "View Permission",
				"type": "scope",
				"config": {"scopes": "[\"view\"]", "applyPolicies": "[\"Counted\"]"}
			},
			{
				"name": "Edit Permission",
				"type": "scope",
				"config": {"scopes": "[\"edit\"]", "applyPolicies": "[\"Counted\"]"}
			}
		]
	}`), &rep))
	objs, err := rep.Objects("album-uuid", providers)
	assert.NoError(t, err)
	store := authzstore.NewInMemory()
	rs, err := store.Import(ctx, objs)
	assert.NoError(t, err)
	ev := authz.NewEvaluator(testLog(), store,
		authz.WithDirectory(testDirectory), authz.WithProviders(providers))
	decision, err := ev.Evaluate(ctx, rs, authz.NewContext(bob, time.Now(), nil),
		[]authz.PermissionRequest{{Resource: "Album"}})
	assert.NoError(t, err)
	assert.Equal(t, map[string][]string{"Album": {"view", "edit"}}, granted(decision))
	// both permissions share one evaluation of the policy
	assert.Equal(t, 1, counter.evaluations)
	// outcomes are not carried over between runs
	_, err = ev.Evaluate(ctx, rs, authz.NewContext(bob, time.Now(), nil),
		[]authz.PermissionRequest{{Resource: "Album"}})
	assert.NoError(t, err)
	assert.Equal(t, 2, counter.evaluations)
}

func TestCombine(t *testing.T) {
	var testCases = map[string]struct {
		effects           []authz.Effect
		expectUnanimous   bool
		expectAffirmative bool
		expectConsensus   bool
	}{
		"none": {},
		"all permit": {
			effects:           []authz.Effect{authz.Permit, authz.Permit},
			expectUnanimous:   true,
			expectAffirmative: true,
			expectConsensus:   true,
		},
		"one deny": {
			effects:           []authz.Effect{authz.Permit, authz.Permit, authz.Deny},
			expectAffirmative: true,
			expectConsensus:   true,
		},
		"tie": {
			effects:           []authz.Effect{authz.Permit, authz.Deny},
			expectAffirmative: true,
		},
		"all deny": {
			effects: []authz.Effect{authz.Deny},
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(tt *testing.T) {
			assert.Equal(tt, tc.expectUnanimous,
				authz.Combine(authz.Unanimous, tc.effects), name)
			assert.Equal(tt, tc.expectAffirmative,
				authz.Combine(authz.Affirmative, tc.effects), name)
			assert.Equal(tt, tc.expectConsensus,
				authz.Combine(authz.Consensus, tc.effects), name)
		})
	}
}

// cyclicStore serves a single resource whose permission associates itself
// through an aggregate policy. Other authz.Store methods are not called.
type cyclicStore struct {
	authz.Store
	resource *authz.Resource
	policies map[string]*authz.Policy
}

func (s *cyclicStore) Resource(_ context.Context, id string) (*authz.Resource, error) {
	if id == s.resource.ID {
		return s.resource, nil
	}
	return nil, authz.ErrNotFound
}

func (s *cyclicStore) PoliciesByResource(
	_ context.Context,
	_, resourceID string,
) ([]*authz.Policy, error) {
	return []*authz.Policy{s.policies["perm"]}, nil
}

func (s *cyclicStore) Policy(_ context.Context, id string) (*authz.Policy, error) {
	if p, ok := s.policies[id]; ok {
		return p, nil
	}
	return nil, authz.ErrNotFound
}

func TestPolicyCycle(t *testing.T) {
	store := &cyclicStore{
		resource: &authz.Resource{
			Meta:             mapstorage.Meta{ID: "r1"},
			ResourceServerID: "rs",
			Name:             "R",
		},
		policies: map[string]*authz.Policy{
			"perm": {
				Meta:                mapstorage.Meta{ID: "perm"},
				ResourceServerID:    "rs",
				Name:                "perm",
				Type:                authz.TypeResource,
				ResourceIDs:         []string{"r1"},
				AssociatedPolicyIDs: []string{"a"},
			},
			"a": {
				Meta:                mapstorage.Meta{ID: "a"},
				Name:                "a",
				Type:                authz.TypeAggregate,
				AssociatedPolicyIDs: []string{"b"},
			},
			"b": {
				Meta:                mapstorage.Meta{ID: "b"},
				Name:                "b",
				Type:                authz.TypeAggregate,
				AssociatedPolicyIDs: []string{"a"},
			},
		},
	}
	ev := authz.NewEvaluator(testLog(), store)
	_, err := ev.Evaluate(context.Background(),
		&authz.ResourceServer{Meta: mapstorage.Meta{ID: "rs"}},
		authz.NewContext(bob, time.Now(), nil),
		[]authz.PermissionRequest{{Resource: "r1"}})
	assert.True(t, errors.Is(err, authz.ErrPolicyCycle))
}
