package authz_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/uselagoon/keycloak-authz/internal/authz"
	"github.com/uselagoon/keycloak-authz/internal/authzstore"
)

func TestObjectsErrors(t *testing.T) {
	var testCases = map[string]struct {
		input     string
		expectErr error
	}{
		"duplicate scope": {
			input:     `{"scopes":[{"name":"view"},{"name":"view"}]}`,
			expectErr: authz.ErrInvalidRepresentation,
		},
		"duplicate resource": {
			input:     `{"resources":[{"name":"R"},{"name":"R"}]}`,
			expectErr: authz.ErrInvalidRepresentation,
		},
		"unnamed resource": {
			input:     `{"resources":[{"uris":["/r"]}]}`,
			expectErr: authz.ErrInvalidRepresentation,
		},
		"duplicate policy": {
			input: `{"policies":[
				{"name":"P","type":"user","config":{"users":"[\"u\"]"}},
				{"name":"P","type":"user","config":{"users":"[\"v\"]"}}]}`,
			expectErr: authz.ErrInvalidRepresentation,
		},
		"unknown resource reference": {
			input: `{"policies":[
				{"name":"P","type":"resource","config":{"resources":"[\"R\"]"}}]}`,
			expectErr: authz.ErrInvalidRepresentation,
		},
		"unknown associated policy": {
			input: `{"policies":[
				{"name":"P","type":"aggregate","config":{"applyPolicies":"[\"Q\"]"}}]}`,
			expectErr: authz.ErrInvalidRepresentation,
		},
		"javascript policy": {
			input: `{"policies":[
				{"name":"P","type":"js","config":{"code":"$evaluation.grant();"}}]}`,
			expectErr: authz.ErrUnsupportedPolicyType,
		},
		"invalid policy config": {
			input: `{"policies":[
				{"name":"P","type":"time","config":{"hour":"noon"}}]}`,
			expectErr: authz.ErrInvalidPolicy,
		},
		"cycle": {
			input: `{"policies":[
				{"name":"A","type":"aggregate","config":{"applyPolicies":"[\"B\"]"}},
				{"name":"B","type":"aggregate","config":{"applyPolicies":"[\"A\"]"}}]}`,
			expectErr: authz.ErrPolicyCycle,
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(tt *testing.T) {
			var rep authz.ResourceServerRepresentation
			err := json.Unmarshal([]byte(tc.input), &rep)
			if err == nil {
				_, err = rep.Objects("client-uuid", authz.DefaultProviders())
			}
			assert.IsError(tt, err, tc.expectErr, name)
		})
	}
}

func TestObjects(t *testing.T) {
	var rep authz.ResourceServerRepresentation
	assert.NoError(t, json.Unmarshal([]byte(`{
		"decisionStrategy": "consensus",
		"resources": [
			{"name": "A", "owner": "u-1", "scopes": [{"name": "view"}]},
			{"name": "B", "owner": {"id": "u-2"}, "scopes": [{"name": "view"}, {"name": "edit"}]}
		],
		"policies": [
			{"name": "P", "type": "user", "logic": "NEGATIVE", "config": {"users": "[\"u-1\"]"}},
			{"name": "Perm", "type": "scope", "config": {
				"resources": "[\"B\"]",
				"scopes": "[\"edit\"]",
				"applyPolicies": "[\"P\"]"
			}}
		]
	}`), &rep))
	objs, err := rep.Objects("client-uuid", authz.DefaultProviders())
	assert.NoError(t, err)
	assert.Equal(t, "client-uuid", objs.Server.ClientID)
	assert.Equal(t, authz.Consensus, objs.Server.DecisionStrategy)
	assert.Equal(t, authz.Enforcing, objs.Server.EnforcementMode)
	// resource scopes are created implicitly and shared by name
	assert.Equal(t, 2, len(objs.Scopes))
	assert.Equal(t, "u-1", objs.Resources[0].Owner)
	assert.Equal(t, "u-2", objs.Resources[1].Owner)
	assert.Equal(t, objs.Resources[0].ScopeIDs[0], objs.Resources[1].ScopeIDs[0])
	perm := objs.Policies[1]
	assert.Equal(t, []string{objs.Resources[1].ID}, perm.ResourceIDs)
	assert.Equal(t, []string{objs.Resources[1].ScopeIDs[1]}, perm.ScopeIDs)
	assert.Equal(t, []string{objs.Policies[0].ID}, perm.AssociatedPolicyIDs)
	assert.Equal(t, map[string]string{}, perm.Config)
	assert.Equal(t, authz.Negative, objs.Policies[0].Logic)
	for _, r := range objs.Resources {
		assert.Equal(t, objs.Server.ID, r.ResourceServerID)
	}
}

func TestExportRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, rs := loadSettings(t, photoz, nil)
	exported, err := authz.Export(ctx, store, rs)
	assert.NoError(t, err)
	assert.Equal(t, "photoz-uuid", exported.ClientID)
	assert.Equal(t, authz.Affirmative, exported.DecisionStrategy)
	assert.Equal(t, 3, len(exported.Resources))
	assert.Equal(t, 10, len(exported.Policies))
	// permissions follow the policies they reference
	for _, p := range exported.Policies[6:] {
		assert.True(t, p.Type == authz.TypeResource || p.Type == authz.TypeScope, p.Name)
	}
	for _, p := range exported.Policies {
		if p.Name == "Album Delete Permission" {
			assert.Equal(t, map[string]string{
				"resources":     `["Album"]`,
				"scopes":        `["delete"]`,
				"applyPolicies": `["Admin Or Alice"]`,
			}, p.Config)
		}
	}
	// importing the export reproduces it
	data, err := json.Marshal(exported)
	assert.NoError(t, err)
	var rep authz.ResourceServerRepresentation
	assert.NoError(t, json.Unmarshal(data, &rep))
	objs, err := rep.Objects("", authz.DefaultProviders())
	assert.NoError(t, err)
	other := authzstore.NewInMemory()
	rs2, err := other.Import(ctx, objs)
	assert.NoError(t, err)
	reexported, err := authz.Export(ctx, other, rs2)
	assert.NoError(t, err)
	assert.Equal(t, exported, reexported)
}
