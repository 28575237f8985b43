package authz_test

import (
	"encoding/json"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/uselagoon/keycloak-authz/internal/authz"
)

func TestEnumText(t *testing.T) {
	type settings struct {
		DecisionStrategy      authz.DecisionStrategy `json:"decisionStrategy"`
		Logic                 authz.Logic            `json:"logic"`
		PolicyEnforcementMode authz.EnforcementMode  `json:"policyEnforcementMode"`
	}
	var testCases = map[string]struct {
		input     string
		expect    settings
		expectErr bool
	}{
		"upper case": {
			input: `{"decisionStrategy":"AFFIRMATIVE","logic":"NEGATIVE","policyEnforcementMode":"PERMISSIVE"}`,
			expect: settings{
				DecisionStrategy:      authz.Affirmative,
				Logic:                 authz.Negative,
				PolicyEnforcementMode: authz.Permissive,
			},
		},
		"lower case": {
			input: `{"decisionStrategy":"consensus","logic":"positive","policyEnforcementMode":"disabled"}`,
			expect: settings{
				DecisionStrategy:      authz.Consensus,
				Logic:                 authz.Positive,
				PolicyEnforcementMode: authz.Disabled,
			},
		},
		"omitted fields": {
			input:  `{}`,
			expect: settings{},
		},
		"unknown enforcement mode": {
			input:     `{"policyEnforcementMode":"SOMETIMES"}`,
			expectErr: true,
		},
		"unknown decision strategy": {
			input:     `{"decisionStrategy":"MAJORITY"}`,
			expectErr: true,
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(tt *testing.T) {
			var s settings
			err := json.Unmarshal([]byte(tc.input), &s)
			if tc.expectErr {
				assert.Error(tt, err, name)
				return
			}
			assert.NoError(tt, err, name)
			assert.Equal(tt, tc.expect, s, name)
			// text round trips through the upper case name
			data, err := json.Marshal(s)
			assert.NoError(tt, err, name)
			var again settings
			assert.NoError(tt, json.Unmarshal(data, &again), name)
			assert.Equal(tt, s, again, name)
		})
	}
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, []string{"UNANIMOUS", "AFFIRMATIVE", "CONSENSUS"},
		authz.DecisionStrategyStrings())
	assert.Equal(t, []string{"POSITIVE", "NEGATIVE"}, authz.LogicStrings())
	assert.Equal(t, []string{"ENFORCING", "PERMISSIVE", "DISABLED"},
		authz.EnforcementModeStrings())
	assert.Equal(t, "EnforcementMode(7)", authz.EnforcementMode(7).String())
	assert.False(t, authz.Logic(2).IsALogic())
}
