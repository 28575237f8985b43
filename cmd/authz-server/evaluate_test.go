package main

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/uselagoon/keycloak-authz/internal/authz"
)

func TestParsePermission(t *testing.T) {
	var testCases = map[string]struct {
		input     string
		expect    authz.PermissionRequest
		expectErr bool
	}{
		"resource": {
			input:  "Report",
			expect: authz.PermissionRequest{Resource: "Report"},
		},
		"resource and scopes": {
			input: "Report#read, write",
			expect: authz.PermissionRequest{
				Resource: "Report",
				Scopes:   []string{"read", "write"},
			},
		},
		"scopes only": {
			input:  "#read",
			expect: authz.PermissionRequest{Scopes: []string{"read"}},
		},
		"path": {
			input: "/reports/q3#read",
			expect: authz.PermissionRequest{
				Path:   "/reports/q3",
				Scopes: []string{"read"},
			},
		},
		"empty": {
			input:     "#",
			expectErr: true,
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(tt *testing.T) {
			req, err := parsePermission(tc.input)
			if tc.expectErr {
				assert.Error(tt, err, name)
				return
			}
			assert.NoError(tt, err, name)
			assert.Equal(tt, tc.expect, req, name)
		})
	}
}
