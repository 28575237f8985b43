package keycloak_test

import (
	"context"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/uselagoon/keycloak-authz/internal/authz"
	"github.com/uselagoon/keycloak-authz/internal/keycloak"
)

func TestDirectory(t *testing.T) {
	ctx := context.Background()
	f := newFakeKeycloak(t)
	c := f.client(t)
	var dir authz.Directory = c
	var testCases = map[string]struct {
		lookup    func() (any, error)
		expect    any
		expectErr error
	}{
		"realm role": {
			lookup: func() (any, error) { return dir.RoleByID(ctx, "r-reader") },
			expect: &authz.RoleInfo{Name: "reader"},
		},
		"client role": {
			lookup: func() (any, error) { return dir.RoleByID(ctx, "r-editor") },
			expect: &authz.RoleInfo{Name: "editor", ClientID: "web-app"},
		},
		"missing role": {
			lookup:    func() (any, error) { return dir.RoleByID(ctx, "r-missing") },
			expectErr: authz.ErrNotFound,
		},
		"top level group": {
			lookup: func() (any, error) { return dir.GroupPathByID(ctx, "g-staff") },
			expect: "/staff",
		},
		"subgroup": {
			lookup: func() (any, error) { return dir.GroupPathByID(ctx, "g-dev") },
			expect: "/staff/dev",
		},
		"missing group": {
			lookup:    func() (any, error) { return dir.GroupPathByID(ctx, "g-missing") },
			expectErr: authz.ErrNotFound,
		},
		"client": {
			lookup: func() (any, error) { return dir.ClientIDByID(ctx, "c-web") },
			expect: "web-app",
		},
		"client by clientId": {
			lookup: func() (any, error) { return c.ClientUUID(ctx, "web-app") },
			expect: "c-web",
		},
		"unknown clientId": {
			lookup:    func() (any, error) { return c.ClientUUID(ctx, "other-app") },
			expectErr: authz.ErrNotFound,
		},
		"missing client": {
			lookup:    func() (any, error) { return dir.ClientIDByID(ctx, "c-missing") },
			expectErr: authz.ErrNotFound,
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(tt *testing.T) {
			value, err := tc.lookup()
			if tc.expectErr != nil {
				assert.IsError(tt, err, tc.expectErr, name)
				return
			}
			assert.NoError(tt, err, name)
			assert.Equal(tt, tc.expect, value, name)
		})
	}
}

func TestCaching(t *testing.T) {
	ctx := context.Background()
	f := newFakeKeycloak(t)
	c := f.client(t)
	for range 3 {
		path, err := c.GroupPath(ctx, "g-dev")
		assert.NoError(t, err)
		assert.Equal(t, "/staff/dev", path)
	}
	// one request each for g-dev and g-staff
	assert.Equal(t, int32(2), f.requests.Load())
}

func TestClientUUIDCaching(t *testing.T) {
	ctx := context.Background()
	f := newFakeKeycloak(t)
	c := f.client(t)
	for range 2 {
		id, err := c.ClientUUID(ctx, "web-app")
		assert.NoError(t, err)
		assert.Equal(t, "c-web", id)
	}
	// the second lookup is served from cache
	assert.Equal(t, int32(1), f.requests.Load())
	// the lookup by clientId also fills the client cache
	name, err := c.ClientIDByID(ctx, "c-web")
	assert.NoError(t, err)
	assert.Equal(t, "web-app", name)
	assert.Equal(t, int32(1), f.requests.Load())
	// misses are not cached
	for range 2 {
		_, err = c.ClientUUID(ctx, "missing")
		assert.Error(t, err)
	}
	assert.Equal(t, int32(3), f.requests.Load())
}

func TestTopLevelGroups(t *testing.T) {
	var testCases = map[string]struct {
		pageSize       int
		expectRequests int32
	}{
		"single page": {pageSize: 10, expectRequests: 1},
		"full pages":  {pageSize: 1, expectRequests: 3},
		"last page":   {pageSize: 2, expectRequests: 2},
	}
	for name, tc := range testCases {
		t.Run(name, func(tt *testing.T) {
			ctx := context.Background()
			f := newFakeKeycloak(tt)
			c := f.client(tt, keycloak.WithPageSize(tc.pageSize))
			groups, err := c.TopLevelGroups(ctx)
			assert.NoError(tt, err, name)
			var names []string
			for _, g := range groups {
				names = append(names, g.Name)
			}
			assert.Equal(tt, []string{"staff", "ops"}, names, name)
			assert.Equal(tt, tc.expectRequests, f.requests.Load(), name)
			// listed groups are cached individually
			path, err := c.GroupPath(ctx, "g-ops")
			assert.NoError(tt, err, name)
			assert.Equal(tt, "/ops", path, name)
			_, err = c.TopLevelGroups(ctx)
			assert.NoError(tt, err, name)
			assert.Equal(tt, tc.expectRequests, f.requests.Load(), name)
		})
	}
}
