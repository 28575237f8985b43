package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/uselagoon/keycloak-authz/internal/authzstore"
	"github.com/uselagoon/keycloak-authz/internal/realm"
)

func writeFile(tt *testing.T, name, content string) string {
	path := filepath.Join(tt.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		tt.Fatal(err)
	}
	return path
}

func TestImportRealmFile(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	path := writeFile(t, "realm.json", `{
		"realm": "acme",
		"enabled": true,
		"roles": {"realm": [{"name": "reader"}]},
		"users": [{"username": "alice", "enabled": true, "realmRoles": ["reader"]}]
	}`)
	s := realm.NewInMemory()
	assert.NoError(t, importRealmFile(ctx, log, s, path, false))
	r, err := s.RealmByName(ctx, "acme")
	assert.NoError(t, err)
	_, err = s.UserByUsername(ctx, r.ID, "alice")
	assert.NoError(t, err)
	// existing realms are skipped on request
	assert.NoError(t, importRealmFile(ctx, log, s, path, true))
	assert.Error(t, importRealmFile(ctx, log, s, path, false))
	assert.Error(t, importRealmFile(ctx, log, s, filepath.Join(t.TempDir(), "missing.json"), false))
}

func TestImportSettingsFile(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	path := writeFile(t, "settings.json", `{
		"decisionStrategy": "AFFIRMATIVE",
		"resources": [{"name": "Report", "uris": ["/reports/*"], "scopes": [{"name": "read"}]}],
		"scopes": [{"name": "read"}]
	}`)
	store := authzstore.NewInMemory()
	rs, err := importSettingsFile(ctx, log, store, "c-web", path)
	assert.NoError(t, err)
	assert.Equal(t, "c-web", rs.ClientID)
	resource, err := store.ResourceByName(ctx, rs.ID, "Report")
	assert.NoError(t, err)
	assert.Equal(t, []string{"/reports/*"}, resource.URIs)
	_, err = importSettingsFile(ctx, log, store, "c-web", writeFile(t, "bad.json", "{"))
	assert.Error(t, err)
}
