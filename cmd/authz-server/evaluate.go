package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/uselagoon/keycloak-authz/internal/authz"
	"github.com/uselagoon/keycloak-authz/internal/authzstore"
	"github.com/uselagoon/keycloak-authz/internal/realm"
	"github.com/uselagoon/keycloak-authz/internal/signalctx"
)

// EvaluateCmd represents the evaluate command.
type EvaluateCmd struct {
	SettingsFile string            `kong:"required,arg,type='existingfile',help='Authorization settings export'"`
	ClientID     string            `kong:"default='resource-server',help='clientId of the resource server'"`
	IdentityFile string            `kong:"type='existingfile',xor='identity',help='JSON file holding the identity to evaluate for'"`
	RealmFile    string            `kong:"type='existingfile',help='Realm export resolving roles and groups, and users with --username'"`
	Username     string            `kong:"xor='identity',help='Username of the realm file user to evaluate for'"`
	Permission   []string          `kong:"short='p',help='Requested permission as resource#scope,scope or a path; all resources if omitted'"`
	Attribute    map[string]string `kong:"short='a',help='Context attribute as name=value'"`
}

// parsePermission parses a permission in the form resource#scope1,scope2.
// Either part may be empty. A resource starting with a slash is matched
// against resource URIs.
func parsePermission(s string) (authz.PermissionRequest, error) {
	var req authz.PermissionRequest
	resource, scopes, _ := strings.Cut(s, "#")
	if strings.HasPrefix(resource, "/") {
		req.Path = resource
	} else {
		req.Resource = resource
	}
	for scope := range strings.SplitSeq(scopes, ",") {
		if scope = strings.TrimSpace(scope); scope != "" {
			req.Scopes = append(req.Scopes, scope)
		}
	}
	if req.Resource == "" && req.Path == "" && len(req.Scopes) == 0 {
		return req, fmt.Errorf("empty permission %q", s)
	}
	return req, nil
}

// identity returns the identity to evaluate for, and the realm store
// resolving directory lookups if a realm file was given.
func (cmd *EvaluateCmd) identity(
	ctx context.Context,
	log *slog.Logger,
) (*authz.Identity, *realm.Store, error) {
	var rs *realm.Store
	if cmd.RealmFile != "" {
		rs = realm.NewInMemory()
		if err := importRealmFile(ctx, log, rs, cmd.RealmFile, false); err != nil {
			return nil, nil, err
		}
	}
	switch {
	case cmd.IdentityFile != "":
		var identity authz.Identity
		if err := readJSON(cmd.IdentityFile, &identity); err != nil {
			return nil, nil, err
		}
		return &identity, rs, nil
	case cmd.Username != "":
		if rs == nil {
			return nil, nil, fmt.Errorf("--username requires --realm-file")
		}
		realms, err := rs.Realms(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("couldn't get imported realm: %v", err)
		}
		if len(realms) != 1 {
			return nil, nil, fmt.Errorf("expected one imported realm, got %d", len(realms))
		}
		u, err := rs.UserByUsername(ctx, realms[0].ID, cmd.Username)
		if err != nil {
			return nil, nil, err
		}
		identity, err := rs.Identity(ctx, realms[0].ID, u.ID, cmd.ClientID)
		return identity, rs, err
	default:
		return nil, nil, fmt.Errorf("either --identity-file or --username is required")
	}
}

// Run the evaluate command to evaluate permissions against an authorization
// settings export and print the decision.
func (cmd *EvaluateCmd) Run(log *slog.Logger) error {
	ctx, cancel := signalctx.GetContext()
	defer cancel()
	var requests []authz.PermissionRequest
	for _, p := range cmd.Permission {
		req, err := parsePermission(p)
		if err != nil {
			return err
		}
		requests = append(requests, req)
	}
	identity, rs, err := cmd.identity(ctx, log)
	if err != nil {
		return fmt.Errorf("couldn't get identity: %v", err)
	}
	store := authzstore.NewInMemory()
	server, err := importSettingsFile(ctx, log, store, cmd.ClientID, cmd.SettingsFile)
	if err != nil {
		return err
	}
	var options []authz.Option
	if rs != nil {
		options = append(options, authz.WithDirectory(rs))
	}
	attrs := map[string][]string{}
	for name, value := range cmd.Attribute {
		attrs[name] = []string{value}
	}
	ev := authz.NewEvaluator(log, store, options...)
	decision, err := ev.Evaluate(ctx, server,
		authz.NewContext(identity, time.Now(), attrs), requests)
	if err != nil {
		return fmt.Errorf("couldn't evaluate: %v", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(decision)
}
