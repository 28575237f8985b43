package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/davecgh/go-spew/spew"
	"github.com/uselagoon/keycloak-authz/internal/keycloak"
)

// KeycloakFlags configure access to a Keycloak realm.
type KeycloakFlags struct {
	KeycloakBaseURL      string `kong:"required,env='KEYCLOAK_BASE_URL',help='Keycloak Base URL'"`
	KeycloakRealm        string `kong:"default='master',env='KEYCLOAK_REALM',help='Keycloak Realm'"`
	KeycloakInsecureTLS  bool   `kong:"env='KEYCLOAK_INSECURE_TLS',help='Keycloak Insecure TLS'"`
	KeycloakClientID     string `kong:"default='authz-server',env='KEYCLOAK_CLIENT_ID',help='Keycloak OAuth2 Client ID'"`
	KeycloakClientSecret string `kong:"required,env='KEYCLOAK_CLIENT_SECRET',help='Keycloak OAuth2 Client Secret'"`
	KeycloakRateLimit    int    `kong:"default=10,env='KEYCLOAK_RATE_LIMIT',help='Keycloak API Rate Limit (requests/second)'"`
}

// DumpGroupsCmd represents the dump-groups command.
type DumpGroupsCmd struct {
	KeycloakFlags `kong:"embed"`
}

// Run the dump-groups command to print the top-level groups of the realm.
func (cmd *DumpGroupsCmd) Run(log *slog.Logger) error {
	// get main process context, which cancels on SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()
	// init keycloak client
	k, err := keycloak.NewClient(ctx, log,
		cmd.KeycloakBaseURL,
		cmd.KeycloakRealm,
		cmd.KeycloakClientID,
		cmd.KeycloakClientSecret,
		cmd.KeycloakRateLimit,
		cmd.KeycloakInsecureTLS)
	if err != nil {
		return fmt.Errorf("couldn't init keycloak client: %v", err)
	}
	defer k.Close()
	groups, err := k.TopLevelGroups(ctx)
	if err != nil {
		return fmt.Errorf("couldn't get keycloak groups: %v", err)
	}
	groupMap := map[string]string{}
	for _, g := range groups {
		groupMap[g.Name] = g.ID
	}
	spew.Dump(groupMap)
	return nil
}
