package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/davecgh/go-spew/spew"
	"github.com/uselagoon/keycloak-authz/internal/upstream"
)

// DumpAuthzCmd represents the dump-authz command.
type DumpAuthzCmd struct {
	KeycloakFlags `kong:"embed"`

	ClientID string `kong:"required,arg,help='clientId of the resource server'"`
}

// Run the dump-authz command to print the authorization settings of a
// resource server.
func (cmd *DumpAuthzCmd) Run(log *slog.Logger) error {
	// get main process context, which cancels on SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()
	im := upstream.NewImporter(log,
		upstream.NewGocloakService(cmd.KeycloakBaseURL),
		cmd.KeycloakRealm,
		cmd.KeycloakClientID,
		cmd.KeycloakClientSecret)
	id, rep, err := im.Fetch(ctx, cmd.ClientID)
	if err != nil {
		return fmt.Errorf("couldn't fetch authorization settings: %v", err)
	}
	log.Info("fetched resource server", slog.String("id", id))
	spew.Dump(rep)
	return nil
}
