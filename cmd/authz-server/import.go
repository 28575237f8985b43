package main

import (
	"fmt"
	"log/slog"

	"github.com/uselagoon/keycloak-authz/internal/authz"
	"github.com/uselagoon/keycloak-authz/internal/signalctx"
)

// ImportCmd represents the import command.
type ImportCmd struct {
	StorageFlags  `kong:"embed"`
	KeycloakFlags `kong:"embed"`

	ClientID   string `kong:"arg,optional,help='clientId of the resource server to fetch from Keycloak'"`
	File       string `kong:"type='existingfile',help='Authorization settings export to import instead of fetching from Keycloak'"`
	ClientUUID string `kong:"name='client-uuid',help='UUID of the client, required with --file'"`
}

// Run the import command to replace the authorization settings of a
// resource server.
func (cmd *ImportCmd) Run(log *slog.Logger) error {
	ctx, cancel := signalctx.GetContext()
	defer cancel()
	s, err := cmd.open(ctx, log)
	if err != nil {
		return fmt.Errorf("couldn't open storage: %v", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Warn("couldn't close storage", slog.Any("error", err))
		}
	}()
	if cmd.File != "" {
		if cmd.ClientUUID == "" {
			return fmt.Errorf("--client-uuid is required with --file")
		}
		_, err = importSettingsFile(ctx, log, s.authz, cmd.ClientUUID, cmd.File)
		return err
	}
	if cmd.KeycloakBaseURL == "" || cmd.ClientID == "" {
		return fmt.Errorf("either --file or a Keycloak base URL and clientId are required")
	}
	_, err = cmd.importer(log).Import(ctx, s.authz, authz.DefaultProviders(), cmd.ClientID)
	return err
}

// ImportRealmCmd represents the import-realm command.
type ImportRealmCmd struct {
	StorageFlags `kong:"embed"`

	File string `kong:"required,arg,type='existingfile',help='Realm export file'"`
}

// Run the import-realm command to create a realm from an export.
func (cmd *ImportRealmCmd) Run(log *slog.Logger) error {
	ctx, cancel := signalctx.GetContext()
	defer cancel()
	s, err := cmd.open(ctx, log)
	if err != nil {
		return fmt.Errorf("couldn't open storage: %v", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Warn("couldn't close storage", slog.Any("error", err))
		}
	}()
	return importRealmFile(ctx, log, s.realm, cmd.File, false)
}
