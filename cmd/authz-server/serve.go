package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/uselagoon/keycloak-authz/internal/authz"
	"github.com/uselagoon/keycloak-authz/internal/authzapi"
	"github.com/uselagoon/keycloak-authz/internal/keycloak"
	"github.com/uselagoon/keycloak-authz/internal/metrics"
	"github.com/uselagoon/keycloak-authz/internal/upstream"
	"golang.org/x/sync/errgroup"
)

// KeycloakFlags configure access to a Keycloak realm.
type KeycloakFlags struct {
	KeycloakBaseURL      string `kong:"env='KEYCLOAK_BASE_URL',help='Keycloak Base URL'"`
	KeycloakRealm        string `kong:"default='master',env='KEYCLOAK_REALM',help='Keycloak Realm'"`
	KeycloakInsecureTLS  bool   `kong:"env='KEYCLOAK_INSECURE_TLS',help='Keycloak Insecure TLS'"`
	KeycloakClientID     string `kong:"default='authz-server',env='KEYCLOAK_CLIENT_ID',help='Keycloak OAuth2 Client ID'"`
	KeycloakClientSecret string `kong:"env='KEYCLOAK_CLIENT_SECRET',help='Keycloak OAuth2 Client Secret'"`
	KeycloakRateLimit    int    `kong:"default=10,env='KEYCLOAK_RATE_LIMIT',help='Keycloak API Rate Limit (requests/second)'"`
}

func (f *KeycloakFlags) importer(log *slog.Logger) *upstream.Importer {
	return upstream.NewImporter(log,
		upstream.NewGocloakService(f.KeycloakBaseURL),
		f.KeycloakRealm,
		f.KeycloakClientID,
		f.KeycloakClientSecret)
}

// ServeCmd represents the serve command.
type ServeCmd struct {
	StorageFlags  `kong:"embed"`
	KeycloakFlags `kong:"embed"`

	NATSURL       string            `kong:"required,env='NATS_URL',help='NATS server URL (nats://... or tls://...)'"`
	ImportClients []string          `kong:"env='IMPORT_CLIENTS',help='clientIds whose authorization settings are imported from Keycloak on startup'"`
	RealmFiles    []string          `kong:"env='REALM_FILES',help='Realm export files imported on startup if the realm does not exist'"`
	SettingsFiles map[string]string `kong:"env='SETTINGS_FILES',help='Authorization settings files imported on startup, as clientUUID=path'"`
}

// Run the serve command to serve authorization evaluation requests.
func (cmd *ServeCmd) Run(log *slog.Logger) error {
	// get main process context, which cancels on SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()
	// init storage
	s, err := cmd.open(ctx, log)
	if err != nil {
		return fmt.Errorf("couldn't open storage: %v", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Warn("couldn't close storage", slog.Any("error", err))
		}
	}()
	for _, path := range cmd.RealmFiles {
		if err = importRealmFile(ctx, log, s.realm, path, true); err != nil {
			return err
		}
	}
	for clientUUID, path := range cmd.SettingsFiles {
		if _, err = importSettingsFile(ctx, log, s.authz, clientUUID, path); err != nil {
			return err
		}
	}
	// stored users resolve policy references through the stored realms, and
	// token identities through the Keycloak realm
	options := []authzapi.Option{authzapi.WithRealmService(s.realm)}
	if cmd.KeycloakBaseURL != "" {
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
		options = append(options, authzapi.WithTokenService(k))
		im := cmd.importer(log)
		for _, clientID := range cmd.ImportClients {
			if _, err = im.Import(ctx, s.authz, authz.DefaultProviders(), clientID); err != nil {
				return err
			}
		}
	} else if len(cmd.ImportClients) > 0 {
		return fmt.Errorf("importing clients requires a Keycloak base URL")
	}
	ev := authz.NewEvaluator(log, s.authz)
	srv := authzapi.NewServer(log, s.authz, ev, options...)
	eg, ctx := errgroup.WithContext(ctx)
	metrics.Serve(ctx, eg, log, ":9911")
	// start serving NATS requests
	eg.Go(func() error {
		return authzapi.ServeNATS(ctx, stop, log, srv, cmd.NATSURL)
	})
	return eg.Wait()
}
