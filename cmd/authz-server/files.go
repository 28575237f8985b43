package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/uselagoon/keycloak-authz/internal/authz"
	"github.com/uselagoon/keycloak-authz/internal/authzstore"
	"github.com/uselagoon/keycloak-authz/internal/mapstorage"
	"github.com/uselagoon/keycloak-authz/internal/realm"
)

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("couldn't read %s: %v", path, err)
	}
	if err = json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("couldn't unmarshal %s: %v", path, err)
	}
	return nil
}

// importSettingsFile imports the authorization settings export at path as
// the resource server of the client with the given UUID.
func importSettingsFile(
	ctx context.Context,
	log *slog.Logger,
	store *authzstore.Store,
	clientUUID,
	path string,
) (*authz.ResourceServer, error) {
	var rep authz.ResourceServerRepresentation
	if err := readJSON(path, &rep); err != nil {
		return nil, err
	}
	objs, err := rep.Objects(clientUUID, authz.DefaultProviders())
	if err != nil {
		return nil, fmt.Errorf("couldn't convert %s: %w", path, err)
	}
	rs, err := store.Import(ctx, objs)
	if err != nil {
		return nil, fmt.Errorf("couldn't import %s: %w", path, err)
	}
	log.Info("imported authorization settings",
		slog.String("file", path),
		slog.String("client", clientUUID),
		slog.String("resourceServer", rs.ID))
	return rs, nil
}

// importRealmFile imports the realm export at path. If skipExisting is true
// a realm which already exists is left unchanged.
func importRealmFile(
	ctx context.Context,
	log *slog.Logger,
	store *realm.Store,
	path string,
	skipExisting bool,
) error {
	var rep realm.RealmRepresentation
	if err := readJSON(path, &rep); err != nil {
		return err
	}
	if skipExisting {
		_, err := store.RealmByName(ctx, rep.Realm)
		if err == nil {
			log.Info("realm exists, skipping import",
				slog.String("file", path), slog.String("realm", rep.Realm))
			return nil
		}
		if !errors.Is(err, realm.ErrNotFound) {
			return err
		}
	}
	r, err := store.Import(ctx, &rep)
	if err != nil {
		if errors.Is(err, mapstorage.ErrDuplicate) {
			return fmt.Errorf("realm %s conflicts with stored objects: %v", rep.Realm, err)
		}
		return fmt.Errorf("couldn't import %s: %v", path, err)
	}
	log.Info("imported realm",
		slog.String("file", path),
		slog.String("realm", r.Name),
		slog.Int("users", len(rep.Users)))
	return nil
}
