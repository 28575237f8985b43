package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Nerzal/gocloak/v13"
	"github.com/uselagoon/keycloak-authz/internal/authz"
	"go.opentelemetry.io/otel"
)

const pkgName = "github.com/uselagoon/keycloak-authz/internal/upstream"

// ErrNoClient is returned when the realm has no client with the requested
// clientId.
var ErrNoClient = errors.New("no such client")

// Importer is an object which imports authorization settings from the
// Keycloak admin API, logging in with client credentials.
type Importer struct {
	log          *slog.Logger
	svc          Service
	realm        string
	clientID     string
	clientSecret string
}

// Store is the storage settings are imported into.
type Store interface {
	Import(ctx context.Context, objs *authz.Objects) (*authz.ResourceServer, error)
}

// NewImporter returns an Importer which logs in to realm through svc as
// the given confidential client.
func NewImporter(
	log *slog.Logger,
	svc Service,
	realm,
	clientID,
	clientSecret string,
) *Importer {
	return &Importer{
		log:          log,
		svc:          svc,
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// Fetch returns the UUID of the client with the given clientId and its
// authorization settings.
func (i *Importer) Fetch(
	ctx context.Context,
	clientID string,
) (string, *authz.ResourceServerRepresentation, error) {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "Fetch")
	defer span.End()
	token, err := i.svc.LoginClient(ctx, i.clientID, i.clientSecret, i.realm)
	if err != nil {
		return "", nil, fmt.Errorf("couldn't log in to realm %s: %v", i.realm, err)
	}
	clients, err := i.svc.GetClients(ctx, token.AccessToken, i.realm,
		gocloak.GetClientsParams{ClientID: &clientID})
	if err != nil {
		return "", nil, fmt.Errorf("couldn't get clients: %v", err)
	}
	if len(clients) != 1 || clients[0].ID == nil {
		return "", nil, fmt.Errorf("%w: found %d clients for %s",
			ErrNoClient, len(clients), clientID)
	}
	id := *clients[0].ID
	data, err := i.svc.GetAuthorizationSettings(ctx, token.AccessToken, i.realm, id)
	if err != nil {
		return "", nil, err
	}
	var rep authz.ResourceServerRepresentation
	if err = json.Unmarshal(data, &rep); err != nil {
		return "", nil, fmt.Errorf("couldn't unmarshal authorization settings: %v", err)
	}
	i.log.Debug("fetched authorization settings",
		slog.String("clientID", clientID),
		slog.String("id", id),
		slog.Int("resources", len(rep.Resources)),
		slog.Int("policies", len(rep.Policies)))
	return id, &rep, nil
}

// Import fetches the authorization settings of the client with the given
// clientId and replaces the client's resource server in store.
func (i *Importer) Import(
	ctx context.Context,
	store Store,
	providers authz.Providers,
	clientID string,
) (*authz.ResourceServer, error) {
	id, rep, err := i.Fetch(ctx, clientID)
	if err != nil {
		return nil, err
	}
	objs, err := rep.Objects(id, providers)
	if err != nil {
		return nil, fmt.Errorf("couldn't convert settings of %s: %w", clientID, err)
	}
	rs, err := store.Import(ctx, objs)
	if err != nil {
		return nil, fmt.Errorf("couldn't import settings of %s: %w", clientID, err)
	}
	i.log.Info("imported authorization settings",
		slog.String("clientID", clientID),
		slog.String("resourceServer", rs.ID))
	return rs, nil
}
