// Package upstream imports the authorization settings of clients from a
// live Keycloak server.
package upstream

//go:generate go tool mockgen -source=service.go -package=upstream_test -destination=service_mock_test.go

import (
	"context"
	"fmt"
	"net/url"

	"github.com/Nerzal/gocloak/v13"
)

// Service is the subset of the Keycloak admin API used to import
// authorization settings. Methods are defined in the style of
// gocloak.GoCloak.
type Service interface {
	LoginClient(ctx context.Context, clientID, clientSecret, realm string) (*gocloak.JWT, error)
	GetClients(ctx context.Context, token, realm string,
		params gocloak.GetClientsParams) ([]*gocloak.Client, error)
	// GetAuthorizationSettings returns the raw JSON export of the
	// authorization settings of the client with the given UUID.
	GetAuthorizationSettings(ctx context.Context, token, realm,
		idOfClient string) ([]byte, error)
}

// GocloakService implements Service through gocloak.
type GocloakService struct {
	serverURL string
	client    *gocloak.GoCloak
}

// NewGocloakService returns a GocloakService for the Keycloak server at
// serverURL.
func NewGocloakService(serverURL string) *GocloakService {
	return &GocloakService{
		serverURL: serverURL,
		client:    gocloak.NewClient(serverURL),
	}
}

// LoginClient implements Service.
func (g *GocloakService) LoginClient(
	ctx context.Context,
	clientID,
	clientSecret,
	realm string,
) (*gocloak.JWT, error) {
	return g.client.LoginClient(ctx, clientID, clientSecret, realm)
}

// GetClients implements Service.
func (g *GocloakService) GetClients(
	ctx context.Context,
	token,
	realm string,
	params gocloak.GetClientsParams,
) ([]*gocloak.Client, error) {
	return g.client.GetClients(ctx, token, realm, params)
}

// GetAuthorizationSettings implements Service. gocloak has no call for the
// settings export, so the request is built on its authenticated resty
// request.
func (g *GocloakService) GetAuthorizationSettings(
	ctx context.Context,
	token,
	realm,
	idOfClient string,
) ([]byte, error) {
	u, err := url.JoinPath(g.serverURL, "admin", "realms", realm, "clients",
		idOfClient, "authz", "resource-server", "settings")
	if err != nil {
		return nil, fmt.Errorf("couldn't construct settings URL: %v", err)
	}
	res, err := g.client.GetRequestWithBearerAuth(ctx, token).Get(u)
	if err != nil {
		return nil, fmt.Errorf("couldn't get authorization settings: %v", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("bad authorization settings response: %d\n%s",
			res.StatusCode(), res.Body())
	}
	return res.Body(), nil
}
