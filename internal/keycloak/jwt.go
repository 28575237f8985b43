package keycloak

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/uselagoon/keycloak-authz/internal/authz"
)

type roles struct {
	Roles []string `json:"roles"`
}

// AccessClaims contains the access token claims used for authorization.
type AccessClaims struct {
	PreferredUsername string           `json:"preferred_username"`
	Email             string           `json:"email"`
	RealmAccess       roles            `json:"realm_access"`
	ResourceAccess    map[string]roles `json:"resource_access"`
	Groups            []string         `json:"groups"`
	Scope             string           `json:"scope"`
	AuthorizedParty   string           `json:"azp"`
	jwt.RegisteredClaims

	// raw holds every claim of the token.
	raw      map[string]any `json:"-"`
	clientID string         `json:"-"`
}

// UnmarshalJSON implements json.Unmarshaler. It retains the full claim set
// alongside the typed fields.
func (a *AccessClaims) UnmarshalJSON(data []byte) error {
	type plain AccessClaims
	if err := json.Unmarshal(data, (*plain)(a)); err != nil {
		return err
	}
	return json.Unmarshal(data, &a.raw)
}

// Validate checks that the token was issued to the expected client.
//
// Keycloak sets the authorized party to the clientId the token was requested
// by. If no client is expected any authorized party is accepted.
func (a AccessClaims) Validate() error {
	if a.clientID != "" && a.clientID != a.AuthorizedParty {
		return fmt.Errorf("invalid azp, expected %s got %s",
			a.clientID, a.AuthorizedParty)
	}
	return nil
}

// Identity converts the claims to an authorization identity.
func (a *AccessClaims) Identity() *authz.Identity {
	identity := &authz.Identity{
		ID:         a.Subject,
		Username:   a.PreferredUsername,
		RealmRoles: a.RealmAccess.Roles,
		ClientID:   a.AuthorizedParty,
		Claims:     maps.Clone(a.raw),
	}
	if a.Scope != "" {
		identity.Scopes = strings.Fields(a.Scope)
	}
	for clientID, r := range a.ResourceAccess {
		if identity.ClientRoles == nil {
			identity.ClientRoles = map[string][]string{}
		}
		identity.ClientRoles[clientID] = r.Roles
	}
	for _, g := range a.Groups {
		// the group membership mapper omits the leading slash when full
		// paths are disabled
		if !strings.HasPrefix(g, "/") {
			g = "/" + g
		}
		identity.Groups = append(identity.Groups, g)
	}
	return identity
}

// parseAccessToken validates the signature, issuer, expiry and authorized
// party of an access token and returns its claims.
func (c *Client) parseAccessToken(
	token,
	clientID string,
	opts ...jwt.ParserOption,
) (*AccessClaims, error) {
	opts = append(opts,
		jwt.WithIssuer(c.oidcConfig.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	tok, err := jwt.ParseWithClaims(
		token,
		&AccessClaims{clientID: clientID},
		c.jwks.Keyfunc,
		opts...)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse access token: %w", err)
	}
	claims, ok := tok.Claims.(*AccessClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims type: %T", tok.Claims)
	}
	if !tok.Valid {
		// this should never happen because invalid tokens will return an error
		// from jwt.ParseWithClaims()
		return nil, fmt.Errorf("invalid token with no error")
	}
	return claims, nil
}

// ParseAccessToken validates an access token issued by the realm and returns
// the identity it carries. If clientID is not empty the token must have been
// issued to that client.
func (c *Client) ParseAccessToken(token, clientID string) (*authz.Identity, error) {
	claims, err := c.parseAccessToken(token, clientID)
	if err != nil {
		return nil, err
	}
	return claims.Identity(), nil
}
