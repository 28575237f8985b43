package authzapi

//go:generate go tool mockgen -source=services.go -package=authzapi_test -destination=services_mock_test.go

import (
	"context"

	"github.com/uselagoon/keycloak-authz/internal/authz"
	"github.com/uselagoon/keycloak-authz/internal/realm"
)

// TokenService validates access tokens of a remote realm and resolves its
// clients. Policies evaluated for token identities resolve roles, groups and
// clients through it.
type TokenService interface {
	authz.Directory
	Realm() string
	ParseAccessToken(token, clientID string) (*authz.Identity, error)
	ClientUUID(ctx context.Context, clientID string) (string, error)
}

// RealmService resolves stored realms, clients and users. Policies
// evaluated for stored users resolve roles, groups and clients through it.
type RealmService interface {
	authz.Directory
	RealmByName(ctx context.Context, name string) (*realm.Realm, error)
	ClientByClientID(ctx context.Context, realmID, clientID string) (*realm.Client, error)
	Identity(ctx context.Context, realmID, userID, clientID string) (*authz.Identity, error)
}
