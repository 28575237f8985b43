// Package keycloak implements a client for a remote Keycloak realm. It
// validates access tokens issued by the realm and resolves the role, group
// and client identifiers found in authorization policies through the admin
// API.
package keycloak

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/uselagoon/keycloak-authz/internal/cache"
	"github.com/zitadel/oidc/v3/pkg/client"
	"github.com/zitadel/oidc/v3/pkg/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	pkgName = "github.com/uselagoon/keycloak-authz/internal/keycloak"
	// defaultPageSize is the default size of the page requested when
	// scrolling through group results from Keycloak.
	defaultPageSize = 1000
	// defaultCacheTTL is how long admin API results are reused.
	defaultCacheTTL = time.Minute
)

var (
	keycloakRequestLatencyVec = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "keycloak_request_latency_seconds",
			Help: "Keycloak admin API request latency",
		},
		[]string{"request_type"},
	)
)

// Client is a Keycloak client for a single realm.
type Client struct {
	baseURL      *url.URL
	realm        string
	clientID     string
	clientSecret string
	oidcConfig   *oidc.DiscoveryConfiguration
	jwks         *keyfunc.JWKS
	httpClient   *http.Client
	limiter      *rate.Limiter
	log          *slog.Logger
	pageSize     int
	cacheTTL     time.Duration

	roleCache       *cache.Map[string, Role]
	groupCache      *cache.Map[string, Group]
	clientCache     *cache.Map[string, ClientRepresentation]
	clientUUIDCache *cache.Map[string, string]
	topLevelGroups  *cache.Value[[]Group]
}

// Option is a functional option argument to NewClient().
type Option func(*Client)

// WithPageSize sets the number of groups requested per page.
func WithPageSize(n int) Option {
	return func(c *Client) {
		c.pageSize = n
	}
}

// WithCacheTTL sets how long admin API results are cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cacheTTL = ttl
	}
}

// NewClient discovers the OIDC configuration of the realm, loads its signing
// keys, and returns a Client which calls the admin API with the given client
// credentials at most rateLimit times per second.
func NewClient(
	ctx context.Context,
	log *slog.Logger,
	baseURL,
	realm,
	clientID,
	clientSecret string,
	rateLimit int,
	insecureTLS bool,
	options ...Option,
) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse base URL %s: %v", baseURL, err)
	}
	httpClient := &http.Client{Timeout: 10 * time.Second}
	if insecureTLS {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	issuer := u.JoinPath("realms", realm).String()
	oidcConfig, err := client.Discover(ctx, issuer, httpClient)
	if err != nil {
		return nil, fmt.Errorf("couldn't discover OIDC configuration of %s: %v",
			issuer, err)
	}
	jwks, err := keyfunc.Get(oidcConfig.JwksURI, keyfunc.Options{
		Ctx:               ctx,
		Client:            httpClient,
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			log.Warn("couldn't refresh JWKS", slog.Any("error", err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't get JWKS from %s: %v",
			oidcConfig.JwksURI, err)
	}
	cc := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     oidcConfig.TokenEndpoint,
	}
	// the token source outlives ctx
	tokenCtx := context.WithValue(
		context.WithoutCancel(ctx), oauth2.HTTPClient, httpClient)
	c := &Client{
		baseURL:      u,
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		oidcConfig:   oidcConfig,
		jwks:         jwks,
		httpClient:   cc.Client(tokenCtx),
		limiter:      rate.NewLimiter(rate.Limit(rateLimit), rateLimit),
		log:          log,
		pageSize:     defaultPageSize,
		cacheTTL:     defaultCacheTTL,
	}
	c.httpClient.Timeout = 10 * time.Second
	for _, option := range options {
		option(c)
	}
	c.roleCache = cache.NewMap(cache.MapWithTTL[string, Role](c.cacheTTL))
	c.groupCache = cache.NewMap(cache.MapWithTTL[string, Group](c.cacheTTL))
	c.clientCache = cache.NewMap(
		cache.MapWithTTL[string, ClientRepresentation](c.cacheTTL))
	c.clientUUIDCache = cache.NewMap(cache.MapWithTTL[string, string](c.cacheTTL))
	c.topLevelGroups = cache.NewValue(cache.ValueWithTTL[[]Group](c.cacheTTL))
	return c, nil
}

// Issuer returns the issuer of tokens accepted by the Client.
func (c *Client) Issuer() string {
	return c.oidcConfig.Issuer
}

// Close stops the background refresh of the realm signing keys.
func (c *Client) Close() {
	c.jwks.EndBackground()
}
