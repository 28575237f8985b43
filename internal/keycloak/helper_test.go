package keycloak_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/uselagoon/keycloak-authz/internal/keycloak"
)

const (
	testRealm = "acme"
	testKID   = "test-key"
	// adminToken is the access token handed out to the client credentials
	// grant of the fake server.
	adminToken = "admin-token"
)

// fakeKeycloak is an httptest stand-in for a Keycloak realm serving OIDC
// discovery, JWKS, the token endpoint and a subset of the admin API.
type fakeKeycloak struct {
	*httptest.Server
	key *rsa.PrivateKey
	// requests counts admin API requests.
	requests atomic.Int32
	roles    map[string]keycloak.Role
	groups   []keycloak.Group
	clients  map[string]keycloak.ClientRepresentation
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newFakeKeycloak(tt *testing.T) *fakeKeycloak {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tt.Fatal(err)
	}
	f := &fakeKeycloak{
		key: key,
		roles: map[string]keycloak.Role{
			"r-reader": {ID: "r-reader", Name: "reader", ContainerID: "realm-id"},
			"r-editor": {ID: "r-editor", Name: "editor", ClientRole: true,
				ContainerID: "c-web"},
		},
		groups: []keycloak.Group{
			{ID: "g-staff", Name: "staff"},
			{ID: "g-dev", Name: "dev", ParentID: "g-staff"},
			{ID: "g-ops", Name: "ops"},
		},
		clients: map[string]keycloak.ClientRepresentation{
			"c-web": {ID: "c-web", ClientID: "web-app", Enabled: true},
		},
	}
	mux := http.NewServeMux()
	realmPath := "/realms/" + testRealm
	mux.HandleFunc("GET "+realmPath+"/.well-known/openid-configuration",
		func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]string{
				"issuer":         f.issuer(),
				"jwks_uri":       f.issuer() + "/protocol/openid-connect/certs",
				"token_endpoint": f.issuer() + "/protocol/openid-connect/token",
			})
		})
	mux.HandleFunc("GET "+realmPath+"/protocol/openid-connect/certs",
		func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"keys": []map[string]string{{
				"kid": testKID,
				"kty": "RSA",
				"alg": "RS256",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e": base64.RawURLEncoding.EncodeToString(
					big.NewInt(int64(key.E)).Bytes()),
			}}})
		})
	mux.HandleFunc("POST "+realmPath+"/protocol/openid-connect/token",
		func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{
				"access_token": adminToken,
				"token_type":   "Bearer",
				"expires_in":   300,
			})
		})
	admin := http.NewServeMux()
	adminPath := "/admin/realms/" + testRealm
	admin.HandleFunc("GET "+adminPath+"/roles-by-id/{id}",
		func(w http.ResponseWriter, r *http.Request) {
			role, ok := f.roles[r.PathValue("id")]
			if !ok {
				http.NotFound(w, r)
				return
			}
			writeJSON(w, role)
		})
	admin.HandleFunc("GET "+adminPath+"/clients/{id}",
		func(w http.ResponseWriter, r *http.Request) {
			cr, ok := f.clients[r.PathValue("id")]
			if !ok {
				http.NotFound(w, r)
				return
			}
			writeJSON(w, cr)
		})
	admin.HandleFunc("GET "+adminPath+"/clients",
		func(w http.ResponseWriter, r *http.Request) {
			crs := []keycloak.ClientRepresentation{}
			for _, cr := range f.clients {
				if cr.ClientID == r.URL.Query().Get("clientId") {
					crs = append(crs, cr)
				}
			}
			writeJSON(w, crs)
		})
	admin.HandleFunc("GET "+adminPath+"/groups/{id}",
		func(w http.ResponseWriter, r *http.Request) {
			for _, g := range f.groups {
				if g.ID == r.PathValue("id") {
					writeJSON(w, g)
					return
				}
			}
			http.NotFound(w, r)
		})
	admin.HandleFunc("GET "+adminPath+"/groups",
		func(w http.ResponseWriter, r *http.Request) {
			first, _ := strconv.Atoi(r.URL.Query().Get("first"))
			maxResults, _ := strconv.Atoi(r.URL.Query().Get("max"))
			page := []keycloak.Group{}
			var n int
			for _, g := range f.groups {
				if g.ParentID != "" {
					continue
				}
				if n >= first && len(page) < maxResults {
					page = append(page, g)
				}
				n++
			}
			writeJSON(w, page)
		})
	mux.HandleFunc("/admin/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+adminToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		f.requests.Add(1)
		admin.ServeHTTP(w, r)
	})
	f.Server = httptest.NewServer(mux)
	tt.Cleanup(f.Close)
	return f
}

func (f *fakeKeycloak) issuer() string {
	return f.URL + "/realms/" + testRealm
}

// sign returns a token carrying claims signed with key under the fake
// server's key ID.
func (f *fakeKeycloak) sign(tt *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = testKID
	signed, err := tok.SignedString(key)
	if err != nil {
		tt.Fatal(err)
	}
	return signed
}

func (f *fakeKeycloak) client(tt *testing.T, options ...keycloak.Option) *keycloak.Client {
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	c, err := keycloak.NewClient(context.Background(), log,
		f.URL, testRealm, "authz-server", "secret", 100, false, options...)
	if err != nil {
		tt.Fatal(err)
	}
	tt.Cleanup(c.Close)
	return c
}
