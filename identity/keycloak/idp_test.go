package keycloak_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testRealm    = "console"
	testClientID = "console-public"
	testKeyID    = "test-key"
	authCode     = "granted-code"
)

// fakeRealm is an in-process stand-in for a Keycloak realm: OIDC
// discovery, JWKS, the authorization and token endpoints, and the
// end-session endpoint.
type fakeRealm struct {
	t      *testing.T
	server *httptest.Server
	key    *rsa.PrivateKey

	mu            sync.Mutex
	issuer        string
	username      string
	expiresIn     int
	forgeState    string
	lastNonce     string
	tokenCalls    int
	refreshCalls  int
	logoutQueries []url.Values
	lastExchange  url.Values
}

func newFakeRealm(t *testing.T) *fakeRealm {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	realm := &fakeRealm{t: t, key: key, username: "alice", expiresIn: 3600}

	base := "/realms/" + testRealm
	mux := http.NewServeMux()
	mux.HandleFunc(base+"/.well-known/openid-configuration", realm.discovery)
	mux.HandleFunc(base+"/certs", realm.jwks)
	mux.HandleFunc(base+"/auth", realm.authorize)
	mux.HandleFunc(base+"/token", realm.token)
	mux.HandleFunc(base+"/logout", realm.logout)

	realm.server = httptest.NewServer(mux)
	t.Cleanup(realm.server.Close)
	realm.issuer = realm.server.URL + base
	return realm
}

func (f *fakeRealm) baseURL() string { return f.server.URL }

func (f *fakeRealm) setForgeState(state string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgeState = state
}

func (f *fakeRealm) setExpiresIn(seconds int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expiresIn = seconds
}

func (f *fakeRealm) refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

func (f *fakeRealm) logouts() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.logoutQueries...)
}

func (f *fakeRealm) exchange() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastExchange
}

func (f *fakeRealm) discovery(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	issuer := f.issuer
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"issuer":                 issuer,
		"authorization_endpoint": issuer + "/auth",
		"token_endpoint":         issuer + "/token",
		"jwks_uri":               issuer + "/certs",
		"end_session_endpoint":   issuer + "/logout",
	})
}

func (f *fakeRealm) jwks(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"kid": testKeyID,
			"n":   base64.RawURLEncoding.EncodeToString(f.key.N.Bytes()),
			"e":   "AQAB",
		}},
	})
}

// authorize immediately grants: it stores the nonce and bounces the
// user agent back to the redirect URI with a code.
func (f *fakeRealm) authorize(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	f.mu.Lock()
	f.lastNonce = query.Get("nonce")
	state := query.Get("state")
	if f.forgeState != "" {
		state = f.forgeState
	}
	f.mu.Unlock()

	redirect, err := url.Parse(query.Get("redirect_uri"))
	require.NoError(f.t, err)
	params := url.Values{}
	params.Set("code", authCode)
	params.Set("state", state)
	redirect.RawQuery = params.Encode()
	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

func (f *fakeRealm) token(w http.ResponseWriter, r *http.Request) {
	require.NoError(f.t, r.ParseForm())

	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenCalls++

	response := map[string]any{
		"token_type":    "Bearer",
		"expires_in":    f.expiresIn,
		"refresh_token": "refresh-1",
	}
	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		f.lastExchange = r.PostForm
		response["access_token"] = "access-1"
		response["id_token"] = f.signIDToken()
	case "refresh_token":
		f.refreshCalls++
		response["access_token"] = fmt.Sprintf("access-refreshed-%d", f.refreshCalls)
	default:
		http.Error(w, "unsupported grant type", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

func (f *fakeRealm) logout(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutQueries = append(f.logoutQueries, r.URL.Query())
}

// signIDToken mints an RS256 ID token carrying the nonce captured from
// the authorization request. Callers hold f.mu.
func (f *fakeRealm) signIDToken() string {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":                f.issuer,
		"aud":                testClientID,
		"sub":                "user-1",
		"preferred_username": f.username,
		"nonce":              f.lastNonce,
		"iat":                now.Unix(),
		"exp":                now.Add(time.Hour).Unix(),
	})
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString(f.key)
	require.NoError(f.t, err)
	return signed
}

// freeLoopbackURI reserves a loopback port and returns a redirect URI
// on it. The listener is closed so the login handshake can rebind it.
func freeLoopbackURI(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	return "http://" + addr + "/callback"
}
