// Package keycloak implements the identity.Client contract against a
// Keycloak realm: discovery through the realm's OIDC metadata, a PKCE
// authorization-code login on a loopback redirect, token refresh, and
// RP-initiated logout.
package keycloak

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-admin-console/identity"
	apperrors "github.com/jrsteele09/go-admin-console/internal/errors"
)

const (
	// defaultRefreshLeeway is how long before expiry the watcher fires
	// an EventTokenExpired.
	defaultRefreshLeeway = 10 * time.Second

	eventBuffer = 8
)

// Config locates the realm and the public client the console runs as.
type Config struct {
	// URL is the Keycloak base URL, e.g. http://localhost:8069.
	URL string
	// Realm is the realm name; the issuer is URL + "/realms/" + Realm.
	Realm string
	// ClientID is a public client, so no secret is carried.
	ClientID string
	// RedirectURI must be a loopback URI registered on the client; the
	// login handshake listens on it.
	RedirectURI string
}

// OpenURLFunc hands the authorization URL to the user agent.
type OpenURLFunc func(url string) error

// Client is a Keycloak-backed identity.Client. One instance per
// process; Close releases the watcher and the event stream.
type Client struct {
	cfg      Config
	provider *oidc.Provider
	oauth    oauth2.Config
	verifier *oidc.IDTokenVerifier
	endSess  string

	httpClient *http.Client
	openURL    OpenURLFunc
	leeway     time.Duration
	nowTime    func() time.Time
	log        zerolog.Logger

	mu         sync.Mutex
	token      *oauth2.Token
	rawIDToken string
	username   string
	watchStop  chan struct{}

	events chan identity.Event
	closed bool
}

// Options configures a Client.
type Options func(*Client)

// WithHTTPClient sets the client used for discovery, token exchange and
// logout.
func WithHTTPClient(httpClient *http.Client) Options {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithOpenURL overrides how the authorization URL reaches the user
// agent. The default prints it for the user to open manually.
func WithOpenURL(open OpenURLFunc) Options {
	return func(c *Client) { c.openURL = open }
}

// WithRefreshLeeway sets how long before expiry the refresh event
// fires.
func WithRefreshLeeway(d time.Duration) Options {
	return func(c *Client) { c.leeway = d }
}

// WithNowTime replaces the time source.
func WithNowTime(now func() time.Time) Options {
	return func(c *Client) { c.nowTime = now }
}

// WithLogger sets the client's logger.
func WithLogger(log zerolog.Logger) Options {
	return func(c *Client) { c.log = log }
}

// New discovers the realm's OIDC configuration and returns a logged-out
// client.
func New(ctx context.Context, cfg Config, options ...Options) (*Client, error) {
	c := &Client{
		cfg:        cfg,
		httpClient: http.DefaultClient,
		leeway:     defaultRefreshLeeway,
		nowTime:    time.Now,
		log:        zerolog.Nop(),
		events:     make(chan identity.Event, eventBuffer),
	}
	c.openURL = c.printURL
	for _, opt := range options {
		opt(c)
	}

	issuer := cfg.URL + "/realms/" + cfg.Realm
	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, c.httpClient), issuer)
	if err != nil {
		return nil, errors.Wrap(err, "[keycloak.New] oidc provider discovery")
	}
	c.provider = provider
	c.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	c.oauth = oauth2.Config{
		ClientID:    cfg.ClientID,
		Endpoint:    provider.Endpoint(),
		RedirectURL: cfg.RedirectURI,
		Scopes:      []string{oidc.ScopeOpenID, "profile", "email"},
	}

	var discovery struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&discovery); err != nil {
		return nil, errors.Wrap(err, "[keycloak.New] discovery claims")
	}
	c.endSess = discovery.EndSessionEndpoint

	return c, nil
}

// Session is the provider state a caller may persist between runs.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	IDToken      string    `json:"id_token"`
	Expiry       time.Time `json:"expiry"`
	Username     string    `json:"username"`
}

// Session exports the current session for persistence. The second
// return is false when logged out.
func (c *Client) Session() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil {
		return Session{}, false
	}
	return Session{
		AccessToken:  c.token.AccessToken,
		RefreshToken: c.token.RefreshToken,
		IDToken:      c.rawIDToken,
		Expiry:       c.token.Expiry,
		Username:     c.username,
	}, true
}

// RestoreSession installs a previously persisted session and arms the
// expiry watcher. The token may already be expired; the next Token call
// refreshes it.
func (c *Client) RestoreSession(s Session) {
	token := &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       s.Expiry,
	}
	c.setSession(token, s.IDToken, s.Username)
	c.restartWatcher(token.Expiry)
}

// IsLoggedIn reports whether a session is held. A held session may
// still need a refresh; Token handles that.
func (c *Client) IsLoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != nil
}

// Username returns the preferred username from the ID token, or ""
// when logged out.
func (c *Client) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

// Events exposes the provider event stream.
func (c *Client) Events() <-chan identity.Event {
	return c.events
}

// Token returns the current access token, refreshing first if it has
// already expired.
func (c *Client) Token(ctx context.Context) (string, error) {
	return c.UpdateToken(ctx, 0)
}

// UpdateToken refreshes the access token unless it remains valid for at
// least minValidity, and returns the current token either way.
func (c *Client) UpdateToken(ctx context.Context, minValidity time.Duration) (string, error) {
	c.mu.Lock()
	current := c.token
	c.mu.Unlock()

	if current == nil {
		return "", errors.Wrap(apperrors.ErrNotAuthenticated, "[Client.UpdateToken]")
	}
	if current.Expiry.After(c.nowTime().Add(minValidity)) {
		return current.AccessToken, nil
	}

	ctx = oidc.ClientContext(ctx, c.httpClient)
	refreshed, err := c.oauth.TokenSource(ctx, current).Token()
	if err != nil {
		return "", errors.Wrapf(apperrors.ErrTokenRefresh, "[Client.UpdateToken] %v", err)
	}

	c.mu.Lock()
	c.token = refreshed
	if raw, ok := refreshed.Extra("id_token").(string); ok && raw != "" {
		c.rawIDToken = raw
	}
	c.mu.Unlock()
	c.restartWatcher(refreshed.Expiry)

	c.log.Debug().Time("expiry", refreshed.Expiry).Msg("access token refreshed")
	return refreshed.AccessToken, nil
}

// Logout ends the realm session and clears the local one. The local
// session is cleared even when the realm call fails.
func (c *Client) Logout(ctx context.Context, returnURL string) error {
	c.mu.Lock()
	rawIDToken := c.rawIDToken
	c.mu.Unlock()

	err := c.endRealmSession(ctx, rawIDToken, returnURL)
	c.clearSession()
	c.emit(identity.EventLogout)
	if err != nil {
		return errors.Wrap(err, "[Client.Logout]")
	}
	return nil
}

// Close stops the expiry watcher and closes the event stream.
func (c *Client) Close() {
	c.stopWatcher()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
}

// setSession stores the session; callers arm the expiry watcher once
// any login event has been emitted, so consumers see login first.
func (c *Client) setSession(token *oauth2.Token, rawIDToken, username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.rawIDToken = rawIDToken
	c.username = username
}

func (c *Client) sessionExpiry() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil {
		return time.Time{}
	}
	return c.token.Expiry
}

func (c *Client) clearSession() {
	c.stopWatcher()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = nil
	c.rawIDToken = ""
	c.username = ""
}

func (c *Client) emit(eventType identity.EventType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.events <- identity.Event{Type: eventType}:
	default:
		c.log.Warn().Stringer("event", eventType).Msg("event dropped, stream full")
	}
}

// restartWatcher arms a timer that fires an EventTokenExpired shortly
// before expiry, prompting the session layer to refresh.
func (c *Client) restartWatcher(expiry time.Time) {
	c.stopWatcher()

	wait := expiry.Add(-c.leeway).Sub(c.nowTime())
	if wait < 0 {
		wait = 0
	}

	stop := make(chan struct{})
	c.mu.Lock()
	c.watchStop = stop
	c.mu.Unlock()

	go func() {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
			c.emit(identity.EventTokenExpired)
		case <-stop:
		}
	}()
}

func (c *Client) stopWatcher() {
	c.mu.Lock()
	stop := c.watchStop
	c.watchStop = nil
	c.mu.Unlock()
	if stop != nil {
		close(stop)
	}
}
