// Package identityfake provides an in-memory identity.Client for tests.
package identityfake

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-admin-console/identity"
	interrors "github.com/jrsteele09/go-admin-console/internal/errors"
)

// Client is a configurable fake identity provider.
type Client struct {
	mu sync.Mutex

	loggedIn bool
	username string
	token    string

	tokenErr   error
	refreshErr error
	loginErr   error
	logoutErr  error

	// RefreshedToken is handed out by UpdateToken when a refresh happens.
	refreshedToken string

	loginCalls   int
	logoutCalls  int
	refreshCalls int
	lastReturn   string

	events chan identity.Event
}

// NewClient returns a logged-out fake.
func NewClient() *Client {
	return &Client{events: make(chan identity.Event, 8)}
}

// NewLoggedInClient returns a fake already holding a session.
func NewLoggedInClient(username, token string) *Client {
	c := NewClient()
	c.loggedIn = true
	c.username = username
	c.token = token
	return c
}

func (c *Client) IsLoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedIn
}

func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loginCalls++
	if c.loginErr != nil {
		return c.loginErr
	}
	c.loggedIn = true
	return nil
}

func (c *Client) Logout(ctx context.Context, returnURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logoutCalls++
	c.lastReturn = returnURL
	if c.logoutErr != nil {
		return c.logoutErr
	}
	c.loggedIn = false
	c.username = ""
	c.token = ""
	return nil
}

func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokenErr != nil {
		return "", c.tokenErr
	}
	if c.token == "" {
		return "", interrors.ErrNotAuthenticated
	}
	return c.token, nil
}

func (c *Client) UpdateToken(ctx context.Context, minValidity time.Duration) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshCalls++
	if c.refreshErr != nil {
		return "", c.refreshErr
	}
	if c.refreshedToken != "" {
		c.token = c.refreshedToken
	}
	return c.token, nil
}

func (c *Client) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

func (c *Client) Events() <-chan identity.Event {
	return c.events
}

// Emit pushes an event onto the fake's event stream.
func (c *Client) Emit(t identity.EventType) {
	c.events <- identity.Event{Type: t}
}

// SetSession installs a login state directly, bypassing Login.
func (c *Client) SetSession(username, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loggedIn = true
	c.username = username
	c.token = token
}

// SetRefreshedToken makes the next UpdateToken hand out token.
func (c *Client) SetRefreshedToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshedToken = token
}

// FailTokenWith makes Token return err.
func (c *Client) FailTokenWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokenErr = err
}

// FailRefreshWith makes UpdateToken return err.
func (c *Client) FailRefreshWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshErr = err
}

// FailLogoutWith makes Logout return err while still recording the call.
func (c *Client) FailLogoutWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logoutErr = err
}

// FailLoginWith makes Login return err.
func (c *Client) FailLoginWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loginErr = err
}

// LoginCalls reports how many times Login ran.
func (c *Client) LoginCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loginCalls
}

// LogoutCalls reports how many times Logout ran.
func (c *Client) LogoutCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logoutCalls
}

// RefreshCalls reports how many times UpdateToken ran.
func (c *Client) RefreshCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshCalls
}

// LastReturnURL reports the returnURL passed to the most recent Logout.
func (c *Client) LastReturnURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastReturn
}
