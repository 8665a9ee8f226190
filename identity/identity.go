// Package identity defines the contract the console consumes from the
// external identity provider. Implementations wrap a real provider
// (identity/keycloak) or fake one for tests (identity/identityfake).
package identity

import (
	"context"
	"time"
)

// EventType enumerates the provider events the session layer reacts to.
type EventType int

const (
	// EventLogin fires after an out-of-band login handshake completes.
	EventLogin EventType = iota
	// EventTokenExpired fires when the current access token reaches its
	// expiry. The session layer is expected to refresh.
	EventTokenExpired
	// EventLogout fires when the provider ends the session, whether
	// locally or forced from elsewhere.
	EventLogout
)

func (t EventType) String() string {
	switch t {
	case EventLogin:
		return "login"
	case EventTokenExpired:
		return "token-expired"
	case EventLogout:
		return "logout"
	default:
		return "unknown"
	}
}

// Event is a single provider notification.
type Event struct {
	Type EventType
}

// Client is the narrow identity-provider contract. All token material
// stays inside the implementation; consumers only ever see the current
// access token as an opaque bearer credential.
type Client interface {
	// IsLoggedIn reports whether the provider currently holds an active
	// login, synchronously and without network access.
	IsLoggedIn() bool

	// Login runs the provider's out-of-band login handshake. A nil
	// return means the handshake completed; state becomes observable
	// through IsLoggedIn and an EventLogin on the event stream.
	Login(ctx context.Context) error

	// Logout ends the provider session, directing the user agent to
	// returnURL afterwards.
	Logout(ctx context.Context, returnURL string) error

	// Token returns the current access token, refreshing it first if it
	// has already expired.
	Token(ctx context.Context) (string, error)

	// UpdateToken refreshes the access token unless it remains valid
	// for at least minValidity. Returns the (possibly unchanged) token.
	UpdateToken(ctx context.Context, minValidity time.Duration) (string, error)

	// Username returns the logged-in user's name, or "" when logged out.
	Username() string

	// Events exposes the provider's event stream. The channel is closed
	// when the client shuts down.
	Events() <-chan Event
}
