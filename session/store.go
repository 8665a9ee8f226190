// Package session owns the console's authentication state: the current
// user, the access token, and the authorization flags derived from it.
// It is the sole mutator of that state; every other component reads
// snapshots.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-admin-console/identity"
	interrors "github.com/jrsteele09/go-admin-console/internal/errors"
)

const defaultRefreshMinValidity = 30 * time.Second

// Store is the process-wide session state machine. Construct once at
// application start, Initialize before any authorization check.
type Store struct {
	idp            identity.Client
	logoutReturn   string
	refreshMinimum time.Duration
	log            zerolog.Logger

	mu            sync.RWMutex
	initialized   bool
	currentUserID string
	accessToken   string
	roles         map[string]struct{}

	loopDone chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithLogoutReturnURL sets the destination passed to the provider on
// logout.
func WithLogoutReturnURL(url string) Option {
	return func(s *Store) { s.logoutReturn = url }
}

// WithRefreshMinValidity sets the minimum remaining validity requested
// when a token-expired event triggers a refresh.
func WithRefreshMinValidity(d time.Duration) Option {
	return func(s *Store) { s.refreshMinimum = d }
}

// New returns an uninitialized Store bound to the identity provider.
func New(idp identity.Client, options ...Option) *Store {
	s := &Store{
		idp:            idp,
		refreshMinimum: defaultRefreshMinValidity,
		log:            zerolog.Nop(),
		roles:          map[string]struct{}{},
		loopDone:       make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Initialize populates state from the provider's current login (if any)
// and starts consuming provider events. It must run exactly once per
// application lifetime; a second call returns ErrAlreadyInitialized.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return interrors.ErrAlreadyInitialized
	}
	s.initialized = true
	s.mu.Unlock()

	if s.idp.IsLoggedIn() {
		token, err := s.idp.Token(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("active login reported but token fetch failed; starting logged out")
		} else {
			s.setSession(s.idp.Username(), token)
		}
	}

	go s.consumeEvents(ctx)
	return nil
}

// Login delegates to the provider's out-of-band login handshake. It is
// a no-op when a user is already logged in. Session state is populated
// asynchronously when the provider emits its login event.
func (s *Store) Login(ctx context.Context) error {
	if s.CurrentUser() != "" {
		return nil
	}
	if err := s.idp.Login(ctx); err != nil {
		return interrors.Wrapf(err, "[Login] identity provider login")
	}
	return nil
}

// Logout always delegates to the provider with the configured return
// destination and clears local state, whether or not the provider call
// succeeds.
func (s *Store) Logout(ctx context.Context) error {
	err := s.idp.Logout(ctx, s.logoutReturn)
	s.clearSession()
	if err != nil {
		return interrors.Wrapf(err, "[Logout] identity provider logout")
	}
	return nil
}

// CurrentUser returns the logged-in user id, or "" when logged out.
func (s *Store) CurrentUser() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentUserID
}

// AccessToken returns the current bearer token, or "" when logged out.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// IsAuthorized reports whether the session's role claims include the
// named capability. Synchronous, no network access.
func (s *Store) IsAuthorized(capability string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentUserID == "" {
		return false
	}
	_, ok := s.roles[capability]
	return ok
}

// Initialized reports whether Initialize has run.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// consumeEvents is the single consumer of the provider event stream.
func (s *Store) consumeEvents(ctx context.Context) {
	defer close(s.loopDone)
	events := s.idp.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handleEvent(ctx, ev)
		}
	}
}

func (s *Store) handleEvent(ctx context.Context, ev identity.Event) {
	switch ev.Type {
	case identity.EventLogin:
		token, err := s.idp.Token(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("login reported but token fetch failed")
			return
		}
		s.setSession(s.idp.Username(), token)
		s.log.Info().Str("user", s.CurrentUser()).Msg("session established")

	case identity.EventTokenExpired:
		token, err := s.idp.UpdateToken(ctx, s.refreshMinimum)
		if err != nil {
			// Refresh failures do not force a logout: the session stays
			// stale and surfaces through subsequent request failures.
			s.log.Warn().Err(err).Msg("token refresh failed; keeping stale session")
			return
		}
		s.replaceToken(token)
		s.log.Debug().Msg("access token refreshed")

	case identity.EventLogout:
		s.clearSession()
		s.log.Info().Msg("session ended by provider")
	}
}

// setSession installs user and token together; the two are never set
// independently so the token/user invariant holds in every state.
func (s *Store) setSession(userID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if userID == "" || token == "" {
		return
	}
	s.currentUserID = userID
	s.accessToken = token
	s.roles = realmRoles(token)
}

// replaceToken swaps the access token, leaving the current user as is.
func (s *Store) replaceToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentUserID == "" || token == "" {
		return
	}
	s.accessToken = token
	s.roles = realmRoles(token)
}

func (s *Store) clearSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentUserID = ""
	s.accessToken = ""
	s.roles = map[string]struct{}{}
}
