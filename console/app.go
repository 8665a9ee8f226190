package console

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-admin-console/adminapi"
	"github.com/jrsteele09/go-admin-console/identity/keycloak"
	"github.com/jrsteele09/go-admin-console/internal/config"
	"github.com/jrsteele09/go-admin-console/listing"
	"github.com/jrsteele09/go-admin-console/session"
	"github.com/jrsteele09/go-admin-console/transport"
)

const (
	settleTimeout = 30 * time.Second
	settleTick    = 25 * time.Millisecond
)

// App wires the provider, session store, gate and API client for one
// command invocation. Sessions persist between invocations through a
// token file in the user config dir.
type App struct {
	cfg      *config.Config
	log      zerolog.Logger
	provider *keycloak.Client
	store    *session.Store
	gate     *session.Gate
	api      *adminapi.Client
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	provider, err := keycloak.New(ctx, keycloak.Config{
		URL:         cfg.Keycloak.URL,
		Realm:       cfg.Keycloak.Realm,
		ClientID:    cfg.Keycloak.ClientID,
		RedirectURI: cfg.Keycloak.RedirectURI,
	}, keycloak.WithLogger(log))
	if err != nil {
		return nil, err
	}

	if saved, err := loadSavedSession(); err == nil {
		provider.RestoreSession(saved)
	} else if !os.IsNotExist(err) {
		log.Debug().Err(err).Msg("saved session unreadable, starting logged out")
	}

	store := session.New(provider,
		session.WithLogger(log),
		session.WithLogoutReturnURL(cfg.Keycloak.PostLogoutURI),
	)
	if err := store.Initialize(ctx); err != nil {
		provider.Close()
		return nil, err
	}

	httpClient := &http.Client{
		Timeout:   cfg.API.Timeout,
		Transport: transport.New(store, nil),
	}

	return &App{
		cfg:      cfg,
		log:      log,
		provider: provider,
		store:    store,
		gate:     session.NewGate(store, cfg.ManagerRole),
		api:      adminapi.New(cfg.API.BaseURL, adminapi.WithHTTPClient(httpClient), adminapi.WithLogger(log)),
	}, nil
}

// Close releases the provider's watcher and event stream.
func (a *App) Close() {
	a.provider.Close()
}

// tokens yields fresh bearer tokens for the list pipelines, refreshing
// through the provider when needed.
func (a *App) tokens() listing.TokenFunc {
	return func(ctx context.Context) (string, error) {
		return a.provider.Token(ctx)
	}
}

// persistSession writes the provider session to disk, or removes the
// file when logged out.
func (a *App) persistSession() error {
	saved, ok := a.provider.Session()
	if !ok {
		return clearSavedSession()
	}
	return writeSavedSession(saved)
}

func writeSavedSession(saved keycloak.Session) error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "[writeSavedSession] create config dir")
	}
	data, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return errors.Wrap(err, "[writeSavedSession] encode session")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, "[writeSavedSession] write session file")
	}
	return nil
}

// sessionPath is a variable so tests can relocate the session file.
var sessionPath = func() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "[sessionPath] user config dir")
	}
	return filepath.Join(dir, "admin-console", "session.json"), nil
}

func loadSavedSession() (keycloak.Session, error) {
	path, err := sessionPath()
	if err != nil {
		return keycloak.Session{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return keycloak.Session{}, err
	}
	var saved keycloak.Session
	if err := json.Unmarshal(data, &saved); err != nil {
		return keycloak.Session{}, errors.Wrap(err, "[loadSavedSession] decode session file")
	}
	return saved, nil
}

func clearSavedSession() error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[clearSavedSession]")
	}
	return nil
}

// waitSettled polls snapshot until the loading flag drops.
func waitSettled(ctx context.Context, snapshot func() bool) error {
	deadline := time.Now().Add(settleTimeout)
	ticker := time.NewTicker(settleTick)
	defer ticker.Stop()

	for {
		if !snapshot() {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("[waitSettled] timed out waiting for the list to settle")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
