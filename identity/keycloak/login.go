package keycloak

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/jrsteele09/go-admin-console/identity"
)

const loginSuccessPage = `<!DOCTYPE html>
<html><body><p>Login complete. You can close this window and return to the console.</p></body></html>`

type callbackResult struct {
	code string
	err  error
}

// Login runs the authorization-code handshake with PKCE. A loopback
// server on the registered redirect URI receives the code; the user
// agent is pointed at the realm's authorization URL. Already being
// logged in is a no-op.
func (c *Client) Login(ctx context.Context) error {
	if c.IsLoggedIn() {
		return nil
	}

	redirect, err := url.Parse(c.cfg.RedirectURI)
	if err != nil {
		return errors.Wrap(err, "[Client.Login] parse redirect uri")
	}
	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return errors.Wrap(err, "[Client.Login] listen on redirect uri")
	}

	state := uuid.NewString()
	nonce := uuid.NewString()
	pkceVerifier := oauth2.GenerateVerifier()
	authURL := c.oauth.AuthCodeURL(state,
		oauth2.S256ChallengeOption(pkceVerifier),
		oidc.Nonce(nonce),
	)

	results := make(chan callbackResult, 1)
	callbackPath := redirect.Path
	if callbackPath == "" {
		callbackPath = "/"
	}
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		result := callbackFromRequest(r, state)
		if result.err != nil {
			http.Error(w, result.err.Error(), http.StatusBadRequest)
		} else {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, loginSuccessPage)
		}
		select {
		case results <- result:
		default:
		}
	})

	srv := &http.Server{Handler: mux}
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := c.openURL(authURL); err != nil {
		shutdownQuietly(srv)
		_ = group.Wait()
		return errors.Wrap(err, "[Client.Login] open authorization url")
	}

	var result callbackResult
	select {
	case result = <-results:
	case <-groupCtx.Done():
		result.err = groupCtx.Err()
	}

	shutdownQuietly(srv)
	if err := group.Wait(); err != nil {
		return errors.Wrap(err, "[Client.Login] callback server")
	}
	if result.err != nil {
		return errors.Wrap(result.err, "[Client.Login]")
	}

	if err := c.completeLogin(ctx, result.code, pkceVerifier, nonce); err != nil {
		return err
	}
	c.emit(identity.EventLogin)
	c.restartWatcher(c.sessionExpiry())
	return nil
}

func callbackFromRequest(r *http.Request, wantState string) callbackResult {
	if errParam := r.FormValue("error"); errParam != "" {
		return callbackResult{err: errors.Errorf("authorization failed: %s - %s", errParam, r.FormValue("error_description"))}
	}
	state := r.FormValue("state")
	code := r.FormValue("code")
	if code == "" || state == "" {
		return callbackResult{err: errors.New("missing code or state parameter")}
	}
	if state != wantState {
		return callbackResult{err: errors.New("invalid state parameter")}
	}
	return callbackResult{code: code}
}

// completeLogin exchanges the code for tokens, verifies the ID token
// and its nonce, and installs the session.
func (c *Client) completeLogin(ctx context.Context, code, pkceVerifier, nonce string) error {
	ctx = oidc.ClientContext(ctx, c.httpClient)
	oauth2Token, err := c.oauth.Exchange(ctx, code, oauth2.VerifierOption(pkceVerifier))
	if err != nil {
		return errors.Wrap(err, "[Client.completeLogin] token exchange")
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return errors.New("[Client.completeLogin] no id token in response")
	}
	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return errors.Wrap(err, "[Client.completeLogin] id token verification")
	}

	var claims struct {
		Nonce             string `json:"nonce"`
		Sub               string `json:"sub"`
		PreferredUsername string `json:"preferred_username"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return errors.Wrap(err, "[Client.completeLogin] extract claims")
	}
	if claims.Nonce != nonce {
		return errors.New("[Client.completeLogin] invalid nonce")
	}

	username := claims.PreferredUsername
	if username == "" {
		username = claims.Sub
	}
	c.setSession(oauth2Token, rawIDToken, username)
	c.log.Info().Str("username", username).Msg("logged in")
	return nil
}

// endRealmSession performs RP-initiated logout against the realm's
// end-session endpoint.
func (c *Client) endRealmSession(ctx context.Context, rawIDToken, returnURL string) error {
	if c.endSess == "" {
		return nil
	}

	query := url.Values{}
	query.Set("client_id", c.cfg.ClientID)
	if rawIDToken != "" {
		query.Set("id_token_hint", rawIDToken)
	}
	if returnURL != "" {
		query.Set("post_logout_redirect_uri", returnURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endSess+"?"+query.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "[Client.endRealmSession] build request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "[Client.endRealmSession]")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("[Client.endRealmSession] end session returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) printURL(authURL string) error {
	_, err := fmt.Fprintf(os.Stdout, "Open the following URL in your browser to log in:\n\n  %s\n\n", authURL)
	return err
}

func shutdownQuietly(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
