// Package transport decorates outgoing API requests with the session's
// bearer credential.
package transport

import "net/http"

// TokenProvider yields the current access token. session.Store
// satisfies it.
type TokenProvider interface {
	AccessToken() string
}

// AuthTransport is an http.RoundTripper that attaches the current
// bearer token to every request that does not already carry one.
// Requests sent while logged out pass through unmodified; rejecting
// unauthenticated calls is the server's job, not the client's.
type AuthTransport struct {
	base   http.RoundTripper
	tokens TokenProvider
}

// New wraps base with bearer decoration. A nil base means
// http.DefaultTransport.
func New(tokens TokenProvider, base http.RoundTripper) *AuthTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &AuthTransport{base: base, tokens: tokens}
}

// RoundTrip implements http.RoundTripper. The request is cloned before
// mutation, per the RoundTripper contract.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token := t.tokens.AccessToken()
	if token == "" || req.Header.Get("Authorization") != "" {
		return t.base.RoundTrip(req)
	}

	authReq := req.Clone(req.Context())
	authReq.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(authReq)
}
