// Package adminapi is the REST client for the user-management API.
// Every call takes the bearer token explicitly: list and mutation
// pipelines fetch a fresh token per request rather than caching one.
package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-admin-console/users"
)

const defaultTimeout = 30 * time.Second

// UserPage is one page of the user list plus the unfiltered-total count.
type UserPage struct {
	Users []users.User `json:"users"`
	Count int          `json:"count"`
}

type rolesResponse struct {
	Roles []users.Role `json:"roles"`
}

// Client talks to the administration REST API.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client (e.g. one wrapping
// transport.AuthTransport).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithLogger sets the client's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(cl *Client) { cl.log = log }
}

// New returns a Client rooted at baseURL (e.g. http://localhost:5000/api).
func New(baseURL string, options ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		log:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Users fetches the slice [first, max) of the user list filtered by
// username. max is the end index, not a page size; the server expects
// it that way.
func (c *Client) Users(ctx context.Context, token string, first, max int, username string) (UserPage, error) {
	q := url.Values{}
	q.Set("first", strconv.Itoa(first))
	q.Set("max", strconv.Itoa(max))
	q.Set("username", username)

	var page UserPage
	if err := c.do(ctx, token, http.MethodGet, "/users?"+q.Encode(), nil, &page); err != nil {
		return UserPage{}, errors.Wrap(err, "[Users] list users")
	}
	return page, nil
}

// CreateUser registers a new user.
func (c *Client) CreateUser(ctx context.Context, token string, user users.CreateUser) error {
	body := map[string]users.CreateUser{"user": user}
	if err := c.do(ctx, token, http.MethodPost, "/users", body, nil); err != nil {
		return errors.Wrap(err, "[CreateUser] create user")
	}
	return nil
}

// ToggleEnabled flips the enabled flag of the identified user. The
// server toggles; no body is needed.
func (c *Client) ToggleEnabled(ctx context.Context, token, id string) error {
	if err := c.do(ctx, token, http.MethodPut, "/users/"+url.PathEscape(id), struct{}{}, nil); err != nil {
		return errors.Wrap(err, "[ToggleEnabled] toggle user")
	}
	return nil
}

// ResetPassword replaces the identified user's credential.
func (c *Client) ResetPassword(ctx context.Context, token, id, credential string) error {
	body := map[string]string{"credential": credential}
	path := "/users/" + url.PathEscape(id) + "/reset-password"
	if err := c.do(ctx, token, http.MethodPut, path, body, nil); err != nil {
		return errors.Wrap(err, "[ResetPassword] reset password")
	}
	return nil
}

// Roles lists every realm role annotated with the user's membership.
func (c *Client) Roles(ctx context.Context, token, userID string) ([]users.Role, error) {
	var res rolesResponse
	if err := c.do(ctx, token, http.MethodGet, "/users/"+url.PathEscape(userID)+"/roles", nil, &res); err != nil {
		return nil, errors.Wrap(err, "[Roles] list roles")
	}
	return res.Roles, nil
}

// AddRole grants a role to the user.
func (c *Client) AddRole(ctx context.Context, token, userID string, role users.Role) error {
	body := map[string]users.Role{"role": {ID: role.ID, Name: role.Name}}
	if err := c.do(ctx, token, http.MethodPost, "/users/"+url.PathEscape(userID)+"/roles", body, nil); err != nil {
		return errors.Wrap(err, "[AddRole] add role")
	}
	return nil
}

// RemoveRole revokes a role from the user. The role travels in the
// DELETE body, matching the server's contract.
func (c *Client) RemoveRole(ctx context.Context, token, userID string, role users.Role) error {
	body := map[string]users.Role{"role": {ID: role.ID, Name: role.Name}}
	if err := c.do(ctx, token, http.MethodDelete, "/users/"+url.PathEscape(userID)+"/roles", body, nil); err != nil {
		return errors.Wrap(err, "[RemoveRole] remove role")
	}
	return nil
}

// do issues one request. A non-nil body is JSON-encoded; a non-nil out
// receives the decoded response. Non-2xx statuses become errors whose
// message is the server's own text when it sent any.
func (c *Client) do(ctx context.Context, token, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.log.Debug().Str("method", method).Str("path", path).Msg("api request")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	text := strings.TrimSpace(string(msg))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("%s (status %d)", text, resp.StatusCode)
}
