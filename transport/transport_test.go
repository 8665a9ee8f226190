package transport_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-admin-console/transport"
)

type staticTokens string

func (s staticTokens) AccessToken() string { return string(s) }

func captureHeader(t *testing.T) (*httptest.Server, *string) {
	t.Helper()
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestAttachesBearerToken(t *testing.T) {
	srv, got := captureHeader(t)

	client := &http.Client{Transport: transport.New(staticTokens("tok-123"), nil)}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "Bearer tok-123", *got)
}

func TestPassesThroughWithoutToken(t *testing.T) {
	srv, got := captureHeader(t)

	client := &http.Client{Transport: transport.New(staticTokens(""), nil)}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Empty(t, *got)
}

func TestExplicitAuthorizationWins(t *testing.T) {
	srv, got := captureHeader(t)

	client := &http.Client{Transport: transport.New(staticTokens("ambient"), nil)}
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer explicit")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "Bearer explicit", *got)
}

func TestOriginalRequestNotMutated(t *testing.T) {
	srv, _ := captureHeader(t)

	client := &http.Client{Transport: transport.New(staticTokens("tok"), nil)}
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Empty(t, req.Header.Get("Authorization"))
}
