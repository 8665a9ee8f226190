package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "http://localhost:8069", cfg.Keycloak.URL)
	require.Equal(t, "dotnet", cfg.Keycloak.Realm)
	require.Equal(t, "dotnet-public", cfg.Keycloak.ClientID)
	require.Equal(t, "http://localhost:5000/api", cfg.API.BaseURL)
	require.Equal(t, 30*time.Second, cfg.API.Timeout)
	require.Equal(t, "manager", cfg.ManagerRole)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ADMIN_CONSOLE_KEYCLOAK_REALM", "production")
	t.Setenv("ADMIN_CONSOLE_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "production", cfg.Keycloak.Realm)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "console.yaml")
	contents := `
keycloak:
  url: https://sso.example.com
  realm: corp
api:
  base_url: https://admin.example.com/api
manager_role: user-manager
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "https://sso.example.com", cfg.Keycloak.URL)
	require.Equal(t, "corp", cfg.Keycloak.Realm)
	require.Equal(t, "https://admin.example.com/api", cfg.API.BaseURL)
	require.Equal(t, "user-manager", cfg.ManagerRole)
	// Unspecified keys keep their defaults.
	require.Equal(t, "dotnet-public", cfg.Keycloak.ClientID)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestLoadValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "console.yaml")
	require.NoError(t, os.WriteFile(path, []byte("manager_role: \"\"\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "manager_role")
}
