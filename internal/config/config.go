// Package config loads and validates console configuration from a YAML
// file and the environment using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// KeycloakConfig describes the identity provider the console
// authenticates against.
type KeycloakConfig struct {
	// URL is the Keycloak base URL, e.g. http://localhost:8069.
	URL string `mapstructure:"url"`
	// Realm is the Keycloak realm name.
	Realm string `mapstructure:"realm"`
	// ClientID is the public client the console logs in as.
	ClientID string `mapstructure:"client_id"`
	// RedirectURI receives the authorization-code callback. Must be a
	// loopback address registered on the client.
	RedirectURI string `mapstructure:"redirect_uri"`
	// PostLogoutURI is the return destination passed on logout.
	PostLogoutURI string `mapstructure:"post_logout_uri"`
}

// APIConfig describes the user-management REST API.
type APIConfig struct {
	// BaseURL is the API base path, e.g. http://localhost:5000/api.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `mapstructure:"timeout"`
}

// Config holds all console configuration. Injected at startup, never
// mutated afterwards.
type Config struct {
	Keycloak KeycloakConfig `mapstructure:"keycloak"`
	API      APIConfig      `mapstructure:"api"`
	// ManagerRole is the realm role required for the user-management
	// screen.
	ManagerRole string `mapstructure:"manager_role"`
	// LogLevel is the zerolog level name (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`
}

// Load reads the config file (if present), applies environment
// overrides (ADMIN_CONSOLE_* with dots replaced by underscores) and
// defaults, then validates. A missing config file is not an error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".admin-console")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	v.SetEnvPrefix("ADMIN_CONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("keycloak.url", "http://localhost:8069")
	v.SetDefault("keycloak.realm", "dotnet")
	v.SetDefault("keycloak.client_id", "dotnet-public")
	v.SetDefault("keycloak.redirect_uri", "http://127.0.0.1:4200/callback")
	v.SetDefault("keycloak.post_logout_uri", "http://localhost:4200")
	v.SetDefault("api.base_url", "http://localhost:5000/api")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("manager_role", "manager")
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Keycloak.URL == "" {
		return errors.New("config: keycloak.url must be set")
	}
	if c.Keycloak.Realm == "" {
		return errors.New("config: keycloak.realm must be set")
	}
	if c.Keycloak.ClientID == "" {
		return errors.New("config: keycloak.client_id must be set")
	}
	if c.Keycloak.RedirectURI == "" {
		return errors.New("config: keycloak.redirect_uri must be set")
	}
	if c.API.BaseURL == "" {
		return errors.New("config: api.base_url must be set")
	}
	if c.ManagerRole == "" {
		return errors.New("config: manager_role must be set")
	}
	return nil
}
