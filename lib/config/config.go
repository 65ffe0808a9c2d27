// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable Load reads the config path from.
const EnvVar = "TIMEOFF_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development points at a local or shared dev backend.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is the live backend.
	Production Environment = "production"
)

// Config is the complete client configuration.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	// Identity configures the OAuth client registration.
	Identity IdentityConfig `yaml:"identity"`

	// API configures the backend.
	API APIConfig `yaml:"api"`

	// Store configures where the encrypted session lives.
	Store StoreConfig `yaml:"store"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Identity *IdentityConfig `yaml:"identity,omitempty"`
	API      *APIOverrides   `yaml:"api,omitempty"`
	Store    *StoreConfig    `yaml:"store,omitempty"`
}

// IdentityConfig configures the Microsoft identity platform client.
type IdentityConfig struct {
	// ClientID is the application (client) id of the registration.
	ClientID string `yaml:"client_id"`

	// TenantID is the directory tenant. Required unless AuthURL and
	// TokenURL are both set.
	TenantID string `yaml:"tenant_id"`

	// Scopes requested at sign-in.
	// Default: openid, profile, email, offline_access
	Scopes []string `yaml:"scopes"`

	// RedirectPort is the loopback port that receives the
	// authorization redirect. Must match the registration.
	// Default: 8765
	RedirectPort int `yaml:"redirect_port"`

	// AuthURL and TokenURL replace the tenant endpoints, for
	// testing against a local identity provider.
	AuthURL  string `yaml:"auth_url"`
	TokenURL string `yaml:"token_url"`
}

// APIConfig configures the time-off backend.
type APIConfig struct {
	// BaseURL is the API root, e.g. https://ferie.example.com/api.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds each request, as a Go duration.
	// Default: 15s
	Timeout string `yaml:"timeout"`

	// Telemetry enables OpenTelemetry tracing of API calls.
	// Default: false
	Telemetry bool `yaml:"telemetry"`

	// TelemetryEndpoint is the OTLP/HTTP collector, as a URL or a bare
	// host:port. Empty falls back to OTEL_EXPORTER_OTLP_ENDPOINT.
	TelemetryEndpoint string `yaml:"telemetry_endpoint"`
}

// APIOverrides is the per-environment form of APIConfig. Telemetry is
// a pointer so an override section that omits it keeps the base value.
type APIOverrides struct {
	BaseURL           string `yaml:"base_url"`
	Timeout           string `yaml:"timeout"`
	Telemetry         *bool  `yaml:"telemetry"`
	TelemetryEndpoint string `yaml:"telemetry_endpoint"`
}

// StoreConfig configures the session store.
type StoreConfig struct {
	// Directory holds the age identity and the sealed session slot.
	// Default: ~/.local/state/timeoff
	Directory string `yaml:"directory"`
}

// Default returns the default configuration. The defaults exist to
// give every field a sensible value; the config file is still
// required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Environment: Development,
		Identity: IdentityConfig{
			Scopes:       []string{"openid", "profile", "email", "offline_access"},
			RedirectPort: 8765,
		},
		API: APIConfig{
			Timeout: "15s",
		},
		Store: StoreConfig{
			Directory: filepath.Join(homeDir, ".local", "state", "timeoff"),
		},
	}
}

// Load loads configuration from the TIMEOFF_CONFIG environment variable.
// There is no fallback: if the variable is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your timeoff.yaml config file, or use --config flag", EnvVar)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// loadFile merges one file into the current config. JSON is valid
// YAML, so after comment stripping both formats share the decoder.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.Identity != nil {
		if overrides.Identity.ClientID != "" {
			c.Identity.ClientID = overrides.Identity.ClientID
		}
		if overrides.Identity.TenantID != "" {
			c.Identity.TenantID = overrides.Identity.TenantID
		}
		if len(overrides.Identity.Scopes) > 0 {
			c.Identity.Scopes = overrides.Identity.Scopes
		}
		if overrides.Identity.RedirectPort != 0 {
			c.Identity.RedirectPort = overrides.Identity.RedirectPort
		}
		if overrides.Identity.AuthURL != "" {
			c.Identity.AuthURL = overrides.Identity.AuthURL
		}
		if overrides.Identity.TokenURL != "" {
			c.Identity.TokenURL = overrides.Identity.TokenURL
		}
	}

	if overrides.API != nil {
		if overrides.API.BaseURL != "" {
			c.API.BaseURL = overrides.API.BaseURL
		}
		if overrides.API.Timeout != "" {
			c.API.Timeout = overrides.API.Timeout
		}
		if overrides.API.Telemetry != nil {
			c.API.Telemetry = *overrides.API.Telemetry
		}
		if overrides.API.TelemetryEndpoint != "" {
			c.API.TelemetryEndpoint = overrides.API.TelemetryEndpoint
		}
	}

	if overrides.Store != nil {
		if overrides.Store.Directory != "" {
			c.Store.Directory = overrides.Store.Directory
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Store.Directory = expandVars(c.Store.Directory, vars)
	c.API.BaseURL = expandVars(c.API.BaseURL, vars)
	c.API.TelemetryEndpoint = expandVars(c.API.TelemetryEndpoint, vars)
	c.Identity.AuthURL = expandVars(c.Identity.AuthURL, vars)
	c.Identity.TokenURL = expandVars(c.Identity.TokenURL, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Identity.ClientID == "" {
		errs = append(errs, fmt.Errorf("identity.client_id is required"))
	}
	customEndpoints := c.Identity.AuthURL != "" && c.Identity.TokenURL != ""
	if c.Identity.TenantID == "" && !customEndpoints {
		errs = append(errs, fmt.Errorf("identity.tenant_id is required unless identity.auth_url and identity.token_url are set"))
	}
	if (c.Identity.AuthURL == "") != (c.Identity.TokenURL == "") {
		errs = append(errs, fmt.Errorf("identity.auth_url and identity.token_url must be set together"))
	}
	if c.Identity.RedirectPort < 0 || c.Identity.RedirectPort > 65535 {
		errs = append(errs, fmt.Errorf("identity.redirect_port %d out of range", c.Identity.RedirectPort))
	}

	if c.API.BaseURL == "" {
		errs = append(errs, fmt.Errorf("api.base_url is required"))
	} else if parsed, err := url.Parse(c.API.BaseURL); err != nil || parsed.Host == "" ||
		(parsed.Scheme != "http" && parsed.Scheme != "https") {
		errs = append(errs, fmt.Errorf("api.base_url %q must be an absolute http(s) URL", c.API.BaseURL))
	} else if c.Environment == Production && parsed.Scheme != "https" {
		errs = append(errs, fmt.Errorf("api.base_url must use https in production"))
	}

	if timeout, err := time.ParseDuration(c.API.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("api.timeout: %w", err))
	} else if timeout <= 0 {
		errs = append(errs, fmt.Errorf("api.timeout must be positive"))
	}

	if c.Store.Directory == "" {
		errs = append(errs, fmt.Errorf("store.directory is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// RequestTimeout returns api.timeout as a duration. Call Validate
// first; an unparsable value yields zero.
func (c *Config) RequestTimeout() time.Duration {
	timeout, _ := time.ParseDuration(c.API.Timeout)
	return timeout
}

// EnsurePaths creates the store directory if it doesn't exist.
func (c *Config) EnsurePaths() error {
	if c.Store.Directory == "" {
		return nil
	}
	if err := os.MkdirAll(c.Store.Directory, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", c.Store.Directory, err)
	}
	return nil
}
