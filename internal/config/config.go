// Package config loads the server configuration from a YAML file, an
// optional .env file and AUTHGATE_* environment variables, in that order
// of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Auth provider names accepted in auth.provider.
const (
	ProviderNone     = "none"
	ProviderPassword = "password"
	ProviderOIDC     = "oidc"
	ProviderBearer   = "bearer"
)

// Revocation backends accepted in revocation.backend.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// ValidProviders lists every supported auth provider.
var ValidProviders = []string{ProviderNone, ProviderPassword, ProviderOIDC, ProviderBearer}

// ValidBackends lists every supported revocation backend.
var ValidBackends = []string{BackendMemory, BackendSQLite, BackendRedis}

// Config is the top-level configuration.
type Config struct {
	Listen     string           `yaml:"listen"`
	LogLevel   string           `yaml:"log_level"`
	LogFormat  string           `yaml:"log_format"`
	DataDir    string           `yaml:"data_dir"`
	Auth       AuthConfig       `yaml:"auth"`
	Revocation RevocationConfig `yaml:"revocation"`
}

// AuthConfig selects and configures the auth provider.
type AuthConfig struct {
	Provider    string            `yaml:"provider"`
	Secret      string            `yaml:"secret"`
	SessionTTL  time.Duration     `yaml:"session_ttl"`
	HashAlgo    string            `yaml:"hash_algo"`
	Users       map[string]string `yaml:"users"`
	OIDC        OIDCConfig        `yaml:"oidc"`
	Bearer      BearerConfig      `yaml:"bearer"`
	BypassPaths []string          `yaml:"bypass_paths"`
}

// OIDCConfig holds the OIDC client settings.
type OIDCConfig struct {
	Issuer        string   `yaml:"issuer"`
	ClientID      string   `yaml:"client_id"`
	ClientSecret  string   `yaml:"client_secret"`
	RedirectURL   string   `yaml:"redirect_url"`
	Scopes        []string `yaml:"scopes"`
	GroupClaim    string   `yaml:"group_claim"`
	AllowedGroups []string `yaml:"allowed_groups"`
}

// BearerConfig holds the JWT bearer settings. The signing key is
// auth.secret.
type BearerConfig struct {
	Issuer string `yaml:"issuer"`
}

// RevocationConfig selects where revoked session ids are kept.
type RevocationConfig struct {
	Backend  string `yaml:"backend"`
	RedisURL string `yaml:"redis_url"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Listen:    ":8080",
		LogLevel:  "info",
		LogFormat: "text",
		DataDir:   "./data",
		Auth: AuthConfig{
			Provider:   ProviderNone,
			SessionTTL: 24 * time.Hour,
			HashAlgo:   "auto",
		},
		Revocation: RevocationConfig{
			Backend:  BackendMemory,
			RedisURL: "redis://127.0.0.1:6379/0",
		},
	}
}

// Load reads path (missing files are not an error) and applies environment
// overrides. envFile names an optional dotenv file loaded first; pass ""
// to skip it.
func Load(path, envFile string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"AUTHGATE_LISTEN":               &c.Listen,
		"AUTHGATE_LOG_LEVEL":            &c.LogLevel,
		"AUTHGATE_LOG_FORMAT":           &c.LogFormat,
		"AUTHGATE_DATA_DIR":             &c.DataDir,
		"AUTHGATE_AUTH_PROVIDER":        &c.Auth.Provider,
		"AUTHGATE_AUTH_SECRET":          &c.Auth.Secret,
		"AUTHGATE_BEARER_ISSUER":        &c.Auth.Bearer.Issuer,
		"AUTHGATE_OIDC_CLIENT_SECRET":   &c.Auth.OIDC.ClientSecret,
		"AUTHGATE_REVOCATION_BACKEND":   &c.Revocation.Backend,
		"AUTHGATE_REVOCATION_REDIS_URL": &c.Revocation.RedisURL,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := lookup("AUTHGATE_AUTH_SESSION_TTL"); ok && v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("AUTHGATE_AUTH_SESSION_TTL: %w", err)
		}
		c.Auth.SessionTTL = ttl
	}
	return nil
}

// Validate checks that the selected provider has what it needs.
func (c *Config) Validate() error {
	if !contains(ValidProviders, c.Auth.Provider) {
		return fmt.Errorf("unknown auth provider %q (valid: %s)", c.Auth.Provider, strings.Join(ValidProviders, ", "))
	}
	if !contains(ValidBackends, c.Revocation.Backend) {
		return fmt.Errorf("unknown revocation backend %q (valid: %s)", c.Revocation.Backend, strings.Join(ValidBackends, ", "))
	}
	if c.Auth.Provider != ProviderNone && c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required for provider %q", c.Auth.Provider)
	}
	if c.Auth.Provider == ProviderPassword && len(c.Auth.Users) == 0 {
		return errors.New("auth.users is required for password auth")
	}
	if c.Auth.SessionTTL <= 0 {
		return errors.New("auth.session_ttl must be positive")
	}
	if c.Revocation.Backend == BackendRedis && c.Revocation.RedisURL == "" {
		return errors.New("revocation.redis_url is required for the redis backend")
	}
	return nil
}

// IsValidProvider reports whether name is a supported auth provider.
func IsValidProvider(name string) bool {
	return contains(ValidProviders, name)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
