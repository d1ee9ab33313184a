package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestIsValidProvider(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"none", "none", true},
		{"password", "password", true},
		{"oidc", "oidc", true},
		{"bearer", "bearer", true},

		{"empty string", "", false},
		{"unknown", "saml", false},
		{"uppercase (case sensitive)", "OIDC", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidProvider(tt.in); got != tt.want {
				t.Errorf("IsValidProvider(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := DefaultConfig()
	if cfg.Listen != want.Listen || cfg.Auth.Provider != ProviderNone || cfg.Revocation.Backend != BackendMemory {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authgate.yaml")
	data := `
listen: ":9090"
log_level: debug
auth:
  provider: password
  secret: s3cret
  session_ttl: 2h
  users:
    ann: "$2a$10$abcdefghijklmnopqrstuv"
  bypass_paths: ["/", "/healthz"]
  oidc:
    issuer: https://accounts.example.com
  bearer:
    issuer: api-gateway
revocation:
  backend: sqlite
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9090" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.Auth.SessionTTL != 2*time.Hour {
		t.Errorf("SessionTTL = %v, want 2h", cfg.Auth.SessionTTL)
	}
	if _, ok := cfg.Auth.Users["ann"]; !ok {
		t.Errorf("users = %v", cfg.Auth.Users)
	}
	if len(cfg.Auth.BypassPaths) != 2 {
		t.Errorf("bypass paths = %v", cfg.Auth.BypassPaths)
	}
	if cfg.Auth.Bearer.Issuer != "api-gateway" {
		t.Errorf("bearer issuer = %q, want api-gateway", cfg.Auth.Bearer.Issuer)
	}
	if cfg.Auth.OIDC.Issuer != "https://accounts.example.com" {
		t.Errorf("oidc issuer = %q", cfg.Auth.OIDC.Issuer)
	}
	if cfg.Revocation.Backend != BackendSQLite {
		t.Errorf("backend = %q", cfg.Revocation.Backend)
	}
	// Unset fields keep their defaults.
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want default", cfg.LogFormat)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("AUTHGATE_AUTH_SECRET=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("AUTHGATE_AUTH_PROVIDER", "bearer")
	t.Setenv("AUTHGATE_LISTEN", ":7070")
	t.Setenv("AUTHGATE_AUTH_SESSION_TTL", "90m")
	t.Setenv("AUTHGATE_BEARER_ISSUER", "from-env")
	// godotenv does not override variables that are already set; make sure
	// the key starts out unset so the file value is used.
	os.Unsetenv("AUTHGATE_AUTH_SECRET")
	t.Cleanup(func() { os.Unsetenv("AUTHGATE_AUTH_SECRET") })

	cfg, err := Load("", envFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.Provider != ProviderBearer || cfg.Listen != ":7070" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if cfg.Auth.Secret != "from-dotenv" {
		t.Errorf("Secret = %q, want from-dotenv", cfg.Auth.Secret)
	}
	if cfg.Auth.SessionTTL != 90*time.Minute {
		t.Errorf("SessionTTL = %v", cfg.Auth.SessionTTL)
	}
	if cfg.Auth.Bearer.Issuer != "from-env" || cfg.Auth.OIDC.Issuer != "" {
		t.Errorf("issuers = bearer %q, oidc %q", cfg.Auth.Bearer.Issuer, cfg.Auth.OIDC.Issuer)
	}
}

func TestLoadBadDuration(t *testing.T) {
	t.Setenv("AUTHGATE_AUTH_SESSION_TTL", "soon")
	if _, err := Load("", ""); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("listen: [unclosed"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path, ""); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown provider", func(c *Config) { c.Auth.Provider = "saml" }, true},
		{"unknown backend", func(c *Config) { c.Revocation.Backend = "etcd" }, true},
		{"password without secret", func(c *Config) {
			c.Auth.Provider = ProviderPassword
			c.Auth.Users = map[string]string{"ann": "x"}
		}, true},
		{"password without users", func(c *Config) {
			c.Auth.Provider = ProviderPassword
			c.Auth.Secret = "s"
		}, true},
		{"bearer with secret", func(c *Config) {
			c.Auth.Provider = ProviderBearer
			c.Auth.Secret = "s"
		}, false},
		{"zero ttl", func(c *Config) { c.Auth.SessionTTL = 0 }, true},
		{"redis without url", func(c *Config) {
			c.Revocation.Backend = BackendRedis
			c.Revocation.RedisURL = ""
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
