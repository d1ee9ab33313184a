package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gwlsn/authgate/internal/config"
	"github.com/gwlsn/authgate/internal/store"
)

func TestOpenRevocations(t *testing.T) {
	ctx := context.Background()

	cfg := config.DefaultConfig()
	s, err := OpenRevocations(ctx, cfg)
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := s.(*store.MemoryStore); !ok {
		t.Errorf("memory backend returned %T", s)
	}

	cfg.Revocation.Backend = config.BackendSQLite
	cfg.DataDir = t.TempDir()
	s, err = OpenRevocations(ctx, cfg)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*store.SQLiteStore); !ok {
		t.Errorf("sqlite backend returned %T", s)
	}

	cfg.Revocation.Backend = "etcd"
	if _, err := OpenRevocations(ctx, cfg); err == nil {
		t.Error("unknown backend accepted")
	}
}

func TestRegistry(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*config.Config)
		provider string
		wantErr  bool
	}{
		{"none", func(*config.Config) {}, config.ProviderNone, false},
		{"bearer", func(c *config.Config) {
			c.Auth.Provider = config.ProviderBearer
			c.Auth.Secret = "s"
		}, config.ProviderBearer, false},
		{"password", func(c *config.Config) {
			c.Auth.Provider = config.ProviderPassword
			c.Auth.Secret = "s"
			c.Auth.Users = map[string]string{"ann": "$2a$10$x"}
		}, config.ProviderPassword, false},
		{"password without users", func(c *config.Config) {
			c.Auth.Provider = config.ProviderPassword
			c.Auth.Secret = "s"
		}, "", true},
		{"oidc without issuer", func(c *config.Config) {
			c.Auth.Provider = config.ProviderOIDC
			c.Auth.Secret = "s"
		}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			registry, err := Registry(context.Background(), cfg, store.NewMemoryStore())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Registry error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if _, ok := registry.Provider(tt.provider); !ok {
				t.Errorf("provider %q not registered", tt.provider)
			}
		})
	}
}

func TestNewHandlerNoneProvider(t *testing.T) {
	h, err := NewHandler(context.Background(), config.DefaultConfig(), store.NewMemoryStore())
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/account", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with the noop provider", rec.Code)
	}
}

func TestCookieName(t *testing.T) {
	if CookieName(config.ProviderBearer) != "" || CookieName(config.ProviderNone) != "" {
		t.Error("cookieless providers returned a cookie name")
	}
	if CookieName(config.ProviderPassword) == "" || CookieName(config.ProviderOIDC) == "" {
		t.Error("cookie providers returned no cookie name")
	}
}

func TestPruneLoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		PruneLoop(ctx, store.NewMemoryStore(), 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("PruneLoop did not stop")
	}
}
