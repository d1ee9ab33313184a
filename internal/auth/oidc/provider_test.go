package oidc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gwlsn/authgate/internal/auth"
	"github.com/gwlsn/authgate/internal/store"
	"golang.org/x/oauth2"
)

func testConfig() Config {
	return Config{
		Issuer:       "https://issuer.example.com",
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/auth/callback",
		Secret:       "session-secret",
	}
}

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	return newTestProviderWithConfig(t, testConfig())
}

func newTestProviderWithConfig(t *testing.T, cfg Config) *Provider {
	t.Helper()
	p, err := newProvider(cfg, oauth2.Endpoint{
		AuthURL:  "https://issuer.example.com/authorize",
		TokenURL: "https://issuer.example.com/token",
	}, nil)
	if err != nil {
		t.Fatalf("newProvider: %v", err)
	}
	return p
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing issuer", func(c *Config) { c.Issuer = "" }},
		{"missing client id", func(c *Config) { c.ClientID = "" }},
		{"missing client secret", func(c *Config) { c.ClientSecret = "" }},
		{"missing redirect", func(c *Config) { c.RedirectURL = "" }},
		{"missing secret", func(c *Config) { c.Secret = "" }},
		{"groups without claim", func(c *Config) { c.AllowedGroups = []string{"admins"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			if _, err := NewProvider(context.Background(), cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestAuthenticatedWithSignedSession(t *testing.T) {
	p := newTestProvider(t)
	token, _, err := p.signer.Issue("sub-1", "ann@example.com", "Ann", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	ok, err := p.Authenticated([]string{"junk", token})
	if err != nil || !ok {
		t.Fatalf("Authenticated = %v, %v; want true", ok, err)
	}
	user, err := p.Identify([]string{token})
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if user.ID != "sub-1" || user.Email != "ann@example.com" || user.Name != "Ann" {
		t.Errorf("unexpected user %+v", user)
	}

	if ok, _ := p.Authenticated(nil); ok {
		t.Error("no tokens authenticated")
	}
	if _, err := p.Identify(nil); err == nil {
		t.Error("Identify(nil) succeeded")
	}
}

func TestRevokeInvalidatesSession(t *testing.T) {
	cfg := testConfig()
	cfg.Revocations = store.NewMemoryStore()
	p := newTestProviderWithConfig(t, cfg)

	var _ auth.Revoker = p

	token, _, err := p.signer.Issue("sub-1", "ann@example.com", "Ann", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	tokens := []string{token}
	if ok, err := p.Authenticated(tokens); err != nil || !ok {
		t.Fatalf("fresh session: Authenticated = %v, %v", ok, err)
	}

	if err := p.Revoke(context.Background(), tokens); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	ok, err := p.Authenticated(tokens)
	if err != nil {
		t.Fatalf("Authenticated: %v", err)
	}
	if ok {
		t.Error("revoked session still authenticated")
	}
	if _, err := p.Identify(tokens); err == nil {
		t.Error("Identify succeeded for a revoked session")
	}
}

func TestRevokeWithoutStoreIsNoop(t *testing.T) {
	p := newTestProvider(t)
	token, _, _ := p.signer.Issue("sub-1", "", "", time.Hour)
	if err := p.Revoke(context.Background(), []string{token}); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
}

func TestHandleLoginRedirectsWithState(t *testing.T) {
	p := newTestProvider(t)
	rec := httptest.NewRecorder()
	if err := p.HandleLogin(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil)); err != nil {
		t.Fatalf("HandleLogin: %v", err)
	}
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if !strings.HasPrefix(loc.String(), "https://issuer.example.com/authorize") {
		t.Errorf("unexpected redirect %s", loc)
	}

	var stateCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == defaultStateCookie {
			stateCookie = c
		}
	}
	if stateCookie == nil {
		t.Fatal("state cookie not set")
	}
	state, err := p.verifyStateCookie(stateCookie.Value)
	if err != nil {
		t.Fatalf("verifyStateCookie: %v", err)
	}
	if state.State != loc.Query().Get("state") {
		t.Errorf("cookie state %q != query state %q", state.State, loc.Query().Get("state"))
	}
	if state.Nonce != loc.Query().Get("nonce") {
		t.Errorf("cookie nonce %q != query nonce %q", state.Nonce, loc.Query().Get("nonce"))
	}
}

func TestHandleCallbackRejectsBadState(t *testing.T) {
	p := newTestProvider(t)
	good, err := p.signStatePayload(statePayload{State: "s1", Nonce: "n", ExpiresAt: time.Now().Add(time.Minute).Unix()})
	if err != nil {
		t.Fatalf("signStatePayload: %v", err)
	}
	expired, err := p.signStatePayload(statePayload{State: "s1", Nonce: "n", ExpiresAt: time.Now().Add(-time.Minute).Unix()})
	if err != nil {
		t.Fatalf("signStatePayload: %v", err)
	}

	tests := []struct {
		name   string
		query  string
		cookie string
	}{
		{"missing code", "?state=s1", good},
		{"missing cookie", "?code=c&state=s1", ""},
		{"tampered cookie", "?code=c&state=s1", good + "x"},
		{"expired state", "?code=c&state=s1", expired},
		{"state mismatch", "?code=c&state=other", good},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/callback"+tt.query, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: defaultStateCookie, Value: tt.cookie})
			}
			if err := p.HandleCallback(httptest.NewRecorder(), req); err == nil {
				t.Fatal("expected callback error")
			}
		})
	}
}

func TestValidateGroups(t *testing.T) {
	p := newTestProvider(t)
	p.groupClaim = "groups"
	p.allowedGroups = map[string]struct{}{"admins": {}}

	tests := []struct {
		name    string
		claims  map[string]interface{}
		wantErr bool
	}{
		{"member via list", map[string]interface{}{"groups": []interface{}{"users", "admins"}}, false},
		{"member via string", map[string]interface{}{"groups": "admins"}, false},
		{"not a member", map[string]interface{}{"groups": []interface{}{"users"}}, true},
		{"missing claim", map[string]interface{}{}, true},
		{"non-string entry", map[string]interface{}{"groups": []interface{}{42}}, true},
		{"unsupported type", map[string]interface{}{"groups": 42}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := p.validateGroups(tt.claims); (err != nil) != tt.wantErr {
				t.Errorf("validateGroups error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeScopes(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{nil, []string{"openid", "profile", "email"}},
		{[]string{"email"}, []string{"openid", "email"}},
		{[]string{"openid", " profile "}, []string{"openid", "profile"}},
		{[]string{""}, []string{"openid"}},
	}
	for _, tt := range tests {
		if got := normalizeScopes(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("normalizeScopes(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
