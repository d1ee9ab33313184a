package oidc

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gwlsn/authgate/internal/auth"
	"github.com/gwlsn/authgate/internal/auth/session"
	"github.com/gwlsn/authgate/internal/logger"
	"github.com/gwlsn/authgate/internal/store"
	"golang.org/x/oauth2"
)

const (
	// CookieName is the session cookie set after a successful callback.
	CookieName          = "authgate_session"
	defaultStateCookie  = "authgate_oidc_state"
	defaultStateTimeout = 10 * time.Minute
	defaultSessionTTL   = 24 * time.Hour
	revocationTimeout   = 2 * time.Second
)

// Config holds the OIDC client settings.
type Config struct {
	Issuer        string
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	Scopes        []string
	GroupClaim    string
	AllowedGroups []string
	Secret        string
	// Revocations is optional; without it logout only clears the cookie.
	Revocations   store.Revocations
}

// Provider implements OIDC authentication with signed session cookies.
type Provider struct {
	verifier        *oidc.IDTokenVerifier
	oauth2Config    *oauth2.Config
	signer          *session.Signer
	revocations     store.Revocations
	cookieName      string
	stateCookieName string
	groupClaim      string
	allowedGroups   map[string]struct{}
	sessionTTL      time.Duration
}

func (c Config) validate() error {
	if c.Issuer == "" {
		return errors.New("oidc auth requires issuer")
	}
	if c.ClientID == "" {
		return errors.New("oidc auth requires client_id")
	}
	if c.ClientSecret == "" {
		return errors.New("oidc auth requires client_secret")
	}
	if c.RedirectURL == "" {
		return errors.New("oidc auth requires redirect_url")
	}
	if c.Secret == "" {
		return errors.New("oidc auth requires auth secret")
	}
	if len(c.AllowedGroups) > 0 && c.GroupClaim == "" {
		return errors.New("oidc auth requires group_claim when allowed_groups is set")
	}
	return nil
}

// NewProvider discovers the issuer and initializes an OIDC auth provider.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc issuer: %w", err)
	}
	return newProvider(cfg, provider.Endpoint(), provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}))
}

func newProvider(cfg Config, endpoint oauth2.Endpoint, verifier *oidc.IDTokenVerifier) (*Provider, error) {
	signer, err := session.NewSigner(cfg.Secret)
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedGroups))
	for _, group := range cfg.AllowedGroups {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}
		allowed[group] = struct{}{}
	}

	return &Provider{
		verifier: verifier,
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       normalizeScopes(cfg.Scopes),
			Endpoint:     endpoint,
		},
		signer:          signer,
		revocations:     cfg.Revocations,
		cookieName:      CookieName,
		stateCookieName: defaultStateCookie,
		groupClaim:      cfg.GroupClaim,
		allowedGroups:   allowed,
		sessionTTL:      defaultSessionTTL,
	}, nil
}

// Tokens returns the session cookie, if any.
func (p *Provider) Tokens(r *http.Request) []string {
	return session.FromCookie(r, p.cookieName)
}

// Authenticated reports whether any token is a live, unrevoked signed
// session.
func (p *Provider) Authenticated(tokens []string) (bool, error) {
	_, ok, err := p.claims(tokens)
	return ok, err
}

// Identify returns the user recorded in the first valid session.
func (p *Provider) Identify(tokens []string) (*auth.User, error) {
	claims, ok, err := p.claims(tokens)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("no valid session")
	}
	return &auth.User{ID: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}

// Revoke invalidates every valid session in tokens.
func (p *Provider) Revoke(ctx context.Context, tokens []string) error {
	if p.revocations == nil {
		return nil
	}
	for _, token := range tokens {
		claims, err := p.signer.Verify(token)
		if err != nil {
			continue
		}
		if err := p.revocations.Revoke(ctx, claims.ID, claims.Expiry()); err != nil {
			return err
		}
		logger.Info("Session revoked", "subject", claims.Subject, "session", claims.ID)
	}
	return nil
}

func (p *Provider) claims(tokens []string) (session.Claims, bool, error) {
	for _, token := range tokens {
		claims, err := p.signer.Verify(token)
		if err != nil {
			continue
		}
		if p.revocations != nil {
			ctx, cancel := context.WithTimeout(context.Background(), revocationTimeout)
			revoked, err := p.revocations.IsRevoked(ctx, claims.ID)
			cancel()
			if err != nil {
				return session.Claims{}, false, err
			}
			if revoked {
				continue
			}
		}
		return claims, true, nil
	}
	return session.Claims{}, false, nil
}

// LoginURL returns the login endpoint.
func (p *Provider) LoginURL(_ *http.Request) (string, error) {
	return "/auth/login", nil
}

// HandleLogin initiates the authorization code flow.
func (p *Provider) HandleLogin(w http.ResponseWriter, r *http.Request) error {
	state, err := generateNonce()
	if err != nil {
		return err
	}
	nonce, err := generateNonce()
	if err != nil {
		return err
	}
	expires := time.Now().Add(defaultStateTimeout)
	encoded, err := p.signStatePayload(statePayload{
		State:     state,
		Nonce:     nonce,
		ExpiresAt: expires.Unix(),
	})
	if err != nil {
		return err
	}

	session.SetCookie(w, r, p.stateCookieName, encoded, expires)
	http.Redirect(w, r, p.oauth2Config.AuthCodeURL(state, oidc.Nonce(nonce)), http.StatusFound)
	return nil
}

// HandleCallback validates the ID token and issues a session cookie.
func (p *Provider) HandleCallback(w http.ResponseWriter, r *http.Request) error {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		return errors.New("missing code or state")
	}

	cookie, err := r.Cookie(p.stateCookieName)
	if err != nil {
		return errors.New("missing auth state")
	}

	stateData, err := p.verifyStateCookie(cookie.Value)
	if err != nil {
		return err
	}
	if stateData.ExpiresAt < time.Now().Unix() {
		return errors.New("state expired")
	}
	if subtle.ConstantTimeCompare([]byte(state), []byte(stateData.State)) != 1 {
		return errors.New("invalid state")
	}

	session.ClearCookie(w, p.stateCookieName)

	token, err := p.oauth2Config.Exchange(r.Context(), code)
	if err != nil {
		return err
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return errors.New("missing id_token")
	}

	idToken, err := p.verifier.Verify(r.Context(), rawIDToken)
	if err != nil {
		return err
	}
	if idToken.Nonce != stateData.Nonce {
		return errors.New("invalid nonce")
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return err
	}

	subject, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)

	if err := p.validateGroups(claims); err != nil {
		logger.Warn("OIDC login rejected", "subject", subject, "error", err)
		return err
	}

	ttl := p.sessionTTL
	if !idToken.Expiry.IsZero() {
		ttl = time.Until(idToken.Expiry)
	}
	signed, sess, err := p.signer.Issue(subject, email, name, ttl)
	if err != nil {
		return err
	}
	session.SetCookie(w, r, p.cookieName, signed, sess.Expiry())
	logger.Info("OIDC login succeeded", "subject", subject, "session", sess.ID)

	http.Redirect(w, r, "/", http.StatusFound)
	return nil
}

type statePayload struct {
	State     string `json:"state"`
	Nonce     string `json:"nonce"`
	ExpiresAt int64  `json:"expires_at"`
}

func (p *Provider) signStatePayload(payload statePayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return p.signer.SignValue(data), nil
}

func (p *Provider) verifyStateCookie(value string) (statePayload, error) {
	payload, err := p.signer.VerifyValue(value)
	if err != nil {
		return statePayload{}, err
	}
	var state statePayload
	if err := json.Unmarshal(payload, &state); err != nil {
		return statePayload{}, err
	}
	return state, nil
}

func (p *Provider) validateGroups(claims map[string]interface{}) error {
	if len(p.allowedGroups) == 0 {
		return nil
	}
	raw, ok := claims[p.groupClaim]
	if !ok {
		return fmt.Errorf("missing group claim: %s", p.groupClaim)
	}
	groups, err := extractGroups(raw)
	if err != nil {
		return err
	}
	for _, group := range groups {
		if _, ok := p.allowedGroups[group]; ok {
			return nil
		}
	}
	return errors.New("user is not in an allowed group")
}

func extractGroups(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return nil, nil
		}
		return []string{v}, nil
	case []string:
		return v, nil
	case []interface{}:
		groups := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, errors.New("group claim contains non-string value")
			}
			if str == "" {
				continue
			}
			groups = append(groups, str)
		}
		return groups, nil
	default:
		return nil, errors.New("group claim has unsupported type")
	}
}

func normalizeScopes(scopes []string) []string {
	if len(scopes) == 0 {
		return []string{oidc.ScopeOpenID, "profile", "email"}
	}
	hasOpenID := false
	normalized := make([]string, 0, len(scopes)+1)
	for _, scope := range scopes {
		scope = strings.TrimSpace(scope)
		if scope == "" {
			continue
		}
		if scope == oidc.ScopeOpenID {
			hasOpenID = true
		}
		normalized = append(normalized, scope)
	}
	if !hasOpenID {
		normalized = append([]string{oidc.ScopeOpenID}, normalized...)
	}
	return normalized
}

func generateNonce() (string, error) {
	random := make([]byte, 32)
	if _, err := rand.Read(random); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(random), nil
}
