// Package bearer authenticates API clients that present an HS256 JWT in the
// Authorization header.
package bearer

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gwlsn/authgate/internal/auth"
)

// DefaultIssuer is stamped into tokens minted by Issue.
const DefaultIssuer = "authgate"

// Claims are the JWT claims accepted by the provider.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Provider verifies bearer JWTs.
type Provider struct {
	secret []byte
	issuer string
}

// NewProvider returns a bearer provider. An empty issuer defaults to
// DefaultIssuer.
func NewProvider(secret, issuer string) (*Provider, error) {
	if secret == "" {
		return nil, errors.New("bearer auth requires a non-empty secret")
	}
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &Provider{secret: []byte(secret), issuer: issuer}, nil
}

// Issue mints a token for subject valid for ttl.
func (p *Provider) Issue(subject, email, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
		Name:  name,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign bearer token: %w", err)
	}
	return signed, nil
}

// Tokens returns the bearer token from the Authorization header.
func (p *Provider) Tokens(r *http.Request) []string {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return nil
	}
	return []string{strings.TrimSpace(token)}
}

// Authenticated reports whether any token is a valid JWT from this issuer.
func (p *Provider) Authenticated(tokens []string) (bool, error) {
	_, ok := p.parse(tokens)
	return ok, nil
}

// Identify returns the subject of the first valid token.
func (p *Provider) Identify(tokens []string) (*auth.User, error) {
	claims, ok := p.parse(tokens)
	if !ok {
		return nil, errors.New("no valid bearer token")
	}
	return &auth.User{ID: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}

func (p *Provider) parse(tokens []string) (*Claims, bool) {
	for _, raw := range tokens {
		claims := &Claims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (any, error) {
			return p.secret, nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(p.issuer),
			jwt.WithExpirationRequired(),
		)
		if err != nil || !token.Valid || claims.Subject == "" {
			continue
		}
		return claims, true
	}
	return nil, false
}

// LoginURL is empty: bearer clients obtain tokens out of band.
func (p *Provider) LoginURL(_ *http.Request) (string, error) {
	return "", nil
}

// HandleCallback is not used for bearer auth.
func (p *Provider) HandleCallback(_ http.ResponseWriter, _ *http.Request) error {
	return errors.New("bearer auth does not support callbacks")
}
