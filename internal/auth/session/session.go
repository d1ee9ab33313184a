// Package session signs and verifies the stateless session tokens issued
// by the cookie-based auth providers.
package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMalformed = errors.New("invalid session format")
	ErrSignature = errors.New("invalid session signature")
	ErrExpired   = errors.New("session expired")
)

// Claims is the payload carried by a session token.
type Claims struct {
	ID        string `json:"jti"`
	Subject   string `json:"sub"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	ExpiresAt int64  `json:"exp"`
}

// Expiry returns ExpiresAt as a time.
func (c Claims) Expiry() time.Time {
	return time.Unix(c.ExpiresAt, 0)
}

// Signer produces tamper-evident tokens with an HMAC-SHA256 key.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner returns a Signer for secret.
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("session signing requires a non-empty secret")
	}
	return &Signer{secret: []byte(secret), now: time.Now}, nil
}

// Issue creates claims for subject valid for ttl and returns the signed token.
// A fresh ID is assigned so the token can be revoked individually.
func (s *Signer) Issue(subject, email, name string, ttl time.Duration) (string, Claims, error) {
	claims := Claims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Email:     email,
		Name:      name,
		ExpiresAt: s.now().Add(ttl).Unix(),
	}
	token, err := s.Sign(claims)
	return token, claims, err
}

// Sign encodes claims as payload.signature.
func (s *Signer) Sign(claims Claims) (string, error) {
	data, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	return s.SignValue(data), nil
}

// SignValue signs an arbitrary payload.
func (s *Signer) SignValue(payload []byte) string {
	return base64.RawURLEncoding.EncodeToString(payload) + "." + base64.RawURLEncoding.EncodeToString(s.mac(payload))
}

// VerifyValue checks the signature of value and returns its payload.
func (s *Signer) VerifyValue(value string) ([]byte, error) {
	parts := strings.Split(value, ".")
	if len(parts) != 2 {
		return nil, ErrMalformed
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrMalformed
	}
	signature, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrSignature
	}
	if subtle.ConstantTimeCompare(signature, s.mac(payload)) != 1 {
		return nil, ErrSignature
	}
	return payload, nil
}

// Verify checks the signature and expiry of token.
func (s *Signer) Verify(token string) (Claims, error) {
	payload, err := s.VerifyValue(token)
	if err != nil {
		return Claims{}, err
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Claims{}, ErrMalformed
	}
	if claims.Subject == "" {
		return Claims{}, ErrMalformed
	}
	if !claims.Expiry().After(s.now()) {
		return Claims{}, ErrExpired
	}
	return claims, nil
}

func (s *Signer) mac(payload []byte) []byte {
	m := hmac.New(sha256.New, s.secret)
	m.Write(payload)
	return m.Sum(nil)
}

// FromCookie returns the value of cookie name as a token list.
func FromCookie(r *http.Request, name string) []string {
	cookie, err := r.Cookie(name)
	if err != nil || cookie.Value == "" {
		return nil
	}
	return []string{cookie.Value}
}

// SetCookie stores token in cookie name until expires.
func SetCookie(w http.ResponseWriter, r *http.Request, name, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
		Secure:   r.TLS != nil,
	})
}

// ClearCookie expires cookie name.
func ClearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
