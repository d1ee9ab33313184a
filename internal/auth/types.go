package auth

import (
	"context"
	"net/http"
)

// User represents an authenticated user.
type User struct {
	ID    string
	Email string
	Name  string
}

// Provider turns requests into authentication tokens and judges them.
//
// Authenticated has the shape of gate.Predicate. It answers false for
// tokens that are missing, malformed, expired or revoked, and returns an
// error only when it could not reach a verdict.
type Provider interface {
	Tokens(r *http.Request) []string
	Authenticated(tokens []string) (bool, error)
	Identify(tokens []string) (*User, error)
	LoginURL(r *http.Request) (string, error)
	HandleCallback(w http.ResponseWriter, r *http.Request) error
}

// Revoker is implemented by providers whose tokens can be invalidated
// before they expire.
type Revoker interface {
	Revoke(ctx context.Context, tokens []string) error
}
