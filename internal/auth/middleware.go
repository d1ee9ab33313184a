package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gwlsn/authgate/internal/gate"
	"github.com/gwlsn/authgate/internal/logger"
)

type userKey struct{}

type stateKey struct{}

// Middleware enforces authentication for incoming requests.
type Middleware struct {
	Provider    Provider
	BypassPaths []string
}

// DefaultBypassPaths returns default unauthenticated endpoints.
func DefaultBypassPaths() []string {
	return []string{"/", "/healthz", "/api/session", "/auth/callback", "/auth/login", "/auth/logout", "/static/*"}
}

// NewMiddleware creates an auth middleware.
func NewMiddleware(provider Provider, bypassPaths []string) *Middleware {
	return &Middleware{Provider: provider, BypassPaths: bypassPaths}
}

// StateFromRequest collects the tokens provider finds on r.
func StateFromRequest(provider Provider, r *http.Request) gate.State {
	if provider == nil {
		return gate.State{}
	}
	return gate.State{Tokens: provider.Tokens(r)}
}

// Wrap wraps an HTTP handler with auth enforcement.
//
// Bypassed paths still get the request State attached so that handlers
// can gate fragments of their own output.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil || m.Provider == nil {
		return next
	}
	g := gate.New(m.Provider.Authenticated)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := StateFromRequest(m.Provider, r)
		ctx := context.WithValue(r.Context(), stateKey{}, state)
		r = r.WithContext(ctx)

		if m.shouldBypass(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		decision, err := g.Evaluate(state)
		if err != nil {
			logger.Error("Authentication check failed", "path", r.URL.Path, "error", err)
			http.Error(w, "authentication unavailable", http.StatusInternalServerError)
			return
		}
		if decision.Authenticated() {
			user, err := m.Provider.Identify(state.Tokens)
			if err == nil && user != nil {
				ctx = context.WithValue(ctx, userKey{}, user)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		logger.Debug("Rejected unauthenticated request", "path", r.URL.Path, "tokens", len(state.Tokens))

		if isAPIRequest(r.URL.Path) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		loginURL, err := m.Provider.LoginURL(r)
		if err != nil || loginURL == "" {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		http.Redirect(w, r, loginURL, http.StatusFound)
	})
}

// UserFromContext returns the authenticated user if present.
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userKey{}).(*User)
	return user, ok
}

// StateFromContext returns the State attached by Middleware.Wrap.
func StateFromContext(ctx context.Context) gate.State {
	state, _ := ctx.Value(stateKey{}).(gate.State)
	return state
}

func (m *Middleware) shouldBypass(path string) bool {
	for _, bypass := range m.BypassPaths {
		if bypass == path {
			return true
		}
		if strings.HasSuffix(bypass, "*") {
			prefix := strings.TrimSuffix(bypass, "*")
			if strings.HasPrefix(path, prefix) {
				return true
			}
		}
	}
	return false
}

func isAPIRequest(path string) bool {
	if path == "/api" {
		return true
	}
	return strings.HasPrefix(path, "/api/")
}
