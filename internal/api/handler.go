// Package api wires the auth provider, the gate and the views into an
// http.Handler.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gwlsn/authgate/internal/auth"
	"github.com/gwlsn/authgate/internal/gate"
	"github.com/gwlsn/authgate/internal/logger"
	"github.com/gwlsn/authgate/internal/view"
)

const defaultStreamInterval = 15 * time.Second

// Handler serves the gated pages and the auth endpoints.
type Handler struct {
	provider       auth.Provider
	middleware     *auth.Middleware
	gate           *gate.Gate
	greeting       gate.Gated[[]string]
	cookieName     string
	streamInterval time.Duration
}

// NewHandler builds a Handler for provider. cookieName is cleared on logout
// and may be empty for providers that do not use cookies.
func NewHandler(provider auth.Provider, cookieName string, bypassPaths []string) *Handler {
	if len(bypassPaths) == 0 {
		bypassPaths = auth.DefaultBypassPaths()
	}
	h := &Handler{
		provider:       provider,
		middleware:     auth.NewMiddleware(provider, bypassPaths),
		gate:           gate.New(provider.Authenticated),
		cookieName:     cookieName,
		streamInterval: defaultStreamInterval,
	}
	h.greeting = gate.Wrap(h.gate, h.greetUser)
	return h
}

// Routes returns the full route table behind the auth middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /{$}", h.Home)
	mux.HandleFunc("GET /account", h.Account)
	mux.HandleFunc("GET /api/session", h.Session)
	mux.HandleFunc("GET /api/session/stream", h.SessionStream)
	mux.Handle("/auth/login", auth.LoginHandler(h.provider))
	mux.Handle("GET /auth/callback", auth.CallbackHandler(h.provider))
	mux.Handle("/auth/logout", auth.LogoutHandler(h.provider, h.cookieName))
	return h.middleware.Wrap(requestLog(mux))
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Home handles GET /. The greeting is only rendered for signed-in users;
// everyone else sees the login link.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	state := auth.StateFromContext(r.Context())

	body, err := h.greeting(state, state.Tokens)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if gate.IsEmpty(body) {
		loginURL, _ := h.provider.LoginURL(r)
		body = view.Login(loginURL)
	}
	if err := view.Page(w, r, "authgate", body); err != nil {
		h.fail(w, r, err)
	}
}

// greetUser resolves the user lazily so that the lookup only happens once
// the gate has let the greeting through.
func (h *Handler) greetUser(tokens []string) gate.Node {
	return gate.NodeFunc(func(ctx context.Context, w io.Writer) error {
		user, err := h.provider.Identify(tokens)
		if err != nil {
			return err
		}
		props := view.GreetingProps{Name: "there"}
		if user != nil && user.Name != "" {
			props.Name = user.Name
		}
		return view.Greeting(props).Render(ctx, w)
	})
}

// Account handles GET /account. It sits behind the route-level gate, so a
// user is always present by the time it runs.
func (h *Handler) Account(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	body := view.Account(view.AccountProps{ID: user.ID, Email: user.Email})
	if err := view.Page(w, r, "Account", body); err != nil {
		h.fail(w, r, err)
	}
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

type sessionResponse struct {
	Authenticated bool          `json:"authenticated"`
	Visibility    string        `json:"visibility"`
	User          *userResponse `json:"user,omitempty"`
}

func (h *Handler) describe(state gate.State) (sessionResponse, error) {
	decision, err := h.gate.Evaluate(state)
	if err != nil {
		return sessionResponse{}, err
	}
	resp := sessionResponse{
		Authenticated: decision.Authenticated(),
		Visibility:    decision.Visibility().String(),
	}
	if decision.Authenticated() {
		if user, err := h.provider.Identify(state.Tokens); err == nil && user != nil {
			resp.User = &userResponse{ID: user.ID, Email: user.Email, Name: user.Name}
		}
	}
	return resp, nil
}

// Session handles GET /api/session
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	resp, err := h.describe(auth.StateFromContext(r.Context()))
	if err != nil {
		logger.Error("Session check failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "authentication unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	logger.Error("Render failed", "path", r.URL.Path, "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode response", "error", err)
	}
}

func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("Request handled", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
