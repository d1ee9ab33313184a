package auth

import (
	"net/http"
	"strings"

	"github.com/gwlsn/authgate/internal/logger"
)

// LoginHandlerProvider allows providers to implement login handling.
type LoginHandlerProvider interface {
	HandleLogin(w http.ResponseWriter, r *http.Request) error
}

// CallbackHandler handles auth provider callbacks.
func CallbackHandler(provider Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if provider == nil {
			http.NotFound(w, r)
			return
		}
		if err := provider.HandleCallback(w, r); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
}

// LoginHandler handles auth login requests.
func LoginHandler(provider Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loginProvider, ok := provider.(LoginHandlerProvider)
		if !ok || provider == nil {
			http.NotFound(w, r)
			return
		}
		if err := loginProvider.HandleLogin(w, r); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
		}
	}
}

// LogoutHandler revokes the request's tokens when the provider supports it
// and clears the session cookie named cookieName. Browser form posts are
// redirected to the home page; other clients get 204.
func LogoutHandler(provider Provider, cookieName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if provider == nil {
			http.NotFound(w, r)
			return
		}
		if revoker, ok := provider.(Revoker); ok {
			if err := revoker.Revoke(r.Context(), provider.Tokens(r)); err != nil {
				logger.Warn("Failed to revoke session", "error", err)
				http.Error(w, "logout failed", http.StatusInternalServerError)
				return
			}
		}
		if cookieName != "" {
			http.SetCookie(w, &http.Cookie{
				Name:     cookieName,
				Value:    "",
				Path:     "/",
				MaxAge:   -1,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		if strings.Contains(r.Header.Get("Accept"), "text/html") {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
