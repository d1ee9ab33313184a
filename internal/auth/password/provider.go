package password

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gwlsn/authgate/internal/auth"
	"github.com/gwlsn/authgate/internal/auth/session"
	"github.com/gwlsn/authgate/internal/logger"
	"github.com/gwlsn/authgate/internal/store"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	// CookieName is the session cookie set by HandleLogin.
	CookieName        = "authgate_session"
	defaultSessionTTL = 24 * time.Hour
	revocationTimeout = 2 * time.Second
)

// Provider implements password-based authentication.
type Provider struct {
	users       map[string]string
	hashAlgo    string
	signer      *session.Signer
	revocations store.Revocations
	cookieName  string
	sessionTTL  time.Duration
}

// NewProvider creates a new password auth provider. revocations may be nil,
// in which case logout only clears the cookie.
func NewProvider(users map[string]string, hashAlgo, secret string, sessionTTL time.Duration, revocations store.Revocations) (*Provider, error) {
	if len(users) == 0 {
		return nil, errors.New("password auth requires at least one user")
	}
	if secret == "" {
		return nil, errors.New("password auth requires a non-empty secret")
	}
	normalized := strings.ToLower(strings.TrimSpace(hashAlgo))
	if normalized == "" {
		normalized = "auto"
	}
	switch normalized {
	case "auto", "bcrypt", "argon2", "argon2id", "argon2i":
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", hashAlgo)
	}
	signer, err := session.NewSigner(secret)
	if err != nil {
		return nil, err
	}
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	return &Provider{
		users:       users,
		hashAlgo:    normalized,
		signer:      signer,
		revocations: revocations,
		cookieName:  CookieName,
		sessionTTL:  sessionTTL,
	}, nil
}

// Tokens returns the session cookie, if any.
func (p *Provider) Tokens(r *http.Request) []string {
	return session.FromCookie(r, p.cookieName)
}

// Authenticated reports whether any token is a live session of a known user.
func (p *Provider) Authenticated(tokens []string) (bool, error) {
	_, ok, err := p.verify(tokens)
	return ok, err
}

// Identify returns the user behind the first valid token.
func (p *Provider) Identify(tokens []string) (*auth.User, error) {
	claims, ok, err := p.verify(tokens)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("no valid session")
	}
	return &auth.User{ID: claims.Subject, Name: claims.Subject}, nil
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
		logger.Info("Session revoked", "user", claims.Subject, "session", claims.ID)
	}
	return nil
}

func (p *Provider) verify(tokens []string) (session.Claims, bool, error) {
	for _, token := range tokens {
		claims, err := p.signer.Verify(token)
		if err != nil {
			continue
		}
		if _, ok := p.users[claims.Subject]; !ok {
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

// HandleCallback is not used for password auth.
func (p *Provider) HandleCallback(_ http.ResponseWriter, _ *http.Request) error {
	return errors.New("password auth does not support callbacks")
}

// HandleLogin authenticates credentials and issues a session cookie.
func (p *Provider) HandleLogin(w http.ResponseWriter, r *http.Request) error {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(`<!doctype html><html><body><form method="POST"><label>Username <input name="username"/></label><br/><label>Password <input type="password" name="password"/></label><br/><button type="submit">Login</button></form></body></html>`))
		return err
	case http.MethodPost:
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return nil
	}

	username, password, err := readCredentials(r)
	if err != nil {
		return err
	}
	if ok, err := p.verifyPassword(username, password); err != nil || !ok {
		logger.Warn("Login failed", "user", username)
		return errors.New("invalid credentials")
	}

	token, claims, err := p.signer.Issue(username, "", username, p.sessionTTL)
	if err != nil {
		return err
	}
	session.SetCookie(w, r, p.cookieName, token, claims.Expiry())
	logger.Info("Login succeeded", "user", username, "session", claims.ID)

	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		http.Redirect(w, r, "/", http.StatusFound)
		return nil
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (p *Provider) verifyPassword(username, password string) (bool, error) {
	hash, ok := p.users[username]
	if !ok {
		return false, nil
	}
	algo := p.hashAlgo
	if algo == "auto" {
		algo = detectHashAlgo(hash)
	}
	switch algo {
	case "bcrypt":
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
			return false, nil
		}
		return true, nil
	case "argon2", "argon2id", "argon2i":
		ok, err := verifyArgon2(password, hash)
		return ok, err
	default:
		return false, fmt.Errorf("unsupported hash algorithm: %s", algo)
	}
}

func detectHashAlgo(hash string) string {
	switch {
	case strings.HasPrefix(hash, "$2a$"),
		strings.HasPrefix(hash, "$2b$"),
		strings.HasPrefix(hash, "$2y$"):
		return "bcrypt"
	case strings.HasPrefix(hash, "$argon2id$"):
		return "argon2id"
	case strings.HasPrefix(hash, "$argon2i$"):
		return "argon2i"
	}
	return "bcrypt"
}

func readCredentials(r *http.Request) (string, string, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		var payload struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			return "", "", err
		}
		return strings.TrimSpace(payload.Username), payload.Password, nil
	}
	if err := r.ParseForm(); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(r.FormValue("username")), r.FormValue("password"), nil
}

type argon2Params struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	keyLength   uint32
}

func verifyArgon2(password, encodedHash string) (bool, error) {
	variant, params, salt, hash, err := decodeArgon2Hash(encodedHash)
	if err != nil {
		return false, err
	}
	var derived []byte
	switch variant {
	case "argon2id":
		derived = argon2.IDKey([]byte(password), salt, params.iterations, params.memory, params.parallelism, params.keyLength)
	case "argon2i":
		derived = argon2.Key([]byte(password), salt, params.iterations, params.memory, params.parallelism, params.keyLength)
	default:
		return false, errors.New("unsupported argon2 variant")
	}
	if subtle.ConstantTimeCompare(hash, derived) != 1 {
		return false, nil
	}
	return true, nil
}

// NewSalt returns 16 random bytes for HashArgon2id.
func NewSalt() ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// HashArgon2id encodes password in the PHC string format understood by
// verifyArgon2.
func HashArgon2id(password string, salt []byte) string {
	const (
		memory      = 64 * 1024
		iterations  = 1
		parallelism = 2
		keyLength   = 32
	)
	key := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, keyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memory, iterations, parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))
}

func decodeArgon2Hash(encodedHash string) (string, argon2Params, []byte, []byte, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) < 6 {
		return "", argon2Params{}, nil, nil, errors.New("invalid argon2 hash format")
	}
	if parts[1] != "argon2id" && parts[1] != "argon2i" {
		return "", argon2Params{}, nil, nil, errors.New("unsupported argon2 variant")
	}
	if !strings.HasPrefix(parts[2], "v=") {
		return "", argon2Params{}, nil, nil, errors.New("invalid argon2 version")
	}
	params := argon2Params{}
	for _, part := range strings.Split(parts[3], ",") {
		keyVal := strings.SplitN(part, "=", 2)
		if len(keyVal) != 2 {
			return "", argon2Params{}, nil, nil, errors.New("invalid argon2 params")
		}
		value, err := strconv.ParseUint(keyVal[1], 10, 32)
		if err != nil {
			return "", argon2Params{}, nil, nil, errors.New("invalid argon2 params")
		}
		switch keyVal[0] {
		case "m":
			params.memory = uint32(value)
		case "t":
			params.iterations = uint32(value)
		case "p":
			params.parallelism = uint8(value)
		}
	}
	if params.memory == 0 || params.iterations == 0 || params.parallelism == 0 {
		return "", argon2Params{}, nil, nil, errors.New("invalid argon2 params")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return "", argon2Params{}, nil, nil, errors.New("invalid argon2 salt")
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return "", argon2Params{}, nil, nil, errors.New("invalid argon2 hash")
	}
	params.keyLength = uint32(len(hash))
	return parts[1], params, salt, hash, nil
}
