// Package app assembles the configured store, provider and HTTP handler.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gwlsn/authgate/internal/api"
	"github.com/gwlsn/authgate/internal/auth"
	"github.com/gwlsn/authgate/internal/auth/bearer"
	"github.com/gwlsn/authgate/internal/auth/oidc"
	"github.com/gwlsn/authgate/internal/auth/password"
	"github.com/gwlsn/authgate/internal/config"
	"github.com/gwlsn/authgate/internal/logger"
	"github.com/gwlsn/authgate/internal/store"
)

// PruneInterval is how often expired revocations are dropped.
const PruneInterval = time.Hour

// OpenRevocations opens the revocation backend named in cfg.
func OpenRevocations(ctx context.Context, cfg *config.Config) (store.Revocations, error) {
	switch cfg.Revocation.Backend {
	case config.BackendMemory:
		return store.NewMemoryStore(), nil
	case config.BackendSQLite:
		return store.InitStore(cfg.DataDir)
	case config.BackendRedis:
		s, err := store.NewRedisStore(cfg.Revocation.RedisURL)
		if err != nil {
			return nil, err
		}
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown revocation backend %q", cfg.Revocation.Backend)
	}
}

// Registry builds the provider selected in cfg and registers it alongside
// the noop provider.
func Registry(ctx context.Context, cfg *config.Config, revocations store.Revocations) (*auth.Registry, error) {
	registry := auth.NewRegistry()
	registry.Register(config.ProviderNone, auth.NewNoopProvider())

	a := cfg.Auth
	switch a.Provider {
	case config.ProviderNone:
	case config.ProviderPassword:
		p, err := password.NewProvider(a.Users, a.HashAlgo, a.Secret, a.SessionTTL, revocations)
		if err != nil {
			return nil, err
		}
		registry.Register(config.ProviderPassword, p)
	case config.ProviderOIDC:
		p, err := oidc.NewProvider(ctx, oidc.Config{
			Issuer:        a.OIDC.Issuer,
			ClientID:      a.OIDC.ClientID,
			ClientSecret:  a.OIDC.ClientSecret,
			RedirectURL:   a.OIDC.RedirectURL,
			Scopes:        a.OIDC.Scopes,
			GroupClaim:    a.OIDC.GroupClaim,
			AllowedGroups: a.OIDC.AllowedGroups,
			Secret:        a.Secret,
			Revocations:   revocations,
		})
		if err != nil {
			return nil, err
		}
		registry.Register(config.ProviderOIDC, p)
	case config.ProviderBearer:
		p, err := bearer.NewProvider(a.Secret, a.Bearer.Issuer)
		if err != nil {
			return nil, err
		}
		registry.Register(config.ProviderBearer, p)
	default:
		return nil, fmt.Errorf("unknown auth provider %q", a.Provider)
	}
	return registry, nil
}

// CookieName returns the session cookie used by provider, or "" when the
// provider does not use one.
func CookieName(provider string) string {
	switch provider {
	case config.ProviderPassword:
		return password.CookieName
	case config.ProviderOIDC:
		return oidc.CookieName
	default:
		return ""
	}
}

// NewHandler builds the HTTP handler for cfg.
func NewHandler(ctx context.Context, cfg *config.Config, revocations store.Revocations) (*api.Handler, error) {
	registry, err := Registry(ctx, cfg, revocations)
	if err != nil {
		return nil, err
	}
	provider, err := registry.MustProvider(cfg.Auth.Provider)
	if err != nil {
		return nil, err
	}
	logger.Info("Auth provider ready", "provider", cfg.Auth.Provider, "revocation", cfg.Revocation.Backend)
	return api.NewHandler(provider, CookieName(cfg.Auth.Provider), cfg.Auth.BypassPaths), nil
}

// PruneLoop drops expired revocations every interval until ctx is done.
func PruneLoop(ctx context.Context, revocations store.Revocations, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := revocations.Prune(ctx, now)
			if err != nil {
				logger.Warn("Failed to prune revocations", "error", err)
				continue
			}
			if removed > 0 {
				logger.Debug("Pruned revocations", "removed", removed)
			}
		}
	}
}
