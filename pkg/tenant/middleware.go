package tenant

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/zenvoice/backoffice/core"
)

// ConnectionSource hands out database handles. Satisfied by
// mongodb.Registry.
type ConnectionSource interface {
	Central() *mongo.Database
	Tenant(ctx context.Context, tenantID uuid.UUID, dbName string) (*mongo.Database, error)
}

// ErrorHandler renders tenant resolution failures.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrTenantNotFound):
		core.WriteError(w, core.ErrTenantNotFound)
	case errors.Is(err, ErrSetupRequired):
		core.WriteError(w, core.ErrSetupRequired)
	case errors.Is(err, ErrInactiveTenant):
		core.WriteError(w, core.ErrForbidden)
	default:
		core.WriteError(w, core.ErrInternalServerError)
	}
}

// Option configures the middleware.
type Option func(*config)

type config struct {
	cache            Cache
	cacheTTL         time.Duration
	errorHandler     ErrorHandler
	superAdminKey    string
	defaultSubdomain string
	setupPath        string
	requireActive    bool
}

// WithCache replaces the default in-memory cache.
func WithCache(c Cache) Option {
	return func(cfg *config) {
		if c != nil {
			cfg.cache = c
		}
	}
}

// WithCacheTTL sets how long resolved tenants stay cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(cfg *config) { cfg.cacheTTL = ttl }
}

// WithErrorHandler replaces the default error rendering.
func WithErrorHandler(h ErrorHandler) Option {
	return func(cfg *config) {
		if h != nil {
			cfg.errorHandler = h
		}
	}
}

// WithSuperAdminSubdomain sets the subdomain that marks super-admin
// requests bound to the central database.
func WithSuperAdminSubdomain(sub string) Option {
	return func(cfg *config) { cfg.superAdminKey = sub }
}

// WithDefaultSubdomain sets the tenant used when the host carries no
// distinguishable subdomain (bare domains, developer hosts).
func WithDefaultSubdomain(sub string) Option {
	return func(cfg *config) { cfg.defaultSubdomain = sub }
}

// WithSetupPath sets the path prefix that stays reachable while a
// tenant has not completed setup.
func WithSetupPath(path string) Option {
	return func(cfg *config) { cfg.setupPath = path }
}

// Middleware resolves the request's tenant and binds its database
// handle to the request context. Requests from the super-admin
// subdomain skip tenant lookup and bind to the central database.
func Middleware(resolver Resolver, provider Provider, conns ConnectionSource, opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{
		cache:         NewMemoryCache(),
		cacheTTL:      5 * time.Minute,
		errorHandler:  defaultErrorHandler,
		superAdminKey: "admin",
		setupPath:     "/setup",
		requireActive: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subdomain, err := resolver.Resolve(r)
			if err != nil {
				cfg.errorHandler(w, r, err)
				return
			}

			if subdomain == cfg.superAdminKey {
				ctx := WithSuperAdmin(r.Context())
				ctx = WithDB(ctx, conns.Central())
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if subdomain == "" {
				if cfg.defaultSubdomain == "" {
					cfg.errorHandler(w, r, ErrTenantNotFound)
					return
				}
				subdomain = cfg.defaultSubdomain
			}

			resolved, err := cfg.resolveTenant(r.Context(), provider, subdomain)
			if err != nil {
				cfg.errorHandler(w, r, err)
				return
			}

			if cfg.requireActive && !resolved.Active {
				cfg.errorHandler(w, r, ErrInactiveTenant)
				return
			}

			db, err := conns.Tenant(r.Context(), resolved.ID, resolved.DBName)
			if err != nil {
				cfg.errorHandler(w, r, err)
				return
			}

			if !resolved.SetupDone && !strings.HasPrefix(r.URL.Path, cfg.setupPath) {
				cfg.errorHandler(w, r, ErrSetupRequired)
				return
			}

			ctx := WithTenant(r.Context(), resolved)
			ctx = WithDB(ctx, db)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (cfg *config) resolveTenant(ctx context.Context, provider Provider, subdomain string) (*Tenant, error) {
	if cached, ok := cfg.cache.Get(ctx, subdomain); ok {
		return cached, nil
	}

	resolved, err := provider.GetBySubdomain(ctx, subdomain)
	if err != nil {
		return nil, err
	}

	cfg.cache.Set(ctx, subdomain, resolved, cfg.cacheTTL)
	return resolved, nil
}
