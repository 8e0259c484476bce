package tenant

import (
	"context"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

type tenantContextKey struct{}
type dbContextKey struct{}
type superAdminContextKey struct{}

// WithTenant attaches the resolved tenant to the context.
func WithTenant(ctx context.Context, t *Tenant) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, t)
}

// FromContext retrieves the resolved tenant. Returns false on
// super-admin requests and outside request scope.
func FromContext(ctx context.Context) (*Tenant, bool) {
	t, ok := ctx.Value(tenantContextKey{}).(*Tenant)
	return t, ok
}

// WithDB attaches the request's database handle to the context: the
// tenant's logical database, or the central database for super-admin
// requests.
func WithDB(ctx context.Context, db *mongo.Database) context.Context {
	return context.WithValue(ctx, dbContextKey{}, db)
}

// DBFromContext retrieves the request's database handle.
func DBFromContext(ctx context.Context) (*mongo.Database, bool) {
	db, ok := ctx.Value(dbContextKey{}).(*mongo.Database)
	return db, ok
}

// WithSuperAdmin marks the request as originating from the super-admin
// subdomain.
func WithSuperAdmin(ctx context.Context) context.Context {
	return context.WithValue(ctx, superAdminContextKey{}, true)
}

// IsSuperAdmin reports whether the request came through the super-admin
// origin.
func IsSuperAdmin(ctx context.Context) bool {
	ok, _ := ctx.Value(superAdminContextKey{}).(bool)
	return ok
}

// LoggerExtractor returns a logger context extractor that annotates log
// records with the tenant identifier.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if t, ok := FromContext(ctx); ok {
			return slog.String("tenant_id", t.ID.String()), true
		}
		return slog.Attr{}, false
	}
}
