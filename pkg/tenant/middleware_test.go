package tenant_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/zenvoice/backoffice/pkg/store"
	"github.com/zenvoice/backoffice/pkg/tenant"
)

// stubConns satisfies tenant.ConnectionSource without a live database.
// Database handles may be nil; the middleware only threads them through.
type stubConns struct {
	tenantCalls atomic.Int64
	err         error
}

func (s *stubConns) Central() *mongo.Database { return nil }

func (s *stubConns) Tenant(ctx context.Context, tenantID uuid.UUID, dbName string) (*mongo.Database, error) {
	s.tenantCalls.Add(1)
	return nil, s.err
}

type countingProvider struct {
	inner tenant.Provider
	calls atomic.Int64
}

func (p *countingProvider) GetBySubdomain(ctx context.Context, subdomain string) (*tenant.Tenant, error) {
	p.calls.Add(1)
	return p.inner.GetBySubdomain(ctx, subdomain)
}

func seedTenant(t *testing.T, s store.Store[tenant.Tenant], mutate func(*tenant.Tenant)) tenant.Tenant {
	t.Helper()
	tn := tenant.Tenant{
		ID:        uuid.New(),
		Name:      "Acme",
		Subdomain: "acme",
		DBName:    "tenant_acme",
		SetupDone: true,
		Active:    true,
		CreatedAt: time.Now(),
	}
	if mutate != nil {
		mutate(&tn)
	}
	require.NoError(t, s.Insert(context.Background(), tn))
	return tn
}

func doRequest(handler http.Handler, host, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Host = host
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Code
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	resolver := tenant.NewSubdomainResolver(".app.example.com")

	okHandler := func(got **tenant.Tenant) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got != nil {
				*got, _ = tenant.FromContext(r.Context())
			}
			w.WriteHeader(http.StatusOK)
		})
	}

	t.Run("resolves tenant and binds it to the context", func(t *testing.T) {
		t.Parallel()

		ts := store.NewMemoryStore[tenant.Tenant]()
		seeded := seedTenant(t, ts, nil)
		conns := &stubConns{}

		var got *tenant.Tenant
		h := tenant.Middleware(resolver, tenant.NewStoreProvider(ts), conns)(okHandler(&got))

		rec := doRequest(h, "acme.app.example.com", "/")
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, got)
		assert.Equal(t, seeded.ID, got.ID)
		assert.Equal(t, int64(1), conns.tenantCalls.Load())
	})

	t.Run("unknown subdomain returns the tenant-not-found code", func(t *testing.T) {
		t.Parallel()

		ts := store.NewMemoryStore[tenant.Tenant]()
		h := tenant.Middleware(resolver, tenant.NewStoreProvider(ts), &stubConns{})(okHandler(nil))

		rec := doRequest(h, "ghost.app.example.com", "/")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "TENANT_NOT_FOUND", errorCode(t, rec))
	})

	t.Run("bare domain without default tenant is not found", func(t *testing.T) {
		t.Parallel()

		ts := store.NewMemoryStore[tenant.Tenant]()
		h := tenant.Middleware(resolver, tenant.NewStoreProvider(ts), &stubConns{})(okHandler(nil))

		rec := doRequest(h, "example.com", "/")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "TENANT_NOT_FOUND", errorCode(t, rec))
	})

	t.Run("bare domain falls back to the default tenant", func(t *testing.T) {
		t.Parallel()

		ts := store.NewMemoryStore[tenant.Tenant]()
		seeded := seedTenant(t, ts, nil)

		var got *tenant.Tenant
		h := tenant.Middleware(resolver, tenant.NewStoreProvider(ts), &stubConns{},
			tenant.WithDefaultSubdomain("acme"))(okHandler(&got))

		rec := doRequest(h, "example.com", "/")
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, got)
		assert.Equal(t, seeded.ID, got.ID)
	})

	t.Run("super-admin subdomain skips tenant lookup", func(t *testing.T) {
		t.Parallel()

		ts := store.NewMemoryStore[tenant.Tenant]()
		provider := &countingProvider{inner: tenant.NewStoreProvider(ts)}
		conns := &stubConns{}

		var isAdmin bool
		h := tenant.Middleware(resolver, provider, conns)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			isAdmin = tenant.IsSuperAdmin(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		rec := doRequest(h, "admin.app.example.com", "/")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, isAdmin)
		assert.Zero(t, provider.calls.Load())
		assert.Zero(t, conns.tenantCalls.Load())
	})

	t.Run("inactive tenant is rejected", func(t *testing.T) {
		t.Parallel()

		ts := store.NewMemoryStore[tenant.Tenant]()
		seedTenant(t, ts, func(tn *tenant.Tenant) { tn.Active = false })

		h := tenant.Middleware(resolver, tenant.NewStoreProvider(ts), &stubConns{})(okHandler(nil))

		rec := doRequest(h, "acme.app.example.com", "/")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "forbidden", errorCode(t, rec))
	})

	t.Run("pending setup gates everything except the setup path", func(t *testing.T) {
		t.Parallel()

		ts := store.NewMemoryStore[tenant.Tenant]()
		seedTenant(t, ts, func(tn *tenant.Tenant) { tn.SetupDone = false })

		h := tenant.Middleware(resolver, tenant.NewStoreProvider(ts), &stubConns{})(okHandler(nil))

		rec := doRequest(h, "acme.app.example.com", "/dashboard")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "SETUP_REQUIRED", errorCode(t, rec))

		rec = doRequest(h, "acme.app.example.com", "/setup")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("resolution cache short-circuits the provider", func(t *testing.T) {
		t.Parallel()

		ts := store.NewMemoryStore[tenant.Tenant]()
		seedTenant(t, ts, nil)
		provider := &countingProvider{inner: tenant.NewStoreProvider(ts)}

		cache := tenant.NewMemoryCache()
		t.Cleanup(func() { _ = cache.Close() })

		h := tenant.Middleware(resolver, provider, &stubConns{}, tenant.WithCache(cache))(okHandler(nil))

		for range 3 {
			rec := doRequest(h, "acme.app.example.com", "/")
			require.Equal(t, http.StatusOK, rec.Code)
		}
		assert.Equal(t, int64(1), provider.calls.Load())
	})

	t.Run("connection failure surfaces as server error", func(t *testing.T) {
		t.Parallel()

		ts := store.NewMemoryStore[tenant.Tenant]()
		seedTenant(t, ts, nil)
		conns := &stubConns{err: assert.AnError}

		h := tenant.Middleware(resolver, tenant.NewStoreProvider(ts), conns)(okHandler(nil))

		rec := doRequest(h, "acme.app.example.com", "/")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestMemoryCache(t *testing.T) {
	t.Parallel()

	cache := tenant.NewMemoryCache()
	t.Cleanup(func() { _ = cache.Close() })

	ctx := context.Background()
	tn := &tenant.Tenant{ID: uuid.New(), Subdomain: "acme"}

	_, ok := cache.Get(ctx, "acme")
	assert.False(t, ok)

	cache.Set(ctx, "acme", tn, time.Minute)
	got, ok := cache.Get(ctx, "acme")
	require.True(t, ok)
	assert.Equal(t, tn.ID, got.ID)

	cache.Delete(ctx, "acme")
	_, ok = cache.Get(ctx, "acme")
	assert.False(t, ok)

	cache.Set(ctx, "expired", tn, -time.Second)
	_, ok = cache.Get(ctx, "expired")
	assert.False(t, ok, "expired entries are invisible even before the janitor runs")
}
