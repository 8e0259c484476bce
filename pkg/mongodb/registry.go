package mongodb

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// ErrRegistryClosed is returned when a connection is requested after
// Shutdown.
var ErrRegistryClosed = errors.New("connection registry is closed")

// Dialer establishes a client against the deployment. Overridable for
// tests via WithDialer.
type Dialer func(ctx context.Context, cfg Config) (*mongo.Client, error)

// RegistryOption configures Registry construction.
type RegistryOption func(*Registry)

// WithDialer replaces the default connect function.
func WithDialer(dial Dialer) RegistryOption {
	return func(r *Registry) {
		if dial != nil {
			r.dial = dial
		}
	}
}

// Registry owns the central database handle and a cache of live
// per-tenant handles. Handles are created lazily, reused across
// concurrent requests, and closed only by Shutdown.
type Registry struct {
	cfg  Config
	dial Dialer

	centralClient *mongo.Client
	central       *mongo.Database

	mu      sync.Mutex
	tenants map[uuid.UUID]*tenantConn
	closed  bool
}

// tenantConn is a connection slot for one tenant. The first caller for
// a tenant dials outside the registry lock and closes ready when done;
// concurrent callers for the same tenant wait on ready instead of
// dialing, which keeps the at-most-one-connection-per-tenant guarantee.
type tenantConn struct {
	ready  chan struct{}
	client *mongo.Client
	db     *mongo.Database
	err    error
}

// NewRegistry connects to the central database and returns a registry.
// The central database is a hard dependency: callers are expected to
// treat an error here as fatal to the process.
func NewRegistry(ctx context.Context, cfg Config, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		cfg:     cfg,
		dial:    Connect,
		tenants: make(map[uuid.UUID]*tenantConn),
	}
	for _, opt := range opts {
		opt(r)
	}

	client, err := r.dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	r.centralClient = client
	r.central = client.Database(cfg.CentralDatabase)

	return r, nil
}

// Central returns the singleton central database handle.
func (r *Registry) Central() *mongo.Database {
	return r.central
}

// CentralClient returns the underlying central client, for healthchecks.
func (r *Registry) CentralClient() *mongo.Client {
	return r.centralClient
}

// Tenant returns the live database handle for the given tenant, opening
// it on first use. Repeated calls with the same tenant ID return the
// identical handle. Concurrent first-time calls for the same tenant
// establish exactly one underlying client; calls for unrelated tenants
// never block each other beyond the map lookup.
func (r *Registry) Tenant(ctx context.Context, tenantID uuid.UUID, dbName string) (*mongo.Database, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	conn, ok := r.tenants[tenantID]
	if ok {
		r.mu.Unlock()

		select {
		case <-conn.ready:
			return conn.db, conn.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	conn = &tenantConn{ready: make(chan struct{})}
	r.tenants[tenantID] = conn
	r.mu.Unlock()

	client, err := r.dial(ctx, r.cfg)
	if err != nil {
		conn.err = err
		close(conn.ready)

		// Drop the failed slot so a later request can retry.
		r.mu.Lock()
		if r.tenants[tenantID] == conn {
			delete(r.tenants, tenantID)
		}
		r.mu.Unlock()
		return nil, err
	}

	conn.client = client
	conn.db = client.Database(dbName)
	close(conn.ready)

	return conn.db, nil
}

// Shutdown disconnects the central client and every tenant client.
// Connections otherwise persist for the process lifetime.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	conns := make([]*tenantConn, 0, len(r.tenants))
	for _, conn := range r.tenants {
		conns = append(conns, conn)
	}
	r.mu.Unlock()

	var errs []error
	for _, conn := range conns {
		<-conn.ready
		if conn.client != nil {
			if err := conn.client.Disconnect(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if r.centralClient != nil {
		if err := r.centralClient.Disconnect(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
