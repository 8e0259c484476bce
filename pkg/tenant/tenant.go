package tenant

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/zenvoice/backoffice/pkg/store"
)

// CollectionName is the central-database collection holding the tenant
// directory.
const CollectionName = "tenants"

// Organization holds the tenant's business details shown on documents.
type Organization struct {
	Name    string `bson:"name" json:"name"`
	Email   string `bson:"email" json:"email"`
	Address string `bson:"address" json:"address"`
}

// Tenant is an isolated customer organization. Deleting a tenant
// removes only this record; the tenant's logical database is
// deliberately retained.
type Tenant struct {
	ID           uuid.UUID    `bson:"_id" json:"id"`
	Name         string       `bson:"name" json:"name"`
	Subdomain    string       `bson:"subdomain" json:"subdomain"`
	DBName       string       `bson:"db_name" json:"db_name"`
	SetupKey     string       `bson:"setup_key,omitempty" json:"-"` // bcrypt hash of the setup passkey, cleared once setup completes
	SetupDone    bool         `bson:"setup_done" json:"setup_done"`
	Active       bool         `bson:"active" json:"active"`
	Organization Organization `bson:"organization" json:"organization"`
	CreatedAt    time.Time    `bson:"created_at" json:"created_at"`
}

// EntityName implements store.Entity.
func (t Tenant) EntityName() string { return CollectionName }

// EntityID implements store.Entity.
func (t Tenant) EntityID() string { return t.ID.String() }

// Fields implements store.Entity. The setup key is a secret and the
// identifier and creation timestamp are bookkeeping; none of them is
// ever part of an audit diff.
func (t Tenant) Fields() map[string]any {
	return map[string]any{
		"name":               t.Name,
		"subdomain":          t.Subdomain,
		"db_name":            t.DBName,
		"setup_done":         t.SetupDone,
		"active":             t.Active,
		"organization_name":  t.Organization.Name,
		"organization_email": t.Organization.Email,
	}
}

// Provider loads tenant records from the central database.
type Provider interface {
	// GetBySubdomain retrieves the tenant owning the given subdomain.
	// Returns ErrTenantNotFound when no tenant matches.
	GetBySubdomain(ctx context.Context, subdomain string) (*Tenant, error)
}

// StoreProvider adapts any tenant store to the Provider interface.
type StoreProvider struct {
	store store.Store[Tenant]
}

// NewStoreProvider creates a provider over the given tenant store.
func NewStoreProvider(s store.Store[Tenant]) *StoreProvider {
	return &StoreProvider{store: s}
}

func (p *StoreProvider) GetBySubdomain(ctx context.Context, subdomain string) (*Tenant, error) {
	t, err := p.store.FindOne(ctx, store.Filter{"subdomain": subdomain})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return &t, nil
}
